package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/algolend/kestrel/internal/bus"
	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/engine"
	"github.com/algolend/kestrel/internal/scoring"
)

func newTestPipeline(eventBus domain.EventBus) *engine.Pipeline {
	cfg := domain.BureauConfig{MockMode: true}
	scoringEngine := scoring.NewEngine(scoring.DefaultWeights(), nil)
	return engine.New(cfg, nil, scoringEngine, nil, nil, nil, eventBus, nil)
}

func testRequest(appID, idNumber string) domain.EvaluationRequest {
	return domain.EvaluationRequest{
		ApplicationID: appID,
		Applicant: domain.Applicant{
			UserID:         "user-1",
			IdentityNumber: idNumber,
			Surname:        "Doe",
			Forename:       "Jane",
			Address1:       "1 Main Road",
		},
		Inputs: domain.ScoringInputs{
			GrossMonthlyIncome: 20000,
			ContractType:       "PERMANENT",
		},
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	pipeline := newTestPipeline(eventBus)

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, pipeline, nil)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessEvaluationRequest", func(t *testing.T) {
		w := NewWorker(eventBus, pipeline, nil)
		w.Start()
		defer w.Stop()

		// Track completed decisions
		var decisionReceived atomic.Bool
		var decisionPayload []byte

		eventBus.Subscribe(context.Background(), domain.TopicDecisionCompleted, func(ctx context.Context, msg *domain.Message) error {
			decisionPayload = msg.Payload
			decisionReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := testRequest("app-async-1", "8001015009087")
		payload, _ := json.Marshal(req)

		err := eventBus.Publish(context.Background(), domain.TopicEvaluationRequested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		deadline := time.After(2 * time.Second)
		for !decisionReceived.Load() {
			select {
			case <-deadline:
				t.Fatal("timeout waiting for decision")
			case <-time.After(20 * time.Millisecond):
			}
		}

		var rec domain.DecisionRecord
		if err := json.Unmarshal(decisionPayload, &rec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}

		if rec.ApplicationID != "app-async-1" {
			t.Errorf("expected applicationID 'app-async-1', got '%s'", rec.ApplicationID)
		}
		if rec.CreditScore == 0 {
			t.Error("expected a scored record")
		}
		if rec.Recommendation == "" {
			t.Error("expected a recommendation")
		}
	})

	t.Run("FailurePublished", func(t *testing.T) {
		w := NewWorker(eventBus, pipeline, nil)
		w.Start()
		defer w.Stop()

		var failureReceived atomic.Bool

		eventBus.Subscribe(context.Background(), domain.TopicEvaluationFailed, func(ctx context.Context, msg *domain.Message) error {
			failureReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Invalid identity number fails validation; no failure event is
		// published for validation rejects, so the decision topic stays
		// quiet and the worker logs the error.
		req := testRequest("app-async-bad", "123")
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicEvaluationRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if failureReceived.Load() {
			t.Error("validation failures should not publish a failure event")
		}
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		w := NewWorker(eventBus, pipeline, nil)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		// Must not panic or wedge the worker.
		eventBus.Publish(context.Background(), domain.TopicEvaluationRequested, []byte("{not json"))

		time.Sleep(50 * time.Millisecond)

		// Worker should still process valid requests afterwards.
		var decisionReceived atomic.Bool
		eventBus.Subscribe(context.Background(), domain.TopicDecisionCompleted, func(ctx context.Context, msg *domain.Message) error {
			decisionReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		req := testRequest("app-async-2", "9001015009086")
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicEvaluationRequested, payload)

		deadline := time.After(2 * time.Second)
		for !decisionReceived.Load() {
			select {
			case <-deadline:
				t.Fatal("worker stopped processing after malformed payload")
			case <-time.After(20 * time.Millisecond):
			}
		}
	})
}
