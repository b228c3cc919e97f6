// Package worker provides async evaluation processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/engine"
)

// Worker consumes evaluation requests from the EventBus and runs each
// through the pipeline. HTTP callers that want async processing publish
// to TopicEvaluationRequested instead of calling the pipeline inline.
type Worker struct {
	bus      domain.EventBus
	pipeline *engine.Pipeline
	logger   *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, pipeline *engine.Pipeline, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		pipeline: pipeline,
		logger:   logger.With("component", "worker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the evaluation request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicEvaluationRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started",
		"topic", domain.TopicEvaluationRequested,
	)
	return nil
}

// handleMessage decodes and processes one evaluation request.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req domain.EvaluationRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse evaluation request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.logger.Debug("processing evaluation request",
		"application_id", req.ApplicationID,
		"message_id", msg.ID,
	)

	rec, err := w.pipeline.Evaluate(ctx, &req)
	if err != nil {
		// The pipeline already published the failure event.
		w.logger.Error("async evaluation failed",
			"application_id", req.ApplicationID,
			"error", err,
		)
		return err
	}

	w.logger.Info("async evaluation completed",
		"application_id", req.ApplicationID,
		"record_id", rec.ID,
		"recommendation", rec.Recommendation,
	)
	return nil
}

// Stats holds worker runtime statistics.
type Stats struct {
	SubscriptionCount int
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	return Stats{SubscriptionCount: len(w.subscriptions)}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}
