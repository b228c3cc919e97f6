package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/algolend/kestrel/internal/bus"
	"github.com/algolend/kestrel/internal/cache"
	"github.com/algolend/kestrel/internal/decision"
	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/flags"
	"github.com/algolend/kestrel/internal/scoring"
)

func validRequest() *domain.EvaluationRequest {
	tenure := 40.0
	return &domain.EvaluationRequest{
		ApplicationID: "app-9001",
		Applicant: domain.Applicant{
			UserID:         "user-42",
			IdentityNumber: "8001015009087",
			Surname:        "Nkosi",
			Forename:       "Thandi",
			Gender:         "F",
			DateOfBirth:    "19800101",
			Address1:       "12 Long Street",
			PostalCode:     "8001",
		},
		Inputs: domain.ScoringInputs{
			GrossMonthlyIncome: 25000,
			MonthsInCurrentJob: &tenure,
			ContractType:       "PERMANENT",
			EmploymentSector:   "GOVERNMENT",
			EmployerName:       "Dept of Works",
			NewBorrower:        true,
		},
		Device: domain.DeviceSignals{
			IP:        "::ffff:10.0.0.1",
			UserAgent: "test-agent",
		},
	}
}

// memoryStore is a minimal RecordStore for pipeline tests.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.DecisionRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*domain.DecisionRecord)}
}

func (s *memoryStore) AppendRecord(ctx context.Context, rec *domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return errors.New("duplicate record ID")
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memoryStore) GetRecord(ctx context.Context, recordID string) (*domain.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) ListRecordsByUser(ctx context.Context, userID string, limit int) ([]*domain.DecisionSummary, error) {
	return nil, nil
}

func (s *memoryStore) ListRecordsByIDNumber(ctx context.Context, idNumber string, limit int) ([]*domain.DecisionSummary, error) {
	return nil, nil
}

func (s *memoryStore) SaveFlagRule(ctx context.Context, rule *domain.FlagRule) error { return nil }
func (s *memoryStore) GetFlagRule(ctx context.Context, ruleID string) (*domain.FlagRule, error) {
	return nil, domain.ErrRuleNotFound
}
func (s *memoryStore) ListFlagRules(ctx context.Context) ([]*domain.FlagRule, error) {
	return nil, nil
}
func (s *memoryStore) DeleteFlagRule(ctx context.Context, ruleID string) error { return nil }
func (s *memoryStore) Ping(ctx context.Context) error                          { return nil }
func (s *memoryStore) Close() error                                            { return nil }

func newMockPipeline(t *testing.T, cfg domain.BureauConfig) (*Pipeline, domain.RecordStore) {
	t.Helper()

	store := newMemoryStore()
	lru := cache.NewLRUCache(100)

	flagEngine, err := flags.NewEngine(nil)
	if err != nil {
		t.Fatalf("flags.NewEngine failed: %v", err)
	}
	if err := flagEngine.LoadRules(flags.BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	scoringEngine := scoring.NewEngine(scoring.DefaultWeights(), nil)

	p := New(cfg, nil, scoringEngine, flagEngine, store, lru, bus.NewChannelBus(100), nil)
	return p, store
}

func TestPipelineMockModeEndToEnd(t *testing.T) {
	cfg := domain.BureauConfig{
		MockMode:      true,
		ReportTTL:     3600,
		EnquiryLimit:  5,
		EnquiryWindow: 3600,
	}
	p, store := newMockPipeline(t, cfg)
	ctx := context.Background()

	rec, err := p.Evaluate(ctx, validRequest())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	// Seed 9087 puts the generated score at 707, a clean low-risk profile.
	if rec.CreditScore != 707 {
		t.Errorf("expected score 707, got %d", rec.CreditScore)
	}
	if rec.Recommendation != domain.RecommendApprove {
		t.Errorf("expected approve, got %s", rec.Recommendation)
	}
	if rec.RiskCategory != "Low Risk" {
		t.Errorf("expected Low Risk, got %s", rec.RiskCategory)
	}
	if rec.IDNumber != "8001015009087" {
		t.Errorf("unexpected ID number: %s", rec.IDNumber)
	}
	if !rec.MockMode {
		t.Error("expected mock mode record")
	}
	if rec.Status != "completed" {
		t.Errorf("expected completed status, got %s", rec.Status)
	}
	if rec.Metadata.CacheHit {
		t.Error("first evaluation should not be a cache hit")
	}
	if rec.Metadata.EngineVersion != Version {
		t.Errorf("unexpected engine version: %s", rec.Metadata.EngineVersion)
	}
	if rec.Breakdown == nil || len(rec.Breakdown.Factors) != 12 {
		t.Fatalf("expected 12 scoring factors, got %+v", rec.Breakdown)
	}
	if rec.Report == nil || rec.Report.EnquiryID != "MOCK-app-9001" {
		t.Errorf("unexpected report reference: %+v", rec.Report)
	}
	if rec.RawPayload == "" {
		t.Error("expected raw payload to be retained")
	}
	if rec.FirstName != "Thandi" || rec.LastName != "Nkosi" {
		t.Errorf("applicant name not carried onto record: %s %s", rec.FirstName, rec.LastName)
	}

	// Device IP should be normalized before scoring.
	// (The original header value carried the IPv4-mapped prefix.)
	stored, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.CreditScore != rec.CreditScore {
		t.Errorf("persisted score mismatch: %d vs %d", stored.CreditScore, rec.CreditScore)
	}
}

func TestPipelineValidationBeforeFetch(t *testing.T) {
	cfg := domain.BureauConfig{MockMode: true}
	p, _ := newMockPipeline(t, cfg)

	req := validRequest()
	req.Applicant.IdentityNumber = "123"

	_, err := p.Evaluate(context.Background(), req)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got: %v", err)
	}
	if verr.Field != "identityNumber" {
		t.Errorf("expected identityNumber field, got %s", verr.Field)
	}
}

func TestPipelineCacheHit(t *testing.T) {
	cfg := domain.BureauConfig{
		MockMode:      true,
		ReportTTL:     3600,
		EnquiryLimit:  5,
		EnquiryWindow: 3600,
	}
	p, _ := newMockPipeline(t, cfg)
	ctx := context.Background()

	first, err := p.Evaluate(ctx, validRequest())
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first evaluation should miss the cache")
	}

	second, err := p.Evaluate(ctx, validRequest())
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second evaluation should hit the cache")
	}
	if second.CreditScore != first.CreditScore {
		t.Errorf("cached score mismatch: %d vs %d", second.CreditScore, first.CreditScore)
	}
	if second.ID == first.ID {
		t.Error("each evaluation should append its own record")
	}
}

func TestPipelineEnquiryLimit(t *testing.T) {
	// No report TTL, so every evaluation is a fresh billed enquiry.
	cfg := domain.BureauConfig{
		MockMode:      true,
		EnquiryLimit:  1,
		EnquiryWindow: 3600,
	}
	p, _ := newMockPipeline(t, cfg)
	ctx := context.Background()

	if _, err := p.Evaluate(ctx, validRequest()); err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}

	_, err := p.Evaluate(ctx, validRequest())
	if !errors.Is(err, domain.ErrEnquiryLimit) {
		t.Fatalf("expected ErrEnquiryLimit, got: %v", err)
	}
}

type failingFetcher struct {
	calls atomic.Int32
}

func (f *failingFetcher) DoNormalEnquiry(ctx context.Context, app *domain.Applicant) (string, error) {
	f.calls.Add(1)
	return "", &domain.TransportError{Op: "enquiry", Err: errors.New("connection refused")}
}

func TestPipelineTransportFailure(t *testing.T) {
	fetcher := &failingFetcher{}
	scoringEngine := scoring.NewEngine(scoring.DefaultWeights(), nil)

	cfg := domain.BureauConfig{MockMode: false}
	p := New(cfg, fetcher, scoringEngine, nil, nil, nil, nil, nil)

	_, err := p.Evaluate(context.Background(), validRequest())

	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got: %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("transport failures should be retryable")
	}
	if fetcher.calls.Load() != 1 {
		t.Errorf("expected 1 fetch attempt, got %d", fetcher.calls.Load())
	}
}

func TestPipelineFlagsOnRecord(t *testing.T) {
	cfg := domain.BureauConfig{MockMode: true}
	p, _ := newMockPipeline(t, cfg)

	// Seed 0140 lands in the high-risk tier: score 580, two adverse
	// accounts, a judgement, heavy arrears and recent enquiries.
	req := validRequest()
	req.Applicant.IdentityNumber = "8001015000140"
	req.ApplicationID = "app-9002"

	rec, err := p.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if rec.Recommendation != domain.RecommendDecline {
		t.Errorf("expected decline, got %s", rec.Recommendation)
	}
	if len(rec.RiskFlags) == 0 {
		t.Fatal("expected risk flags for a high-risk profile")
	}

	signals := decision.SignalsFromReport(rec.Report)
	if signals.Judgements != 1 {
		t.Errorf("expected 1 judgement in signals, got %d", signals.Judgements)
	}
}
