package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/algolend/kestrel/internal/domain"
)

func newTestStore(t *testing.T) domain.RecordStore {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	store, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleRecord(id, userID, idNumber string, createdAt time.Time) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ID:                   id,
		UserID:               userID,
		ApplicationID:        "app-" + id,
		ReportReference:      "ENQ-" + id,
		BureauName:           "TestBureau",
		FirstName:            "Thandi",
		LastName:             "Nkosi",
		IDNumber:             idNumber,
		CreditScore:          655,
		ScoreBand:            domain.RiskMedium,
		RiskCategory:         "Medium Risk",
		Recommendation:       domain.RecommendApprove,
		RecommendationReason: "Good credit profile: Score 655, 3 active accounts, no major adverse events.",
		RiskFlags:            []string{"High Recent Credit Seeking"},
		Report: &domain.CreditReport{
			EnquiryID: "ENQ-" + id,
			Score:     655,
			RiskType:  domain.RiskMedium,
		},
		Breakdown: &domain.ScoringBreakdown{
			Factors: []domain.FactorResult{
				{Factor: domain.FactorCreditScore, ValuePercent: 64.5, WeightPercent: 25, ContributionPercent: 16.1},
			},
			EngineScore:     72.4,
			TotalWeight:     100,
			NormalizedScore: 72.4,
		},
		Exposure: &domain.ExposureSummary{
			TotalBalance: 42000,
			OpenAccounts: 3,
		},
		RawPayload: "UEsDBA==",
		MockMode:   true,
		Status:     "completed",
		Metadata: domain.EvaluationMetadata{
			TraceID:       "trace-" + id,
			BureauMs:      120,
			TotalMs:       145,
			EngineVersion: "1.0.0",
		},
		CreatedAt: createdAt,
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("AppendAndGetRecord", func(t *testing.T) {
		rec := sampleRecord("rec-001", "user-001", "8001015009087", now)

		if err := store.AppendRecord(ctx, rec); err != nil {
			t.Fatalf("AppendRecord failed: %v", err)
		}

		got, err := store.GetRecord(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}

		if got.ID != rec.ID {
			t.Errorf("expected ID %s, got %s", rec.ID, got.ID)
		}
		if got.CreditScore != rec.CreditScore {
			t.Errorf("expected CreditScore %d, got %d", rec.CreditScore, got.CreditScore)
		}
		if got.Recommendation != domain.RecommendApprove {
			t.Errorf("expected recommendation approve, got %s", got.Recommendation)
		}
		if got.ScoreBand != domain.RiskMedium {
			t.Errorf("expected score band %s, got %s", domain.RiskMedium, got.ScoreBand)
		}
		if !got.MockMode {
			t.Error("expected mock mode to round-trip")
		}
		if len(got.RiskFlags) != 1 || got.RiskFlags[0] != "High Recent Credit Seeking" {
			t.Errorf("unexpected risk flags: %v", got.RiskFlags)
		}
		if got.Report == nil || got.Report.EnquiryID != rec.Report.EnquiryID {
			t.Errorf("report did not round-trip: %+v", got.Report)
		}
		if got.Breakdown == nil || got.Breakdown.NormalizedScore != 72.4 {
			t.Errorf("breakdown did not round-trip: %+v", got.Breakdown)
		}
		if got.Exposure == nil || got.Exposure.OpenAccounts != 3 {
			t.Errorf("exposure did not round-trip: %+v", got.Exposure)
		}
		if got.Metadata.TraceID != rec.Metadata.TraceID {
			t.Errorf("expected trace ID %s, got %s", rec.Metadata.TraceID, got.Metadata.TraceID)
		}
		if got.RawPayload != rec.RawPayload {
			t.Errorf("raw payload did not round-trip")
		}
	})

	t.Run("AppendOnly", func(t *testing.T) {
		rec := sampleRecord("rec-001", "user-001", "8001015009087", now)
		if err := store.AppendRecord(ctx, rec); err == nil {
			t.Error("expected duplicate ID to fail")
		}
	})

	t.Run("AppendRequiresID", func(t *testing.T) {
		rec := sampleRecord("", "user-001", "8001015009087", now)
		if err := store.AppendRecord(ctx, rec); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}

		rec = sampleRecord("rec-no-idnum", "user-001", "", now)
		if err := store.AppendRecord(ctx, rec); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})

	t.Run("ListRecordsByUser", func(t *testing.T) {
		for i, id := range []string{"rec-010", "rec-011", "rec-012"} {
			rec := sampleRecord(id, "user-010", "9001015009086", now.Add(time.Duration(i)*time.Minute))
			if err := store.AppendRecord(ctx, rec); err != nil {
				t.Fatalf("AppendRecord failed: %v", err)
			}
		}

		summaries, err := store.ListRecordsByUser(ctx, "user-010", 10)
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(summaries) != 3 {
			t.Fatalf("expected 3 summaries, got %d", len(summaries))
		}

		// Most recent first.
		if summaries[0].ID != "rec-012" {
			t.Errorf("expected rec-012 first, got %s", summaries[0].ID)
		}
		if summaries[0].Recommendation != domain.RecommendApprove {
			t.Errorf("unexpected recommendation: %s", summaries[0].Recommendation)
		}

		limited, err := store.ListRecordsByUser(ctx, "user-010", 2)
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected limit of 2, got %d", len(limited))
		}
	})

	t.Run("ListRecordsByIDNumber", func(t *testing.T) {
		// Same identity number across two users.
		rec := sampleRecord("rec-020", "user-020", "9001015009086", now.Add(time.Hour))
		if err := store.AppendRecord(ctx, rec); err != nil {
			t.Fatalf("AppendRecord failed: %v", err)
		}

		summaries, err := store.ListRecordsByIDNumber(ctx, "9001015009086", 10)
		if err != nil {
			t.Fatalf("ListRecordsByIDNumber failed: %v", err)
		}
		if len(summaries) != 4 {
			t.Fatalf("expected 4 summaries, got %d", len(summaries))
		}
		if summaries[0].ID != "rec-020" {
			t.Errorf("expected rec-020 first, got %s", summaries[0].ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := store.GetRecord(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestFlagRuleStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &domain.FlagRule{
		ID:          "flag-90-custom",
		Name:        "Custom flag",
		Description: "Flags heavy judgement exposure",
		Expression:  `judgements > 2 ? 'Multiple Judgments' : ''`,
		Enabled:     true,
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := store.SaveFlagRule(ctx, rule); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		got, err := store.GetFlagRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetFlagRule failed: %v", err)
		}
		if got.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, got.Expression)
		}
		if !got.Enabled {
			t.Error("expected rule to be enabled")
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		updated := *rule
		updated.Expression = `judgements > 1 ? 'Multiple Judgments' : ''`
		updated.Enabled = false

		if err := store.SaveFlagRule(ctx, &updated); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		got, err := store.GetFlagRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetFlagRule failed: %v", err)
		}
		if got.Expression != updated.Expression {
			t.Errorf("expected updated expression, got %q", got.Expression)
		}
		if got.Enabled {
			t.Error("expected rule to be disabled after update")
		}
	})

	t.Run("List", func(t *testing.T) {
		second := &domain.FlagRule{
			ID:         "flag-01-low-score",
			Name:       "Low score",
			Expression: `score < 500 ? 'Very Low Credit Score' : ''`,
			Enabled:    true,
		}
		if err := store.SaveFlagRule(ctx, second); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		rules, err := store.ListFlagRules(ctx)
		if err != nil {
			t.Fatalf("ListFlagRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}

		// Ordered by ID.
		if rules[0].ID != "flag-01-low-score" {
			t.Errorf("expected flag-01-low-score first, got %s", rules[0].ID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.DeleteFlagRule(ctx, rule.ID); err != nil {
			t.Fatalf("DeleteFlagRule failed: %v", err)
		}

		if _, err := store.GetFlagRule(ctx, rule.ID); !errors.Is(err, domain.ErrRuleNotFound) {
			t.Errorf("expected ErrRuleNotFound, got: %v", err)
		}

		if err := store.DeleteFlagRule(ctx, rule.ID); !errors.Is(err, domain.ErrRuleNotFound) {
			t.Errorf("expected ErrRuleNotFound on second delete, got: %v", err)
		}
	})

	t.Run("RequiresExpression", func(t *testing.T) {
		bad := &domain.FlagRule{ID: "flag-99-bad", Name: "Bad"}
		if err := store.SaveFlagRule(ctx, bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	store := &SQLStore{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := store.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
