package flags

import (
	"reflect"
	"testing"

	"github.com/algolend/kestrel/internal/decision"
	"github.com/algolend/kestrel/internal/domain"
)

func newLoadedEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	return e
}

func TestBuiltinRulesCompile(t *testing.T) {
	e := newLoadedEngine(t)
	if got, want := e.RuleCount(), len(BuiltinRules()); got != want {
		t.Errorf("RuleCount = %d, want %d", got, want)
	}
}

func TestEvaluateBuiltinFlags(t *testing.T) {
	e := newLoadedEngine(t)

	tests := []struct {
		name string
		s    decision.Signals
		want []string
	}{
		{
			name: "clean profile raises nothing",
			s:    decision.Signals{Score: 720},
			want: nil,
		},
		{
			name: "very low score",
			s:    decision.Signals{Score: 450},
			want: []string{"Very Low Credit Score"},
		},
		{
			name: "low score band",
			s:    decision.Signals{Score: 550},
			want: []string{"Low Credit Score"},
		},
		{
			name: "boundary 600 is clean",
			s:    decision.Signals{Score: 600},
			want: nil,
		},
		{
			name: "judgements interpolate the count",
			s:    decision.Signals{Score: 700, Judgements: 2},
			want: []string{"2 Judgment(s)"},
		},
		{
			name: "arrears flags include the amount",
			s:    decision.Signals{Score: 700, NLRArrears: 12000, CCAArrears: 6000},
			want: []string{"High NLR Arrears (R12000)", "High CCA Arrears (R6000)"},
		},
		{
			name: "everything at once, stable order",
			s: decision.Signals{
				Score:           480,
				Judgements:      1,
				AdverseAccounts: 2,
				NLRArrears:      12000,
				Enquiries12M:    6,
			},
			want: []string{
				"Very Low Credit Score",
				"1 Judgment(s)",
				"High NLR Arrears (R12000)",
				"2 Adverse Account(s)",
				"Multiple Recent Credit Enquiries",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.s)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate(%+v) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	valid := &domain.FlagRule{
		ID:         "custom-1",
		Expression: `score < 400 ? 'Critically Low Score' : ''`,
	}
	if err := e.ValidateRule(valid); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
	// Validation must not load the rule.
	if e.RuleCount() != 0 {
		t.Error("ValidateRule should not mutate the loaded set")
	}

	if err := e.ValidateRule(&domain.FlagRule{ID: "bad-syntax", Expression: `score <`}); err == nil {
		t.Error("syntax error should fail validation")
	}
	if err := e.ValidateRule(&domain.FlagRule{ID: "bad-type", Expression: `score < 500`}); err == nil {
		t.Error("boolean expression should fail validation: flags must be strings")
	}
	if err := e.ValidateRule(&domain.FlagRule{ID: "bad-var", Expression: `unknown_var > 0 ? 'x' : ''`}); err == nil {
		t.Error("unknown variable should fail validation")
	}
	if err := e.ValidateRule(nil); err == nil {
		t.Error("nil rule should fail validation")
	}
}

func TestReloadRules(t *testing.T) {
	e := newLoadedEngine(t)

	replacement := []*domain.FlagRule{
		{
			ID:         "only-rule",
			Expression: `active_accounts == 0 ? 'No Active Accounts' : ''`,
			Enabled:    true,
		},
		{
			ID:         "disabled-rule",
			Expression: `'never loads'`,
			Enabled:    false,
		},
	}
	if err := e.ReloadRules(replacement); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}
	if e.RuleCount() != 1 {
		t.Errorf("RuleCount = %d, want 1 after reload", e.RuleCount())
	}

	got := e.Evaluate(decision.Signals{Score: 450})
	want := []string{"No Active Accounts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Evaluate after reload = %v, want %v", got, want)
	}
}

func TestReloadRulesKeepsOldSetOnFailure(t *testing.T) {
	e := newLoadedEngine(t)
	before := e.RuleCount()

	err := e.ReloadRules([]*domain.FlagRule{
		{ID: "broken", Expression: `not valid (`, Enabled: true},
	})
	if err == nil {
		t.Fatal("broken rule set should fail to reload")
	}
	if e.RuleCount() != before {
		t.Errorf("RuleCount = %d, want unchanged %d", e.RuleCount(), before)
	}
}
