// Package flags provides the CEL-Go based risk-flag evaluation engine.
//
// Flag rules are string-valued CEL expressions over the report decision
// signals: an expression returns the flag text, or an empty string when
// the flag does not apply. Flags annotate decisions; the recommendation
// cascade itself is fixed code and never reads them.
package flags

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/algolend/kestrel/internal/decision"
	"github.com/algolend/kestrel/internal/domain"
)

// Engine is the CEL-based flag evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	logger        *slog.Logger
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.FlagRule
	Program cel.Program
}

// NewEngine creates a new flag evaluation engine.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// CEL environment with the report decision signals
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("judgements", cel.IntType),
		cel.Variable("adverse_accounts", cel.IntType),
		cel.Variable("nlr_arrears", cel.IntType),
		cel.Variable("cca_arrears", cel.IntType),
		cel.Variable("enquiries_12m", cel.IntType),
		cel.Variable("active_accounts", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		logger:        logger.With("component", "flags"),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded rule set.
func (e *Engine) ValidateRule(rule *domain.FlagRule) error {
	if rule == nil {
		return fmt.Errorf("flag rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.FlagRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return fmt.Errorf("load rule %s: %w", rule.ID, err)
			}
		}
	}
	return nil
}

// ReloadRules swaps the loaded rule set atomically. Disabled rules are
// skipped; a compile failure leaves the previous set in place.
func (e *Engine) ReloadRules(rules []*domain.FlagRule) error {
	fresh := make(map[string]*CompiledRule, len(rules))

	e.mu.RLock()
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			e.mu.RUnlock()
			return fmt.Errorf("reload rule %s: %w", rule.ID, err)
		}
		fresh[rule.ID] = compiled
	}
	e.mu.RUnlock()

	e.mu.Lock()
	e.compiledRules = fresh
	e.mu.Unlock()
	return nil
}

// RuleCount returns how many rules are currently loaded.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// compileRule compiles the rule expression. Caller holds at least the
// read lock for env access.
func (e *Engine) compileRule(rule *domain.FlagRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.StringType {
		return nil, fmt.Errorf("expression must produce a string, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}
	return &CompiledRule{Rule: rule, Program: prg}, nil
}

// Evaluate runs every loaded rule against the signals and collects the
// non-empty flag texts. Rules run in a stable order (by rule ID) so
// flag lists are deterministic across evaluations of the same report.
func (e *Engine) Evaluate(s decision.Signals) []string {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Rule.ID < rules[j].Rule.ID
	})

	activation := map[string]any{
		"score":            int64(s.Score),
		"judgements":       int64(s.Judgements),
		"adverse_accounts": int64(s.AdverseAccounts),
		"nlr_arrears":      int64(s.NLRArrears),
		"cca_arrears":      int64(s.CCAArrears),
		"enquiries_12m":    int64(s.Enquiries12M),
		"active_accounts":  int64(s.ActiveAccounts),
	}

	var flags []string
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			e.logger.Error("flag rule evaluation failed",
				"rule_id", rule.Rule.ID,
				"error", err)
			continue
		}
		text, ok := out.(types.String)
		if !ok {
			e.logger.Error("flag rule produced non-string value",
				"rule_id", rule.Rule.ID)
			continue
		}
		if text != "" {
			flags = append(flags, string(text))
		}
	}
	return flags
}
