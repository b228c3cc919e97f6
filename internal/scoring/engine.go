// Package scoring implements the weighted multi-factor loan engine.
// Each factor normalizes its signal to a 0-100 value; the engine scales
// values by the weight table and reports a full per-factor breakdown.
package scoring

import (
	"log/slog"

	"github.com/algolend/kestrel/internal/domain"
)

// IntendedTotalWeight is what the weight table is expected to sum to.
// The engine normalizes by the actual sum either way, so a drifted
// table degrades to a warning rather than a skewed score.
const IntendedTotalWeight = 100.0

// Weights is the per-factor weight table, in percent.
type Weights struct {
	CreditScore       float64
	CreditUtilization float64
	AdverseListings   float64
	DeviceSignals     float64
	DTI               float64
	EmploymentTenure  float64
	ContractType      float64
	EmployerCategory  float64
	IncomeStability   float64
	RepaymentHistory  float64
	ExternalRetrieval float64
	BankCashflow      float64
}

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		CreditScore:       25,
		CreditUtilization: 5,
		AdverseListings:   10,
		DeviceSignals:     2,
		DTI:               15,
		EmploymentTenure:  5,
		ContractType:      5,
		EmployerCategory:  5,
		IncomeStability:   10,
		RepaymentHistory:  3,
		ExternalRetrieval: 5,
		BankCashflow:      10,
	}
}

// Total sums the weight table. Computed, never hard-coded, so adding a
// factor cannot silently desynchronize the normalization denominator.
func (w Weights) Total() float64 {
	return w.CreditScore + w.CreditUtilization + w.AdverseListings +
		w.DeviceSignals + w.DTI + w.EmploymentTenure + w.ContractType +
		w.EmployerCategory + w.IncomeStability + w.RepaymentHistory +
		w.ExternalRetrieval + w.BankCashflow
}

// Input carries everything one evaluation's factors read.
type Input struct {
	Report   *domain.CreditReport
	Exposure *domain.ExposureSummary
	Inputs   domain.ScoringInputs
	Device   domain.DeviceSignals
}

// Engine evaluates the factor set against a weight table.
type Engine struct {
	weights Weights
	logger  *slog.Logger
}

// NewEngine creates a scoring engine. A weight table that does not sum
// to the intended total is logged but honored as-is.
func NewEngine(weights Weights, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scoring")
	if total := weights.Total(); total != IntendedTotalWeight {
		logger.Warn("weight table does not sum to intended total",
			"total", total,
			"intended", IntendedTotalWeight)
	}
	return &Engine{weights: weights, logger: logger}
}

// Evaluate runs every factor and aggregates the breakdown. Factor order
// is fixed so breakdowns are comparable across evaluations.
func (e *Engine) Evaluate(in Input) *domain.ScoringBreakdown {
	w := e.weights
	factors := []domain.FactorResult{
		creditScoreFactor(in.Report, w.CreditScore),
		utilizationFactor(in.Exposure, w.CreditUtilization),
		adverseListingsFactor(in.Report, w.AdverseListings),
		deviceSignalsFactor(in.Device, w.DeviceSignals),
		dtiFactor(in.Exposure, in.Inputs.GrossMonthlyIncome, w.DTI),
		tenureFactor(in.Inputs.MonthsInCurrentJob, w.EmploymentTenure),
		contractTypeFactor(in.Inputs.ContractType, w.ContractType),
		employerCategoryFactor(in.Inputs, w.EmployerCategory),
		incomeStabilityFactor(in.Inputs, w.IncomeStability),
		repaymentFactor(in.Inputs.NewBorrower, w.RepaymentHistory),
		externalRetrievalFactor(w.ExternalRetrieval),
		cashflowFactor(in.Inputs.Cashflow, w.BankCashflow),
	}

	var sum float64
	for _, f := range factors {
		sum += f.ContributionPercent
	}

	total := w.Total()
	normalized := 0.0
	if total > 0 {
		normalized = sum / total * 100
	}

	return &domain.ScoringBreakdown{
		Factors:         factors,
		EngineScore:     sum,
		TotalWeight:     total,
		NormalizedScore: normalized,
	}
}
