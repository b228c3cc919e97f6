package domain

import (
	"time"
)

// Recommendation is the engine's lending recommendation.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendDecline Recommendation = "decline"
)

// Canonical factor names, in breakdown order.
const (
	FactorCreditScore       = "creditScore"
	FactorCreditUtilization = "creditUtilization"
	FactorAdverseListings   = "adverseListings"
	FactorDeviceSignals     = "deviceSignals"
	FactorDTI               = "dti"
	FactorEmploymentTenure  = "employmentTenure"
	FactorContractType      = "contractType"
	FactorEmployerCategory  = "employerCategory"
	FactorIncomeStability   = "incomeStability"
	FactorRepaymentHistory  = "repaymentHistory"
	FactorExternalRetrieval = "externalRetrieval"
	FactorBankCashflow      = "bankCashflow"
)

// FactorResult is the outcome of one scoring factor. ValuePercent is the
// factor's normalized 0-100 value; ContributionPercent is that value scaled
// by the factor weight, so it always lies in [0, WeightPercent].
type FactorResult struct {
	Factor              string   `json:"factor"`
	ValuePercent        float64  `json:"valuePercent"`
	WeightPercent       float64  `json:"weightPercent"`
	ContributionPercent float64  `json:"contributionPercent"`
	Status              string   `json:"status,omitempty"`
	Notes               []string `json:"notes,omitempty"`
}

// ScoringBreakdown is the full per-factor explanation of an engine score.
type ScoringBreakdown struct {
	Factors []FactorResult `json:"factors"`

	// EngineScore is the sum of all contributions; NormalizedScore divides
	// by TotalWeight, the programmatic sum of the weight table.
	EngineScore     float64 `json:"engineScore"`
	TotalWeight     float64 `json:"totalWeight"`
	NormalizedScore float64 `json:"normalizedScore"`
}

// Factor returns the named factor result, or nil if absent.
func (b *ScoringBreakdown) Factor(name string) *FactorResult {
	for i := range b.Factors {
		if b.Factors[i].Factor == name {
			return &b.Factors[i]
		}
	}
	return nil
}

// EvaluationMetadata carries processing timings for one evaluation.
type EvaluationMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	BureauMs      int64  `json:"bureauMs"`
	NormalizeMs   int64  `json:"normalizeMs"`
	ScoreMs       int64  `json:"scoreMs"`
	TotalMs       int64  `json:"totalMs"`
	CacheHit      bool   `json:"cacheHit"`
	EngineVersion string `json:"engineVersion"`
}

// DecisionRecord is the audit-ready result of one completed evaluation.
// Created once, never mutated, appended to the record store.
type DecisionRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	ApplicationID string `json:"applicationId"`

	ReportReference string `json:"reportReference"`
	BureauName      string `json:"bureauName"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	IDNumber        string `json:"idNumber"`

	CreditScore          int            `json:"creditScore"`
	ScoreBand            RiskType       `json:"scoreBand"`
	RiskCategory         string         `json:"riskCategory"`
	Recommendation       Recommendation `json:"recommendation"`
	RecommendationReason string         `json:"recommendationReason"`
	RiskFlags            []string       `json:"riskFlags"`

	Report    *CreditReport     `json:"report"`
	Breakdown *ScoringBreakdown `json:"breakdown"`
	Exposure  *ExposureSummary  `json:"exposure"`

	// RawPayload is the base64 compressed report as received from the
	// bureau (or the encoded mock XML), kept for client-side download.
	RawPayload string `json:"rawPayload,omitempty"`

	MockMode  bool               `json:"mockMode"`
	Status    string             `json:"status"`
	Metadata  EvaluationMetadata `json:"metadata"`
	CreatedAt time.Time          `json:"createdAt"`
}

// DecisionSummary is the list-view projection of a decision record.
type DecisionSummary struct {
	ID             string         `json:"id"`
	ApplicationID  string         `json:"applicationId"`
	IDNumber       string         `json:"idNumber"`
	CreditScore    int            `json:"creditScore"`
	RiskCategory   string         `json:"riskCategory"`
	Recommendation Recommendation `json:"recommendation"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// FlagRule is one configurable risk-flag rule. The expression is CEL over
// the report signal variables and yields the flag text, or "" for no flag.
// Flags feed display and audit only; the decision cascade is fixed code.
type FlagRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}
