// Package decision implements the fixed recommendation cascade and risk
// categorization applied to a normalized credit report.
package decision

import (
	"fmt"
	"strings"

	"github.com/algolend/kestrel/internal/domain"
)

// Signals is the compact set of report-derived inputs the decision rules
// and flag expressions read.
type Signals struct {
	Score           int
	Judgements      int
	AdverseAccounts int
	NLRArrears      int
	CCAArrears      int
	Enquiries12M    int
	ActiveAccounts  int
}

// SignalsFromReport projects a normalized report onto the decision signals.
func SignalsFromReport(rpt *domain.CreditReport) Signals {
	if rpt == nil {
		return Signals{}
	}
	return Signals{
		Score:           rpt.Score,
		Judgements:      rpt.Activities.Judgements,
		AdverseAccounts: rpt.AccountSummary.AdverseAccounts,
		NLRArrears:      rpt.NLR.CumulativeArrears,
		CCAArrears:      rpt.CCA.CumulativeArrears,
		Enquiries12M:    rpt.NLR.Past12Months.EnquiriesByOthers,
		ActiveAccounts:  rpt.NLR.ActiveAccounts + rpt.CCA.ActiveAccounts,
	}
}

// RiskCategory bands the bureau score for display and reporting.
func RiskCategory(score int) string {
	switch {
	case score >= 700:
		return "Low Risk"
	case score >= 600:
		return "Medium Risk"
	case score >= 500:
		return "High Risk"
	default:
		return "Very High Risk"
	}
}

// Recommend applies the decline and review cascades in their fixed
// order. Declines are checked first; any single decline condition is
// terminal regardless of the review conditions.
func Recommend(s Signals) domain.Recommendation {
	arrears := s.NLRArrears + s.CCAArrears

	if s.Score < 500 {
		return domain.RecommendDecline
	}
	if s.Judgements > 0 {
		return domain.RecommendDecline
	}
	if s.AdverseAccounts > 2 {
		return domain.RecommendDecline
	}
	if arrears > 10000 {
		return domain.RecommendDecline
	}

	if s.Score < 600 {
		return domain.RecommendReview
	}
	if arrears > 5000 {
		return domain.RecommendReview
	}
	if s.AdverseAccounts > 0 {
		return domain.RecommendReview
	}
	if s.Enquiries12M > 3 {
		return domain.RecommendReview
	}

	return domain.RecommendApprove
}

// Reason renders the human-readable explanation for a recommendation.
// The flags argument is the evaluated risk-flag list for the same
// report; it is only consulted for non-approvals.
func Reason(rec domain.Recommendation, s Signals, flags []string) string {
	if rec == domain.RecommendApprove {
		return fmt.Sprintf("Good credit profile: Score %d, %d active accounts, no major adverse events.",
			s.Score, s.ActiveAccounts)
	}

	reasons := "Insufficient data"
	if len(flags) > 0 {
		reasons = strings.Join(flags, ", ")
	}

	if rec == domain.RecommendDecline {
		return "High risk profile: " + reasons
	}
	return "Manual review required: " + reasons
}
