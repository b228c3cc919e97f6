package decision

import (
	"strings"
	"testing"

	"github.com/algolend/kestrel/internal/domain"
)

func TestRiskCategory(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{750, "Low Risk"},
		{700, "Low Risk"},
		{699, "Medium Risk"},
		{600, "Medium Risk"},
		{599, "High Risk"},
		{500, "High Risk"},
		{499, "Very High Risk"},
		{0, "Very High Risk"},
	}
	for _, tt := range tests {
		if got := RiskCategory(tt.score); got != tt.want {
			t.Errorf("RiskCategory(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name string
		s    Signals
		want domain.Recommendation
	}{
		{"very low score declines", Signals{Score: 450}, domain.RecommendDecline},
		{"judgement declines", Signals{Score: 720, Judgements: 1}, domain.RecommendDecline},
		{"three adverse accounts decline", Signals{Score: 720, AdverseAccounts: 3}, domain.RecommendDecline},
		{"combined arrears over 10k decline", Signals{Score: 720, NLRArrears: 6000, CCAArrears: 5000}, domain.RecommendDecline},
		{"low score reviews", Signals{Score: 580}, domain.RecommendReview},
		{"arrears over 5k review", Signals{Score: 650, NLRArrears: 6000}, domain.RecommendReview},
		{"single adverse account reviews", Signals{Score: 680, AdverseAccounts: 1}, domain.RecommendReview},
		{"enquiry spike reviews", Signals{Score: 700, Enquiries12M: 4}, domain.RecommendReview},
		{"clean profile approves", Signals{Score: 750, Enquiries12M: 2}, domain.RecommendApprove},
		{"boundary 500 is not a decline", Signals{Score: 500}, domain.RecommendReview},
		{"boundary 600 with clean file approves", Signals{Score: 600}, domain.RecommendApprove},
		{"arrears exactly 10000 falls through to review", Signals{Score: 650, NLRArrears: 10000}, domain.RecommendReview},
		{"decline outranks review conditions", Signals{Score: 450, AdverseAccounts: 1}, domain.RecommendDecline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommend(tt.s); got != tt.want {
				t.Errorf("Recommend(%+v) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	approve := Reason(domain.RecommendApprove, Signals{Score: 750, ActiveAccounts: 4}, nil)
	if approve != "Good credit profile: Score 750, 4 active accounts, no major adverse events." {
		t.Errorf("approve reason = %q", approve)
	}

	decline := Reason(domain.RecommendDecline, Signals{Score: 450}, []string{"Very Low Credit Score", "2 Judgment(s)"})
	if decline != "High risk profile: Very Low Credit Score, 2 Judgment(s)" {
		t.Errorf("decline reason = %q", decline)
	}

	review := Reason(domain.RecommendReview, Signals{Score: 580}, []string{"Low Credit Score"})
	if !strings.HasPrefix(review, "Manual review required: ") {
		t.Errorf("review reason = %q", review)
	}

	noFlags := Reason(domain.RecommendReview, Signals{Score: 580}, nil)
	if noFlags != "Manual review required: Insufficient data" {
		t.Errorf("flagless reason = %q", noFlags)
	}
}

func TestSignalsFromReport(t *testing.T) {
	rpt := &domain.CreditReport{
		Score:      640,
		Activities: domain.ActivitySummary{Judgements: 1},
		AccountSummary: domain.AccountSummary{
			AdverseAccounts: 2,
		},
		NLR: domain.RegisterSummary{
			CumulativeArrears: 3500,
			ActiveAccounts:    3,
			Past12Months:      domain.RegisterWindow{EnquiriesByOthers: 4},
		},
		CCA: domain.RegisterSummary{
			CumulativeArrears: 2000,
			ActiveAccounts:    1,
		},
	}
	s := SignalsFromReport(rpt)
	want := Signals{
		Score:           640,
		Judgements:      1,
		AdverseAccounts: 2,
		NLRArrears:      3500,
		CCAArrears:      2000,
		Enquiries12M:    4,
		ActiveAccounts:  4,
	}
	if s != want {
		t.Errorf("SignalsFromReport = %+v, want %+v", s, want)
	}

	if SignalsFromReport(nil) != (Signals{}) {
		t.Error("nil report should yield zero signals")
	}
}
