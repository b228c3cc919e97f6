package flags

import "github.com/algolend/kestrel/internal/domain"

// BuiltinRules returns the default flag rule set. Rule IDs carry an
// ordinal prefix so the evaluation order (sorted by ID) matches the
// order flags have always appeared in decision reasons.
func BuiltinRules() []*domain.FlagRule {
	return []*domain.FlagRule{
		{
			ID:          "flag-01-very-low-score",
			Name:        "Very Low Credit Score",
			Description: "Bureau score below the decline threshold",
			Expression:  `score < 500 ? 'Very Low Credit Score' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-02-low-score",
			Name:        "Low Credit Score",
			Description: "Bureau score in the review band",
			Expression:  `score >= 500 && score < 600 ? 'Low Credit Score' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-03-judgements",
			Name:        "Judgments",
			Description: "One or more judgments on record",
			Expression:  `judgements > 0 ? string(judgements) + ' Judgment(s)' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-04-nlr-arrears",
			Name:        "High NLR Arrears",
			Description: "Cumulative NLR arrears above R5,000",
			Expression:  `nlr_arrears > 5000 ? 'High NLR Arrears (R' + string(nlr_arrears) + ')' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-05-cca-arrears",
			Name:        "High CCA Arrears",
			Description: "Cumulative CCA arrears above R5,000",
			Expression:  `cca_arrears > 5000 ? 'High CCA Arrears (R' + string(cca_arrears) + ')' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-06-adverse-accounts",
			Name:        "Adverse Accounts",
			Description: "One or more adverse accounts reported",
			Expression:  `adverse_accounts > 0 ? string(adverse_accounts) + ' Adverse Account(s)' : ''`,
			Enabled:     true,
		},
		{
			ID:          "flag-07-recent-enquiries",
			Name:        "Multiple Recent Credit Enquiries",
			Description: "More than three enquiries by other lenders in 12 months",
			Expression:  `enquiries_12m > 3 ? 'Multiple Recent Credit Enquiries' : ''`,
			Enabled:     true,
		},
	}
}
