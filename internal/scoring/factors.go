package scoring

import (
	"fmt"
	"strings"

	"github.com/algolend/kestrel/internal/domain"
)

// Bureau score scale bounds.
const (
	creditScoreMin = 300
	creditScoreMax = 850
)

func result(name string, value, weight float64) domain.FactorResult {
	return domain.FactorResult{
		Factor:              name,
		ValuePercent:        value,
		WeightPercent:       weight,
		ContributionPercent: value * weight / 100,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// creditScoreFactor maps the bureau score linearly onto the 300-850
// scale, clamped at both ends.
func creditScoreFactor(rpt *domain.CreditReport, weight float64) domain.FactorResult {
	score := 0
	if rpt != nil {
		score = rpt.Score
	}
	ratio := clamp(float64(score-creditScoreMin)/float64(creditScoreMax-creditScoreMin), 0, 1)
	r := result(domain.FactorCreditScore, ratio*100, weight)
	r.Notes = []string{fmt.Sprintf("Bureau score %d on %d-%d scale", score, creditScoreMin, creditScoreMax)}
	return r
}

// utilizationFactor scores revolving utilization. A value above 1 but
// at most 100 is taken as an already-scaled percentage; anything else
// is a ratio and gets multiplied by 100. Unknown utilization scores 0.
func utilizationFactor(exp *domain.ExposureSummary, weight float64) domain.FactorResult {
	if exp == nil || exp.UtilizationRatio == nil {
		r := result(domain.FactorCreditUtilization, 0, weight)
		r.Notes = []string{"No revolving limits reported"}
		return r
	}

	raw := *exp.UtilizationRatio
	percent := raw * 100
	if raw > 1 && raw <= 100 {
		percent = raw
	}

	var value float64
	switch {
	case percent <= 30:
		value = 100
	case percent <= 50:
		value = 70
	case percent <= 75:
		value = 40
	case percent <= 90:
		value = 20
	default:
		value = 5
	}

	r := result(domain.FactorCreditUtilization, value, weight)
	r.Notes = []string{fmt.Sprintf("Revolving utilization %.1f%%", percent)}
	return r
}

// adverseListingsFactor scores off the worse of the two adverse counts
// the bureau reports.
func adverseListingsFactor(rpt *domain.CreditReport, weight float64) domain.FactorResult {
	adverse := 0
	if rpt != nil {
		adverse = rpt.AccountSummary.AdverseAccounts
		if rpt.AdverseStats.AdverseTotal > adverse {
			adverse = rpt.AdverseStats.AdverseTotal
		}
	}

	var value float64
	switch {
	case adverse == 0:
		value = 100
	case adverse == 1:
		value = 40
	default:
		value = 0
	}

	r := result(domain.FactorAdverseListings, value, weight)
	r.Notes = []string{fmt.Sprintf("%d adverse listing(s)", adverse)}
	return r
}

// deviceSignalsFactor scores completeness of the captured device
// metadata: IP and user agent, each worth half.
func deviceSignalsFactor(dev domain.DeviceSignals, weight float64) domain.FactorResult {
	captured := 0
	if dev.IP != "" {
		captured++
	}
	if dev.UserAgent != "" {
		captured++
	}
	r := result(domain.FactorDeviceSignals, float64(captured)/2*100, weight)
	r.Notes = []string{fmt.Sprintf("%d of 2 device signals captured", captured)}
	return r
}

// dtiFactor scores the debt-to-income ratio: total monthly obligations
// from the account ledger over stated gross income. Missing income
// zeroes the factor; the ratio itself is then unknowable.
func dtiFactor(exp *domain.ExposureSummary, grossMonthlyIncome, weight float64) domain.FactorResult {
	if grossMonthlyIncome <= 0 {
		r := result(domain.FactorDTI, 0, weight)
		r.Notes = []string{"Gross monthly income not supplied"}
		return r
	}

	debt := 0.0
	if exp != nil {
		debt = exp.TotalMonthlyInstal
	}
	dtiPercent := debt / grossMonthlyIncome * 100

	var value float64
	switch {
	case dtiPercent <= 30:
		value = 100
	case dtiPercent <= 40:
		value = 90
	case dtiPercent <= 50:
		value = 75
	case dtiPercent <= 60:
		value = 60
	case dtiPercent <= 75:
		value = 50
	default:
		value = 0
	}

	r := result(domain.FactorDTI, value, weight)
	r.Notes = []string{fmt.Sprintf("DTI %.1f%% (debt %.2f / income %.2f)", dtiPercent, debt, grossMonthlyIncome)}
	return r
}

// tenureFactor scores months in the current job. Unknown or
// non-positive tenure scores 0.
func tenureFactor(months *float64, weight float64) domain.FactorResult {
	if months == nil || *months <= 0 {
		r := result(domain.FactorEmploymentTenure, 0, weight)
		r.Notes = []string{"Employment tenure not supplied"}
		return r
	}

	m := *months
	var value float64
	switch {
	case m >= 36:
		value = 100
	case m >= 24:
		value = 80
	case m >= 12:
		value = 75
	case m >= 6:
		value = 60
	case m >= 3:
		value = 55
	case m >= 2:
		value = 25
	default:
		value = 0
	}

	r := result(domain.FactorEmploymentTenure, value, weight)
	r.Notes = []string{fmt.Sprintf("%.0f month(s) in current job", m)}
	return r
}

var contractTypeValues = map[string]float64{
	"PERMANENT":              100,
	"PERMANENT_ON_PROBATION": 80,
	"FIXED_TERM_12_PLUS":     70,
	"SELF_EMPLOYED_12_PLUS":  60,
	"FIXED_TERM_LT_12":       50,
	"PART_TIME":              40,
	"UNEMPLOYED_OR_UNKNOWN":  0,
}

// contractTypeFactor scores the employment contract class. Unrecognized
// values score 0, same as unemployed/unknown.
func contractTypeFactor(contractType string, weight float64) domain.FactorResult {
	normalized := strings.ToUpper(strings.TrimSpace(contractType))
	value := contractTypeValues[normalized]
	r := result(domain.FactorContractType, value, weight)
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	r.Status = normalized
	return r
}

// employerCategoryFactor classifies the employer. The match label is
// surfaced as the factor status for display.
func employerCategoryFactor(in domain.ScoringInputs, weight float64) domain.FactorResult {
	sector := strings.ToUpper(strings.TrimSpace(in.EmploymentSector))
	match := strings.ToUpper(strings.TrimSpace(in.EmployerMatch))
	hasEmployer := strings.TrimSpace(in.EmployerName) != ""

	var value float64
	label := "UNKNOWN"
	switch {
	case sector == "GOVERNMENT" && hasEmployer:
		value, label = 100, "GOVERNMENT"
	case sector == "PRIVATE" && match == "LISTED":
		value, label = 80, "LISTED"
	case sector == "PRIVATE" && match == "HIGH_RISK_MANUAL":
		value, label = 50, "HIGH_RISK"
	case match == "BLACKLISTED" || match == "NOT_FOUND":
		value, label = 0, "NOT_FOUND"
	case sector == "PRIVATE" && hasEmployer:
		value, label = 50, "HIGH_RISK"
	}

	r := result(domain.FactorEmployerCategory, value, weight)
	r.Status = label
	return r
}

// incomeStabilityFactor gives government employees an automatic full
// score; everyone else waits on statement or payroll analysis.
func incomeStabilityFactor(in domain.ScoringInputs, weight float64) domain.FactorResult {
	sector := strings.ToUpper(strings.TrimSpace(in.EmploymentSector))
	hasEmployer := strings.TrimSpace(in.EmployerName) != ""

	if sector == "GOVERNMENT" && hasEmployer {
		r := result(domain.FactorIncomeStability, 100, weight)
		r.Notes = []string{"Government employee"}
		return r
	}
	r := result(domain.FactorIncomeStability, 0, weight)
	r.Notes = []string{"Pending bank statement or payroll analysis"}
	return r
}

// repaymentFactor scores internal repayment history. New borrowers
// carry no history and get the benefit of the doubt.
func repaymentFactor(newBorrower bool, weight float64) domain.FactorResult {
	value := 50.0
	if newBorrower {
		value = 100
	}
	return result(domain.FactorRepaymentHistory, value, weight)
}

// externalRetrievalFactor is a constant credit for a completed bureau
// retrieval: reaching this factor at all means the report arrived.
func externalRetrievalFactor(weight float64) domain.FactorResult {
	return result(domain.FactorExternalRetrieval, 100, weight)
}

// Cashflow factor statuses.
const (
	CashflowAnalyzed = "ANALYZED"
	CashflowPending  = "PENDING"
)

// cashflowFactor scores bank-statement analysis additively across four
// sub-signals, capped at 100. When none of the primary signals are
// present the analysis is still pending and scores 0.
func cashflowFactor(cf *domain.CashflowSummary, weight float64) domain.FactorResult {
	if cf == nil || (cf.AvgMonthlyIncome == nil && cf.IncomeConsistency == nil && cf.AvgMonthlyBalance == nil) {
		r := result(domain.FactorBankCashflow, 0, weight)
		r.Status = CashflowPending
		r.Notes = []string{"Awaiting bank statement upload"}
		return r
	}

	var value float64
	var notes []string

	if cf.IncomeConsistency != nil {
		switch c := *cf.IncomeConsistency; {
		case c >= 90:
			value += 30
			notes = append(notes, "Excellent income consistency (90%+)")
		case c >= 70:
			value += 20
			notes = append(notes, "Good income consistency (70-89%)")
		case c >= 50:
			value += 10
			notes = append(notes, "Moderate income consistency (50-69%)")
		default:
			notes = append(notes, "Poor income consistency (<50%)")
		}
	}

	if cf.AvgMonthlyBalance != nil {
		switch b := *cf.AvgMonthlyBalance; {
		case b >= 10000:
			value += 25
			notes = append(notes, "Strong average balance (R10,000+)")
		case b >= 5000:
			value += 20
			notes = append(notes, "Good average balance (R5,000-R9,999)")
		case b >= 1000:
			value += 10
			notes = append(notes, "Moderate average balance (R1,000-R4,999)")
		default:
			notes = append(notes, "Low average balance (<R1,000)")
		}
	}

	if cf.OverdraftCount != nil {
		switch o := *cf.OverdraftCount; {
		case o == 0:
			value += 25
			notes = append(notes, "No overdrafts")
		case o <= 2:
			value += 15
			notes = append(notes, "Minimal overdrafts (1-2)")
		case o <= 5:
			value += 5
			notes = append(notes, "Some overdrafts (3-5)")
		default:
			notes = append(notes, "Frequent overdrafts (6+)")
		}
	}

	if cf.GamblingTransactions != nil {
		switch g := *cf.GamblingTransactions; {
		case g == 0:
			value += 20
			notes = append(notes, "No gambling transactions")
		case g <= 3:
			value += 10
			notes = append(notes, "Minimal gambling activity (1-3)")
		default:
			notes = append(notes, "Significant gambling activity (4+)")
		}
	}

	if value > 100 {
		value = 100
	}

	r := result(domain.FactorBankCashflow, value, weight)
	r.Status = CashflowAnalyzed
	r.Notes = notes
	return r
}
