// Package report normalizes raw bureau report XML into the canonical
// CreditReport form and derives exposure metrics from the account ledger.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/xmltree"
)

// Normalize parses a bureau report document into a CreditReport. The
// only hard failure is an unparseable root: individual sections that
// are missing or malformed degrade to zero values so that a partial
// report still produces a usable result.
func Normalize(xmlData []byte) (*domain.CreditReport, error) {
	root, err := xmltree.Parse(xmlData)
	if err != nil {
		return nil, fmt.Errorf("normalize report: %w", err)
	}

	score := root.First("EnqCC_CompuSCORE").First("ROW")
	identity := root.First("EnqCC_DMATCHES").First("ROW")
	activities := root.First("EnqCC_ACTIVITIES").First("ROW")
	stats := root.First("EnqCC_STATS").First("ROW")
	enqCounts := root.First("EnqCC_ENQ_COUNTS").First("ROW")
	criteria := root.First("EnqCC_SRCHCRITERIA").First("ROW")
	summary := root.First("EnqCC_NLR_SUMMARY").First("Summary")

	cpa := normalizeAccounts(root.First("EnqCC_CPA_ACCOUNTS"), domain.SourceCPA)
	nlr := normalizeAccounts(root.First("EnqCC_NLR_ACCOUNTS"), domain.SourceNLR)
	accounts := make([]domain.AccountRecord, 0, len(cpa)+len(nlr))
	accounts = append(accounts, cpa...)
	accounts = append(accounts, nlr...)

	rpt := &domain.CreditReport{
		Score:     parseInt(score.Field("SCORE")),
		RiskType:  riskType(score.Field("RISK_TYPE")),
		ThinFile:  strings.EqualFold(score.Field("THIN_FILE_INDICATOR"), "Y"),
		Version:   score.Field("VERSION"),
		ScoreType: score.Field("SCORE_TYPE"),

		EnquiryID: root.Field("Enquiry_ID"),
		ClientRef: root.Field("Client_Ref"),

		Identity: domain.Identity{
			IDNumber:     identity.Field("ID_NUMBER"),
			Name:         identity.Field("NAME"),
			Surname:      identity.Field("SURNAME"),
			MatchStatus:  fieldOr(identity, "Unknown", "STATUS"),
			DeceasedDate: identity.Field("DECEASED_DATE"),
			CountryCode:  identity.Field("COUNTRY_CODE"),
		},
		Activities: domain.ActivitySummary{
			Enquiries:   parseInt(activities.Field("ENQUIRIES")),
			Loans:       parseInt(activities.Field("LOANS")),
			Judgements:  parseInt(activities.Field("JUDGEMENTS")),
			Notices:     parseInt(activities.Field("NOTICES")),
			Collections: parseInt(activities.Field("COLLECTIONS")),
			AdminOrders: parseInt(activities.Field("ADMINORDERS")),
			Balance:     parseInt(activities.Field("BALANCE")),
			Installment: parseInt(activities.Field("INSTALLMENT")),
		},
		AdverseStats: domain.AdverseStats{
			Judgements12M: parseInt(stats.Field("CC_JUDGE_12_CNT")),
			Judgements24M: parseInt(stats.Field("CC_JUDGE_24_CNT")),
			Judgements36M: parseInt(stats.Field("CC_JUDGE_36_CNT")),
			Notices12M:    parseInt(stats.Field("CC_NOTICE_12_CNT")),
			Notices24M:    parseInt(stats.Field("CC_NOTICE_24_CNT")),
			Notices36M:    parseInt(stats.Field("CC_NOTICE_36_CNT")),
			Adverse12M:    parseInt(stats.Field("CC_ADVERSE_12_CNT")),
			Adverse24M:    parseInt(stats.Field("CC_ADVERSE_24_CNT")),
			Adverse36M:    parseInt(stats.Field("CC_ADVERSE_36_CNT")),
			AdverseTotal:  parseInt(stats.Field("CC_ADVERSE_TOT")),
		},
		EnquiryCounts: domain.EnquiryCounts{
			Addresses:         parseInt(enqCounts.Field("ADDR")),
			AdminOrders:       parseInt(enqCounts.Field("ADMORDS")),
			Collections:       parseInt(enqCounts.Field("COLLECTIONS")),
			DirectMatches:     parseInt(enqCounts.Field("DMATCHES")),
			Judgements:        parseInt(enqCounts.Field("JUDGE")),
			Notices:           parseInt(enqCounts.Field("NOTICES")),
			PossibleMatches:   parseInt(enqCounts.Field("PMATCHES")),
			PreviousEnquiries: parseInt(enqCounts.Field("PREV_ENQ")),
			TelephoneNumbers:  parseInt(enqCounts.Field("TPHONE")),
			Employers:         parseInt(enqCounts.Field("EMPLOYERS")),
			FraudAlerts:       parseInt(enqCounts.Field("FRAUDALERT")),
		},
		NLR: domain.RegisterSummary{
			Past12Months:       registerWindow(summary.First("NLR_Past_12_Months")),
			Past24Months:       registerWindow(summary.First("NLR_Past_24_Months")),
			WorstMonthsArrears: parseInt(summary.Field("NLR_WorstMonthsArrears")),
			ActiveAccounts:     parseInt(summary.Field("NLR_ActiveAccounts")),
			BalanceExposure:    parseInt(summary.Field("NLR_BalanceExposure")),
			MonthlyInstallment: parseInt(summary.Field("NLR_MonthlyInstallment")),
			CumulativeArrears:  parseInt(summary.Field("NLR_CumulativeArrears")),
			ClosedAccounts:     parseInt(summary.Field("NLR_ClosedAccounts")),
		},
		CCA: domain.RegisterSummary{
			Past12Months:       registerWindow(summary.First("CCA_Past_12_Months")),
			Past24Months:       registerWindow(summary.First("CCA_Past_24_Months")),
			WorstMonthsArrears: parseInt(summary.Field("CCA_WorstMonthsArrears")),
			ActiveAccounts:     parseInt(summary.Field("CCA_ActiveAccounts")),
			BalanceExposure:    parseInt(summary.Field("CCA_BalanceExposure")),
			MonthlyInstallment: parseInt(summary.Field("CCA_MonthlyInstallment")),
			CumulativeArrears:  parseInt(summary.Field("CCA_CumulativeArrears")),
			ClosedAccounts:     parseInt(summary.Field("CCA_ClosedAccounts")),
		},
		AccountSummary: domain.AccountSummary{
			AdverseAccounts:    parseInt(summary.Field("AdverseAccounts")),
			RevolvingAccounts:  parseInt(summary.Field("RevolvingAccounts")),
			InstalmentAccounts: parseInt(summary.Field("InstalmentAccounts")),
			OpenAccounts:       parseInt(summary.Field("OpenAccounts")),
			HighestJudgement:   parseInt(summary.Field("HighestJudgement")),
		},
		Accounts:          accounts,
		EmploymentHistory: normalizeEmployers(root.First("EnqCC_EMPLOYER")),
		PreviousEnquiries: normalizePrevEnquiries(root.First("EnqCC_PREVENQ")),
		DeclineReasons:    extractDeclineReasons(score),
		SearchInfo: domain.SearchInfo{
			IDNumber:       criteria.Field("CRIT_IDNUMBER"),
			Name:           criteria.Field("CRIT_NAME"),
			Surname:        criteria.Field("CRIT_SURNAME"),
			DOB:            criteria.Field("DOB"),
			Gender:         criteria.Field("GENDER"),
			Address:        criteria.Field("ADDRESS"),
			EnquiryPurpose: criteria.Field("ENQUIRY_PURPOSE"),
			LoanAmount:     parseInt(criteria.Field("LOAN_AMOUNT")),
			NetIncome:      parseInt(criteria.Field("NET_INCOME")),
		},
	}
	return rpt, nil
}

func riskType(raw string) domain.RiskType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW_RISK":
		return domain.RiskLow
	case "MEDIUM_RISK":
		return domain.RiskMedium
	case "HIGH_RISK":
		return domain.RiskHigh
	default:
		return domain.RiskUnknown
	}
}

func registerWindow(n *xmltree.Node) domain.RegisterWindow {
	return domain.RegisterWindow{
		EnquiriesByClient:    parseInt(n.Field("Enquiries_by_client")),
		EnquiriesByOthers:    parseInt(n.Field("Enquiries_by_other")),
		PositiveLoans:        parseInt(n.Field("Positive_loans")),
		HighestMonthsArrears: parseInt(n.Field("Highest_months_in_arrears")),
	}
}

var (
	revolvingDesc   = regexp.MustCompile(`credit card|revolving|overdraft`)
	installmentDesc = regexp.MustCompile(`loan|installment|instalment|term`)
	closedDesc      = regexp.MustCompile(`(?i)closed`)
)

// categorizeAccount classifies an account row by its type code, falling
// back to keyword-matching the type description.
func categorizeAccount(typeCode, typeDesc string) domain.AccountCategory {
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	desc := strings.ToLower(strings.TrimSpace(typeDesc))

	switch code {
	case "C", "R":
		return domain.CategoryRevolving
	case "P", "T", "I", "2", "3":
		return domain.CategoryInstallment
	}
	if revolvingDesc.MatchString(desc) {
		return domain.CategoryRevolving
	}
	if installmentDesc.MatchString(desc) {
		return domain.CategoryInstallment
	}
	return domain.CategoryOther
}

// deriveCreditLimit picks the first positive value from the row's limit
// fields, in a fixed preference order.
func deriveCreditLimit(row *xmltree.Node) float64 {
	for _, field := range []string{"CREDIT_LIMIT", "CURRENT_LIMIT", "LIMIT", "HIGH_CREDIT", "HIGH_BAL", "OPEN_BAL"} {
		if v := parseAmount(row.Field(field)); v > 0 {
			return v
		}
	}
	return 0
}

func normalizeAccountRow(row *xmltree.Node, source domain.AccountSource) domain.AccountRecord {
	typeCode := row.Field("ACCOUNT_TYPE")
	typeDesc := row.Field("ACCOUNT_TYPE_DESC")
	statusCode := strings.ToUpper(strings.TrimSpace(row.Field("STATUS_CODE")))
	statusDesc := row.Field("STATUS_CODE_DESC", "STATUS_DESC")

	return domain.AccountRecord{
		Source:           source,
		SubscriberCode:   row.Field("SUBSCRIBER_CODE"),
		SubscriberName:   row.Field("SUBSCRIBER_NAME"),
		AccountNumber:    row.Field("ACCOUNT_NO"),
		SubAccountNumber: row.Field("SUB_ACCOUNT_NO"),
		AccountType:      typeCode,
		AccountTypeDesc:  typeDesc,
		Category:         categorizeAccount(typeCode, typeDesc),
		Reason:           row.Field("REASON_DESC", "REASON"),
		PaymentType:      row.Field("PAYMENT_TYPE_DESC", "PAYMENT_TYPE"),
		OpenDate:         row.Field("OPEN_DATE"),
		LastPaymentDate:  row.Field("LAST_PAYMENT_DATE"),
		StatusCode:       statusCode,
		StatusDesc:       statusDesc,
		IsClosed:         statusCode == "C" || closedDesc.MatchString(statusDesc),
		IsInArrears:      parseAmount(row.Field("ARREARS_PERIOD")) > 0 || parseAmount(row.Field("OVERDUE_AMOUNT")) > 0,
		RepaymentFreq:    row.Field("REPAYMENT_FREQ_DESC", "REPAYMENT_FREQ"),
		Terms:            parseInt(row.Field("TERMS")),
		InstallmentAmt:   parseAmount(row.Field("INSTALMENT_AMOUNT")),
		CreditLimit:      deriveCreditLimit(row),
		OpeningBalance:   parseAmount(row.Field("OPEN_BAL")),
		CurrentBalance:   parseAmount(row.Field("CURRENT_BAL")),
		OverdueAmount:    parseAmount(row.Field("OVERDUE_AMOUNT")),
		ArrearsPeriod:    parseInt(row.Field("ARREARS_PERIOD")),
		PaymentHistory:   row.Field("PAYMENT_HISTORY_STATUS", "PAYMENT_HISTORY"),
	}
}

func normalizeAccounts(section *xmltree.Node, source domain.AccountSource) []domain.AccountRecord {
	rows := section.All("ROW")
	out := make([]domain.AccountRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalizeAccountRow(row, source))
	}
	return out
}

func normalizeEmployers(section *xmltree.Node) []domain.EmployerRecord {
	rows := section.All("ROW")
	out := make([]domain.EmployerRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.EmployerRecord{
			EmployerName:     row.Field("EMP_NAME", "EMPLOYER_NAME"),
			Occupation:       row.Field("OCCUPATION"),
			EmployerType:     row.Field("EMP_TYPE", "EMPLOYER_TYPE"),
			SalaryFrequency:  row.Field("SALARY_FREQ"),
			PayslipReference: row.Field("PAYSLIP_REF"),
			EmployeeNumber:   row.Field("EMPLOYEE_NO"),
			ActiveDate:       row.Field("EMP_DATE", "ACTIVE_DATE"),
			Source:           row.Field("SOURCE"),
		})
	}
	return out
}

// maxPrevEnquiries caps how many prior enquiries are carried on the
// normalized report.
const maxPrevEnquiries = 5

func normalizePrevEnquiries(section *xmltree.Node) []domain.PreviousEnquiry {
	rows := section.All("ROW")
	if len(rows) > maxPrevEnquiries {
		rows = rows[:maxPrevEnquiries]
	}
	out := make([]domain.PreviousEnquiry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PreviousEnquiry{
			Date:          row.Field("ENQUIRY_DATE"),
			Branch:        row.Field("BRANCH_NAME"),
			ContactPerson: row.Field("CONTACT_PERSON"),
			Telephone:     row.Field("TELEPHONE_NUMBER"),
		})
	}
	return out
}

// declineReasonPattern splits "CODE - description" or "CODE: description".
var declineReasonPattern = regexp.MustCompile(`^([A-Za-z0-9]+)\s*[-:]\s*(.+)$`)

// ParseDeclineReason parses one raw decline-reason string. Returns nil
// for blank input. Strings without a recognizable separator keep the
// full text as the description with the first token as the code.
func ParseDeclineReason(raw string) *domain.DeclineReason {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if m := declineReasonPattern.FindStringSubmatch(trimmed); m != nil {
		return &domain.DeclineReason{
			Code:        strings.ToUpper(m[1]),
			Description: strings.TrimSpace(m[2]),
			Raw:         trimmed,
		}
	}
	return &domain.DeclineReason{
		Code:        strings.ToUpper(strings.Fields(trimmed)[0]),
		Description: trimmed,
		Raw:         trimmed,
	}
}

var declineReasonFields = []string{
	"DECLINE_R_1", "DECLINE_R_2", "DECLINE_R_3", "DECLINE_R_4", "DECLINE_R_5",
	"REASON_1", "REASON_2", "REASON_3", "REASON_4", "REASON_5",
}

func extractDeclineReasons(scoreRow *xmltree.Node) []domain.DeclineReason {
	var out []domain.DeclineReason
	for _, field := range declineReasonFields {
		if r := ParseDeclineReason(scoreRow.Field(field)); r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// parseAmount parses a currency amount, tolerating thousands separators
// and stray whitespace. Unparseable input is 0.
func parseAmount(raw string) float64 {
	sanitized := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, raw)
	if sanitized == "" {
		return 0
	}
	v, err := strconv.ParseFloat(sanitized, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseInt parses an integer field, tolerating a leading numeric prefix
// the way bureau counters sometimes arrive ("3 months"). Unparseable
// input is 0.
func parseInt(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// Fall back to the longest leading integer prefix.
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

func fieldOr(n *xmltree.Node, fallback string, aliases ...string) string {
	if v := n.Field(aliases...); v != "" {
		return v
	}
	return fallback
}
