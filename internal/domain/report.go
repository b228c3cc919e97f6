// Package domain defines the core interfaces and types for Kestrel.
package domain

// RiskType is the bureau-assigned risk band on a credit report.
type RiskType string

const (
	RiskLow     RiskType = "LOW_RISK"
	RiskMedium  RiskType = "MEDIUM_RISK"
	RiskHigh    RiskType = "HIGH_RISK"
	RiskUnknown RiskType = "UNKNOWN"
)

// CreditReport is the canonical, normalized form of a bureau credit report.
// Produced by the report normalizer (live path) or the mock generator
// (mock path); immutable once built.
type CreditReport struct {
	Score     int      `json:"score"`
	RiskType  RiskType `json:"riskType"`
	ThinFile  bool     `json:"thinFile"`
	Version   string   `json:"version,omitempty"`
	ScoreType string   `json:"scoreType,omitempty"`

	EnquiryID string `json:"enquiryId,omitempty"`
	ClientRef string `json:"clientRef,omitempty"`

	Identity       Identity        `json:"identity"`
	Activities     ActivitySummary `json:"activities"`
	AdverseStats   AdverseStats    `json:"adverseStats"`
	EnquiryCounts  EnquiryCounts   `json:"enquiryCounts"`
	NLR            RegisterSummary `json:"nlr"`
	CCA            RegisterSummary `json:"cca"`
	AccountSummary AccountSummary  `json:"accountSummary"`

	// Accounts holds CPA rows first, then NLR rows, preserving bureau order.
	Accounts []AccountRecord `json:"accounts"`

	EmploymentHistory []EmployerRecord  `json:"employmentHistory"`
	PreviousEnquiries []PreviousEnquiry `json:"previousEnquiries"`
	DeclineReasons    []DeclineReason   `json:"declineReasons"`
	SearchInfo        SearchInfo        `json:"searchInfo"`
}

// Identity holds the bureau's identity-match result.
type Identity struct {
	IDNumber     string `json:"idNumber"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	MatchStatus  string `json:"matchStatus"`
	DeceasedDate string `json:"deceasedDate,omitempty"`
	CountryCode  string `json:"countryCode"`
}

// ActivitySummary holds bureau activity counters.
type ActivitySummary struct {
	Enquiries   int `json:"enquiries"`
	Loans       int `json:"loans"`
	Judgements  int `json:"judgements"`
	Notices     int `json:"notices"`
	Collections int `json:"collections"`
	AdminOrders int `json:"adminOrders"`
	Balance     int `json:"balance"`
	Installment int `json:"installment"`
}

// AdverseStats holds adverse-event counts bucketed by trailing window.
type AdverseStats struct {
	Judgements12M int `json:"judgements12M"`
	Judgements24M int `json:"judgements24M"`
	Judgements36M int `json:"judgements36M"`
	Notices12M    int `json:"notices12M"`
	Notices24M    int `json:"notices24M"`
	Notices36M    int `json:"notices36M"`
	Adverse12M    int `json:"adverse12M"`
	Adverse24M    int `json:"adverse24M"`
	Adverse36M    int `json:"adverse36M"`
	AdverseTotal  int `json:"adverseTotal"`
}

// EnquiryCounts holds per-section record counts from the bureau reply.
type EnquiryCounts struct {
	Addresses         int `json:"addresses"`
	AdminOrders       int `json:"adminOrders"`
	Collections       int `json:"collections"`
	DirectMatches     int `json:"directMatches"`
	Judgements        int `json:"judgements"`
	Notices           int `json:"notices"`
	PossibleMatches   int `json:"possibleMatches"`
	PreviousEnquiries int `json:"previousEnquiries"`
	TelephoneNumbers  int `json:"telephoneNumbers"`
	Employers         int `json:"employers"`
	FraudAlerts       int `json:"fraudAlerts"`
}

// RegisterWindow is a trailing-window slice of a register summary.
type RegisterWindow struct {
	EnquiriesByClient    int `json:"enquiriesByClient"`
	EnquiriesByOthers    int `json:"enquiriesByOthers"`
	PositiveLoans        int `json:"positiveLoans"`
	HighestMonthsArrears int `json:"highestMonthsArrears"`
}

// RegisterSummary is a register-level aggregate (NLR or CCA section).
type RegisterSummary struct {
	Past12Months       RegisterWindow `json:"past12Months"`
	Past24Months       RegisterWindow `json:"past24Months"`
	WorstMonthsArrears int            `json:"worstMonthsArrears"`
	ActiveAccounts     int            `json:"activeAccounts"`
	BalanceExposure    int            `json:"balanceExposure"`
	MonthlyInstallment int            `json:"monthlyInstallment"`
	CumulativeArrears  int            `json:"cumulativeArrears"`
	ClosedAccounts     int            `json:"closedAccounts"`
}

// AccountSummary holds bureau-level account aggregates from the reply summary.
type AccountSummary struct {
	AdverseAccounts    int `json:"adverseAccounts"`
	RevolvingAccounts  int `json:"revolvingAccounts"`
	InstalmentAccounts int `json:"instalmentAccounts"`
	OpenAccounts       int `json:"openAccounts"`
	HighestJudgement   int `json:"highestJudgement"`
}

// AccountSource identifies which ledger section an account row came from.
type AccountSource string

const (
	SourceCPA AccountSource = "CPA"
	SourceNLR AccountSource = "NLR"
)

// AccountCategory is the coarse account classification used for exposure math.
type AccountCategory string

const (
	CategoryRevolving   AccountCategory = "revolving"
	CategoryInstallment AccountCategory = "installment"
	CategoryOther       AccountCategory = "other"
)

// AccountRecord is one normalized account ledger row. Owned exclusively by
// the CreditReport that contains it; never mutated after creation.
type AccountRecord struct {
	Source           AccountSource   `json:"source"`
	SubscriberCode   string          `json:"subscriberCode"`
	SubscriberName   string          `json:"subscriberName"`
	AccountNumber    string          `json:"accountNumber"`
	SubAccountNumber string          `json:"subAccountNumber"`
	AccountType      string          `json:"accountType"`
	AccountTypeDesc  string          `json:"accountTypeDesc"`
	Category         AccountCategory `json:"category"`
	Reason           string          `json:"reason,omitempty"`
	PaymentType      string          `json:"paymentType,omitempty"`
	OpenDate         string          `json:"openDate,omitempty"`
	LastPaymentDate  string          `json:"lastPaymentDate,omitempty"`
	StatusCode       string          `json:"statusCode"`
	StatusDesc       string          `json:"statusDesc"`
	IsClosed         bool            `json:"isClosed"`
	IsInArrears      bool            `json:"isInArrears"`
	RepaymentFreq    string          `json:"repaymentFrequency,omitempty"`
	Terms            int             `json:"terms"`
	InstallmentAmt   float64         `json:"installmentAmount"`
	CreditLimit      float64         `json:"creditLimit"`
	OpeningBalance   float64         `json:"openingBalance"`
	CurrentBalance   float64         `json:"currentBalance"`
	OverdueAmount    float64         `json:"overdueAmount"`
	ArrearsPeriod    int             `json:"arrearsPeriod"`
	PaymentHistory   string          `json:"paymentHistory,omitempty"`
}

// EmployerRecord is one normalized employment-history row.
type EmployerRecord struct {
	EmployerName     string `json:"employerName"`
	Occupation       string `json:"occupation"`
	EmployerType     string `json:"employerType"`
	SalaryFrequency  string `json:"salaryFrequency,omitempty"`
	PayslipReference string `json:"payslipReference,omitempty"`
	EmployeeNumber   string `json:"employeeNumber,omitempty"`
	ActiveDate       string `json:"activeDate,omitempty"`
	Source           string `json:"source,omitempty"`
}

// PreviousEnquiry is one prior credit enquiry recorded against the consumer.
type PreviousEnquiry struct {
	Date          string `json:"date"`
	Branch        string `json:"branch"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Telephone     string `json:"telephone,omitempty"`
}

// DeclineReason is a parsed bureau decline-reason string.
type DeclineReason struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Raw         string `json:"raw"`
}

// SearchInfo echoes the criteria the bureau matched against.
type SearchInfo struct {
	IDNumber       string `json:"idNumber"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	DOB            string `json:"dob"`
	Gender         string `json:"gender"`
	Address        string `json:"address"`
	EnquiryPurpose string `json:"enquiryPurpose"`
	LoanAmount     int    `json:"loanAmount"`
	NetIncome      int    `json:"netIncome"`
}

// ExposureSummary holds aggregate credit-exposure metrics derived from the
// account ledger. Recomputed on demand; never cached across account sets.
type ExposureSummary struct {
	TotalAccounts       int     `json:"totalAccounts"`
	OpenAccounts        int     `json:"openAccounts"`
	ClosedAccounts      int     `json:"closedAccounts"`
	DelinquentAccounts  int     `json:"delinquentAccounts"`
	TotalBalance        float64 `json:"totalBalance"`
	TotalLimits         float64 `json:"totalLimits"`
	TotalMonthlyInstal  float64 `json:"totalMonthlyInstallments"`
	RevolvingAccounts   int     `json:"revolvingAccounts"`
	RevolvingBalance    float64 `json:"revolvingBalance"`
	RevolvingLimits     float64 `json:"revolvingLimits"`
	InstallmentAccounts int     `json:"installmentAccounts"`
	InstallmentBalance  float64 `json:"installmentBalance"`
	OtherAccounts       int     `json:"otherAccounts"`

	// UtilizationRatio is revolving balance over revolving limits.
	// Nil, not zero, when no revolving limits are reported: callers must
	// treat missing utilization as missing data, not as 0% utilized.
	UtilizationRatio *float64 `json:"revolvingUtilizationRatio"`
}

// UtilizationPercent returns the utilization ratio scaled to percent,
// or nil when the ratio is unknown.
func (e *ExposureSummary) UtilizationPercent() *float64 {
	if e.UtilizationRatio == nil {
		return nil
	}
	p := *e.UtilizationRatio * 100
	return &p
}
