package domain

import (
	"fmt"
	"strings"
	"time"
)

// Applicant carries the identity fields submitted to the bureau enquiry.
// DateOfBirth is YYYYMMDD with no separators, as the bureau expects.
type Applicant struct {
	UserID         string `json:"userId"`
	IdentityNumber string `json:"identityNumber"`
	Surname        string `json:"surname"`
	Forename       string `json:"forename"`
	Forename2      string `json:"forename2,omitempty"`
	Forename3      string `json:"forename3,omitempty"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	Address1       string `json:"address1"`
	Address2       string `json:"address2,omitempty"`
	Address3       string `json:"address3,omitempty"`
	Address4       string `json:"address4,omitempty"`
	PostalCode     string `json:"postalCode"`
	HomeTelCode    string `json:"homeTelCode,omitempty"`
	HomeTelNo      string `json:"homeTelNo,omitempty"`
	WorkTelCode    string `json:"workTelCode,omitempty"`
	WorkTelNo      string `json:"workTelNo,omitempty"`
	CellTelNo      string `json:"cellTelNo,omitempty"`
	PassportFlag   string `json:"passportFlag,omitempty"`
	ClientRef      string `json:"clientRef,omitempty"`
}

// Validate checks required fields before any bureau call is made. A failed
// enquiry is billed regardless, so bad input must never reach the wire.
func (a *Applicant) Validate() error {
	if !isDigits(a.IdentityNumber) || len(a.IdentityNumber) != 13 {
		return &ValidationError{Field: "identityNumber", Reason: "must be a 13-digit number"}
	}
	if strings.TrimSpace(a.Surname) == "" {
		return &ValidationError{Field: "surname", Reason: "is required"}
	}
	if strings.TrimSpace(a.Forename) == "" {
		return &ValidationError{Field: "forename", Reason: "is required"}
	}
	if a.DateOfBirth != "" {
		if !isDigits(a.DateOfBirth) || len(a.DateOfBirth) != 8 {
			return &ValidationError{Field: "dateOfBirth", Reason: "must be YYYYMMDD"}
		}
		if _, err := time.Parse("20060102", a.DateOfBirth); err != nil {
			return &ValidationError{Field: "dateOfBirth", Reason: "is not a valid date"}
		}
	}
	if strings.TrimSpace(a.Address1) == "" {
		return &ValidationError{Field: "address1", Reason: "is required"}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ScoringInputs carries the applicant-supplied attributes that feed factors
// the bureau report cannot answer: income, tenure, contract and employer
// classification, lender history, and the pre-computed cash-flow summary.
type ScoringInputs struct {
	GrossMonthlyIncome float64          `json:"grossMonthlyIncome"`
	MonthsInCurrentJob *float64         `json:"monthsInCurrentJob"`
	ContractType       string           `json:"contractType"`
	EmploymentSector   string           `json:"employmentSector"`
	EmployerName       string           `json:"employerName"`
	EmployerMatch      string           `json:"employerMatch"`
	ListedMatchName    string           `json:"listedMatchName,omitempty"`
	NewBorrower        bool             `json:"newBorrower"`
	Cashflow           *CashflowSummary `json:"cashflow,omitempty"`
}

// CashflowSummary is the already-computed bank-statement analysis handed in
// by the account-linking integration. Nil pointers mean "signal not
// supplied", which is distinct from a zero value.
type CashflowSummary struct {
	AvgMonthlyIncome     *float64 `json:"avgMonthlyIncome"`
	IncomeConsistency    *float64 `json:"incomeConsistency"`
	AvgMonthlyBalance    *float64 `json:"avgMonthlyBalance"`
	OverdraftCount       *int     `json:"overdraftCount"`
	GamblingTransactions *int     `json:"gamblingTransactions"`
}

// DeviceSignals is the client device metadata captured by the transport
// layer when the application was submitted.
type DeviceSignals struct {
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	AcceptLanguage string    `json:"acceptLanguage,omitempty"`
	ForwardedChain []string  `json:"forwardedForChain,omitempty"`
	CapturedAt     time.Time `json:"captureTimestamp"`
}

// EvaluationRequest is one complete credit-evaluation job.
type EvaluationRequest struct {
	ApplicationID string        `json:"applicationId"`
	Applicant     Applicant     `json:"applicant"`
	Inputs        ScoringInputs `json:"inputs"`
	Device        DeviceSignals `json:"device"`
}

// Validate checks the request before the pipeline runs.
func (r *EvaluationRequest) Validate() error {
	if strings.TrimSpace(r.ApplicationID) == "" {
		return &ValidationError{Field: "applicationId", Reason: "is required"}
	}
	return r.Applicant.Validate()
}

// NormalizeIP strips the IPv4-mapped IPv6 prefix some proxies prepend.
func NormalizeIP(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}

// String redacts nothing but identifies the request for logs.
func (r *EvaluationRequest) String() string {
	return fmt.Sprintf("evaluation{app=%s user=%s}", r.ApplicationID, r.Applicant.UserID)
}
