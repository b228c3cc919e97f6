// Package mockbureau generates deterministic synthetic credit reports
// for environments without live bureau access. Generated payloads use
// the real report wire format, so the decode and normalize pipeline
// runs identically in mock mode.
package mockbureau

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/algolend/kestrel/internal/domain"
)

// Profile derivation constants. The score is seeded from the last four
// digits of the identity number, so the same applicant always produces
// the same report.
const (
	scoreBase  = 580
	scoreSpan  = 140
	scoreFloor = 480
	scoreCeil  = 780

	lowRiskCut    = 700
	mediumRiskCut = 620
)

// Fixed report date: generation must be pure, so nothing here reads a
// clock.
const mockEnquiryDate = "20250801"

// profile holds the tier-derived synthetic values.
type profile struct {
	Score             int
	RiskType          domain.RiskType
	AdverseAccounts   int
	CumulativeArrears int
	EnquiriesByOthers int
	Judgements        int
}

// deriveProfile seeds a risk profile from the identity number.
func deriveProfile(identityNumber string) profile {
	seed := 0
	if len(identityNumber) >= 4 {
		if v, err := strconv.Atoi(identityNumber[len(identityNumber)-4:]); err == nil {
			seed = v
		}
	}

	score := scoreBase + seed%scoreSpan
	if score < scoreFloor {
		score = scoreFloor
	}
	if score > scoreCeil {
		score = scoreCeil
	}

	p := profile{Score: score}
	switch {
	case score >= lowRiskCut:
		p.RiskType = domain.RiskLow
		p.AdverseAccounts = 0
		p.CumulativeArrears = 0
		p.EnquiriesByOthers = 1
		p.Judgements = 0
	case score >= mediumRiskCut:
		p.RiskType = domain.RiskMedium
		p.AdverseAccounts = 1
		p.CumulativeArrears = 3500
		p.EnquiriesByOthers = 4
		p.Judgements = 0
	default:
		p.RiskType = domain.RiskHigh
		p.AdverseAccounts = 2
		p.CumulativeArrears = 12000
		p.EnquiriesByOthers = 6
		p.Judgements = 1
	}
	return p
}

// GenerateReportXML renders the synthetic report document for the
// applicant. Output is byte-identical for identical inputs.
func GenerateReportXML(app *domain.Applicant, applicationID string) []byte {
	p := deriveProfile(app.IdentityNumber)

	worst := 0
	if p.AdverseAccounts > 0 {
		worst = 3
	}
	arrears12, arrears24, ccaArrears12, ccaWorst := 0, 0, 0, 0
	if p.AdverseAccounts > 0 {
		arrears12, arrears24, ccaArrears12, ccaWorst = 2, 3, 1, 2
	}
	ccaEnqByOthers := p.EnquiriesByOthers - 1
	if ccaEnqByOthers < 0 {
		ccaEnqByOthers = 0
	}
	ccaArrears := p.CumulativeArrears - 1500
	if ccaArrears < 0 {
		ccaArrears = 0
	}
	highestJudgement := 0
	if p.Judgements > 0 {
		highestJudgement = 25000
	}

	forename := orDefault(app.Forename, "John")
	surname := orDefault(app.Surname, "Doe")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<ROOT>\n")
	tag(&b, "Enquiry_ID", "MOCK-"+applicationID)
	tag(&b, "Client_Ref", applicationID)

	b.WriteString("<EnqCC_CompuSCORE><ROW>\n")
	tag(&b, "SCORE", strconv.Itoa(p.Score))
	tag(&b, "RISK_TYPE", string(p.RiskType))
	tag(&b, "THIN_FILE_INDICATOR", "N")
	tag(&b, "VERSION", "1.0")
	tag(&b, "SCORE_TYPE", "CompuScore")
	b.WriteString("</ROW></EnqCC_CompuSCORE>\n")

	b.WriteString("<EnqCC_DMATCHES><ROW>\n")
	tag(&b, "ID_NUMBER", app.IdentityNumber)
	tag(&b, "NAME", forename)
	tag(&b, "SURNAME", surname)
	tag(&b, "STATUS", "Match")
	tag(&b, "COUNTRY_CODE", "ZA")
	b.WriteString("</ROW></EnqCC_DMATCHES>\n")

	b.WriteString("<EnqCC_ACTIVITIES><ROW>\n")
	tag(&b, "ENQUIRIES", strconv.Itoa(p.EnquiriesByOthers+1))
	tag(&b, "LOANS", "3")
	tag(&b, "JUDGEMENTS", strconv.Itoa(p.Judgements))
	tag(&b, "NOTICES", "0")
	tag(&b, "COLLECTIONS", strconv.Itoa(p.AdverseAccounts))
	tag(&b, "ADMINORDERS", "0")
	tag(&b, "BALANCE", "185000")
	tag(&b, "INSTALLMENT", "4200")
	b.WriteString("</ROW></EnqCC_ACTIVITIES>\n")

	b.WriteString("<EnqCC_STATS><ROW>\n")
	for _, window := range []string{"12", "24", "36"} {
		tag(&b, "CC_JUDGE_"+window+"_CNT", strconv.Itoa(p.Judgements))
		tag(&b, "CC_NOTICE_"+window+"_CNT", strconv.Itoa(p.AdverseAccounts))
		tag(&b, "CC_ADVERSE_"+window+"_CNT", strconv.Itoa(p.AdverseAccounts))
	}
	tag(&b, "CC_ADVERSE_TOT", strconv.Itoa(p.AdverseAccounts))
	b.WriteString("</ROW></EnqCC_STATS>\n")

	b.WriteString("<EnqCC_ENQ_COUNTS><ROW>\n")
	tag(&b, "ADDR", "1")
	tag(&b, "ADMORDS", "0")
	tag(&b, "COLLECTIONS", strconv.Itoa(p.AdverseAccounts))
	tag(&b, "DMATCHES", "1")
	tag(&b, "JUDGE", strconv.Itoa(p.Judgements))
	tag(&b, "NOTICES", strconv.Itoa(p.AdverseAccounts))
	tag(&b, "PMATCHES", "0")
	tag(&b, "PREV_ENQ", strconv.Itoa(p.EnquiriesByOthers+1))
	tag(&b, "TPHONE", "1")
	tag(&b, "EMPLOYERS", "1")
	tag(&b, "FRAUDALERT", "0")
	b.WriteString("</ROW></EnqCC_ENQ_COUNTS>\n")

	b.WriteString("<EnqCC_SRCHCRITERIA><ROW>\n")
	tag(&b, "CRIT_IDNUMBER", app.IdentityNumber)
	tag(&b, "CRIT_NAME", forename)
	tag(&b, "CRIT_SURNAME", surname)
	tag(&b, "DOB", orDefault(app.DateOfBirth, "19900101"))
	tag(&b, "GENDER", orDefault(app.Gender, "U"))
	tag(&b, "ADDRESS", orDefault(app.Address1, "Unknown"))
	tag(&b, "ENQUIRY_PURPOSE", "12")
	tag(&b, "LOAN_AMOUNT", "50000")
	tag(&b, "NET_INCOME", "28000")
	b.WriteString("</ROW></EnqCC_SRCHCRITERIA>\n")

	b.WriteString("<EnqCC_NLR_SUMMARY><Summary>\n")
	b.WriteString("<NLR_Past_12_Months>\n")
	tag(&b, "Enquiries_by_client", "1")
	tag(&b, "Enquiries_by_other", strconv.Itoa(p.EnquiriesByOthers))
	tag(&b, "Positive_loans", "2")
	tag(&b, "Highest_months_in_arrears", strconv.Itoa(arrears12))
	b.WriteString("</NLR_Past_12_Months>\n")
	b.WriteString("<NLR_Past_24_Months>\n")
	tag(&b, "Enquiries_by_client", "2")
	tag(&b, "Enquiries_by_other", strconv.Itoa(p.EnquiriesByOthers+1))
	tag(&b, "Positive_loans", "3")
	tag(&b, "Highest_months_in_arrears", strconv.Itoa(arrears24))
	b.WriteString("</NLR_Past_24_Months>\n")
	b.WriteString("<CCA_Past_12_Months>\n")
	tag(&b, "Enquiries_by_client", "0")
	tag(&b, "Enquiries_by_other", strconv.Itoa(ccaEnqByOthers))
	tag(&b, "Positive_loans", "1")
	tag(&b, "Highest_months_in_arrears", strconv.Itoa(ccaArrears12))
	b.WriteString("</CCA_Past_12_Months>\n")
	tag(&b, "NLR_WorstMonthsArrears", strconv.Itoa(worst))
	tag(&b, "NLR_ActiveAccounts", strconv.Itoa(4-p.AdverseAccounts))
	tag(&b, "NLR_BalanceExposure", "125000")
	tag(&b, "NLR_MonthlyInstallment", "3800")
	tag(&b, "NLR_CumulativeArrears", strconv.Itoa(p.CumulativeArrears))
	tag(&b, "NLR_ClosedAccounts", strconv.Itoa(p.AdverseAccounts))
	tag(&b, "CCA_WorstMonthsArrears", strconv.Itoa(ccaWorst))
	tag(&b, "CCA_ActiveAccounts", "1")
	tag(&b, "CCA_BalanceExposure", "18000")
	tag(&b, "CCA_MonthlyInstallment", "950")
	tag(&b, "CCA_CumulativeArrears", strconv.Itoa(ccaArrears))
	tag(&b, "CCA_ClosedAccounts", "1")
	tag(&b, "AdverseAccounts", strconv.Itoa(p.AdverseAccounts))
	tag(&b, "RevolvingAccounts", "1")
	tag(&b, "InstalmentAccounts", "2")
	tag(&b, "OpenAccounts", "3")
	tag(&b, "HighestJudgement", strconv.Itoa(highestJudgement))
	b.WriteString("</Summary></EnqCC_NLR_SUMMARY>\n")

	b.WriteString("<EnqCC_PREVENQ><ROW>\n")
	tag(&b, "ENQUIRY_DATE", mockEnquiryDate)
	tag(&b, "BRANCH_NAME", "Mock Finance")
	tag(&b, "CONTACT_PERSON", "Agent Smith")
	tag(&b, "TELEPHONE_NUMBER", "0105551234")
	b.WriteString("</ROW></EnqCC_PREVENQ>\n")

	b.WriteString("</ROOT>\n")
	return []byte(b.String())
}

// GeneratePayload wraps the report XML the way the live gateway does:
// zipped, then base64. Deterministic; entry headers carry no timestamps.
func GeneratePayload(app *domain.Applicant, applicationID string) (string, error) {
	xmlDoc := GenerateReportXML(app, applicationID)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   fmt.Sprintf("mock_report_%s.xml", applicationID),
		Method: zip.Deflate,
	})
	if err != nil {
		return "", fmt.Errorf("mock payload: %w", err)
	}
	if _, err := w.Write(xmlDoc); err != nil {
		return "", fmt.Errorf("mock payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("mock payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func tag(b *strings.Builder, name, value string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	b.WriteString(xmlEscaper.Replace(value))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">\n")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
