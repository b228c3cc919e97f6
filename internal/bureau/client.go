// Package bureau implements the SOAP client for the external credit
// bureau's DoNormalEnquiry service.
package bureau

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/algolend/kestrel/internal/domain"
)

const (
	soapAction  = "DoNormalEnquiry"
	contentType = "text/xml;charset=UTF-8"

	defaultTimeout = 30 * time.Second
)

// Config holds bureau connection settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	Version       string
	Origin        string
	OriginVersion string
	Timeout       time.Duration
}

// Client performs credit enquiries against the bureau gateway.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a bureau client. A nil logger falls back to the
// default slog logger.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "bureau"),
	}
}

// DoNormalEnquiry submits an enquiry for the applicant and returns the
// raw retdata payload: a base64-encoded ZIP containing the report
// assets. Network failures come back as *domain.TransportError,
// malformed responses as *domain.ProtocolError.
func (c *Client) DoNormalEnquiry(ctx context.Context, app *domain.Applicant) (string, error) {
	envelope := c.BuildEnquiryXML(app)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(envelope))
	if err != nil {
		return "", fmt.Errorf("build enquiry request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("SOAPAction", soapAction)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("bureau request failed",
			"id_number", maskID(app.IdentityNumber),
			"error", err)
		return "", &domain.TransportError{Op: "enquiry", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("bureau returned non-200",
			"status", resp.StatusCode,
			"id_number", maskID(app.IdentityNumber))
		return "", &domain.TransportError{
			Op:  "enquiry",
			Err: fmt.Errorf("bureau status %d", resp.StatusCode),
		}
	}

	retdata, err := ExtractRetdata(body)
	if err != nil {
		return "", err
	}

	c.logger.Info("bureau enquiry completed",
		"id_number", maskID(app.IdentityNumber),
		"duration_ms", time.Since(start).Milliseconds(),
		"payload_bytes", len(retdata))
	return retdata, nil
}

// BuildEnquiryXML renders the DoNormalEnquiry SOAP envelope for the
// applicant. The transaction payload rides inside a CDATA section as
// its own XML document, per the gateway's wire contract.
func (c *Client) BuildEnquiryXML(app *domain.Applicant) string {
	var b strings.Builder
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:web="http://webServices/">`)
	b.WriteString(`<soapenv:Header/>`)
	b.WriteString(`<soapenv:Body>`)
	b.WriteString(`<web:DoNormalEnquiry>`)
	b.WriteString(`<request>`)
	writeField(&b, "pUsrnme", c.cfg.Username)
	writeField(&b, "pPasswrd", c.cfg.Password)
	writeField(&b, "pVersion", c.cfg.Version)
	writeField(&b, "pOrigin", c.cfg.Origin)
	writeField(&b, "pOrigin_Version", c.cfg.OriginVersion)
	writeField(&b, "pInput_Format", "XML")
	b.WriteString(`<pTransaction><![CDATA[`)
	b.WriteString(buildTransactionXML(app))
	b.WriteString(`]]></pTransaction>`)
	b.WriteString(`</request>`)
	b.WriteString(`</web:DoNormalEnquiry>`)
	b.WriteString(`</soapenv:Body>`)
	b.WriteString(`</soapenv:Envelope>`)
	return b.String()
}

// buildTransactionXML renders the inner search-criteria document.
func buildTransactionXML(app *domain.Applicant) string {
	var b strings.Builder
	b.WriteString(`<Transactions>`)
	b.WriteString(`<Search_Criteria>`)
	writeField(&b, "CS_Data", "Y")
	writeField(&b, "CPA_Plus_NLR_Data", "Y")
	writeField(&b, "Deeds_Data", "N")
	writeField(&b, "Directors_Data", "N")
	writeField(&b, "Identity_number", app.IdentityNumber)
	writeField(&b, "Surname", app.Surname)
	writeField(&b, "Forename", app.Forename)
	writeField(&b, "Forename2", app.Forename2)
	writeField(&b, "Forename3", app.Forename3)
	writeField(&b, "Gender", app.Gender)
	writeField(&b, "Passport_flag", app.PassportFlag)
	writeField(&b, "DateOfBirth", app.DateOfBirth)
	writeField(&b, "Address1", app.Address1)
	writeField(&b, "Address2", app.Address2)
	writeField(&b, "Address3", app.Address3)
	writeField(&b, "Address4", app.Address4)
	writeField(&b, "PostalCode", app.PostalCode)
	writeField(&b, "HomeTelCode", app.HomeTelCode)
	writeField(&b, "HomeTelNo", app.HomeTelNo)
	writeField(&b, "WorkTelCode", app.WorkTelCode)
	writeField(&b, "WorkTelNo", app.WorkTelNo)
	writeField(&b, "CellTelNo", app.CellTelNo)
	writeField(&b, "ResultType", "XPDF2")
	writeField(&b, "RunCodix", "N")
	b.WriteString(`<CodixParams></CodixParams>`)
	b.WriteString(`<PinPointParams></PinPointParams>`)
	writeField(&b, "Adrs_Mandatory", "Y")
	writeField(&b, "Enq_Purpose", "12")
	writeField(&b, "Run_CompuScore", "Y")
	writeField(&b, "ClientConsent", "Y")
	writeField(&b, "ClientRef", app.ClientRef)
	b.WriteString(`</Search_Criteria>`)
	b.WriteString(`</Transactions>`)
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	b.WriteString(escapeXML(value))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// maskID keeps only the last four digits for log output.
func maskID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
