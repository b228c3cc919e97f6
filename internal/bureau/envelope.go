package bureau

import (
	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/xmltree"
)

// Alias tables for the response walk. Gateways in the field disagree on
// element names at two levels of the tree, so each step accepts every
// spelling observed in production traffic.
var (
	aliasesBody     = []string{"Body"}
	aliasesResponse = []string{"DoNormalEnquiryResponse"}
	aliasesReply    = []string{"TransReplyClass", "return"}
	aliasesRetdata  = []string{"retData", "retdata"}
)

// ExtractRetdata walks a DoNormalEnquiry SOAP response down to the
// retdata payload. Each missing step yields a *domain.ProtocolError
// naming the stage that failed.
func ExtractRetdata(body []byte) (string, error) {
	root, err := xmltree.Parse(body)
	if err != nil {
		return "", &domain.ProtocolError{Stage: domain.StageEnvelope, Detail: err.Error()}
	}

	soapBody := root.First(aliasesBody...)
	if soapBody == nil {
		return "", &domain.ProtocolError{Stage: domain.StageBody, Detail: "missing SOAP body"}
	}

	resp := soapBody.First(aliasesResponse...)
	if resp == nil {
		return "", &domain.ProtocolError{Stage: domain.StageResponse, Detail: "missing DoNormalEnquiryResponse"}
	}

	reply := resp.First(aliasesReply...)
	if reply == nil {
		return "", &domain.ProtocolError{Stage: domain.StageResponse, Detail: "missing reply element"}
	}

	ret := reply.First(aliasesRetdata...)
	if ret == nil || ret.Value() == "" {
		return "", &domain.ProtocolError{Stage: domain.StageRetdata, Detail: "missing or empty retdata"}
	}
	return ret.Value(), nil
}
