package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	ErrNotFound      = errors.New("not found")
	ErrRuleNotFound  = errors.New("flag rule not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrEnquiryLimit  = errors.New("enquiry limit exceeded for this identity number")
)

// Protocol walk stages, in walk order.
const (
	StageEnvelope = "envelope"
	StageBody     = "body"
	StageResponse = "response"
	StageRetdata  = "retdata"
)

// ProtocolError reports a malformed bureau response: the SOAP walk found
// the document but a required element was missing or empty at Stage.
type ProtocolError struct {
	Stage  string
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bureau protocol error at %s", e.Stage)
	}
	return fmt.Sprintf("bureau protocol error at %s: %s", e.Stage, e.Detail)
}

// TransportError wraps a network-level failure talking to the bureau.
// Transport failures are retryable; protocol failures are not.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bureau transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a payload that could not be base64-decoded or
// unzipped.
type DecodeError struct {
	Step string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("report decode failed at %s: %v", e.Step, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MissingAssetError reports an archive that decoded cleanly but lacked a
// required entry.
type MissingAssetError struct {
	Asset string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("report archive missing required asset: %s", e.Asset)
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsRetryable reports whether the error is transient and the caller may
// retry the enquiry.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
