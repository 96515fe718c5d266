package domain

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonExpired     Reason = "expired"
	ReasonInvalid     Reason = "invalid"
	ReasonTransport   Reason = "transport"
	ReasonUnsupported Reason = "unsupported"
)

var (
	ErrUnsupportedTokenKind = errors.New("token kind not supported in this tenancy mode")
	ErrMissingCredentials   = errors.New("missing credentials")
)

// VerificationError reports a credential the provider did not accept.
// It is always recoverable: the request proceeds as anonymous.
type VerificationError struct {
	Reason Reason
	Err    error
}

func NewVerificationError(reason Reason, err error) *VerificationError {
	return &VerificationError{Reason: reason, Err: err}
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("verification failed: %s", e.Reason)
	}
	return fmt.Sprintf("verification failed: %s: %v", e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason tag of a wrapped VerificationError.
func ReasonOf(err error) (Reason, bool) {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}
