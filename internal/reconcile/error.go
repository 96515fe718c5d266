package reconcile

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonMissingCapability  Reason = "missing_capability"
	ReasonInvalidProfile     Reason = "invalid_profile"
)

var (
	ErrMissingExternalID    = errors.New("profile has no external user id")
	ErrOrganizationsNotKept = errors.New("user store does not persist organization refs")
)

// ReconciliationError reports why a verified profile could not be mapped to a
// local user.
type ReconciliationError struct {
	Reason Reason
	Err    error
}

func (e *ReconciliationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("reconcile: %s", e.Reason)
	}
	return fmt.Sprintf("reconcile: %s: %v", e.Reason, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &ReconciliationError{Reason: ReasonStorageUnavailable, Err: fmt.Errorf("%s: %w", op, err)}
}

// ReasonOf extracts the failure reason from err.
func ReasonOf(err error) (Reason, bool) {
	var rerr *ReconciliationError
	if errors.As(err, &rerr) {
		return rerr.Reason, true
	}
	return "", false
}
