package users

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is what callers facing the FTP client should report. Every
// *AuthFailure matches it with errors.Is.
var ErrAuthFailed = errors.New("authentication failed")

// Reason tells apart authentication failures in logs and metrics.
type Reason string

const (
	ReasonUnknownUser Reason = "unknown_user"
	ReasonDisabled    Reason = "disabled"
	ReasonBadPassword Reason = "bad_password"
)

// AuthFailure is returned by Store.Authenticate and Store.HomeDirectoryOf.
type AuthFailure struct {
	User   string
	Reason Reason
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("authentication failed for %q: %s", e.User, e.Reason)
}

func (e *AuthFailure) Is(target error) bool {
	return target == ErrAuthFailed
}

// ReasonOf extracts the failure reason from err, or "" if err is not an
// *AuthFailure.
func ReasonOf(err error) Reason {
	var af *AuthFailure
	if errors.As(err, &af) {
		return af.Reason
	}
	return ""
}
