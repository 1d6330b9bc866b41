package domain

import "errors"

var (
	// Domain rejections: caller error, surfaced verbatim, never retried.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrOrderNotFound     = errors.New("order not found")

	// Concurrency conflict: caller must reload and may resubmit.
	ErrVersionConflict = errors.New("version conflict")

	// Transient infrastructure failures.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// The persistence outcome of a transition is unknown. Never retried
	// blindly: re-attempting could double-apply the transition.
	ErrIndeterminate = errors.New("transition outcome indeterminate")

	// Isolation violations: always fatal to the session.
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTenantMismatch = errors.New("tenant mismatch")
)

// Code maps an error to the wire-level code exposed to UI collaborators.
// Unknown errors map to InternalError rather than leaking internals.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrUnknownStatus):
		return "UnknownStatus"
	case errors.Is(err, ErrOrderNotFound):
		return "OrderNotFound"
	case errors.Is(err, ErrVersionConflict):
		return "VersionConflict"
	case errors.Is(err, ErrStorageUnavailable):
		return "StorageUnavailable"
	case errors.Is(err, ErrIndeterminate):
		return "Indeterminate"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrTenantMismatch):
		return "TenantMismatch"
	default:
		return "InternalError"
	}
}
