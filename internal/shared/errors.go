package shared

import "errors"

var (
	// ErrNotFound indicates a role, resource or assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input to a registry operation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an operation on a protected entity or a duplicate entry.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the subject may not perform the attempted action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates the request carries no valid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable indicates the policy store backend is unreachable.
	// Authorization decisions fail closed when they hit this error.
	ErrStoreUnavailable = errors.New("policy store unavailable")
)
