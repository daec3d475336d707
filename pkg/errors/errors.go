package mp_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")

	// ErrAlreadyFinalized marks a status update against a terminal execution
	// record. Callers treating duplicate callbacks as success rely on it.
	ErrAlreadyFinalized = errors.New("execution already finalized")

	// ErrRunnerUnavailable marks a transport-level failure talking to the
	// external automation runner. It never fails the triggering business
	// transaction; the ledger entry stays Pending.
	ErrRunnerUnavailable = errors.New("automation runner unavailable")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
