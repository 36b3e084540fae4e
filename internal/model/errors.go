package model

import (
	"errors"
	"fmt"
)

// ErrBufferLocked is returned when the per-user short-term buffer lease is
// held by another worker. Callers retry after a short delay.
var ErrBufferLocked = errors.New("short-term buffer locked by another worker")

// StoreUnavailableError reports that a backing store (cache or archive) could
// not be reached. It is retryable.
type StoreUnavailableError struct {
	Store string // "cache" or "archive"
	Err   error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable: %v", e.Store, e.Err)
}

func (e StoreUnavailableError) Unwrap() error { return e.Err }

// NewStoreUnavailable wraps err as a StoreUnavailableError for the named store.
func NewStoreUnavailable(store string, err error) StoreUnavailableError {
	return StoreUnavailableError{Store: store, Err: err}
}

// IsStoreUnavailable checks whether err is (or wraps) a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var se StoreUnavailableError
	return errors.As(err, &se)
}

// EmbeddingError reports a failed embedding request. It is retryable; a turn
// is never archived without its vector.
type EmbeddingError struct {
	Err error
}

func (e EmbeddingError) Error() string { return fmt.Sprintf("embedding failed: %v", e.Err) }

func (e EmbeddingError) Unwrap() error { return e.Err }

// IsEmbeddingError checks whether err is (or wraps) an EmbeddingError.
func IsEmbeddingError(err error) bool {
	var ee EmbeddingError
	return errors.As(err, &ee)
}

// UserScopeViolationError reports that the archive returned a record owned by
// a different user than the one requested. This indicates a bug, not a
// transient condition: the result is never served and the message is failed
// without retry.
type UserScopeViolationError struct {
	RequestedUser string
	FoundUser     string
	TurnID        string
}

func (e UserScopeViolationError) Error() string {
	return fmt.Sprintf("user scope violation: search for %q returned turn %s owned by %q",
		e.RequestedUser, e.TurnID, e.FoundUser)
}

// IsUserScopeViolation checks whether err is (or wraps) a UserScopeViolationError.
func IsUserScopeViolation(err error) bool {
	var ue UserScopeViolationError
	return errors.As(err, &ue)
}

// PersistError reports which memory failed during a two-store persist so
// callers can reason about partial persistence when deciding to retry.
type PersistError struct {
	Stage string // "short-term" or "long-term"
	Err   error
}

func (e PersistError) Error() string { return fmt.Sprintf("persist %s memory: %v", e.Stage, e.Err) }

func (e PersistError) Unwrap() error { return e.Err }
