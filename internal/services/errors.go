package services

// Typed failures returned to handlers. None are swallowed; the handler layer
// maps each to an HTTP status and stable error code.

// ValidationError carries per-field messages for a malformed request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// ConflictError signals the single-active-session invariant or a lost
// optimistic-lock race. The caller should re-fetch and retry or abort.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// InvalidStateError signals an operation that is not legal from the current
// lifecycle position (e.g. checkout while paused, deciding an expired
// suggestion).
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// LimitExceededError signals the snooze cap has been reached.
type LimitExceededError struct{ Message string }

func (e *LimitExceededError) Error() string { return e.Message }
