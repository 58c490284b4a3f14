package ingest

import (
	"fmt"
	"time"
)

// AuthenticationError means the request carried no usable DSN credential or
// the credential did not match a project. Never retried server-side.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return e.Reason
}

// ValidationError covers malformed project ids, empty envelopes, and events
// failing required-field checks. Scoped to the smallest unit possible: a
// single event inside an envelope drops only that item.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "validation failed"
	}
	return e.Reason
}

// ThrottleError means the owning organization is not accepting events.
// RetryAfter is surfaced to the client as a Retry-After hint.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("project is not accepting events, retry after %s", e.RetryAfter)
}

// MaintenanceError is the global ingest freeze; checked before any other
// work, surfaced uniformly regardless of payload.
type MaintenanceError struct{}

func (e *MaintenanceError) Error() string {
	return "not currently accepting events"
}
