// Package apperror defines the error taxonomy shared by the inventory, booking
// and payment services. Business rejections carry enough context for the
// caller to act on them; Transient errors are safe to retry; Fatal errors mean
// an invariant is already broken and must surface loudly.
package apperror

import (
	"errors"
	"fmt"
	"sort"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindInsufficientInventory
	KindInvalidState
	KindForbidden
	KindConflict
	KindUnpublished
	KindEventStarted
	KindTransient
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindInsufficientInventory:
		return "insufficient_inventory"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnpublished:
		return "unpublished"
	case KindEventStarted:
		return "event_started"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the single concrete type behind every kind. Only the fields that
// belong to the kind are populated.
type Error struct {
	Kind Kind

	Entity string
	ID     string

	Field  string
	Reason string
	// Fields holds every failed field of a request validation.
	Fields map[string]string

	Requested int
	Available int

	From   string
	Action string

	UserID string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
	case KindValidation:
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
	case KindInsufficientInventory:
		return fmt.Sprintf("insufficient inventory for ticket %s: requested %d, available %d", e.ID, e.Requested, e.Available)
	case KindInvalidState:
		return fmt.Sprintf("%s %s is %s, cannot %s", e.Entity, e.ID, e.From, e.Action)
	case KindForbidden:
		return fmt.Sprintf("user %s is not allowed to access %s %s", e.UserID, e.Entity, e.ID)
	case KindConflict:
		return fmt.Sprintf("conflict: %s", e.Reason)
	case KindUnpublished:
		return fmt.Sprintf("event %s is not published", e.ID)
	case KindEventStarted:
		return fmt.Sprintf("event %s has already started", e.ID)
	case KindTransient:
		if e.Err != nil {
			return fmt.Sprintf("temporarily unavailable: %s: %v", e.Reason, e.Err)
		}
		return fmt.Sprintf("temporarily unavailable: %s", e.Reason)
	case KindFatal:
		return fmt.Sprintf("invariant violated: %s", e.Reason)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason}
}

// ValidationFields reports the first failed field by name and keeps the full set.
func ValidationFields(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &Error{Kind: KindValidation, Fields: fields}
	if len(names) > 0 {
		e.Field, e.Reason = names[0], fields[names[0]]
	}
	return e
}

func InsufficientInventory(ticketID string, requested, available int) *Error {
	return &Error{Kind: KindInsufficientInventory, Entity: "ticket", ID: ticketID, Requested: requested, Available: available}
}

func InvalidState(entity, id, from, action string) *Error {
	return &Error{Kind: KindInvalidState, Entity: entity, ID: id, From: from, Action: action}
}

func Forbidden(userID, entity, id string) *Error {
	return &Error{Kind: KindForbidden, UserID: userID, Entity: entity, ID: id}
}

func Conflict(reason string) *Error {
	return &Error{Kind: KindConflict, Reason: reason}
}

func Unpublished(eventID string) *Error {
	return &Error{Kind: KindUnpublished, Entity: "event", ID: eventID}
}

func EventStarted(eventID string) *Error {
	return &Error{Kind: KindEventStarted, Entity: "event", ID: eventID}
}

func Transient(reason string, cause error) *Error {
	return &Error{Kind: KindTransient, Reason: reason, Err: cause}
}

func Fatal(reason string) *Error {
	return &Error{Kind: KindFatal, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may retry the operation with backoff.
func Retryable(err error) bool {
	return IsKind(err, KindTransient)
}
