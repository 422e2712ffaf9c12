// Package vcserr defines the error taxonomy the core returns to callers:
// a small set of sentinel kinds plus a typed wrapper carrying the
// offending refkey or change-id when one applies.
package vcserr

import (
	"errors"
	"fmt"

	"github.com/zeebo/errs"
)

// Class is the errs.Class for the vcs core. New and Wrap do not attach
// it: *Error values carry no Class tag, and callers recognize core
// errors with errors.As on *Error or with Of.
var Class = errs.Class("vcscore")

// Kind is the closed taxonomy from spec.md §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedDump
	KindRefNotFound
	KindVersionNotFound
	KindChangeNotFound
	KindNameAlreadyExists
	KindIllegalTransition
	KindConflict
	KindPermissionDenied
	KindStorageUnavailable
	KindIntegrityMismatch
	KindUpstreamFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformedDump:
		return "MalformedDump"
	case KindRefNotFound:
		return "RefNotFound"
	case KindVersionNotFound:
		return "VersionNotFound"
	case KindChangeNotFound:
		return "ChangeNotFound"
	case KindNameAlreadyExists:
		return "NameAlreadyExists"
	case KindIllegalTransition:
		return "IllegalTransition"
	case KindConflict:
		return "Conflict"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindStorageUnavailable:
		return "StorageUnavailable"
	case KindIntegrityMismatch:
		return "IntegrityMismatch"
	case KindUpstreamFailed:
		return "UpstreamFailed"
	default:
		return "Unknown"
	}
}

// Error is the typed wrapper returned by core operations.
type Error struct {
	Kind     Kind
	Message  string
	RefKey   string // "type/name", empty when not applicable
	ChangeID string // empty when not applicable
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.RefKey != "" {
		msg = fmt.Sprintf("%s (ref=%s)", msg, e.RefKey)
	}
	if e.ChangeID != "" {
		msg = fmt.Sprintf("%s (change=%s)", msg, e.ChangeID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, vcserr.Conflict) match any *Error of that Kind,
// regardless of message/refkey/change-id payload.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRef and WithChange return a shallow copy annotated with the
// offending entity, for call-sites that only learn it after the fact.
func (e *Error) WithRef(refkey string) *Error {
	c := *e
	c.RefKey = refkey
	return &c
}

func (e *Error) WithChange(changeID string) *Error {
	c := *e
	c.ChangeID = changeID
	return &c
}

// Sentinel instances for errors.Is comparisons at call sites that don't
// need a message, e.g. errors.Is(err, vcserr.Conflict).
var (
	MalformedDump      = New(KindMalformedDump, "malformed dump")
	RefNotFound        = New(KindRefNotFound, "ref not found")
	VersionNotFound    = New(KindVersionNotFound, "version not found")
	ChangeNotFound     = New(KindChangeNotFound, "change not found")
	NameAlreadyExists  = New(KindNameAlreadyExists, "name already exists")
	IllegalTransition  = New(KindIllegalTransition, "illegal transition")
	Conflict           = New(KindConflict, "conflict")
	PermissionDenied   = New(KindPermissionDenied, "permission denied")
	StorageUnavailable = New(KindStorageUnavailable, "storage unavailable")
	IntegrityMismatch  = New(KindIntegrityMismatch, "integrity mismatch")
	UpstreamFailed     = New(KindUpstreamFailed, "upstream submission failed")
)

// Of reports whether err (or anything it wraps) is a *Error of kind k.
func Of(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
