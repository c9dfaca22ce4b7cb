// Package apperror classifies import pipeline failures.
//
// Record- and chunk-level kinds never abort a run; TransactionFatal does and
// makes the caller roll back. Cancelled ends a job as cancelled, not failed.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Kind xato turi
type Kind int

const (
	StructuralParse Kind = iota
	RecordTransform
	ReferenceSkip
	BatchWrite
	TransactionFatal
	StorageCritical
	Cancelled
)

// String returns the kind name exposed in job error entries.
func (k Kind) String() string {
	switch k {
	case StructuralParse:
		return "structural_parse"
	case RecordTransform:
		return "record_transform"
	case ReferenceSkip:
		return "reference_skip"
	case BatchWrite:
		return "batch_write"
	case TransactionFatal:
		return "transaction_fatal"
	case StorageCritical:
		return "storage_critical"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrJobExists         = errors.New("job already exists")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrNotCancellable    = errors.New("job is not cancellable")
	ErrUnsupportedRoot   = errors.New("unsupported document root")
	ErrNoProducts        = errors.New("document has no product elements")
	ErrEmptyDocument     = errors.New("empty document")
)

// Error classified pipeline error
type Error struct {
	Kind   Kind
	Op     string
	Entity string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Entity != "" {
		msg += " " + e.Entity
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapRecord classifies an error that belongs to one entity row.
func WrapRecord(kind Kind, op, entity, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Entity: entity, Key: key, Err: err}
}

// KindOf returns the classification of err and whether it had one.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsFatal reports whether err must abort the run and roll back.
func IsFatal(err error) bool {
	return IsKind(err, TransactionFatal)
}

// IsCancelled reports a cooperative stop, classified or raw context.Canceled.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return IsKind(err, Cancelled) || errors.Is(err, context.Canceled)
}

// CheckCancelled returns a Cancelled error once ctx is done.
func CheckCancelled(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return &Error{Kind: Cancelled, Op: op, Err: ctx.Err()}
	default:
		return nil
	}
}
