// Package errors provides the stable error-kind taxonomy shared across the
// sync core (see spec §7). Kinds are read with GetKind (or Error.Kind),
// never with string matching, so callers can branch on recovery policy.
package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is a stable error classification. Kinds are never wire-visible;
// they exist purely for internal recovery-policy dispatch.
type Kind string

const (
	KindParentPending          Kind = "ParentPending"
	KindHashMismatchPostApply  Kind = "HashMismatchPostApply"
	KindSnapshotVerification   Kind = "SnapshotVerification"
	KindHandshakeVersionMismatch Kind = "HandshakeVersionMismatch"
	KindDialFailed             Kind = "DialFailed"
	KindChannelFull            Kind = "ChannelFull"
	KindMergeCallbackMissing   Kind = "MergeCallbackMissing"
	KindDeltaBufferOverflow    Kind = "DeltaBufferOverflow"
	KindPayloadDeserialization Kind = "PayloadDeserialization"
	KindStoreWriteFailure      Kind = "StoreWriteFailure"
	KindCyclicDelta            Kind = "CyclicDelta"
	KindUnknown                Kind = ""
)

// KV is a single structured key-value pair attached to an error, mirroring
// logging.NewKV so the same fields can travel from a log line into an error.
type KV struct {
	Key   string
	Value any
}

// NewKV builds a KV pair.
func NewKV(key string, value any) KV {
	return KV{Key: key, Value: value}
}

// Error is the concrete error type produced by this package. It carries an
// optional Kind, a message, a wrapped cause, and structured KV context.
type Error struct {
	kind  Kind
	msg   string
	cause error
	kvs   []KV
	stack error // pkg/errors stack-trace carrier
}

func (e *Error) Error() string {
	msg := e.msg
	for _, kv := range e.kvs {
		msg += fmt.Sprintf(" %s=%v", kv.Key, kv.Value)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's stable kind, or KindUnknown if none was set.
func (e *Error) Kind() Kind { return e.kind }

// New creates a kindless error with a message and optional KV context.
func New(msg string, kvs ...KV) error {
	return &Error{msg: msg, kvs: kvs, stack: pkgerrors.New(msg)}
}

// NewWithKind creates an error tagged with a stable Kind.
func NewWithKind(kind Kind, msg string, kvs ...KV) error {
	return &Error{kind: kind, msg: msg, kvs: kvs, stack: pkgerrors.New(msg)}
}

// Wrap annotates err with msg, preserving the cause for Unwrap/Is chains.
func Wrap(msg string, err error, kvs ...KV) error {
	if err == nil {
		return nil
	}
	return &Error{msg: msg, cause: err, kvs: kvs, stack: pkgerrors.WithMessage(err, msg)}
}

// WrapWithKind annotates err with msg and a stable Kind.
func WrapWithKind(kind Kind, msg string, err error, kvs ...KV) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, cause: err, kvs: kvs, stack: pkgerrors.WithMessage(err, msg)}
}

// WithStack attaches a stack trace (via github.com/pkg/errors) and KV
// context to an existing error, mirroring the teacher's
// errors.WithStack(err, errors.NewKV(...)) call shape.
func WithStack(err error, kvs ...KV) error {
	if err == nil {
		return nil
	}
	return &Error{msg: err.Error(), cause: err, kvs: kvs, stack: pkgerrors.WithStack(err)}
}

// Is delegates to the standard library's errors.Is, so sentinel errors
// from datastore/badger (ds.ErrNotFound, badger.ErrTxnConflict, ...)
// continue to compare correctly through wrapping.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to the standard library's errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetKind extracts the Kind from err, walking the Unwrap chain. Returns
// KindUnknown if no *Error in the chain carries a kind.
func GetKind(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok && e.kind != KindUnknown {
			return e.kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = unwrapper.Unwrap()
	}
	return KindUnknown
}
