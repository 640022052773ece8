package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is a stable category for programmatic error handling.
// Callers should branch on Kind rather than matching error strings.
type Kind string

const (
	KindNetwork         Kind = "NetworkError"
	KindBlockchain      Kind = "BlockchainError"
	KindStorage         Kind = "StorageError"
	KindConfig          Kind = "ConfigError"
	KindValidation      Kind = "ValidationError"
	KindPackageNotFound Kind = "PackageNotFoundError"
	KindInvalidPackage  Kind = "InvalidPackageError"
	KindInternal        Kind = "InternalError"
)

// Error is the structured error type shared by every package.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// With attaches a context field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithOp records the operation that failed (e.g. "publish.upload").
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind around cause. A nil cause yields
// a plain New error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
// Errors outside the taxonomy are reported as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsOperational reports whether err belongs to an expected, caller
// recoverable category.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindInternal
}

// FieldsOf collects context fields from every *Error in the chain. Outer
// errors win on key collisions.
func FieldsOf(err error) map[string]any {
	out := make(map[string]any)
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		if e.Op != "" {
			if _, ok := out["op"]; !ok {
				out["op"] = e.Op
			}
		}
		for k, v := range e.Fields {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		err = e.Cause
	}
	return out
}

// describeFields renders fields as "k=v" pairs in key order.
func describeFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
