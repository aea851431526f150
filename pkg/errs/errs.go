// Package errs carries the error taxonomy shared by every component: an
// error kind, the failing operation, structured context fields, and the
// wrapped cause. Only the HTTP boundary decides what is user-visible.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for boundary handling.
type Kind int

const (
	// Internal covers storage, serialization, and transport failures. The
	// outer boundary collapses these to a generic message.
	Internal Kind = iota
	// MalformedInput marks a structurally invalid request.
	MalformedInput
	// Unauthorized marks a missing or rejected credential.
	Unauthorized
	// Validation marks a business-rule violation surfaced to the caller
	// with its context fields intact.
	Validation
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed_input"
	case Unauthorized:
		return "unauthorized"
	case Validation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is a classified error with contextual fields and a chained cause.
type Error struct {
	Kind   Kind
	Op     string
	Fields map[string]any
	Err    error
}

// E builds an Error. kv is an alternating key/value list; a trailing odd
// value is dropped.
func E(op string, kind Kind, cause error, kv ...any) *Error {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return &Error{Kind: kind, Op: op, Fields: fields, Err: cause}
}

// Validationf builds a Validation error with a formatted message and no cause.
func Validationf(op string, format string, args ...any) *Error {
	return &Error{Kind: Validation, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf walks the chain and returns the kind of the outermost *Error,
// defaulting to Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether the outermost classified error has the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf collects the context fields along the whole chain, outermost wins.
func FieldsOf(err error) map[string]any {
	fields := map[string]any{}
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		for k, v := range e.Fields {
			if _, seen := fields[k]; !seen {
				fields[k] = v
			}
		}
		err = e.Err
	}
	return fields
}
