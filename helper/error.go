package helper

import (
	"errors"
	"strings"
)

// Error wraps an error with the chain of operations that led to it.
// The outermost operation comes first in Trace.
type Error struct {
	Original error
	Trace    []string
}

// NewError wraps original with the given operation name.
// If original already is an Error the operation is prepended to its trace.
func NewError(operation string, original error) error {
	if original == nil {
		return nil
	}

	var traced Error
	if errors.As(original, &traced) {
		trace := make([]string, 0, len(traced.Trace)+1)
		trace = append(trace, operation)
		trace = append(trace, traced.Trace...)
		return Error{Original: traced.Original, Trace: trace}
	}

	return Error{Original: original, Trace: []string{operation}}
}

func (e Error) Error() string {
	if len(e.Trace) == 0 {
		return e.Original.Error()
	}
	return strings.Join(e.Trace, ": ") + ": " + e.Original.Error()
}

func (e Error) Unwrap() error {
	return e.Original
}
