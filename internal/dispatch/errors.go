package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeadlineExceeded is recorded when the cycle deadline elapses before
	// every batch has reported.
	ErrDeadlineExceeded = errors.New("dispatch: deadline exceeded")

	// ErrBatchPanic wraps a panic recovered from a batch.
	ErrBatchPanic = errors.New("dispatch: batch panicked")

	// ErrNegativeCount is recorded when a batch reports fewer than zero items.
	ErrNegativeCount = errors.New("dispatch: negative delivered count")
)

// AggregateError holds several independent failures.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	switch len(e.Errs) {
	case 0:
		return "no errors"
	case 1:
		return e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errs
}

// multiUnwrapper matches AggregateError, errors.Join results and any other
// error carrying several causes.
type multiUnwrapper interface {
	Unwrap() []error
}

// Causes flattens err into its leaf causes. An error with a single cause
// (or none) is returned as-is.
func Causes(err error) []error {
	if err == nil {
		return nil
	}
	var multi multiUnwrapper
	if !errors.As(err, &multi) {
		return []error{err}
	}
	var out []error
	for _, inner := range multi.Unwrap() {
		out = append(out, Causes(inner)...)
	}
	return out
}
