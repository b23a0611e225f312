package collector

import (
	"errors"
	"fmt"
)

// ErrTimeout matches a RequestError caused by the collector's time bound.
var ErrTimeout = errors.New("request timed out")

// RequestError is returned for every failed Get. The underlying cause is
// kept and reachable through errors.Unwrap.
type RequestError struct {
	Method  string
	URI     string
	Timeout bool
	Err     error
}

func (e *RequestError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URI, ErrTimeout, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URI, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports timeouts as ErrTimeout.
func (e *RequestError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}
