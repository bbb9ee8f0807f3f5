package qa

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure kinds. Routing and translation failures are recovered inside the
// pipeline; retrieval and synthesis failures abort the request.
var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrRetrieval       = errors.New("retrieval failed")
	ErrSynthesis       = errors.New("synthesis failed")
)

// StageError reports the stage a request failed to reach
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err is worth exactly one more attempt.
// Deadlines and cancellations are final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
