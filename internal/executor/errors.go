package executor

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

var (
	// ErrAssertion marks a step whose expectation did not hold.
	ErrAssertion = errors.New("assertion failed")
	// ErrUnresolvableTarget marks a navigate step whose URL cannot be built.
	ErrUnresolvableTarget = errors.New("cannot resolve navigation target")
	// ErrUnknownAction marks a step whose action is not part of the vocabulary.
	ErrUnknownAction = errors.New("unknown action")
	// ErrActionPanicked marks a step whose action panicked.
	ErrActionPanicked = errors.New("action panicked")
)

// StepError records why the step at Index failed.
type StepError struct {
	Index int
	Kind  schemas.ActionKind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
