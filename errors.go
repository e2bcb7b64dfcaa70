package threadpool

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTimeout is returned by Queue.Get if the timeout elapsed before
	// an item became available. It is a normal outcome, e.g. used by idle
	// workers to decide to retire.
	ErrEmptyTimeout = errors.New(`threadpool: queue empty after timeout`)

	// ErrTaskDoneOverflow is returned by Queue.TaskDone if it is called more
	// times than Queue.Put, indicating a bug in the caller.
	ErrTaskDoneOverflow = errors.New(`threadpool: task_done() called too many times`)

	// ErrQueueKilled is returned by Queue methods, after Queue.Kill.
	ErrQueueKilled = errors.New(`threadpool: queue killed`)

	// ErrPoolKilled is returned by Pool methods, after Pool.Kill.
	ErrPoolKilled = errors.New(`threadpool: pool killed`)
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf(`threadpool: task panicked: %v`, e.Value)
}

// Unwrap returns the panic value, if it is an error, for use with
// [errors.Is] and [errors.As], or nil otherwise.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
