package threadpool

import (
	"context"
	"sync"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// Future models the pending result of a task scheduled via Submit.
type Future[T any] struct {
	loop   *eventloop.Loop
	logger *logiface.Logger[logiface.Event]
	done   chan struct{}
	// only accessible after done is closed, or under mu
	value     T
	err       error
	callbacks []func(value T, err error)
	mu        sync.Mutex
}

// Submit schedules fn to run on a worker of p, see Pool.Spawn. The result
// is available via the returned Future. A panic within fn is recovered, and
// reported as a *PanicError.
func Submit[T any](p *Pool, fn func() (T, error)) (*Future[T], error) {
	if fn == nil {
		panic(`threadpool: nil task`)
	}
	f := &Future[T]{
		loop:   p.loop,
		logger: p.logger,
		done:   make(chan struct{}),
	}
	if err := p.Spawn(func() { f.run(fn) }); err != nil {
		return nil, err
	}
	return f, nil
}

// Done returns a channel that is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available, or ctx is canceled, in which
// case the ctx error will be returned.
func (f *Future[T]) Wait(ctx context.Context) (value T, err error) {
	select {
	case <-ctx.Done():
		return value, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

// Callback registers fn to be called with the result, once it is available.
// If the pool was configured with an event loop, fn will be run on the loop,
// otherwise it will run on the goroutine that completes the Future, or the
// caller's, if already complete.
//
// If the loop rejects the callback, e.g. because it has terminated, fn will
// be called directly.
func (f *Future[T]) Callback(fn func(value T, err error)) {
	if fn == nil {
		panic(`threadpool: nil callback`)
	}
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		f.dispatch(fn)
	default:
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
	}
}

func (f *Future[T]) run(fn func() (T, error)) {
	var (
		value T
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		value, err = fn()
	}()

	f.mu.Lock()
	f.value, f.err = value, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, callback := range callbacks {
		f.dispatch(callback)
	}
}

func (f *Future[T]) dispatch(callback func(value T, err error)) {
	if f.loop != nil {
		err := f.loop.Submit(func() { callback(f.value, f.err) })
		if err == nil {
			return
		}
		f.logger.Warning().
			Err(err).
			Log(`threadpool: event loop rejected callback, running inline`)
	}
	callback(f.value, f.err)
}
