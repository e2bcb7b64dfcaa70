package threadpool

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// checkNumGoroutines returns a func that will fail the test if the number of
// goroutines hasn't returned to the starting value, within timeout.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	before := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for {
			after := runtime.NumGoroutine()
			if after <= before {
				return
			}
			if time.Now().After(deadline) {
				t.Errorf(`goroutine leak: before=%d after=%d`, before, after)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// waitFor polls cond until it returns true, failing the test after timeout.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(`timed out waiting for condition`)
		}
		time.Sleep(time.Millisecond)
	}
}

// numWaiters returns the number of consumers parked on q.
func numWaiters[T any](q *Queue[T]) int {
	s := q.state.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notEmpty.waiters)
}

// condWaiters returns the number of waiters parked on c.
func condWaiters(c *Condition) int {
	c.L.Lock()
	defer c.L.Unlock()
	return len(c.waiters)
}

// fakeClock implements Primitives.Now and Primitives.Sleep, advancing time
// on each sleep. Not safe for concurrent use.
type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
}

func (c *fakeClock) primitives() *Primitives {
	return &Primitives{
		NewMutex: func() Mutex { return new(sync.Mutex) },
		Now:      c.Now,
		Sleep:    c.Sleep,
	}
}

// logRecorder captures JSON log lines, written by a stumpy logger.
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func newLogRecorder(level logiface.Level) (*logRecorder, *logiface.Logger[logiface.Event]) {
	r := new(logRecorder)
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(level),
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.lines = append(r.lines, string(e.Bytes()))
			return nil
		})),
	)
	return r, logger.Logger()
}

func (r *logRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
