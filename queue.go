package threadpool

import (
	"sync/atomic"
	"time"
)

type (
	// Queue is an unbounded FIFO queue, intended to hand work from producers
	// (e.g. an event loop) to a set of consumer goroutines, that may time out
	// and retire when idle. Each consumer parks on its own cookie (see
	// AllocateCookie), and the most recently parked consumer is woken first,
	// which keeps the set of active consumers small, allowing the rest to
	// reach their timeout.
	//
	// Instances must be initialized using the NewQueue factory. Methods of an
	// uninitialized Queue panic, unlike those of a killed one.
	Queue[T any] struct {
		// nil after Kill, or if not initialized via NewQueue
		state      atomic.Pointer[queueState[T]]
		primitives *Primitives
		killed     atomic.Bool
	}

	queueState[T any] struct {
		mu              Mutex
		notEmpty        *Condition
		items           []T
		unfinishedTasks int
	}
)

// NewQueue initializes a new, empty Queue.
func NewQueue[T any](opts ...Option) *Queue[T] {
	cfg := resolveOptions(opts)
	mu := cfg.primitives.newMutex()
	q := &Queue[T]{primitives: cfg.primitives}
	q.state.Store(&queueState[T]{
		mu: mu,
		notEmpty: &Condition{
			L:          mu,
			primitives: cfg.primitives,
			strict:     cfg.strictLocking,
		},
	})
	return q
}

// Put appends item to the queue, and wakes a waiting consumer, if any. It
// never blocks, except to acquire the internal lock.
//
// A panic will occur if the queue has been killed, or was not initialized
// by NewQueue.
func (q *Queue[T]) Put(item T) {
	s := q.load()
	if s == nil {
		panic(ErrQueueKilled)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(item)
}

// Get removes and returns the item at the head of the queue, waiting at most
// timeout for one to become available (see AcquireTimeout for the timeout
// semantics). ErrEmptyTimeout will be returned if no item became available.
//
// The cookie must have been allocated by AllocateCookie, and must not be used
// concurrently, i.e. each consumer should use its own cookie.
func (q *Queue[T]) Get(cookie Mutex, timeout time.Duration) (item T, err error) {
	s := q.load()
	if s == nil {
		return item, ErrQueueKilled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.items) == 0 {
		// note: being notified doesn't reserve the item, another consumer may
		// have taken it by the time we re-acquire the lock
		if !s.notEmpty.Wait(cookie, timeout) && len(s.items) == 0 {
			return item, ErrEmptyTimeout
		}
	}

	return s.pop(), nil
}

// TaskDone indicates that a previously enqueued task is complete.
// ErrTaskDoneOverflow will be returned, without modifying the count of
// unfinished tasks, if it has been called more times than Put.
func (q *Queue[T]) TaskDone() error {
	s := q.load()
	if s == nil {
		return ErrQueueKilled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unfinished := s.unfinishedTasks - 1
	if unfinished < 0 {
		return ErrTaskDoneOverflow
	}
	s.unfinishedTasks = unfinished
	return nil
}

// QSize returns the number of items in the queue. The value may be stale by
// the time it is used.
func (q *Queue[T]) QSize() int {
	s := q.load()
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Empty returns true if QSize is 0.
func (q *Queue[T]) Empty() bool {
	return q.QSize() == 0
}

// Full always returns false, as the queue is unbounded.
func (q *Queue[T]) Full() bool {
	return false
}

// UnfinishedTasks returns the number of calls to Put, less the number of
// successful calls to TaskDone.
func (q *Queue[T]) UnfinishedTasks() int {
	s := q.load()
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unfinishedTasks
}

// AllocateCookie returns a new, unlocked Mutex, for use with Get. Each
// consumer should allocate one cookie, and keep it for as long as it
// consumes from the queue.
func (q *Queue[T]) AllocateCookie() Mutex {
	return q.primitives.newMutex()
}

// Kill drops all references to the internal state, without attempting to
// acquire or release any locks, or wake any waiters. It is intended for use
// when the state of the internal locks is unknown, and must be abandoned.
// The queue is unusable, after Kill.
func (q *Queue[T]) Kill() {
	q.killed.Store(true)
	q.state.Store(nil)
}

// load returns the state, or nil if killed, panicking if q was not
// initialized by NewQueue.
func (q *Queue[T]) load() *queueState[T] {
	s := q.state.Load()
	if s == nil && !q.killed.Load() {
		panic(`threadpool: Queue not initialized, use NewQueue`)
	}
	return s
}

// put must be called with mu held
func (s *queueState[T]) put(item T) {
	s.items = append(s.items, item)
	s.unfinishedTasks++
	s.notEmpty.NotifyOne()
}

// pop must be called with mu held, and items non-empty
func (s *queueState[T]) pop() T {
	var zero T
	item := s.items[0]
	s.items[0] = zero
	s.items = s.items[1:]
	if len(s.items) == 0 {
		// drop the consumed prefix of the backing array
		s.items = nil
	}
	return item
}
