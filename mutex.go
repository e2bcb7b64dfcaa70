package threadpool

import (
	"sync"
	"time"
)

// Forever is a timeout that blocks indefinitely. Any negative timeout is
// treated the same way.
const Forever time.Duration = -1

// pollInterval bounds each sleep of the TryLock polling fallback.
const pollInterval = 5 * time.Millisecond

type (
	// Mutex is a binary, non-reentrant lock, with a non-blocking TryLock.
	//
	// A locked Mutex must not be associated with a particular goroutine, i.e.
	// it must be valid to Unlock from a goroutine other than the one that
	// called Lock. Both [sync.Mutex] and [ChanMutex] satisfy this.
	Mutex interface {
		Lock()
		Unlock()
		TryLock() bool
	}

	// TimedMutex is a Mutex that natively supports acquiring with a timeout.
	// If implemented, AcquireTimeout will delegate to LockTimeout, for
	// positive timeouts.
	TimedMutex interface {
		Mutex

		// LockTimeout attempts to acquire the lock, waiting at most timeout,
		// returning true if the lock was acquired.
		LockTimeout(timeout time.Duration) bool
	}

	// Primitives supplies the lock factory and the clock used by the
	// package's synchronization types. A nil *Primitives, or any nil field,
	// uses the defaults, noted per-field.
	Primitives struct {
		// NewMutex returns a new, unlocked Mutex. Each call must return a
		// distinct instance.
		// **Defaults to NewChanMutex.**
		NewMutex func() Mutex

		// Now is used to compute deadlines, for the polling fallback of
		// AcquireTimeout.
		// **Defaults to time.Now.**
		Now func() time.Time

		// Sleep is used between polls, by the polling fallback of
		// AcquireTimeout. It must yield.
		// **Defaults to time.Sleep.**
		Sleep func(d time.Duration)
	}

	// ChanMutex is a Mutex backed by a single-slot channel, which supports
	// acquiring with a timeout. The zero value is an unlocked mutex. A
	// ChanMutex must not be copied after first use.
	ChanMutex struct {
		ch   chan struct{}
		once sync.Once
	}
)

var (
	// compile time assertions

	_ TimedMutex = (*ChanMutex)(nil)
)

// NewChanMutex initializes a new, unlocked ChanMutex.
func NewChanMutex() *ChanMutex {
	return &ChanMutex{ch: make(chan struct{}, 1)}
}

// Lock blocks until the lock is acquired.
func (x *ChanMutex) Lock() {
	x.channel() <- struct{}{}
}

// TryLock acquires the lock if it is available, without blocking.
func (x *ChanMutex) TryLock() bool {
	select {
	case x.channel() <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockTimeout implements TimedMutex. A negative timeout blocks indefinitely,
// and a zero timeout is equivalent to TryLock.
func (x *ChanMutex) LockTimeout(timeout time.Duration) bool {
	if timeout < 0 {
		x.Lock()
		return true
	}
	if timeout == 0 {
		return x.TryLock()
	}

	// fast path, avoids allocating the timer
	if x.TryLock() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case x.channel() <- struct{}{}:
		return true
	case <-timer.C:
		// a release may have raced the timer
		return x.TryLock()
	}
}

// Unlock releases the lock, panicking if it is not locked. It may be called
// from any goroutine.
func (x *ChanMutex) Unlock() {
	select {
	case <-x.channel():
	default:
		panic(`threadpool: unlock of unlocked ChanMutex`)
	}
}

// channel initializes ch on first use, for the zero value
func (x *ChanMutex) channel() chan struct{} {
	x.once.Do(func() {
		if x.ch == nil {
			x.ch = make(chan struct{}, 1)
		}
	})
	return x.ch
}

// AcquireTimeout attempts to acquire lock, with the semantics of
// Primitives.AcquireTimeout, using the default primitives.
func AcquireTimeout(lock Mutex, timeout time.Duration) bool {
	return (*Primitives)(nil).AcquireTimeout(lock, timeout)
}

// AcquireTimeout attempts to acquire lock, returning true if it was acquired
// within timeout. A negative timeout (see Forever) blocks until the lock is
// acquired, and a zero timeout attempts to acquire exactly once, without
// blocking.
//
// Positive timeouts are delegated to TimedMutex.LockTimeout, if lock
// implements it. Otherwise, TryLock is polled, sleeping for short intervals
// between attempts, until the deadline.
func (x *Primitives) AcquireTimeout(lock Mutex, timeout time.Duration) bool {
	if timeout < 0 {
		lock.Lock()
		return true
	}

	if timeout == 0 {
		return lock.TryLock()
	}

	if lock, ok := lock.(TimedMutex); ok {
		return lock.LockTimeout(timeout)
	}

	now, sleep := x.now(), x.sleep()
	deadline := now().Add(timeout)
	for {
		if lock.TryLock() {
			return true
		}
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return false
		}
		sleep(min(remaining, pollInterval))
	}
}

func (x *Primitives) newMutex() Mutex {
	if x != nil && x.NewMutex != nil {
		return x.NewMutex()
	}
	return NewChanMutex()
}

func (x *Primitives) now() func() time.Time {
	if x != nil && x.Now != nil {
		return x.Now
	}
	return time.Now
}

func (x *Primitives) sleep() func(d time.Duration) {
	if x != nil && x.Sleep != nil {
		return x.Sleep
	}
	return time.Sleep
}
