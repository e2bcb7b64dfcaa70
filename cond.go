package threadpool

import (
	"time"
)

// Condition is a condition variable built entirely from Mutex values, with no
// other blocking primitive. Each waiter supplies its own lock (a "cookie",
// see Queue.AllocateCookie), which it parks on, and which a notifier releases
// to wake it.
//
// Waiters are woken in LIFO order, i.e. the most recently parked waiter is
// notified first. Instances must be initialized using the NewCondition
// factory.
type Condition struct {
	// L is the outer lock, which must be held across calls to Wait and
	// NotifyOne. It also guards the waiter list.
	L Mutex

	primitives *Primitives
	waiters    []Mutex
	strict     bool
}

// NewCondition initializes a new Condition, guarded by the outer lock l.
// A panic will occur if l is nil.
func NewCondition(l Mutex, opts ...Option) *Condition {
	if l == nil {
		panic(`threadpool: nil outer lock`)
	}
	cfg := resolveOptions(opts)
	return &Condition{
		L:          l,
		primitives: cfg.primitives,
		strict:     cfg.strictLocking,
	}
}

// Wait releases L, then blocks until either notified by NotifyOne, or the
// timeout elapses, re-acquiring L before returning. The return value is true
// if the wakeup was caused by a notification, including one that raced the
// timeout. See AcquireTimeout for the timeout semantics.
//
// The caller must hold L, and cookie must be an unlocked Mutex, not already
// in use by another waiter, which will be unlocked again on return.
//
// As with any condition variable, the caller must recheck its predicate after
// Wait returns true, as another goroutine may have acquired L first.
func (c *Condition) Wait(cookie Mutex, timeout time.Duration) bool {
	c.checkLocked(`Wait`)

	// arm the cookie, we're the only holder, so this won't block
	cookie.Lock()
	c.waiters = append(c.waiters, cookie)

	c.L.Unlock()

	// blocks until a notifier unlocks the cookie (we hold it)
	notified := c.primitives.AcquireTimeout(cookie, timeout)

	c.L.Lock()

	if !notified {
		// a notifier may have released the cookie after we timed out, but
		// before we re-acquired L, in which case we must not drop the wakeup
		if cookie.TryLock() {
			notified = true
		}
		c.removeWaiter(cookie)
	}

	cookie.Unlock()

	return notified
}

// NotifyOne wakes the most recently parked waiter, if any. The caller must
// hold L.
func (c *Condition) NotifyOne() {
	c.checkLocked(`NotifyOne`)
	if n := len(c.waiters); n != 0 {
		waiter := c.waiters[n-1]
		c.waiters[n-1] = nil
		c.waiters = c.waiters[:n-1]
		waiter.Unlock()
	}
}

// removeWaiter removes cookie from the waiter list, if present. Must be
// called with L held.
func (c *Condition) removeWaiter(cookie Mutex) {
	for i := len(c.waiters) - 1; i >= 0; i-- {
		if c.waiters[i] == cookie {
			copy(c.waiters[i:], c.waiters[i+1:])
			c.waiters[len(c.waiters)-1] = nil
			c.waiters = c.waiters[:len(c.waiters)-1]
			return
		}
	}
}

func (c *Condition) checkLocked(method string) {
	if c.strict && c.L.TryLock() {
		c.L.Unlock()
		panic(`threadpool: Condition.` + method + ` called without holding the outer lock`)
	}
}
