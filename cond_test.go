package threadpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCondition_nilLock(t *testing.T) {
	defer func() {
		if r := recover(); r != `threadpool: nil outer lock` {
			t.Fatal(r)
		}
	}()
	NewCondition(nil)
}

func TestCondition_NotifyOne_noWaiters(t *testing.T) {
	c := NewCondition(NewChanMutex(), WithStrictLocking(true))
	c.L.Lock()
	c.NotifyOne()
	c.NotifyOne()
	c.L.Unlock()
	if n := condWaiters(c); n != 0 {
		t.Fatal(n)
	}
}

func TestCondition_Wait_timeout(t *testing.T) {
	for _, tc := range [...]struct {
		name       string
		primitives *Primitives
	}{
		{`chan mutex`, nil},
		{`sync mutex`, &Primitives{NewMutex: func() Mutex { return new(sync.Mutex) }}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCondition(tc.primitives.newMutex(), WithPrimitives(tc.primitives))
			cookie := tc.primitives.newMutex()

			c.L.Lock()
			start := time.Now()
			if c.Wait(cookie, 30*time.Millisecond) {
				t.Error(`expected timeout`)
			}
			if d := time.Since(start); d < 30*time.Millisecond {
				t.Error(d)
			}

			// outer lock is held, and the cookie is free again
			require.False(t, c.L.TryLock())
			require.Empty(t, c.waiters)
			require.True(t, cookie.TryLock())
			cookie.Unlock()
			c.L.Unlock()
		})
	}
}

func TestCondition_Wait_pollOnce(t *testing.T) {
	c := NewCondition(NewChanMutex())
	cookie := NewChanMutex()
	c.L.Lock()
	defer c.L.Unlock()
	for range 3 {
		if c.Wait(cookie, 0) {
			t.Fatal(`expected timeout`)
		}
	}
	require.Empty(t, c.waiters)
}

func TestCondition_Wait_notified(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)

	c := NewCondition(NewChanMutex(), WithStrictLocking(true))
	cookie := NewChanMutex()

	result := make(chan bool, 1)
	go func() {
		c.L.Lock()
		defer c.L.Unlock()
		result <- c.Wait(cookie, Forever)
	}()

	waitFor(t, time.Second*3, func() bool { return condWaiters(c) == 1 })

	c.L.Lock()
	c.NotifyOne()
	c.L.Unlock()

	select {
	case v := <-result:
		if !v {
			t.Fatal(`expected notified`)
		}
	case <-time.After(time.Second * 3):
		t.Fatal(`timed out`)
	}

	require.True(t, cookie.TryLock())
	cookie.Unlock()
	require.Zero(t, condWaiters(c))
}

func TestCondition_NotifyOne_lifo(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)

	c := NewCondition(NewChanMutex())
	woken := make(chan int, 3)

	for i := range 3 {
		cookie := NewChanMutex()
		go func() {
			c.L.Lock()
			defer c.L.Unlock()
			if c.Wait(cookie, Forever) {
				woken <- i
			}
		}()
		// park them in a known order
		waitFor(t, time.Second*3, func() bool { return condWaiters(c) == i+1 })
	}

	for _, want := range []int{2, 1, 0} {
		c.L.Lock()
		c.NotifyOne()
		c.L.Unlock()
		select {
		case got := <-woken:
			if got != want {
				t.Fatalf(`expected waiter %d, got %d`, want, got)
			}
		case <-time.After(time.Second * 3):
			t.Fatal(`timed out`)
		}
	}
}

// hookMutex runs beforeLock once, on the next call to Lock.
type hookMutex struct {
	Mutex
	beforeLock func()
}

func (m *hookMutex) Lock() {
	if f := m.beforeLock; f != nil {
		m.beforeLock = nil
		f()
	}
	m.Mutex.Lock()
}

// A notification that lands after the waiter's timeout, but before it
// re-acquires the outer lock, must still be reported.
func TestCondition_Wait_lateNotification(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)

	inner := NewChanMutex()
	outer := &hookMutex{Mutex: inner}
	c := NewCondition(outer)
	cookie := NewChanMutex()

	var waitersAtNotify int
	notify := func() {
		// the waiter has timed out, and is about to re-acquire the lock
		done := make(chan struct{})
		go func() {
			defer close(done)
			inner.Lock()
			defer inner.Unlock()
			waitersAtNotify = len(c.waiters)
			c.NotifyOne()
		}()
		<-done
	}

	c.L.Lock()
	outer.beforeLock = notify
	notified := c.Wait(cookie, 10*time.Millisecond)
	c.L.Unlock()

	if !notified {
		t.Fatal(`expected the late notification to be observed`)
	}
	require.Equal(t, 1, waitersAtNotify)
	require.Empty(t, c.waiters)
	require.True(t, cookie.TryLock())
	cookie.Unlock()
}

func TestCondition_strictLocking(t *testing.T) {
	c := NewCondition(NewChanMutex(), WithStrictLocking(true))

	for name, fn := range map[string]func(){
		`NotifyOne`: c.NotifyOne,
		`Wait`:      func() { c.Wait(NewChanMutex(), 0) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != `threadpool: Condition.`+name+` called without holding the outer lock` {
					t.Fatal(r)
				}
				// the check must not leave the lock held
				require.True(t, c.L.TryLock())
				c.L.Unlock()
			}()
			fn()
		})
	}
}

func TestCondition_Wait_contention(t *testing.T) {
	defer checkNumGoroutines(time.Second * 5)(t)

	const (
		waiters = 8
		rounds  = 200
	)

	var (
		c       = NewCondition(NewChanMutex())
		pending int
		wg      sync.WaitGroup
	)

	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cookie := NewChanMutex()
			c.L.Lock()
			defer c.L.Unlock()
			for consumed := 0; consumed < rounds; {
				for pending == 0 {
					c.Wait(cookie, time.Millisecond)
				}
				pending--
				consumed++
			}
		}()
	}

	for range waiters * rounds {
		c.L.Lock()
		pending++
		c.NotifyOne()
		c.L.Unlock()
	}

	wg.Wait()

	c.L.Lock()
	defer c.L.Unlock()
	require.Zero(t, pending)
	require.Empty(t, c.waiters)
}
