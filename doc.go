// Package threadpool hands blocking work from a single-threaded event loop to
// a pool of worker goroutines, which may be pinned to OS threads.
//
// # Synchronization Kernel
//
// The pool is built on three primitives, usable independently:
//
//   - [AcquireTimeout] acquires any [Mutex] with a timeout, where [Forever]
//     (or any negative value) blocks, 0 polls once, and positive values wait
//     at most that long. Locks implementing [TimedMutex] (e.g. [ChanMutex])
//     are delegated to, otherwise TryLock is polled.
//   - [Condition] is a condition variable built only from Mutex values. Each
//     waiter parks on its own lock (a "cookie"), which the notifier unlocks.
//     Wakeups are LIFO, and a notification that races a timeout is never
//     lost.
//   - [Queue] is an unbounded FIFO queue, with per-consumer cookies, timed
//     Get, and task accounting via TaskDone.
//
// LIFO wakeup means the most recently idle consumer is reused first, leaving
// the others to reach their timeout, so a pool shrinks when load drops.
//
// # Pool
//
// [Pool] runs tasks on workers started on demand, up to a maximum, which
// retire when idle. [Submit] captures results as a [Future], whose callbacks
// may be delivered on an [eventloop.Loop], so the loop never blocks on the
// workers.
//
// # Usage
//
//	pool := threadpool.NewPool(&threadpool.PoolConfig{
//	    MaxSize:     4,
//	    IdleTimeout: time.Second,
//	})
//	defer pool.Kill()
//
//	future, err := threadpool.Submit(pool, func() (int, error) {
//	    return blockingCall()
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	value, err := future.Wait(ctx)
package threadpool
