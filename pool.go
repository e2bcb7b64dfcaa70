package threadpool

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

type (
	// PoolConfig models optional configuration, for NewPool.
	PoolConfig struct {
		// Loop is an optional event loop, which, if provided, will be used to
		// run Future callbacks, via eventloop.Loop.Submit.
		Loop *eventloop.Loop

		// Logger is an optional structured logger.
		Logger *logiface.Logger[logiface.Event]

		// Primitives configures the locks and clock used by the pool's Queue.
		Primitives *Primitives

		// MaxSize is the maximum number of workers.
		// **Defaults to 10, if 0, or PoolConfig is nil.**
		//
		// WARNING: NewPool will panic if MaxSize is negative.
		MaxSize int

		// IdleTimeout is the duration an idle worker will wait for a task,
		// before retiring. Workers will never retire if this is negative.
		// **Defaults to 5s, if 0, or PoolConfig is nil.**
		IdleTimeout time.Duration

		// LockOSThread will pin each worker to its own OS thread, for the
		// lifetime of the worker. The thread exits with the worker.
		LockOSThread bool
	}

	// Pool runs tasks on a dynamically sized set of worker goroutines,
	// bounded by PoolConfig.MaxSize. Workers are started on demand, and
	// retire after PoolConfig.IdleTimeout without work. Tasks are delivered
	// via a Queue, which wakes the most recently idle worker first.
	//
	// Instances must be initialized using the NewPool factory.
	Pool struct { // betteralign:ignore
		queue        *Queue[func()]
		loop         *eventloop.Loop                  // configurable
		logger       *logiface.Logger[logiface.Event] // configurable
		limiter      *catrate.Limiter                 // throttles logSaturated
		maxSize      int                              // configurable
		idleTimeout  time.Duration                    // configurable
		lockOSThread bool                             // configurable
		state        poolState
		wg           sync.WaitGroup

		// mu serializes growth (Spawn) against retirement, and guards the
		// fields below
		mu       sync.Mutex
		workers  int
		workerID int
	}
)

// NewPool initializes a new Pool, using the provided PoolConfig, which may be
// nil. A panic will occur if invalid config is provided.
//
// The Pool.Kill method should be called when the Pool is no longer needed.
func NewPool(config *PoolConfig) *Pool {
	pool := Pool{
		maxSize:     10,
		idleTimeout: 5 * time.Second,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}

	var primitives *Primitives
	if config != nil {
		pool.loop = config.Loop
		pool.logger = config.Logger
		pool.lockOSThread = config.LockOSThread
		primitives = config.Primitives
		if config.MaxSize != 0 {
			pool.maxSize = config.MaxSize
		}
		if config.IdleTimeout != 0 {
			pool.idleTimeout = config.IdleTimeout
		}
	}

	if pool.maxSize < 0 {
		panic(`threadpool: negative max size`)
	}
	if pool.idleTimeout < 0 {
		pool.idleTimeout = Forever
	}

	pool.queue = NewQueue[func()](WithPrimitives(primitives))

	return &pool
}

// Spawn schedules fn to run on a worker, starting a new worker if all
// existing workers are busy, and the pool is not at its maximum size.
// ErrPoolKilled will be returned if the pool has been killed.
//
// Panics in fn are recovered, and logged. See also Submit.
func (p *Pool) Spawn(fn func()) error {
	if fn == nil {
		panic(`threadpool: nil task`)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawnLocked(fn)
}

// spawnLocked must be called with mu held
func (p *Pool) spawnLocked(fn func()) error {
	if p.state.Load() == PoolKilled {
		return ErrPoolKilled
	}

	p.queue.Put(fn)

	// each unfinished task may occupy a worker
	unfinished := p.queue.UnfinishedTasks()
	for p.workers < p.maxSize && unfinished > p.workers {
		p.startWorker()
	}
	if unfinished > p.workers {
		p.logSaturated(unfinished)
	}

	return nil
}

// Join blocks until every task scheduled so far has completed, or ctx is
// canceled.
func (p *Pool) Join(ctx context.Context) error {
	const maxDelay = 50 * time.Millisecond
	delay := time.Millisecond
	for p.queue.UnfinishedTasks() != 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxDelay)
	}
	return nil
}

// Size returns the current number of workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// MaxSize returns the maximum number of workers.
func (p *Pool) MaxSize() int {
	return p.maxSize
}

// State returns the current PoolState.
func (p *Pool) State() PoolState {
	return p.state.Load()
}

// Kill prevents further tasks via Spawn, then stops all workers, blocking
// until they have exited. Tasks that were already scheduled will still run.
//
// This method is unsafe to call from within a task.
func (p *Pool) Kill() {
	p.mu.Lock()
	if !p.state.TryTransition(PoolRunning, PoolKilled) {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	workers := p.workers
	// one stop signal per worker, queued behind any pending tasks
	for range workers {
		p.queue.Put(nil)
	}
	p.mu.Unlock()

	p.logger.Info().
		Int(`workers`, workers).
		Log(`threadpool: killing pool`)

	p.wg.Wait()
}

// startWorker must be called with mu held
func (p *Pool) startWorker() {
	p.workers++
	p.workerID++
	p.wg.Add(1)
	go p.worker(p.workerID)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	if p.lockOSThread {
		// not unlocked, exiting while locked terminates the thread
		runtime.LockOSThread()
	}

	p.logger.Debug().
		Int(`worker`, id).
		Int(`tid`, currentThreadID()).
		Log(`threadpool: worker started`)

	cookie := p.queue.AllocateCookie()

	for {
		fn, err := p.queue.Get(cookie, p.idleTimeout)
		if err == ErrEmptyTimeout && !p.retire() {
			continue
		}
		if err != nil {
			p.logger.Debug().
				Int(`worker`, id).
				Err(err).
				Log(`threadpool: worker retired`)
			return
		}

		if fn == nil {
			_ = p.queue.TaskDone()
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			p.logger.Debug().
				Int(`worker`, id).
				Log(`threadpool: worker stopped`)
			return
		}

		p.run(id, fn)

		if err := p.queue.TaskDone(); err != nil {
			p.logger.Err().
				Int(`worker`, id).
				Err(err).
				Log(`threadpool: task accounting failed`)
		}
	}
}

// retire decrements the worker count, unless there is work left to do, in
// which case it returns false. Checking the queue under mu closes the race
// with a concurrent Spawn deciding not to start a worker.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.QSize() != 0 {
		return false
	}
	p.workers--
	return true
}

func (p *Pool) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Err().
				Int(`worker`, id).
				Err(&PanicError{Value: r}).
				Str(`stack`, string(stack())).
				Log(`threadpool: task panicked`)
		}
	}()
	fn()
}
