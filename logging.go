package threadpool

import (
	"runtime/debug"
)

// logCategorySaturated is the catrate category for logSaturated.
const logCategorySaturated = `saturated`

// logSaturated warns that tasks are queued with every worker busy, and the
// pool at its maximum size. Rate limited, as it may otherwise log on every
// call to Spawn, under sustained load.
func (p *Pool) logSaturated(unfinished int) {
	b := p.logger.Warning()
	if b == nil {
		return
	}
	if _, ok := p.limiter.Allow(logCategorySaturated); !ok {
		b.Release()
		return
	}
	b.Int(`unfinished`, unfinished).
		Int(`workers`, p.workers).
		Int(`max_size`, p.maxSize).
		Log(`threadpool: pool saturated`)
}

// stack is a variable for testing purposes
var stack = debug.Stack
