package threadpool

import (
	"sync/atomic"
)

// PoolState represents the lifecycle state of a Pool.
//
//	PoolRunning (0) → PoolKilled (1)   [Kill()]
//	PoolKilled (1) → (terminal)
type PoolState uint32

const (
	// PoolRunning indicates the pool accepts tasks.
	PoolRunning PoolState = 0
	// PoolKilled indicates Kill has been called.
	PoolKilled PoolState = 1
)

// String returns a human-readable representation of the state.
func (s PoolState) String() string {
	switch s {
	case PoolRunning:
		return "Running"
	case PoolKilled:
		return "Killed"
	default:
		return "Unknown"
	}
}

// poolState is an atomic PoolState.
type poolState struct {
	v atomic.Uint32
}

func (s *poolState) Load() PoolState {
	return PoolState(s.v.Load())
}

// TryTransition performs a CAS from one state to another.
func (s *poolState) TryTransition(from, to PoolState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
