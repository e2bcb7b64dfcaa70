// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package threadpool

// syncOptions holds configuration options for Condition and Queue creation.
type syncOptions struct {
	primitives    *Primitives
	strictLocking bool
}

// Option configures a Condition or Queue instance.
type Option interface {
	applySync(*syncOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applySyncFunc func(*syncOptions)
}

func (o *optionImpl) applySync(opts *syncOptions) {
	o.applySyncFunc(opts)
}

// WithPrimitives configures the lock factory and clock. A nil value restores
// the defaults.
func WithPrimitives(primitives *Primitives) Option {
	return &optionImpl{func(opts *syncOptions) {
		opts.primitives = primitives
	}}
}

// WithStrictLocking enables assertions that the outer lock of a Condition is
// held, on entry to Condition.Wait and Condition.NotifyOne. Violations panic.
// The check uses TryLock, and is intended for debugging, as it adds a lock
// round trip to every call.
func WithStrictLocking(enabled bool) Option {
	return &optionImpl{func(opts *syncOptions) {
		opts.strictLocking = enabled
	}}
}

// resolveOptions applies Option instances to syncOptions, in order, skipping
// nil values.
func resolveOptions(opts []Option) *syncOptions {
	cfg := &syncOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applySync(cfg)
	}
	return cfg
}
