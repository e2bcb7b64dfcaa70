//go:build linux

package threadpool

import (
	"golang.org/x/sys/unix"
)

// currentThreadID returns the id of the OS thread running the caller, which
// is only stable if the goroutine is locked to its thread.
func currentThreadID() int {
	return unix.Gettid()
}
