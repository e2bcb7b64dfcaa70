//go:build !linux

package threadpool

// currentThreadID is unsupported on this platform, returning -1.
func currentThreadID() int {
	return -1
}
