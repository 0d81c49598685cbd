// Package iox holds small cleanup helpers for deferred and test-scoped
// resource release.
package iox

import "io"

// DiscardClose closes c, dropping the error. For deferred closes of redis
// clients, blob stores, and the like where the error carries no signal:
//
//	defer iox.DiscardClose(client)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc wraps c's Close in a no-argument function, dropping the error.
// Shaped for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops the returned error. For deferred non-Close
// teardown such as a writer's final flush:
//
//	defer iox.DiscardErr(writer.Close)
func DiscardErr(fn func() error) { _ = fn() }
