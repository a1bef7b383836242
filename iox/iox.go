// Package iox provides small I/O cleanup helpers.
package iox

import "io"

// DiscardClose closes c and discards the error.
// Use in defer statements where a close failure is unactionable, like the
// coordinator connection pool at process exit:
//
//	defer iox.DiscardClose(coord)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(coord))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
