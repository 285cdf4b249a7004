// Package session owns the client connection lifecycle: one transport at a
// time, fixed-delay reconnects, and the inbound decode path into a router.
//
// All mutable state belongs to a single event loop goroutine. Transport
// readers, dials and timers only post events into that loop, so no lock
// guards the transport handle or the stored connection info.
package session
