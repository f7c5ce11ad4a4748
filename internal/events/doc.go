/*
Package events defines the asynchronous session notification model.

# Overview

Terminal sessions push three kinds of events: output chunks, read
failures, and exits. Producers emit into a Sink; the process composes
sinks with Fanout so the same stream feeds the WebSocket hub, the
transcript recorder, and the optional webhook at once.

# Delivery Contract

Emit is called from session goroutines and must return quickly. Sinks
doing slow work buffer internally and drop on overflow rather than
stall the PTY pump. Per-session event order is fixed at the Emit call
site and every sink preserves it downstream.

# Exit Semantics

A session that terminates produces up to two exit events: the reader
loop reports end of stream with code 0, and the exit watcher reports
the shell's real exit code once the process is reaped. Consumers treat
the pair as one termination and may use either, so an interface whose
shell exits nonzero sees the real code without waiting for the stream
to drain.
*/
package events
