/*
Package terminal manages interactive shell sessions on PTYs.

# Overview

Each session is a shell child process attached to a pseudo-terminal.
The package owns the full lifecycle: allocating the PTY, spawning the
shell, pumping output to event sinks, relaying input and resizes, and
tearing everything down when the stream ends.

# Architecture

Three pieces cooperate per session:

  - The registry is the single source of truth. One mutex guards the
    session map and the id counter; it is never held across PTY I/O,
    so a stalled session cannot block operations on the others.
  - The reader loop pumps master output into the event sinks in 4 KiB
    chunks. It is the sole owner of session removal: whether the
    stream ends, a read fails, or a close was requested, the loop
    deletes the registry entry and releases the PTY master exactly
    once on its way out.
  - The exit watcher reaps the shell with Wait and reports its real
    exit code. It never touches the registry.

# Session Lifecycle

Spawn runs four steps, each failing with its own SetupError: open the
PTY pair, apply the initial window size, start the shell attached to
the slave, then hand the master to the session. A failed spawn
registers nothing and starts no goroutines.

Close is cooperative. It marks the session and always succeeds, even
for unknown ids; the reader loop notices the mark after its next read
completes and then removes the session. Closing the master hangs up
the shell, whose exit the watcher still reports.

# Identifiers

Session ids are "terminal-<n>" with n strictly increasing for the life
of the process. Ids are never reused, so a stale id always fails with
ErrSessionNotFound instead of reaching a newer session.
*/
package terminal
