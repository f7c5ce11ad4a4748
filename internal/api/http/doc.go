// Package http exposes the session command surface over REST: spawn,
// write, resize, close, and count, plus session snapshots, scrollback,
// and health. Errors map onto statuses by whose fault they are; close
// returns 200 for any id.
package http
