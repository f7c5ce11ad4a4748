/*
Package ws is the WebSocket transport for session events and commands.

One endpoint serves both directions. The Hub implements events.Sink
and broadcasts every session event to all connected clients as JSON;
each connection has a bounded outbound queue drained by a single
writer goroutine, so event order per session is preserved and a slow
client is disconnected instead of stalling the PTY pumps. Inbound
frames are commands (spawn, write, resize, close, ping) executed
against the session manager and answered inline on the same socket.
*/
package ws
