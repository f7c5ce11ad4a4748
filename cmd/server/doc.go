// Package main is the entry point for the termbridge daemon.
//
// The server multiplexes interactive shell sessions over PTYs and
// exposes them to clients two ways:
//   - REST API for the command surface (spawn, write, resize, close)
//   - WebSocket stream for output, error, and exit events
//
// Configuration:
//   - Compiled defaults
//   - Optional YAML or TOML config file (-config)
//   - TERMBRIDGE_* environment variables (highest precedence)
//
// Usage:
//
//	./server -config termbridge.yaml
//	./server -port 9180
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown; sessions are hung up and
//     sinks drained within the configured timeout
package main
