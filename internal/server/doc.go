// Package server wires the process together: it builds the session
// manager with its spawner and event sinks, stacks the gin middleware
// (request ids, metrics, CORS, rate limiting), registers the REST and
// WebSocket routes, and owns the serve/shutdown lifecycle.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
