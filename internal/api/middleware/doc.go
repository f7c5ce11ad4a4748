// Package middleware provides the gin middleware stack: CORS,
// per-client rate limiting, and ULID request ids.
package middleware
