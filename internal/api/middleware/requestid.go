package middleware

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestIDHeader is the response header carrying the request id.
const RequestIDHeader = "X-Request-ID"

var ulidMu sync.Mutex

func newRequestID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return "req_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// RequestID tags every request with a fresh ULID, lexicographically
// sortable by arrival time, exposed on the gin context and echoed in
// the response headers so clients can quote it when reporting issues.
// An inbound X-Request-ID is honored instead of minting a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
