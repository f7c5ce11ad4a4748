package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
	"github.com/termbridge/termbridge/internal/terminal"
)

// Version is the service version reported on the root endpoint.
const Version = "1.0.0"

// Sessions is the slice of the session manager the HTTP surface
// drives.
type Sessions interface {
	Spawn(rows, cols uint16, workingDir string) (string, error)
	Write(id string, data []byte) error
	Resize(id string, rows, cols uint16) error
	Close(id string)
	Count() int
	List() []terminal.SessionInfo
	Get(id string) (terminal.SessionInfo, error)
	Scrollback(id string) (string, error)
}

// Handlers contains the HTTP handlers for the command surface.
type Handlers struct {
	sessions Sessions
	metrics  *monitoring.Metrics
}

// NewHandlers creates a handler set over the session manager.
func NewHandlers(sessions Sessions, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{sessions: sessions, metrics: metrics}
}

// Root reports service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termbridge",
		"version": Version,
	})
}

// Health reports liveness plus manager and request statistics.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Count(),
	}
	if h.metrics != nil {
		resp["stats"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, resp)
}

type spawnRequest struct {
	Rows       uint16 `json:"rows"`
	Cols       uint16 `json:"cols"`
	WorkingDir string `json:"working_dir"`
}

// SpawnSession starts a new shell session.
func (h *Handlers) SpawnSession(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id, err := h.sessions.Spawn(req.Rows, req.Cols, req.WorkingDir)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// ListSessions returns snapshots of all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type writeRequest struct {
	Data string `json:"data" binding:"required"`
}

// WriteSession forwards input bytes to the session's shell.
func (h *Handlers) WriteSession(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.sessions.Write(id, []byte(req.Data)); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": id, "written": len(req.Data)})
}

type resizeRequest struct {
	Rows uint16 `json:"rows" binding:"required"`
	Cols uint16 `json:"cols" binding:"required"`
}

// ResizeSession applies a new window size to the session's PTY.
func (h *Handlers) ResizeSession(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.sessions.Resize(id, req.Rows, req.Cols); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": id, "rows": req.Rows, "cols": req.Cols})
}

// CloseSession requests cooperative shutdown. It succeeds for any id,
// issued or not, so caller cleanup never needs to branch.
func (h *Handlers) CloseSession(c *gin.Context) {
	id := c.Param("id")
	h.sessions.Close(id)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "closing": true})
}

// GetScrollback returns the session's buffered recent output.
func (h *Handlers) GetScrollback(c *gin.Context) {
	id := c.Param("id")
	data, err := h.sessions.Scrollback(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "data": data})
}

// CountSessions returns the number of live sessions.
func (h *Handlers) CountSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.sessions.Count()})
}

// writeError maps manager errors onto HTTP statuses: a failed spawn is
// the service's fault (500), a missing session is the caller's (404),
// a closed one a conflict (409), and a live-handle I/O failure a bad
// upstream (502).
func (h *Handlers) writeError(c *gin.Context, err error) {
	var setupErr *terminal.SetupError
	var ioErr *terminal.IOError

	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, terminal.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &setupErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "step": setupErr.Step})
	case errors.As(err, &ioErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
