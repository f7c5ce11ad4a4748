package ws

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // single-user daemon, origin enforcement is CORS's job
	},
}

// Commands is the slice of the session manager the WebSocket surface
// drives. Close never fails, which the signature encodes.
type Commands interface {
	Spawn(rows, cols uint16, workingDir string) (string, error)
	Write(id string, data []byte) error
	Resize(id string, rows, cols uint16) error
	Close(id string)
	Count() int
}

// Message is an inbound client command frame.
type Message struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	Data       string `json:"data,omitempty"`
	Rows       uint16 `json:"rows,omitempty"`
	Cols       uint16 `json:"cols,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
}

// Handler serves the /stream endpoint: it upgrades connections,
// registers them with the hub for event broadcast, and executes
// command frames against the session manager, answering inline.
type Handler struct {
	hub      *Hub
	commands Commands
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a WebSocket handler bound to hub and commands.
func NewHandler(hub *Hub, commands Commands, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		hub:      hub,
		commands: commands,
		logger:   logger.Named("ws"),
		metrics:  metrics,
	}
}

// HandleConnection upgrades the request and services it until the
// client hangs up. Events stream out through the hub; command frames
// are handled here on the read loop.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := h.hub.add(conn)
	defer h.hub.drop(client)

	h.reply(client, gin.H{
		"type":     "system",
		"message":  "connected",
		"sessions": h.commands.Count(),
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed",
					zap.String("conn_id", client.id),
					zap.Error(err),
				)
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		h.dispatch(client, msg)
	}
}

// dispatch executes one command frame and answers it.
func (h *Handler) dispatch(client *client, msg Message) {
	switch msg.Type {
	case "spawn":
		id, err := h.commands.Spawn(msg.Rows, msg.Cols, msg.WorkingDir)
		if err != nil {
			h.replyError(client, err)
			return
		}
		h.reply(client, gin.H{"type": "spawned", "session_id": id})

	case "write":
		if msg.SessionID == "" {
			h.replyErrorMsg(client, "session_id is required")
			return
		}
		if err := h.commands.Write(msg.SessionID, []byte(msg.Data)); err != nil {
			h.replyError(client, err)
		}

	case "resize":
		if msg.SessionID == "" {
			h.replyErrorMsg(client, "session_id is required")
			return
		}
		if err := h.commands.Resize(msg.SessionID, msg.Rows, msg.Cols); err != nil {
			h.replyError(client, err)
			return
		}
		h.reply(client, gin.H{"type": "resized", "session_id": msg.SessionID})

	case "close":
		h.commands.Close(msg.SessionID)
		h.reply(client, gin.H{"type": "closed", "session_id": msg.SessionID})

	case "ping":
		h.reply(client, gin.H{"type": "pong"})

	default:
		h.replyErrorMsg(client, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) reply(client *client, payload gin.H) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		h.logger.Error("reply marshal failed", zap.Error(err))
		return
	}
	if !client.enqueue(body) {
		h.hub.drop(client)
	}
}

func (h *Handler) replyError(client *client, err error) {
	h.reply(client, gin.H{"type": "error", "error": err.Error()})
}

func (h *Handler) replyErrorMsg(client *client, msg string) {
	h.reply(client, gin.H{"type": "error", "error": msg})
}
