package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/codeshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
	"github.com/GriffinCanCode/codeshell/internal/shared/types"
	"github.com/GriffinCanCode/codeshell/internal/utils"
)

// Frame types
const (
	TypeExecute    = "execute"
	TypeTerminate  = "terminate"
	TypePing       = "ping"
	TypeResult     = "result"
	TypeTerminated = "terminated"
	TypePong       = "pong"
	TypeError      = "error"
	TypeSystem     = "system"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware guards the HTTP surface
	},
}

// Handler manages WebSocket connections
type Handler struct {
	terminal  *terminal.Provider
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	validator *utils.JSONSizeValidator
}

// NewHandler creates a new WebSocket handler
func NewHandler(provider *terminal.Provider, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		terminal:  provider,
		metrics:   metrics,
		logger:    logger,
		validator: utils.DefaultJSONValidator(),
	}
}

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (c *conn) send(reply types.WSReply) error {
	reply.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(reply)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", reply.Type)
	return nil
}

func (c *conn) sendError(requestID, msg string) error {
	return c.send(types.WSReply{Type: TypeError, RequestID: requestID, Message: msg})
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(utils.MaxJSONSize)

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	// Commands outlive a single frame but not the connection.
	ctx, cancel := context.WithCancel(c.Request.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		ws.Close()
	}()

	out := &conn{ws: ws, metrics: h.metrics}
	out.send(types.WSReply{Type: TypeSystem, Message: "connected"})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		if err := h.validator.ValidateSize(data); err != nil {
			out.sendError("", err.Error())
			continue
		}
		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			out.sendError("", "malformed message")
			continue
		}

		switch msg.Type {
		case TypeExecute:
			h.metrics.RecordWSMessage("in", msg.Type)
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				h.handleExecute(ctx, out, msg)
			}()
		case TypeTerminate:
			h.metrics.RecordWSMessage("in", msg.Type)
			h.handleTerminate(out, msg)
		case TypePing:
			h.metrics.RecordWSMessage("in", msg.Type)
			out.send(types.WSReply{Type: TypePong, RequestID: msg.RequestID})
		default:
			h.metrics.RecordWSMessage("in", "unknown")
			out.sendError(msg.RequestID, "unknown message type")
		}
	}
}

func (h *Handler) handleExecute(ctx context.Context, out *conn, msg types.WSMessage) {
	if err := utils.ValidateSessionID(msg.SessionID); err != nil {
		out.sendError(msg.RequestID, err.Error())
		return
	}
	if err := utils.ValidateCommand(msg.Command); err != nil {
		out.sendError(msg.RequestID, err.Error())
		return
	}

	r := h.terminal.Run(ctx, msg.SessionID, msg.Command)
	if r.Failed() {
		h.logger.Session("ws", msg.SessionID).Warn("Command failed",
			zap.String("request_id", msg.RequestID),
			zap.Error(r.Err),
		)
	}

	out.send(types.WSReply{
		Type:        TypeResult,
		RequestID:   msg.RequestID,
		SessionID:   msg.SessionID,
		Output:      r.Output,
		CurrentPath: r.CurrentPath,
		Error:       r.Error,
		Kind:        string(terminal.KindOf(r.Err)),
	})
}

func (h *Handler) handleTerminate(out *conn, msg types.WSMessage) {
	if err := utils.ValidateSessionID(msg.SessionID); err != nil {
		out.sendError(msg.RequestID, err.Error())
		return
	}

	h.terminal.Terminate(msg.SessionID)
	out.send(types.WSReply{
		Type:      TypeTerminated,
		RequestID: msg.RequestID,
		SessionID: msg.SessionID,
	})
}
