package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
	"github.com/GriffinCanCode/codeshell/internal/shared/types"
	"github.com/GriffinCanCode/codeshell/internal/utils"
)

// statusClientClosedRequest is reported when the caller went away before
// its command finished.
const statusClientClosedRequest = 499

// StatusFor maps a session failure to an HTTP status code
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch terminal.KindOf(err) {
	case terminal.KindCreation:
		if errors.Is(err, terminal.ErrTooManySessions) {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case terminal.KindReadiness, terminal.KindWrite, terminal.KindProcessDeath:
		return http.StatusBadGateway
	case terminal.KindTimeout:
		return http.StatusGatewayTimeout
	case terminal.KindTerminated:
		return http.StatusConflict
	case terminal.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// ExecuteCommand runs one command in a session, creating it on first use
func (h *Handlers) ExecuteCommand(c *gin.Context) {
	var req types.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSessionID(req.SessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateCommand(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := h.terminal.Run(c.Request.Context(), req.SessionID, req.Command)

	resp := types.CommandResponse{
		SessionID:   req.SessionID,
		Output:      r.Output,
		CurrentPath: r.CurrentPath,
		Error:       r.Error,
	}
	if r.Failed() {
		resp.Kind = string(terminal.KindOf(r.Err))
		h.logger.Warn("Command failed",
			zap.String("session_id", req.SessionID),
			zap.String("kind", resp.Kind),
			zap.Error(r.Err),
		)
	}
	c.JSON(StatusFor(r.Err), resp)
}

// StartSession starts a session and waits until it accepts commands
func (h *Handlers) StartSession(c *gin.Context) {
	var req types.StartSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.SessionID != "" {
		if err := utils.ValidateSessionID(req.SessionID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	info, err := h.terminal.Start(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(StatusFor(err), gin.H{
			"error":   err.Error(),
			"kind":    string(terminal.KindOf(err)),
			"session": info,
		})
		return
	}

	c.JSON(http.StatusCreated, info)
}

// TerminateSession kills a session. Unknown sessions succeed too.
func (h *Handlers) TerminateSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := utils.ValidateSessionID(sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.terminal.Terminate(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
	})
}

// ListSessions lists live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.terminal.Manager().List()

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := utils.ValidateSessionID(sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, ok := h.terminal.Manager().Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, session.Info())
}
