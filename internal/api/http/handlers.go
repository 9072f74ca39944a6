package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/codeshell/internal/domain/service"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
	"github.com/GriffinCanCode/codeshell/internal/shared/types"
	"github.com/GriffinCanCode/codeshell/internal/utils"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

const defaultDiscoverLimit = 5

// Handlers contains all HTTP handlers
type Handlers struct {
	terminal *terminal.Provider
	registry *service.Registry
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(
	provider *terminal.Provider,
	registry *service.Registry,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		terminal: provider,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "codeshell",
		"version": Version,
	})
}

// Health handles the detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"terminal":         h.terminal.Manager().Stats(),
		"service_registry": h.registry.Stats(),
	})
}

// Stats returns the metrics snapshot as JSON
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListServices lists all available services
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		cat := types.Category(raw)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// DiscoverServices finds services relevant to a query
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req types.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"services": h.registry.Discover(req.Query, limit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateParams(req.Params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	serviceID, _, _ := strings.Cut(req.ToolID, ".")
	timer := monitoring.NewTimer(h.metrics, serviceID, req.ToolID)

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, req.Context)
	if err != nil {
		timer.Stop("error")
		h.logger.Warn("Tool call failed", zap.String("tool_id", req.ToolID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if result.Success {
		timer.Stop("success")
	} else {
		timer.Stop("failure")
	}
	c.JSON(http.StatusOK, result)
}
