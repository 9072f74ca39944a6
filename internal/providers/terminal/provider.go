package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/codeshell/internal/shared/id"
	"github.com/GriffinCanCode/codeshell/internal/shared/types"
)

// Provider exposes shell sessions to transports and to the assistant's tool
// registry. It owns the per-command timeout policy: the core never times a
// command out, so an expired command tears its session down here.
type Provider struct {
	manager *Manager
	timeout time.Duration
	logger  *zap.Logger
}

// NewProvider creates a new terminal provider
func NewProvider(manager *Manager, commandTimeout time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		manager: manager,
		timeout: commandTimeout,
		logger:  logger,
	}
}

// Manager returns the session registry behind the provider
func (p *Provider) Manager() *Manager {
	return p.manager
}

// Run submits command to the session and waits for its result, bounded by
// the configured command timeout.
func (p *Provider) Run(ctx context.Context, sessionID, command string) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result := p.manager.Submit(ctx, sessionID, command)
	if errors.Is(result.Err, context.DeadlineExceeded) {
		// The command is still running in the shell and cannot be recalled.
		p.logger.Warn("Command timed out, terminating session",
			zap.String("session_id", sessionID),
			zap.Duration("timeout", p.timeout),
		)
		p.manager.Terminate(sessionID)
	}
	return result
}

// Start creates a session (generating an ID when empty) and waits until it is ready.
func (p *Provider) Start(ctx context.Context, sessionID string) (SessionInfo, error) {
	if sessionID == "" {
		sessionID = id.NewSessionID().String()
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.manager.Start(ctx, sessionID)
}

// Terminate tears the session down. It always succeeds.
func (p *Provider) Terminate(sessionID string) {
	p.manager.Terminate(sessionID)
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Persistent shell sessions for running commands in the project workspace",
		Category:    types.CategoryTerminal,
		Capabilities: []string{
			"shell",
			"run_command",
			"sessions",
			"working_directory",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.execute":
		return p.execute(ctx, params)
	case "terminal.start_session":
		return p.startSession(ctx, params)
	case "terminal.terminate":
		return p.terminate(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	sessionParam := types.Parameter{
		Name:        "session_id",
		Type:        "string",
		Description: "Terminal session ID",
		Required:    true,
	}

	return []types.Tool{
		{
			ID:          "terminal.execute",
			Name:        "Run Shell Command",
			Description: "Run a command in a persistent shell session, creating the session if needed",
			Parameters: []types.Parameter{
				sessionParam,
				{
					Name:        "command",
					Type:        "string",
					Description: "Command line to run",
					Required:    true,
				},
			},
			Returns: "command_result",
		},
		{
			ID:          "terminal.start_session",
			Name:        "Start Terminal Session",
			Description: "Start a shell session and wait until it accepts commands",
			Parameters: []types.Parameter{
				{
					Name:        "session_id",
					Type:        "string",
					Description: "Session ID. Generated when omitted",
					Required:    false,
				},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.terminate",
			Name:        "Terminate Terminal Session",
			Description: "Kill a shell session and fail its pending commands",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "success",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Terminal Sessions",
			Description: "List all live shell sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Session Info",
			Description: "Get information about a shell session",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "session_info",
		},
	}
}

func (p *Provider) execute(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	command, ok := params["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command is required")
	}

	r := p.Run(ctx, sessionID, command)

	return &types.Result{
		Success: !r.Failed(),
		Data: map[string]interface{}{
			"output":       r.Output,
			"current_path": r.CurrentPath,
		},
		Error: r.Error,
	}, nil
}

func (p *Provider) startSession(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	sessionID, _ := params["session_id"].(string)

	info, err := p.Start(ctx, sessionID)
	if err != nil {
		return types.Failure(err.Error()), nil
	}

	return &types.Result{
		Success: true,
		Data:    sessionData(info),
	}, nil
}

func (p *Provider) terminate(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	p.Terminate(sessionID)

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) listSessions() (*types.Result, error) {
	sessions := p.manager.List()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		},
	}, nil
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	session, ok := p.manager.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	return &types.Result{
		Success: true,
		Data:    sessionData(session.Info()),
	}, nil
}

func sessionData(info SessionInfo) map[string]interface{} {
	return map[string]interface{}{
		"id":           info.ID,
		"shell":        info.Shell,
		"working_dir":  info.WorkingDir,
		"current_path": info.CurrentPath,
		"state":        info.State,
		"pid":          info.PID,
		"pending":      info.Pending,
		"started_at":   info.StartedAt,
		"last_active":  info.LastActive,
	}
}
