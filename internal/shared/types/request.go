package types

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID  string                 `json:"tool_id" binding:"required"`
	Params  map[string]interface{} `json:"params"`
	Context *Context               `json:"context,omitempty"`
}

// CommandRequest submits one shell command to a session
type CommandRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Command   string `json:"command"`
}

// CommandResponse is the result of one command. Error is set when the
// command wrote to stderr or the session failed; Kind only for the latter.
type CommandResponse struct {
	SessionID   string  `json:"session_id"`
	Output      string  `json:"output"`
	CurrentPath string  `json:"current_path"`
	Error       *string `json:"error"`
	Kind        string  `json:"kind,omitempty"`
}

// StartSessionRequest starts a session explicitly; an empty ID is generated
type StartSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Command   string `json:"command,omitempty"`
}

// WSReply is sent back for every WebSocket message
type WSReply struct {
	Type        string  `json:"type"`
	RequestID   string  `json:"request_id,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
	Output      string  `json:"output,omitempty"`
	CurrentPath string  `json:"current_path,omitempty"`
	Error       *string `json:"error,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Message     string  `json:"message,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// DiscoverRequest asks which services match a natural language intent
type DiscoverRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}
