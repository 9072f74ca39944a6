package terminal

import (
	"time"
)

// State is the lifecycle state of a session
type State int

const (
	StateCreating State = iota
	StateAwaitingReadiness
	StateReady
	StateDraining
	StateClosed
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateAwaitingReadiness:
		return "awaiting_readiness"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further commands can run in this state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Result is the outcome of one submitted command.
//
// Error is set when the command wrote to stderr or when the session failed
// before the command could complete. Err keeps the classified cause for
// transports that map failures to status codes.
type Result struct {
	Output      string  `json:"output"`
	CurrentPath string  `json:"current_path"`
	Error       *string `json:"error"`

	Err error `json:"-"`
}

// Failed reports whether the command did not produce a framed result.
func (r Result) Failed() bool {
	return r.Err != nil
}

func failedResult(err error) Result {
	msg := err.Error()
	return Result{Error: &msg, Err: err}
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID          string    `json:"id"`
	Shell       string    `json:"shell"`
	WorkingDir  string    `json:"working_dir"`
	CurrentPath string    `json:"current_path"`
	State       string    `json:"state"`
	PID         int       `json:"pid"`
	Pending     int       `json:"pending"`
	StartedAt   time.Time `json:"started_at"`
	LastActive  time.Time `json:"last_active"`
}

// pendingCommand is one queued submission. done is buffered so the session
// loop never blocks on a caller that stopped waiting.
type pendingCommand struct {
	text      string
	submitted time.Time
	done      chan Result
}

func newPendingCommand(text string) *pendingCommand {
	return &pendingCommand{
		text:      text,
		submitted: time.Now(),
		done:      make(chan Result, 1),
	}
}

func (c *pendingCommand) resolve(r Result) {
	select {
	case c.done <- r:
	default:
	}
}
