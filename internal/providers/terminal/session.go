package terminal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Observer receives session lifecycle and command outcomes. The monitoring
// package implements it with Prometheus collectors.
type Observer interface {
	SessionOpened()
	SessionClosed(kind ErrorKind)
	CommandCompleted(status string, duration time.Duration)
}

// Command completion statuses reported to the Observer
const (
	StatusOK     = "ok"
	StatusStderr = "stderr"
	StatusFailed = "failed"
)

type nopObserver struct{}

func (nopObserver) SessionOpened()                         {}
func (nopObserver) SessionClosed(ErrorKind)                {}
func (nopObserver) CommandCompleted(string, time.Duration) {}

// sessionOptions configures a session loop
type sessionOptions struct {
	Shell         string
	WorkingDir    string
	Delimiter     string
	ErrorMarker   string
	ReadyFallback time.Duration
	Logger        *zap.Logger
	Observer      Observer
	// OnClose runs on the session loop before any pending command learns
	// of the failure, so the registry never hands out a dead session.
	OnClose func(s *Session, err error)
}

// Session is one long-lived shell and the queue of commands feeding it.
//
// All framing and queue state is owned by the run goroutine; callers talk to
// it through channels. Only the introspection snapshot is shared under mu.
type Session struct {
	ID         string
	Shell      string
	WorkingDir string
	StartedAt  time.Time

	proc          Process
	framer        *Framer
	queue         Queue
	inFlight      *pendingCommand
	primed        bool
	ready         *readiness
	readyFallback time.Duration

	submitCh chan *pendingCommand
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	closeErr error

	onClose  func(*Session, error)
	observer Observer
	logger   *zap.Logger

	mu          sync.RWMutex
	state       State
	currentPath string
	lastActive  time.Time
	pending     atomic.Int32
}

func newSession(id string, proc Process, opts sessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	now := time.Now()
	return &Session{
		ID:            id,
		Shell:         opts.Shell,
		WorkingDir:    opts.WorkingDir,
		StartedAt:     now,
		proc:          proc,
		framer:        NewFramer(opts.Delimiter, opts.ErrorMarker),
		ready:         newReadiness(),
		readyFallback: opts.ReadyFallback,
		submitCh:      make(chan *pendingCommand),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		onClose:       opts.OnClose,
		observer:      observer,
		logger:        logger.With(zap.String("session_id", id), zap.Int("pid", proc.PID())),
		state:         StateAwaitingReadiness,
		currentPath:   opts.WorkingDir,
		lastActive:    now,
	}
}

// start launches the session loop.
func (s *Session) start() {
	s.observer.SessionOpened()
	s.logger.Info("Shell session started", zap.String("shell", s.Shell), zap.String("working_dir", s.WorkingDir))
	go s.run()
}

// Submit enqueues a command and waits for its framed result. It returns a
// failed Result rather than an error when the session dies or ctx ends
// first; a command already written to the shell keeps running either way.
func (s *Session) Submit(ctx context.Context, command string) Result {
	cmd := newPendingCommand(command)
	s.touch()
	s.pending.Add(1)

	select {
	case s.submitCh <- cmd:
	case <-s.done:
		s.pending.Add(-1)
		return failedResult(s.closeErr)
	case <-ctx.Done():
		s.pending.Add(-1)
		return failedResult(contextError(ctx, s.ID))
	}

	select {
	case r := <-cmd.done:
		return r
	case <-ctx.Done():
		return failedResult(contextError(ctx, s.ID))
	}
}

// Ready blocks until the shell finished its readiness handshake.
func (s *Session) Ready(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// Close terminates the shell and fails everything still pending. It is
// idempotent and returns once the session loop has stopped.
func (s *Session) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Done is closed once the session has stopped for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session stopped, or nil while it is running.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.closeErr
	default:
		return nil
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pending returns the number of queued and in-flight commands.
func (s *Session) Pending() int {
	return int(s.pending.Load())
}

// LastActive returns when a command was last submitted or completed.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:          s.ID,
		Shell:       s.Shell,
		WorkingDir:  s.WorkingDir,
		CurrentPath: s.currentPath,
		State:       s.state.String(),
		PID:         s.proc.PID(),
		Pending:     int(s.pending.Load()),
		StartedAt:   s.StartedAt,
		LastActive:  s.lastActive,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) run() {
	fallback := time.NewTimer(s.readyFallback)
	defer fallback.Stop()
	fallbackC := fallback.C

	events := s.proc.Events()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				s.shutdown(s.deathKind(), ErrProcessExited)
				return
			}
			if stopped := s.handleEvent(ev); stopped {
				return
			}
			if fallbackC != nil && s.State() != StateAwaitingReadiness {
				fallback.Stop()
				fallbackC = nil
			}

		case <-fallbackC:
			fallbackC = nil
			if stopped := s.prime("fallback_timer"); stopped {
				return
			}

		case cmd := <-s.submitCh:
			s.queue.Push(cmd)
			s.dispatch()

		case <-s.quit:
			s.shutdown(KindTerminated, ErrSessionClosed)
			return
		}
	}
}

// handleEvent applies one process event. It reports whether the session stopped.
func (s *Session) handleEvent(ev ProcessEvent) bool {
	switch ev.Type {
	case EventSpawned:
		return s.prime("spawned")

	case EventData:
		s.framer.Append(ev.Data)
		s.drainFrames()

	case EventErrorData:
		s.framer.AppendError(ev.Data)
		if s.State() == StateAwaitingReadiness {
			if stray, ok := s.framer.StrayStderr(); ok {
				s.shutdown(KindReadiness, fmt.Errorf("%w: stderr before first prompt: %q", ErrNotReady, stray))
				return true
			}
		}
		s.drainFrames()

	case EventProcessError:
		s.shutdown(s.deathKind(), fmt.Errorf("%w: %v", ErrProcessExited, ev.Err))
		return true

	case EventExited:
		s.shutdown(s.deathKind(), fmt.Errorf("%w: exit code %d", ErrProcessExited, ev.ExitCode))
		return true
	}
	return false
}

func (s *Session) deathKind() ErrorKind {
	if s.State() == StateAwaitingReadiness {
		return KindReadiness
	}
	return KindProcessDeath
}

// prime writes the readiness trailer. Only the first trigger, spawn event or
// fallback timer, writes; the other finds primed set and does nothing.
func (s *Session) prime(trigger string) bool {
	if s.primed || s.State() != StateAwaitingReadiness {
		return false
	}
	s.primed = true

	s.logger.Debug("Priming shell", zap.String("trigger", trigger))
	if err := s.proc.Write(s.framer.Trailer()); err != nil {
		s.shutdown(KindReadiness, fmt.Errorf("%w: %v", ErrNotReady, err))
		return true
	}
	return false
}

func (s *Session) drainFrames() {
	for {
		frame, ok := s.framer.Next()
		if !ok {
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(frame Frame) {
	switch {
	case s.State() == StateAwaitingReadiness:
		s.mu.Lock()
		s.currentPath = frame.CurrentPath
		s.state = StateReady
		s.mu.Unlock()

		s.ready.resolve(nil)
		s.logger.Info("Shell session ready", zap.String("current_path", frame.CurrentPath))
		s.dispatch()

	case s.inFlight != nil:
		cmd := s.inFlight
		s.inFlight = nil

		result := Result{Output: frame.Output, CurrentPath: frame.CurrentPath}
		status := StatusOK
		if frame.HasError {
			msg := frame.Stderr
			if msg == "" {
				msg = "command wrote to stderr"
			}
			result.Error = &msg
			status = StatusStderr
		}

		s.mu.Lock()
		s.currentPath = frame.CurrentPath
		s.state = StateReady
		s.lastActive = time.Now()
		s.mu.Unlock()

		s.complete(cmd, result, status)
		s.dispatch()

	default:
		s.logger.Warn("Delimiter received with no command in flight", zap.Int("output_bytes", len(frame.Output)))
	}
}

// dispatch writes the next queued command when the shell is idle.
func (s *Session) dispatch() {
	for s.inFlight == nil && s.State() == StateReady && s.queue.Len() > 0 {
		cmd := s.queue.Pop()

		if err := s.proc.Write(s.framer.Frame(cmd.text)); err != nil {
			s.logger.Warn("Failed to write command", zap.Error(err))
			s.complete(cmd, failedResult(newSessionError(KindWrite, s.ID, err)), StatusFailed)
			continue
		}

		s.inFlight = cmd
		s.setState(StateDraining)
	}
}

func (s *Session) complete(cmd *pendingCommand, r Result, status string) {
	s.pending.Add(-1)
	s.observer.CommandCompleted(status, time.Since(cmd.submitted))
	cmd.resolve(r)
}

// shutdown moves the session to its terminal state. Registry removal happens
// first, then readiness, the in-flight command and the queue all fail.
func (s *Session) shutdown(kind ErrorKind, cause error) {
	serr := newSessionError(kind, s.ID, cause)

	final := StateClosed
	if kind == KindReadiness {
		final = StateFailed
	}
	s.setState(final)
	s.closeErr = serr

	if s.onClose != nil {
		s.onClose(s, serr)
	}

	if err := s.proc.Terminate(); err != nil {
		s.logger.Warn("Failed to terminate shell", zap.Error(err))
	}
	s.ready.resolve(serr)

	failed := 0
	if s.inFlight != nil {
		s.complete(s.inFlight, failedResult(serr), StatusFailed)
		s.inFlight = nil
		failed++
	}
	for _, cmd := range s.queue.Drain() {
		s.complete(cmd, failedResult(serr), StatusFailed)
		failed++
	}
	s.framer.Reset()

	s.observer.SessionClosed(kind)
	if kind == KindTerminated {
		s.logger.Info("Shell session terminated", zap.Int("failed_commands", failed))
	} else {
		s.logger.Warn("Shell session stopped", zap.String("kind", string(kind)), zap.Error(cause), zap.Int("failed_commands", failed))
	}

	close(s.done)
}
