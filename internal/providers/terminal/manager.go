package terminal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/codeshell/internal/infrastructure/resilience"
)

// Config holds the shell and lifecycle settings shared by every session
type Config struct {
	ShellPath     string
	ShellArgs     []string
	WorkDir       string
	Env           []string
	Delimiter     string
	ErrorMarker   string
	ReadyFallback time.Duration
	IdleTimeout   time.Duration
	MaxSessions   int

	SpawnFailureThreshold uint32
	SpawnCooldown         time.Duration
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		ShellPath:             "/bin/bash",
		ShellArgs:             []string{"--noprofile", "--norc", "-s"},
		WorkDir:               "./workspace",
		ErrorMarker:           "[stderr] ",
		ReadyFallback:         500 * time.Millisecond,
		IdleTimeout:           30 * time.Minute,
		MaxSessions:           64,
		SpawnFailureThreshold: 5,
		SpawnCooldown:         30 * time.Second,
	}
}

var processDelimiter = sync.OnceValue(func() string {
	id := uuid.New()
	return "__CODESHELL_DONE_" + hex.EncodeToString(id[:]) + "__"
})

// ProcessDelimiter returns the delimiter generated for this process.
func ProcessDelimiter() string {
	return processDelimiter()
}

// Manager is the session registry. It owns every live session, creates them
// on first use and forgets them as soon as their shell stops.
type Manager struct {
	cfg      Config
	spawn    Spawner
	logger   *zap.Logger
	observer Observer
	breaker  *resilience.Breaker
	creating singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
	// reserved counts creations past the session cap check that have not
	// registered yet.
	reserved int

	stop      chan struct{}
	closeOnce sync.Once
	janitor   sync.WaitGroup
}

// Option customizes a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithSpawner replaces the process launcher
func WithSpawner(spawn Spawner) Option {
	return func(m *Manager) {
		m.spawn = spawn
	}
}

// NewManager creates a session registry and starts idle eviction when
// cfg.IdleTimeout is set.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ProcessDelimiter()
	}
	if cfg.ReadyFallback <= 0 {
		cfg.ReadyFallback = DefaultConfig().ReadyFallback
	}

	m := &Manager{
		cfg:      cfg,
		spawn:    SpawnShell,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.breaker = resilience.New("shell-spawn", resilience.Settings{
		FailureThreshold: cfg.SpawnFailureThreshold,
		Cooldown:         cfg.SpawnCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			m.logger.Warn("Spawn breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	if cfg.IdleTimeout > 0 {
		m.janitor.Add(1)
		go m.evictLoop()
	}

	return m
}

// Delimiter returns the framing delimiter used by this manager's sessions.
func (m *Manager) Delimiter() string {
	return m.cfg.Delimiter
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Exists reports whether id names a live session.
func (m *Manager) Exists(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// GetOrCreate returns the session for id, spawning a shell if there is none.
// Concurrent calls for the same id share one creation. A failure is a
// creation SessionError and no session is registered.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if s, ok := m.Get(id); ok {
		return s, nil
	}

	v, err, _ := m.creating.Do(id, func() (interface{}, error) {
		if s, ok := m.Get(id); ok {
			return s, nil
		}
		return m.create(id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) create(id string) (*Session, error) {
	select {
	case <-m.stop:
		return nil, newSessionError(KindCreation, id, ErrSessionClosed)
	default:
	}
	if err := m.reserve(id); err != nil {
		return nil, err
	}

	var proc Process
	var shellPath, workDir string
	err := m.breaker.Execute(func() error {
		var err error
		if shellPath, err = m.resolveShell(); err != nil {
			return err
		}
		if workDir, err = m.ensureWorkDir(); err != nil {
			return err
		}
		proc, err = m.spawn(SpawnOptions{
			Path: shellPath,
			Args: m.cfg.ShellArgs,
			Dir:  workDir,
			Env:  m.cfg.Env,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTrialPending) {
			err = fmt.Errorf("%w: %w", ErrSpawnFailed, err)
		}
		m.unreserve()
		m.logger.Error("Failed to create shell session", zap.String("session_id", id), zap.Error(err))
		return nil, newSessionError(KindCreation, id, err)
	}

	s := newSession(id, proc, sessionOptions{
		Shell:         shellPath,
		WorkingDir:    workDir,
		Delimiter:     m.cfg.Delimiter,
		ErrorMarker:   m.cfg.ErrorMarker,
		ReadyFallback: m.cfg.ReadyFallback,
		Logger:        m.logger,
		Observer:      m.observer,
		OnClose:       m.release,
	})

	m.mu.Lock()
	m.reserved--
	m.sessions[id] = s
	m.mu.Unlock()

	s.start()
	return s, nil
}

// reserve claims a slot under the session cap for a creation in progress.
func (m *Manager) reserve(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions)+m.reserved >= m.cfg.MaxSessions {
		return newSessionError(KindCreation, id, fmt.Errorf("%w: %d sessions", ErrTooManySessions, m.cfg.MaxSessions))
	}
	m.reserved++
	return nil
}

func (m *Manager) unreserve() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}

func (m *Manager) resolveShell() (string, error) {
	path, err := exec.LookPath(m.cfg.ShellPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, m.cfg.ShellPath, err)
	}
	return path, nil
}

// ensureWorkDir creates the project root when missing.
func (m *Manager) ensureWorkDir() (string, error) {
	dir, err := filepath.Abs(m.cfg.WorkDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWorkDirUnavailable, err)
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrWorkDirUnavailable, dir)
	case err == nil:
		return dir, nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("%w: %v", ErrWorkDirUnavailable, err)
		}
		m.logger.Info("Created session working directory", zap.String("dir", dir))
		return dir, nil
	default:
		return "", fmt.Errorf("%w: %v", ErrWorkDirUnavailable, err)
	}
}

// release drops s from the registry if it is still the registered session.
func (m *Manager) release(s *Session, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[s.ID]; ok && cur == s {
		delete(m.sessions, s.ID)
	}
}

// Submit runs command in the session named id, creating it if needed.
func (m *Manager) Submit(ctx context.Context, id, command string) Result {
	s, err := m.GetOrCreate(id)
	if err != nil {
		return failedResult(err)
	}
	return s.Submit(ctx, command)
}

// Start creates the session if needed and waits for its shell to be ready.
func (m *Manager) Start(ctx context.Context, id string) (SessionInfo, error) {
	s, err := m.GetOrCreate(id)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := s.Ready(ctx); err != nil {
		if KindOf(err) == "" && ctx.Err() != nil {
			err = contextError(ctx, id)
		}
		return s.Info(), err
	}
	return s.Info(), nil
}

// Terminate tears down the session named id. Unknown ids are not an error.
func (m *Manager) Terminate(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns a snapshot of every live session, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Pending returns the number of queued and in-flight commands across all sessions.
func (m *Manager) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := 0
	for _, s := range m.sessions {
		pending += s.Pending()
	}
	return pending
}

// Stats returns registry statistics
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"sessions":      m.Count(),
		"pending":       m.Pending(),
		"spawn_breaker": m.breaker.State().String(),
	}
}

// Close stops idle eviction and tears down every session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.janitor.Wait()

		m.mu.Lock()
		sessions := m.sessions
		m.sessions = make(map[string]*Session)
		m.mu.Unlock()

		var wg sync.WaitGroup
		for _, s := range sessions {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.Close()
			}(s)
		}
		wg.Wait()
		m.logger.Info("Closed all shell sessions", zap.Int("count", len(sessions)))
	})
}

func (m *Manager) evictLoop() {
	defer m.janitor.Done()

	interval := m.cfg.IdleTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

// evictIdle tears down sessions with nothing pending that have been idle
// longer than IdleTimeout. It returns the number evicted.
func (m *Manager) evictIdle(now time.Time) int {
	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.Pending() == 0 && now.Sub(s.LastActive()) > m.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.logger.Info("Evicting idle shell session", zap.String("session_id", id))
		m.Terminate(id)
	}
	return len(idle)
}
