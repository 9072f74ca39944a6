package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrTrialPending = errors.New("circuit breaker trial in progress")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before allowing one trial
	Cooldown time.Duration
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Breaker fails calls fast after repeated consecutive failures.
type Breaker struct {
	name     string
	settings Settings

	mu           sync.Mutex
	state        State
	failures     uint32
	openedAt     time.Time
	trialRunning bool
	now          func() time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentState()
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failures
}

// Execute runs fn unless the breaker is open. While half-open only one call
// runs at a time; its outcome closes or re-opens the breaker.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.trialRunning {
			return ErrTrialPending
		}
		b.trialRunning = true
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()
	if state == StateHalfOpen {
		b.trialRunning = false
	}

	if success {
		b.failures = 0
		if state != StateClosed {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	if state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.setState(StateOpen)
	}
}

// currentState promotes an expired open breaker to half-open. Callers hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state

	switch state {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
