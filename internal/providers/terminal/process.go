package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a process lifecycle or output event
type EventType int

const (
	EventData EventType = iota
	EventErrorData
	EventSpawned
	EventProcessError
	EventExited
)

func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventErrorData:
		return "error_data"
	case EventSpawned:
		return "spawned"
	case EventProcessError:
		return "process_error"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// ProcessEvent is delivered on Process.Events in arrival order per stream
type ProcessEvent struct {
	Type     EventType
	Data     string
	Err      error
	ExitCode int
}

// Process is a running interactive shell owned by exactly one session.
type Process interface {
	PID() int
	// Events is closed after the final EventExited or EventProcessError.
	Events() <-chan ProcessEvent
	// Write sends input to the shell. It reports ErrWriteFailed instead of
	// panicking when the input stream is gone.
	Write(input string) error
	// Terminate stops the OS process. Safe to call more than once.
	Terminate() error
}

// SpawnOptions describes the shell to launch
type SpawnOptions struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Spawner launches a shell process. Tests substitute a fake.
type Spawner func(opts SpawnOptions) (Process, error)

const (
	eventBufferSize = 256
	pipeDrainDelay  = 2 * time.Second
)

type shellProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan ProcessEvent

	stop      chan struct{}
	exited    atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// SpawnShell starts opts.Path with stdin, stdout and stderr attached to pipes.
// Output is delivered as chunks on Events; stderr chunks are tagged
// EventErrorData so the session can flag them.
func SpawnShell(opts SpawnOptions) (Process, error) {
	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = pipeDrainDelay

	env := os.Environ()
	if abs, err := filepath.Abs(opts.Dir); err == nil {
		env = append(env, "PWD="+abs)
	}
	cmd.Env = append(env, opts.Env...)

	p := &shellProcess{
		cmd:    cmd,
		events: make(chan ProcessEvent, eventBufferSize),
		stop:   make(chan struct{}),
	}
	cmd.Stdout = &eventWriter{proc: p, typ: EventData}
	cmd.Stderr = &eventWriter{proc: p, typ: EventErrorData}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawnFailed, err)
	}
	p.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	// Start has returned, so the input pipe is open and writable.
	p.events <- ProcessEvent{Type: EventSpawned}

	go p.wait()

	return p, nil
}

func (p *shellProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *shellProcess) Events() <-chan ProcessEvent {
	return p.events
}

func (p *shellProcess) Write(input string) error {
	if p.exited.Load() {
		return fmt.Errorf("%w: process has exited", ErrWriteFailed)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := io.WriteString(p.stdin, input); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Terminate closes stdin and kills the process. No graceful signal is sent
// first: a shell blocked on a foreground command would ignore EOF anyway.
func (p *shellProcess) Terminate() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stop)
		p.stdin.Close()

		if p.exited.Load() || p.cmd.Process == nil {
			return
		}
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = kerr
		}
	})
	return err
}

func (p *shellProcess) wait() {
	err := p.cmd.Wait()
	p.exited.Store(true)

	var ev ProcessEvent
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		ev = ProcessEvent{Type: EventExited}
	case errors.As(err, &exitErr):
		ev = ProcessEvent{Type: EventExited, ExitCode: exitErr.ExitCode(), Err: err}
	default:
		ev = ProcessEvent{Type: EventProcessError, ExitCode: -1, Err: err}
	}

	p.emit(ev)
	close(p.events)
}

func (p *shellProcess) emit(ev ProcessEvent) {
	select {
	case p.events <- ev:
	case <-p.stop:
	}
}

// eventWriter turns the copy goroutines exec.Cmd runs for Stdout/Stderr into
// events. Writes are dropped once the owner has stopped listening.
type eventWriter struct {
	proc *shellProcess
	typ  EventType
}

func (w *eventWriter) Write(b []byte) (int, error) {
	w.proc.emit(ProcessEvent{Type: w.typ, Data: string(b)})
	return len(b), nil
}
