// Package terminaltest provides a scripted shell for testing code built on
// the terminal package without spawning real processes.
package terminaltest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
)

// Delimiter is the frame delimiter Config configures.
const Delimiter = "__TERMINALTEST_DONE__"

// Config returns manager settings for a scripted shell. The shell path is
// the test binary so executable lookup succeeds.
func Config(t testing.TB) terminal.Config {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}

	cfg := terminal.DefaultConfig()
	cfg.ShellPath = exe
	cfg.WorkDir = filepath.Join(t.TempDir(), "project")
	cfg.Delimiter = Delimiter
	cfg.IdleTimeout = 0
	return cfg
}

// Script maps commands to the output a Shell produces for them. Commands
// without an entry print nothing. "cd DIR" changes the reported cwd and
// "exit" ends the process.
type Script struct {
	Stdout map[string]string
	Stderr map[string]string
	// Hang lists commands that never finish.
	Hang map[string]bool
}

// Spawner hands out scripted shells. Its Spawn method is a terminal.Spawner.
type Spawner struct {
	Script Script

	mu     sync.Mutex
	shells []*Shell
	err    error
}

// NewSpawner returns a spawner whose shells follow script.
func NewSpawner(script Script) *Spawner {
	return &Spawner{Script: script}
}

// Fail makes subsequent spawns return err.
func (s *Spawner) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Spawn starts a scripted shell in opts.Dir.
func (s *Spawner) Spawn(opts terminal.SpawnOptions) (terminal.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	sh := &Shell{
		pid:    1000 + len(s.shells),
		cwd:    opts.Dir,
		script: s.Script,
		framer: terminal.NewFramer(Delimiter, ""),
		events: make(chan terminal.ProcessEvent, 256),
	}
	sh.events <- terminal.ProcessEvent{Type: terminal.EventSpawned}
	s.shells = append(s.shells, sh)
	return sh, nil
}

// Count returns how many shells were spawned.
func (s *Spawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shells)
}

// Shell returns the i-th spawned shell.
func (s *Spawner) Shell(i int) *Shell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shells[i]
}

// Shell is a scripted terminal.Process.
type Shell struct {
	pid    int
	script Script
	framer *terminal.Framer

	mu         sync.Mutex
	cwd        string
	commands   []string
	closed     bool
	terminated bool
	events     chan terminal.ProcessEvent
}

func (sh *Shell) PID() int                             { return sh.pid }
func (sh *Shell) Events() <-chan terminal.ProcessEvent { return sh.events }

func (sh *Shell) Write(input string) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.closed {
		return terminal.ErrWriteFailed
	}

	cmd := strings.TrimSuffix(strings.TrimSuffix(input, sh.framer.Trailer()), "\n")
	sh.commands = append(sh.commands, cmd)

	switch {
	case cmd == "exit":
		sh.emit(terminal.ProcessEvent{Type: terminal.EventExited})
		sh.close()
		return nil
	case sh.script.Hang[cmd]:
		return nil
	}

	if dir, ok := strings.CutPrefix(cmd, "cd "); ok {
		sh.cwd = dir
	}
	sh.emit(terminal.ProcessEvent{
		Type: terminal.EventData,
		Data: sh.script.Stdout[cmd] + "\n" + sh.cwd + "\n" + Delimiter + "\n",
	})
	sh.emit(terminal.ProcessEvent{
		Type: terminal.EventErrorData,
		Data: sh.script.Stderr[cmd] + Delimiter + "\n",
	})
	return nil
}

func (sh *Shell) Terminate() error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.terminated = true
	sh.close()
	return nil
}

// Terminated reports whether Terminate was called.
func (sh *Shell) Terminated() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.terminated
}

// Commands returns every command written, the empty priming write included.
func (sh *Shell) Commands() []string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return append([]string(nil), sh.commands...)
}

func (sh *Shell) emit(ev terminal.ProcessEvent) {
	if !sh.closed {
		sh.events <- ev
	}
}

func (sh *Shell) close() {
	if !sh.closed {
		sh.closed = true
		close(sh.events)
	}
}

var _ terminal.Process = (*Shell)(nil)
