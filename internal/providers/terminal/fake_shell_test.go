package terminal

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDelimiter = "__TEST_DELIM__"

// fakeShell answers framed commands the way a shell running the trailer
// would. With auto off, the test drives output by hand.
type fakeShell struct {
	mu         sync.Mutex
	cwd        string
	auto       bool
	outputs    map[string]string
	stderr     map[string]string
	writes     []string
	writeErr   error
	closed     bool
	terminated atomic.Bool
	events     chan ProcessEvent
}

func newFakeShell(cwd string, auto bool) *fakeShell {
	return &fakeShell{
		cwd:     cwd,
		auto:    auto,
		outputs: make(map[string]string),
		stderr:  make(map[string]string),
		events:  make(chan ProcessEvent, 256),
	}
}

func (f *fakeShell) PID() int                    { return 4242 }
func (f *fakeShell) Events() <-chan ProcessEvent { return f.events }

func (f *fakeShell) Write(input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}
	if f.closed {
		return ErrWriteFailed
	}
	f.writes = append(f.writes, input)
	if f.auto {
		f.answerLocked(commandOf(input))
	}
	return nil
}

func (f *fakeShell) Terminate() error {
	f.terminated.Store(true)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
	return nil
}

// commandOf strips the trailer from a framed write. The priming write is
// just the trailer, so its command is empty.
func commandOf(input string) string {
	trailer := NewFramer(testDelimiter, "").Trailer()
	cmd := strings.TrimSuffix(input, trailer)
	return strings.TrimSuffix(cmd, "\n")
}

// answerLocked delivers stderr after the stdout delimiter, the order a reader
// of two pipes may observe.
func (f *fakeShell) answerLocked(cmd string) {
	if dir, ok := strings.CutPrefix(cmd, "cd "); ok {
		f.cwd = dir
	}
	f.emitLocked(ProcessEvent{Type: EventData, Data: f.outputs[cmd] + "\n" + f.cwd + "\n" + testDelimiter + "\n"})
	f.emitLocked(ProcessEvent{Type: EventErrorData, Data: f.stderr[cmd] + testDelimiter + "\n"})
}

// answer completes the oldest unanswered command by hand.
func (f *fakeShell) answer(output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(ProcessEvent{Type: EventData, Data: output + "\n" + f.cwd + "\n" + testDelimiter + "\n"})
	f.emitLocked(ProcessEvent{Type: EventErrorData, Data: testDelimiter + "\n"})
}

func (f *fakeShell) emit(ev ProcessEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(ev)
}

func (f *fakeShell) emitLocked(ev ProcessEvent) {
	if f.closed {
		return
	}
	f.events <- ev
}

func (f *fakeShell) exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(ProcessEvent{Type: EventExited, ExitCode: code})
	f.closeLocked()
}

func (f *fakeShell) closeLocked() {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeShell) failWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeShell) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeShell) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]string, 0, len(f.writes))
	for _, w := range f.writes {
		cmds = append(cmds, commandOf(w))
	}
	return cmds
}

type closeRecord struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *closeRecord) onClose(_ *Session, err error) {
	c.mu.Lock()
	c.calls++
	c.err = err
	c.mu.Unlock()
}

func (c *closeRecord) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingObserver records observer callbacks.
type countingObserver struct {
	opened    atomic.Int32
	closed    atomic.Int32
	completed sync.Map
}

func (o *countingObserver) SessionOpened()          { o.opened.Add(1) }
func (o *countingObserver) SessionClosed(ErrorKind) { o.closed.Add(1) }
func (o *countingObserver) CommandCompleted(status string, _ time.Duration) {
	v, _ := o.completed.LoadOrStore(status, new(atomic.Int32))
	v.(*atomic.Int32).Add(1)
}

func (o *countingObserver) count(status string) int32 {
	v, ok := o.completed.Load(status)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func startFakeSession(t *testing.T, shell *fakeShell, opts sessionOptions) *Session {
	t.Helper()
	if opts.Delimiter == "" {
		opts.Delimiter = testDelimiter
	}
	if opts.ErrorMarker == "" {
		opts.ErrorMarker = "[stderr] "
	}
	if opts.ReadyFallback == 0 {
		opts.ReadyFallback = time.Hour
	}
	if opts.WorkingDir == "" {
		opts.WorkingDir = shell.cwd
	}
	s := newSession("test-session", shell, opts)
	s.start()
	t.Cleanup(s.Close)
	return s
}

func requireKind(t *testing.T, r Result, kind ErrorKind) {
	t.Helper()
	require.True(t, r.Failed(), "expected failed result, got %+v", r)
	require.NotNil(t, r.Error)
	require.Equal(t, kind, KindOf(r.Err), "err: %v", r.Err)
}

var errBrokenPipe = errors.New("broken pipe")
