package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, timeout time.Duration, spawner *fakeSpawner) *Provider {
	t.Helper()
	return NewProvider(newTestManager(t, testConfig(t), spawner), timeout, nil)
}

func TestProviderDefinition(t *testing.T) {
	p := newTestProvider(t, time.Second, &fakeSpawner{})
	def := p.Definition()

	assert.Equal(t, "terminal", def.ID)
	ids := make([]string, 0, len(def.Tools))
	for _, tool := range def.Tools {
		ids = append(ids, tool.ID)
	}
	assert.ElementsMatch(t, []string{
		"terminal.execute",
		"terminal.start_session",
		"terminal.terminate",
		"terminal.list_sessions",
		"terminal.get_session",
	}, ids)
}

func TestProviderExecuteTool(t *testing.T) {
	spawner := &fakeSpawner{setup: func(s *fakeShell) {
		s.outputs["whoami"] = "dev\n"
		s.stderr["false"] = "failed\n"
	}}
	p := newTestProvider(t, time.Second, spawner)
	ctx := context.Background()

	res, err := p.Execute(ctx, "terminal.execute", map[string]interface{}{"session_id": "s1", "command": "whoami"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "dev", res.Data["output"])
	assert.Nil(t, res.Error)

	res, err = p.Execute(ctx, "terminal.execute", map[string]interface{}{"session_id": "s1", "command": "false"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "failed", *res.Error)

	_, err = p.Execute(ctx, "terminal.execute", map[string]interface{}{"command": "ls"}, nil)
	assert.Error(t, err)

	_, err = p.Execute(ctx, "terminal.unknown", nil, nil)
	assert.Error(t, err)
}

func TestProviderSessionTools(t *testing.T) {
	p := newTestProvider(t, time.Second, &fakeSpawner{})
	ctx := context.Background()

	res, err := p.Execute(ctx, "terminal.start_session", map[string]interface{}{}, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	sessionID := res.Data["id"].(string)
	assert.True(t, strings.HasPrefix(sessionID, "sess_"))

	res, err = p.Execute(ctx, "terminal.get_session", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ready", res.Data["state"])

	res, err = p.Execute(ctx, "terminal.list_sessions", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data["count"])

	res, err = p.Execute(ctx, "terminal.terminate", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = p.Execute(ctx, "terminal.get_session", map[string]interface{}{"session_id": sessionID}, nil)
	assert.Error(t, err)
}

func TestProviderTimeoutTerminatesSession(t *testing.T) {
	spawner := &fakeSpawner{setup: func(s *fakeShell) { s.auto = false }}
	p := newTestProvider(t, 30*time.Millisecond, spawner)

	r := p.Run(context.Background(), "slow", "sleep 100")

	requireKind(t, r, KindTimeout)
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	assert.False(t, p.Manager().Exists("slow"))
	assert.True(t, spawner.shell(0).terminated.Load())
}

func TestProviderCallerCancelKeepsSession(t *testing.T) {
	spawner := &fakeSpawner{setup: func(s *fakeShell) { s.auto = false }}
	p := newTestProvider(t, time.Minute, spawner)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := p.Run(ctx, "s1", "sleep 100")

	requireKind(t, r, KindCanceled)
	assert.ErrorIs(t, r.Err, ErrCommandCanceled)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.NotErrorIs(t, r.Err, ErrCommandTimeout)
	assert.True(t, p.Manager().Exists("s1"))
}
