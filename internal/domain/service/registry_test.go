package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/codeshell/internal/shared/types"
)

type mockProvider struct {
	id       string
	category types.Category
	lastTool string
}

func (m *mockProvider) Definition() types.Service {
	return types.Service{
		ID:           m.id,
		Name:         "Mock Service",
		Description:  "A mock shell service for testing",
		Category:     m.category,
		Capabilities: []string{"run_command"},
		Tools: []types.Tool{
			{
				ID:          m.id + ".test",
				Name:        "Test Tool",
				Description: "A test tool",
				Returns:     "string",
			},
		},
	}
}

func (m *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	m.lastTool = toolID
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"result": "success"},
	}, nil
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test", category: types.CategoryTerminal}

	require.NoError(t, r.Register(p))

	_, ok := r.Get("test")
	assert.True(t, ok)
	assert.Error(t, r.Register(p), "duplicate registration should fail")
	assert.Error(t, r.Register(&mockProvider{}), "empty ID should fail")
}

func TestList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "b", category: types.CategoryTerminal}))
	require.NoError(t, r.Register(&mockProvider{id: "a", category: types.CategorySystem}))

	services := r.List(nil)
	require.Len(t, services, 2)
	assert.Equal(t, "a", services[0].ID)

	cat := types.CategoryTerminal
	filtered := r.List(&cat)
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].ID)
}

func TestDiscover(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "terminal", category: types.CategoryTerminal}))

	results := r.Discover("open a terminal and run command", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "terminal", results[0].ID)

	assert.Empty(t, r.Discover("zzz", 5))
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}
	require.NoError(t, r.Register(p))

	result, err := r.Execute(context.Background(), "test.test", map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "test.test", p.lastTool)
}

func TestExecuteErrors(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "invalid", nil, nil)
	assert.Error(t, err)
	assert.False(t, result.Success)

	result, err = r.Execute(context.Background(), "missing.tool", nil, nil)
	assert.Error(t, err)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "service not found")
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test1", category: types.CategoryTerminal}))
	require.NoError(t, r.Register(&mockProvider{id: "test2", category: types.CategoryTerminal}))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 2, stats["total_tools"])
	assert.Equal(t, map[string]int{"terminal": 2}, stats["categories"])
}
