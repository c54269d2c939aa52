package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/logger"
)

func testExecutor(t *testing.T, store domain.Store) *Executor {
	t.Helper()
	e, err := NewExecutor(store, logger.NewNop())
	require.NoError(t, err)
	return e
}

func TestExecuteValidCall(t *testing.T) {
	store := &fakeStore{payload: json.RawMessage(`{"order":{"id":"42"}}`)}
	e := testExecutor(t, store)

	result, err := e.Execute(context.Background(), domain.ToolCall{
		ID: "toolu_1", Name: "get_order", Input: json.RawMessage(`{"id":"42"}`),
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "toolu_1", result.ToolCallID)
	assert.JSONEq(t, `{"order":{"id":"42"}}`, result.Content)

	require.Len(t, store.calls, 1)
	assert.Equal(t, "get_order", store.calls[0].name)
}

func TestExecuteUnknownTool(t *testing.T) {
	e := testExecutor(t, &fakeStore{})
	_, err := e.Execute(context.Background(), domain.ToolCall{ID: "t1", Name: "launch_rocket"})
	require.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestExecuteValidationFailure(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(t, store)

	// id is required by the schema.
	result, err := e.Execute(context.Background(), domain.ToolCall{
		ID: "t1", Name: "get_order", Input: json.RawMessage(`{"limit":5}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid input for get_order")
	assert.Empty(t, store.calls)
}

func TestExecuteEnumValidation(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(t, store)

	result, err := e.Execute(context.Background(), domain.ToolCall{
		ID: "t1", Name: "cancel_order", Input: json.RawMessage(`{"id":"42","reason":"whim"}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, store.calls)
}

func TestExecuteMalformedInput(t *testing.T) {
	e := testExecutor(t, &fakeStore{})
	result, err := e.Execute(context.Background(), domain.ToolCall{
		ID: "t1", Name: "get_order", Input: json.RawMessage(`{"id":`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "not valid JSON")
}

func TestExecuteEmptyInputIsEmptyObject(t *testing.T) {
	store := &fakeStore{payload: json.RawMessage(`{"locations":[]}`)}
	e := testExecutor(t, store)

	result, err := e.Execute(context.Background(), domain.ToolCall{ID: "t1", Name: "get_locations"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestExecuteStoreFailureBecomesErrorResult(t *testing.T) {
	store := &fakeStore{err: errors.New("store unavailable")}
	e := testExecutor(t, store)

	result, err := e.Execute(context.Background(), domain.ToolCall{
		ID: "t1", Name: "get_order", Input: json.RawMessage(`{"id":"42"}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "store unavailable")
}
