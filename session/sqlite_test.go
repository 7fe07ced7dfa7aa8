package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Append(ctx, "s1",
		core.NewUserMessage("hello"),
		core.NewToolCallMessage(core.FunctionCall{ID: "c1", Name: "lookup", Arguments: `{}`}),
	))

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Text())
	calls := history[1].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
}

func TestSQLiteStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Append(ctx, "a", core.NewUserMessage("for a")))
	require.NoError(t, store.Append(ctx, "b", core.NewUserMessage("for b")))

	history, err := store.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "for a", history[0].Text())
}

func TestSQLiteStore_ClearAndMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Append(ctx, "s1", core.NewUserMessage("hello")))
	require.NoError(t, store.UpdateMetadata(ctx, "s1", map[string]string{"agent": "triage"}))
	require.NoError(t, store.UpdateMetadata(ctx, "s1", map[string]string{"turns": "2"}))

	md, err := store.Metadata(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "triage", md["agent"])
	assert.Equal(t, "2", md["turns"])

	require.NoError(t, store.Clear(ctx, "s1"))

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	md, err = store.Metadata(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, md)
}
