package runstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory(testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveAndGetRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := &domain.RunRecord{
		ID:          "run-1",
		WorkflowID:  "wf-1",
		Status:      domain.RunStatusQueued,
		SubmittedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.SaveRun(ctx, record))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.WorkflowID, got.WorkflowID)
	assert.Equal(t, domain.RunStatusQueued, got.Status)
	assert.True(t, record.SubmittedAt.Equal(got.SubmittedAt))
}

func TestStoreGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestStoreSaveRunOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := &domain.RunRecord{ID: "run-1", Status: domain.RunStatusQueued, SubmittedAt: time.Now()}
	require.NoError(t, store.SaveRun(ctx, record))

	record.Status = domain.RunStatusCompleted
	require.NoError(t, store.SaveRun(ctx, record))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
}

func TestStoreListRunsNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.SaveRun(ctx, &domain.RunRecord{
			ID:          id,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[2].ID)

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestStoreNodeResultsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := domain.CompletedResult(map[string]interface{}{"ok": true})
	first.NodeID = "b"
	second := domain.FailedResult("boom")
	second.NodeID = "a"

	require.NoError(t, store.SaveNodeResult(ctx, "run-1", &first))
	require.NoError(t, store.SaveNodeResult(ctx, "run-1", &second))
	// A different run's results must not leak in.
	other := domain.CompletedResult(nil)
	other.NodeID = "x"
	require.NoError(t, store.SaveNodeResult(ctx, "run-2", &other))

	results, err := store.ListNodeResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].NodeID)
	assert.Equal(t, domain.NodeStatusFailed, results[0].Status)
	assert.Equal(t, "b", results[1].NodeID)
	assert.Equal(t, map[string]interface{}{"ok": true}, results[1].Output)
}

func TestStoreDefinitionSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	def := &domain.WorkflowDefinition{
		ID:      "wf-1",
		Name:    "sample",
		Version: "1.0.0",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "transform", Name: "a"},
		},
	}
	require.NoError(t, store.SaveDefinition(ctx, "run-1", def))

	got, err := store.GetDefinition(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.ID)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "transform", got.Nodes[0].Type)

	_, err = store.GetDefinition(ctx, "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestStoreDeleteRunRemovesEverything(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.RunRecord{ID: "run-1", SubmittedAt: time.Now()}))
	require.NoError(t, store.SaveDefinition(ctx, "run-1", &domain.WorkflowDefinition{ID: "wf-1"}))
	result := domain.CompletedResult(nil)
	result.NodeID = "a"
	require.NoError(t, store.SaveNodeResult(ctx, "run-1", &result))

	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	_, err := store.GetRun(ctx, "run-1")
	assert.True(t, domain.IsNotFound(err))
	_, err = store.GetDefinition(ctx, "run-1")
	assert.True(t, domain.IsNotFound(err))
	results, err := store.ListNodeResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
