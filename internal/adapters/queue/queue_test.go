package queue

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q, err := New(db, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func submission(runID string) *domain.RunSubmission {
	return &domain.RunSubmission{
		RunID:       runID,
		Definition:  &domain.WorkflowDefinition{ID: "wf-" + runID},
		SubmittedAt: time.Now(),
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := openTestQueue(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(submission(fmt.Sprintf("run-%d", i))))
	}

	length, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, length)

	for i := 0; i < 5; i++ {
		sub, ok, err := q.Dequeue()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("run-%d", i), sub.RunID)
	}

	length, err = q.Len()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := openTestQueue(t)

	sub, ok, err := q.Dequeue()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, sub)
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	q := openTestQueue(t)
	require.NoError(t, q.Enqueue(submission("run-1")))

	for i := 0; i < 2; i++ {
		sub, ok, err := q.Peek()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "run-1", sub.RunID)
	}

	length, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, length)

	sub, ok, err := q.Dequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", sub.RunID)
}

func TestQueuePeekEmpty(t *testing.T) {
	q := openTestQueue(t)

	sub, ok, err := q.Peek()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, sub)
}

func TestQueueCarriesSubmissionPayload(t *testing.T) {
	q := openTestQueue(t)

	sub := submission("run-1")
	sub.Input = map[string]interface{}{"seed": float64(7)}
	sub.Variables = map[string]interface{}{"region": "eu"}
	sub.Secrets = map[string]string{"k": "v"}
	sub.Mode = domain.ModeDemo
	require.NoError(t, q.Enqueue(sub))

	got, ok, err := q.Dequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "wf-run-1", got.Definition.ID)
	assert.Equal(t, map[string]interface{}{"seed": float64(7)}, got.Input)
	assert.Equal(t, "eu", got.Variables["region"])
	assert.Equal(t, "v", got.Secrets["k"])
	assert.Equal(t, domain.ModeDemo, got.Mode)
}

func TestQueueClosedRejectsOperations(t *testing.T) {
	q := openTestQueue(t)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Enqueue(submission("run-1"))
	require.Error(t, err)

	_, _, err = q.Dequeue()
	require.Error(t, err)
}

func TestQueueInterleavedEnqueueDequeue(t *testing.T) {
	q := openTestQueue(t)

	require.NoError(t, q.Enqueue(submission("a")))
	require.NoError(t, q.Enqueue(submission("b")))

	sub, ok, err := q.Dequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", sub.RunID)

	require.NoError(t, q.Enqueue(submission("c")))

	sub, _, err = q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "b", sub.RunID)
	sub, _, err = q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "c", sub.RunID)
}
