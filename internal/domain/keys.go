package domain

import "fmt"

const (
	RunRecordPrefix     = "run:record:"
	RunResultPrefix     = "run:result:"
	RunDefinitionPrefix = "run:definition:"
	QueuePendingPrefix  = "queue:runs:pending:"
	QueueSequenceKey    = "queue:runs:sequence"
)

// RunRecordKey builds the canonical key for a persisted run record.
func RunRecordKey(runID string) string {
	return RunRecordPrefix + runID
}

// RunResultKey builds the key for one node's result within a run.
func RunResultKey(runID, nodeID string) string {
	return fmt.Sprintf("%s%s:%s", RunResultPrefix, runID, nodeID)
}

// RunResultScanPrefix is the iteration prefix covering all node results of a run.
func RunResultScanPrefix(runID string) string {
	return fmt.Sprintf("%s%s:", RunResultPrefix, runID)
}

// RunDefinitionKey builds the key for the definition snapshot stored with a run.
func RunDefinitionKey(runID string) string {
	return RunDefinitionPrefix + runID
}

// QueuePendingKey builds a zero-padded FIFO key so lexicographic iteration
// matches enqueue order.
func QueuePendingKey(sequence uint64) string {
	return fmt.Sprintf("%s%020d", QueuePendingPrefix, sequence)
}
