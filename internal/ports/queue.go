package ports

import "github.com/strandlabs/strand/internal/domain"

// RunQueue is a FIFO of submitted runs drained by the runner's worker pool.
type RunQueue interface {
	Enqueue(sub *domain.RunSubmission) error
	Dequeue() (*domain.RunSubmission, bool, error)
	Peek() (*domain.RunSubmission, bool, error)
	Len() (int, error)
	Close() error
}
