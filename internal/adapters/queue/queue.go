package queue

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
	json "github.com/strandlabs/strand/internal/xjson"
)

var _ ports.RunQueue = (*Queue)(nil)

// Queue is a badger-backed FIFO of run submissions. Keys carry a zero-padded
// monotonic sequence so lexicographic iteration is enqueue order, which also
// makes the queue survive restarts when the database is persistent.
type Queue struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New builds a queue on top of a shared database handle. The caller keeps
// ownership of db; Close releases only the sequence lease.
func New(db *badger.DB, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seq, err := db.GetSequence([]byte(domain.QueueSequenceKey), 64)
	if err != nil {
		return nil, domain.NewStorageError("failed to open queue sequence", err,
			domain.WithComponent("queue"))
	}

	return &Queue{
		db:     db,
		seq:    seq,
		logger: logger.With("component", "queue"),
	}, nil
}

func (q *Queue) Enqueue(sub *domain.RunSubmission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.NewStorageError("queue is closed", nil, domain.WithComponent("queue"))
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return domain.NewStorageError("failed to encode submission", err,
			domain.WithComponent("queue"),
			domain.WithRunID(sub.RunID))
	}

	next, err := q.seq.Next()
	if err != nil {
		return domain.NewStorageError("failed to advance queue sequence", err,
			domain.WithComponent("queue"))
	}

	key := domain.QueuePendingKey(next)
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return domain.NewStorageError("failed to enqueue submission", err,
			domain.WithComponent("queue"),
			domain.WithRunID(sub.RunID))
	}

	q.logger.Debug("submission enqueued", "run_id", sub.RunID, "key", key)
	return nil
}

// Dequeue removes and returns the oldest submission. The second return is
// false when the queue is empty.
func (q *Queue) Dequeue() (*domain.RunSubmission, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, false, domain.NewStorageError("queue is closed", nil, domain.WithComponent("queue"))
	}

	var sub *domain.RunSubmission
	err := q.db.Update(func(txn *badger.Txn) error {
		key, decoded, err := headSubmission(txn)
		if err != nil || decoded == nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		sub = decoded
		return nil
	})
	if err != nil {
		return nil, false, domain.NewStorageError("failed to dequeue submission", err,
			domain.WithComponent("queue"))
	}
	if sub == nil {
		return nil, false, nil
	}

	q.logger.Debug("submission dequeued", "run_id", sub.RunID)
	return sub, true, nil
}

// Peek returns the oldest submission without removing it.
func (q *Queue) Peek() (*domain.RunSubmission, bool, error) {
	var sub *domain.RunSubmission
	err := q.db.View(func(txn *badger.Txn) error {
		_, decoded, err := headSubmission(txn)
		sub = decoded
		return err
	})
	if err != nil {
		return nil, false, domain.NewStorageError("failed to peek submission", err,
			domain.WithComponent("queue"))
	}
	if sub == nil {
		return nil, false, nil
	}
	return sub, true, nil
}

func (q *Queue) Len() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.QueuePendingPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("failed to count pending submissions", err,
			domain.WithComponent("queue"))
	}
	return count, nil
}

// Close releases the sequence lease. The shared database stays open.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.seq.Release()
}

// headSubmission decodes the first pending entry in key order, or returns a
// nil submission when there is none.
func headSubmission(txn *badger.Txn) ([]byte, *domain.RunSubmission, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(domain.QueuePendingPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	if !it.Valid() {
		return nil, nil, nil
	}

	item := it.Item()
	var sub domain.RunSubmission
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sub)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return item.KeyCopy(nil), &sub, nil
}
