package runstore

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
	json "github.com/strandlabs/strand/internal/xjson"
)

var _ ports.RunStore = (*Store)(nil)

// Store is the badger-backed run store. A single Store owns the database
// handle; the queue shares it through DB().
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the database under dataDir.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	return open(opts, logger)
}

// OpenInMemory backs the store with an in-memory badger instance, for tests
// and ephemeral embedding.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("failed to open database", err,
			domain.WithComponent("runstore"),
			domain.WithContextDetail("dir", opts.Dir))
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "runstore"),
	}, nil
}

// DB exposes the underlying handle so the queue can share one database.
func (s *Store) DB() *badger.DB {
	return s.db
}

func (s *Store) Close() error {
	s.logger.Debug("closing run store")
	return s.db.Close()
}

func (s *Store) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	return s.put(domain.RunRecordKey(record.ID), record)
}

func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var record domain.RunRecord
	if err := s.get(domain.RunRecordKey(runID), &record); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("run", runID)
		}
		return nil, err
	}
	return &record, nil
}

// ListRuns returns up to limit records, newest submission first. A limit of
// zero or below returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	var records []*domain.RunRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.RunRecordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record domain.RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to list runs", err,
			domain.WithComponent("runstore"))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// DeleteRun removes the record plus its definition snapshot and node results.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(domain.RunRecordKey(runID))); err != nil {
			return err
		}
		if err := txn.Delete([]byte(domain.RunDefinitionKey(runID))); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.RunResultScanPrefix(runID))
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.NewStorageError("failed to delete run", err,
			domain.WithComponent("runstore"),
			domain.WithRunID(runID))
	}

	s.logger.Debug("run deleted", "run_id", runID)
	return nil
}

func (s *Store) SaveNodeResult(ctx context.Context, runID string, result *domain.NodeResult) error {
	return s.put(domain.RunResultKey(runID, result.NodeID), result)
}

// ListNodeResults returns every stored node result for a run, ordered by
// node id.
func (s *Store) ListNodeResults(ctx context.Context, runID string) ([]*domain.NodeResult, error) {
	var results []*domain.NodeResult

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.RunResultScanPrefix(runID))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var result domain.NodeResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &result)
			})
			if err != nil {
				return err
			}
			results = append(results, &result)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to list node results", err,
			domain.WithComponent("runstore"),
			domain.WithRunID(runID))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].NodeID < results[j].NodeID
	})
	return results, nil
}

func (s *Store) SaveDefinition(ctx context.Context, runID string, def *domain.WorkflowDefinition) error {
	return s.put(domain.RunDefinitionKey(runID), def)
}

func (s *Store) GetDefinition(ctx context.Context, runID string) (*domain.WorkflowDefinition, error) {
	var def domain.WorkflowDefinition
	if err := s.get(domain.RunDefinitionKey(runID), &def); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("definition", runID)
		}
		return nil, err
	}
	return &def, nil
}

func (s *Store) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return domain.NewStorageError("failed to encode value", err,
			domain.WithComponent("runstore"),
			domain.WithContextDetail("key", key))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return domain.NewStorageError("failed to write value", err,
			domain.WithComponent("runstore"),
			domain.WithContextDetail("key", key))
	}
	return nil
}

func (s *Store) get(key string, out interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return domain.NewStorageError("failed to read value", err,
			domain.WithComponent("runstore"),
			domain.WithContextDetail("key", key))
	}
	return nil
}
