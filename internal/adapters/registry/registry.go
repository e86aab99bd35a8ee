package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

var _ ports.BlockRegistry = (*Manager)(nil)

type entry struct {
	factory ports.BlockFactory
	meta    ports.BlockMeta
}

// Manager is an explicit registry instance owned by the engine's
// construction, never a process-global, so concurrent and test runs stay
// isolated.
type Manager struct {
	blocks map[string]entry
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		blocks: make(map[string]entry),
		logger: logger.With("component", "block-registry"),
	}
}

func (r *Manager) Register(blockType string, factory ports.BlockFactory, meta ports.BlockMeta) error {
	if blockType == "" {
		r.logger.Error("attempted to register block with empty type")
		return &ports.BlockRegistrationError{
			BlockType: "<empty>",
			Reason:    "block type cannot be empty",
		}
	}
	if factory == nil {
		r.logger.Error("attempted to register nil factory", "block_type", blockType)
		return &ports.BlockRegistrationError{
			BlockType: blockType,
			Reason:    "factory cannot be nil",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blocks[blockType]; exists {
		r.logger.Debug("block registration failed - already exists", "block_type", blockType)
		return &ports.BlockRegistrationError{
			BlockType: blockType,
			Reason:    "block type already registered",
		}
	}

	r.blocks[blockType] = entry{factory: factory, meta: meta}
	r.logger.Debug("block registered", "block_type", blockType, "total_blocks", len(r.blocks))
	return nil
}

func (r *Manager) Unregister(blockType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blocks[blockType]; !exists {
		return domain.NewNotFoundError("block", blockType)
	}

	delete(r.blocks, blockType)
	r.logger.Debug("block unregistered", "block_type", blockType, "remaining_blocks", len(r.blocks))
	return nil
}

// CreateExecutor resolves a block type at the moment a node is about to run.
func (r *Manager) CreateExecutor(blockType string) (ports.BlockExecutor, error) {
	r.mu.RLock()
	e, exists := r.blocks[blockType]
	r.mu.RUnlock()

	if !exists {
		r.logger.Debug("block type not registered", "block_type", blockType)
		return nil, domain.NewBlockError("block type not registered: "+blockType, nil,
			domain.WithComponent("block-registry"))
	}

	return e.factory(), nil
}

func (r *Manager) Has(blockType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.blocks[blockType]
	return exists
}

func (r *Manager) Meta(blockType string) (ports.BlockMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.blocks[blockType]
	return e.meta, exists
}

func (r *Manager) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.blocks))
	for blockType := range r.blocks {
		types = append(types, blockType)
	}
	sort.Strings(types)
	return types
}

func (r *Manager) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.blocks)
}
