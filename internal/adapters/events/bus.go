package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

var _ ports.EventBus = (*Bus)(nil)

// Bus is the in-process lifecycle event bus. Handlers run synchronously in
// registration order on the publishing goroutine; a slow handler slows the
// run that published, so handlers should hand off heavy work themselves.
type Bus struct {
	logger *slog.Logger

	mu             sync.RWMutex
	started        bool
	runStarted     []func(*domain.RunStartedEvent)
	runCompleted   []func(*domain.RunCompletedEvent)
	runFailed      []func(*domain.RunFailedEvent)
	layerCompleted []func(*domain.LayerCompletedEvent)
	nodeSettled    []func(*domain.NodeSettledEvent)
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "event-bus")}
}

func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return domain.ErrAlreadyStarted
	}
	b.started = true
	b.logger.Debug("event bus started")
	return nil
}

func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return domain.ErrNotStarted
	}
	b.started = false
	b.runStarted = nil
	b.runCompleted = nil
	b.runFailed = nil
	b.layerCompleted = nil
	b.nodeSettled = nil
	b.logger.Debug("event bus stopped")
	return nil
}

func (b *Bus) OnRunStarted(handler func(*domain.RunStartedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runStarted = append(b.runStarted, handler)
}

func (b *Bus) OnRunCompleted(handler func(*domain.RunCompletedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runCompleted = append(b.runCompleted, handler)
}

func (b *Bus) OnRunFailed(handler func(*domain.RunFailedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runFailed = append(b.runFailed, handler)
}

func (b *Bus) OnLayerCompleted(handler func(*domain.LayerCompletedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.layerCompleted = append(b.layerCompleted, handler)
}

func (b *Bus) OnNodeSettled(handler func(*domain.NodeSettledEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodeSettled = append(b.nodeSettled, handler)
}

func (b *Bus) PublishRunStarted(event *domain.RunStartedEvent) {
	for _, handler := range b.snapshotRunStarted() {
		b.dispatch(func() { handler(event) }, "run_started", event.RunID)
	}
}

func (b *Bus) PublishRunCompleted(event *domain.RunCompletedEvent) {
	for _, handler := range b.snapshotRunCompleted() {
		b.dispatch(func() { handler(event) }, "run_completed", event.RunID)
	}
}

func (b *Bus) PublishRunFailed(event *domain.RunFailedEvent) {
	for _, handler := range b.snapshotRunFailed() {
		b.dispatch(func() { handler(event) }, "run_failed", event.RunID)
	}
}

func (b *Bus) PublishLayerCompleted(event *domain.LayerCompletedEvent) {
	for _, handler := range b.snapshotLayerCompleted() {
		b.dispatch(func() { handler(event) }, "layer_completed", event.RunID)
	}
}

func (b *Bus) PublishNodeSettled(event *domain.NodeSettledEvent) {
	for _, handler := range b.snapshotNodeSettled() {
		b.dispatch(func() { handler(event) }, "node_settled", event.RunID)
	}
}

// dispatch shields publishers from handler panics.
func (b *Bus) dispatch(fn func(), eventName, runID string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", eventName,
				"run_id", runID,
				"panic_value", r,
			)
		}
	}()
	fn()
}

func (b *Bus) snapshotRunStarted() []func(*domain.RunStartedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]func(*domain.RunStartedEvent){}, b.runStarted...)
}

func (b *Bus) snapshotRunCompleted() []func(*domain.RunCompletedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]func(*domain.RunCompletedEvent){}, b.runCompleted...)
}

func (b *Bus) snapshotRunFailed() []func(*domain.RunFailedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]func(*domain.RunFailedEvent){}, b.runFailed...)
}

func (b *Bus) snapshotLayerCompleted() []func(*domain.LayerCompletedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]func(*domain.LayerCompletedEvent){}, b.layerCompleted...)
}

func (b *Bus) snapshotNodeSettled() []func(*domain.NodeSettledEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]func(*domain.NodeSettledEvent){}, b.nodeSettled...)
}
