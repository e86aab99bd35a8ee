package ports

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
)

// EventBus is the in-process typed pub/sub of run lifecycle events. Handlers
// are invoked synchronously in registration order.
type EventBus interface {
	Start(ctx context.Context) error
	Stop() error

	OnRunStarted(handler func(*domain.RunStartedEvent))
	OnRunCompleted(handler func(*domain.RunCompletedEvent))
	OnRunFailed(handler func(*domain.RunFailedEvent))
	OnLayerCompleted(handler func(*domain.LayerCompletedEvent))
	OnNodeSettled(handler func(*domain.NodeSettledEvent))

	PublishRunStarted(event *domain.RunStartedEvent)
	PublishRunCompleted(event *domain.RunCompletedEvent)
	PublishRunFailed(event *domain.RunFailedEvent)
	PublishLayerCompleted(event *domain.LayerCompletedEvent)
	PublishNodeSettled(event *domain.NodeSettledEvent)
}
