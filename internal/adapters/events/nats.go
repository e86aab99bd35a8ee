package events

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/strandlabs/strand/internal/domain"
	json "github.com/strandlabs/strand/internal/xjson"
)

// Publisher mirrors bus events onto NATS subjects so external consumers can
// follow runs without linking the engine. Subjects are
// <prefix>.run.<run_id>.<event_name>.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher connects to NATS and wires itself onto the bus. Publishing is
// best-effort: a broker outage is logged and the run proceeds.
func NewPublisher(url, prefix string, bus *Bus, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "strand"
	}

	conn, err := nats.Connect(url,
		nats.Name("strand-events"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, domain.NewNetworkError("failed to connect to NATS", err,
			domain.WithComponent("nats-publisher"),
			domain.WithContextDetail("url", url))
	}

	p := &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With("component", "nats-publisher"),
	}

	bus.OnRunStarted(func(event *domain.RunStartedEvent) {
		p.publish(event.RunID, "run_started", event)
	})
	bus.OnRunCompleted(func(event *domain.RunCompletedEvent) {
		p.publish(event.RunID, "run_completed", event)
	})
	bus.OnRunFailed(func(event *domain.RunFailedEvent) {
		p.publish(event.RunID, "run_failed", event)
	})
	bus.OnLayerCompleted(func(event *domain.LayerCompletedEvent) {
		p.publish(event.RunID, "layer_completed", event)
	})
	bus.OnNodeSettled(func(event *domain.NodeSettledEvent) {
		p.publish(event.RunID, "node_settled", event)
	})

	return p, nil
}

func (p *Publisher) publish(runID, eventName string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event", "event", eventName, "run_id", runID, "error", err)
		return
	}

	subject := fmt.Sprintf("%s.run.%s.%s", p.prefix, runID, eventName)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		p.conn.Drain()
	}
}
