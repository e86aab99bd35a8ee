package blocks

import (
	"context"
	"time"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Delay waits for the configured duration and passes its input through. In
// test mode the wait is skipped so suites stay fast.
type Delay struct {
	Base
}

func (d *Delay) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	duration, err := time.ParseDuration(stringOption(config, "duration", "1s"))
	if err != nil {
		return domain.FailedResult("invalid duration: " + err.Error())
	}

	if ectx.Mode() != domain.ModeTest {
		select {
		case <-time.After(duration):
		case <-ctx.Done():
			return domain.FailedResult(ctx.Err().Error())
		}
	}

	return domain.CompletedResult(input)
}
