package builders

import (
	"fmt"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// CronBuilder creates the cycle scheduler and registers the configured
// cycles on it.
type CronBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewCronBuilder(cfg *config.Config, log *logger.Logger) *CronBuilder {
	return &CronBuilder{
		config: cfg,
		logger: log,
	}
}

// Build registers every cycle of bodies that is not disabled in [cycles].
// A body without a config section is an error.
func (b *CronBuilder) Build(bodies map[string]cycle.Func, order []string, opts ...cycle.Option) (*cycle.Scheduler, error) {
	scheduler := cycle.New(b.logger, opts...)
	settings := b.config.Cycles.ByName()

	for _, name := range order {
		run, ok := bodies[name]
		if !ok {
			return nil, fmt.Errorf("cycle %s has no body", name)
		}
		cc, ok := settings[name]
		if !ok {
			return nil, fmt.Errorf("cycle %s is not configured", name)
		}
		if cc.Disabled {
			b.logger.Info("cycle disabled", logger.Field{Key: "cycle", Value: name})
			continue
		}
		if err := scheduler.Add(cycle.Cycle{
			Name:       name,
			Interval:   cc.Interval(),
			RunOnStart: cc.StartsImmediately(),
			Run:        run,
		}); err != nil {
			return nil, fmt.Errorf("failed to register cycle: %w", err)
		}
	}
	return scheduler, nil
}
