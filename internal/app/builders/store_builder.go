package builders

import (
	"fmt"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/store"
)

type StoreBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewStoreBuilder(cfg *config.Config, log *logger.Logger) *StoreBuilder {
	return &StoreBuilder{
		config: cfg,
		logger: log,
	}
}

// Build opens the state store selected by [state].backend.
func (b *StoreBuilder) Build() (store.Store, error) {
	path := b.config.State.Path
	switch b.config.State.Backend {
	case "file", "":
		b.logger.Info("state store initialized",
			logger.Field{Key: "backend", Value: "file"},
			logger.Field{Key: "path", Value: path})
		return store.NewFileStore(path, b.logger), nil
	case "sqlite":
		s, err := store.OpenSQLite(path, b.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite state: %w", err)
		}
		b.logger.Info("state store initialized",
			logger.Field{Key: "backend", Value: "sqlite"},
			logger.Field{Key: "path", Value: path})
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", b.config.State.Backend)
	}
}
