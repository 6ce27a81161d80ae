// File: cmd/deps.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/browser"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
	"github.com/xkilldash9x/tripwire-cli/internal/store"
)

// historyStore is the slice of *store.Store the commands use.
type historyStore interface {
	schemas.RunStore
	EnsureSchema(ctx context.Context) error
	RecentRuns(ctx context.Context, name string, limit int) ([]store.RunRecord, error)
}

// storeProvider creates the run history store. The abstraction lets tests
// inject a mock instead of a live database connection.
type storeProvider interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (historyStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

func (defaultStoreProvider) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (historyStore, func(), error) {
	if cfg.Store().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (%s_DATABASE_URL)", config.EnvPrefix)
	}
	s, cleanup, err := store.Open(ctx, cfg.Store().URL, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		cleanup()
		logger.Debug("Database connection pool closed.")
	}, nil
}

// dependencies are the external collaborators the commands are built with.
type dependencies struct {
	sessionFactory func(cfg config.Interface, logger *zap.Logger) schemas.SessionFactory
	stores         storeProvider
}

func defaultDependencies() *dependencies {
	return &dependencies{
		sessionFactory: func(cfg config.Interface, logger *zap.Logger) schemas.SessionFactory {
			return browser.NewFactory(cfg.Browser(), cfg.Run(), logger)
		},
		stores: defaultStoreProvider{},
	}
}
