package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/libraryapi/library-server/internal/config"
	"github.com/libraryapi/library-server/internal/logger"
	"github.com/libraryapi/library-server/internal/store"
	"github.com/libraryapi/library-server/internal/store/badger"
	"github.com/libraryapi/library-server/internal/store/postgres"
	"github.com/libraryapi/library-server/internal/store/sqlite"
)

// StoreHandle wraps the configured storage backend with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the backend selected by STORE_DRIVER.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storeLog := log.Component("store")

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(cfg.Store.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		path := filepath.Join(cfg.Store.DataPath, "library.db")
		db, err := sqlite.Open(path, storeLog)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "driver", cfg.Store.Driver, "path", path)
		return &StoreHandle{Store: db}, nil

	case config.DriverBadger:
		dir := filepath.Join(cfg.Store.DataPath, "badger")
		db, err := badger.Open(dir, storeLog)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "driver", cfg.Store.Driver, "path", dir)
		return &StoreHandle{Store: db}, nil

	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		db, err := postgres.Open(ctx, cfg.Store.PostgresDSN, storeLog)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "driver", cfg.Store.Driver)
		return &StoreHandle{Store: db}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
