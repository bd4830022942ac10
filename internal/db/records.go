package db

import (
	"context"
	"fmt"

	"solestore/internal/recordstore"

	"go.uber.org/zap"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver      string
	DataDir     string
	Addr        string
	MaxConns    int
	MaxIdleTime string
}

// OpenRecords builds the record store for the configured driver. close
// releases the database pool, if any.
func OpenRecords(ctx context.Context, cfg StoreConfig, logger *zap.SugaredLogger) (records *recordstore.Store, close func(), err error) {
	switch cfg.Driver {
	case DriverFile, "":
		backend, err := recordstore.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Infow("using file record store", "dir", backend.Dir())
		return recordstore.New(backend, recordstore.WithLogger(logger)), func() {}, nil

	case DriverPostgres:
		pool, err := New(ctx, cfg.Addr, cfg.MaxConns, cfg.MaxIdleTime)
		if err != nil {
			return nil, nil, err
		}
		backend := recordstore.NewPostgresBackend(pool)
		if err := backend.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("database connection pool established")
		return recordstore.New(backend, recordstore.WithLogger(logger)), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
