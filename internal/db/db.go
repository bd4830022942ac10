package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 30 * time.Second

// New opens a pgx pool for the postgres record backend and pings it.
func New(ctx context.Context, addr string, maxConns int, maxIdleTime string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("parse DB_ADDR: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = int32(maxConns)
	}
	if maxIdleTime != "" {
		idle, err := time.ParseDuration(maxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("parse DB_MAX_IDLE_TIME: %w", err)
		}
		config.MaxConnIdleTime = idle
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
