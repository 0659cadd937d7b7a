// Package storage opens the configured CounterStore implementation.
package storage

import (
	"context"
	"fmt"

	"docnum/internal/config"
	"docnum/internal/core/numerator"
	"docnum/internal/infrastructure/storage/etcd"
	"docnum/internal/infrastructure/storage/memory"
	"docnum/internal/infrastructure/storage/postgres"
	"docnum/internal/infrastructure/storage/sqlite"
	"docnum/pkg/logger"
)

// Open creates the store selected by cfg.Driver. The caller owns the returned
// store and must Close it.
func Open(ctx context.Context, cfg config.StoreConfig) (numerator.CounterStore, error) {
	log := logger.FromContext(ctx).WithComponent("storage")

	switch cfg.Driver {
	case config.DriverMemory:
		log.Warnw("using in-memory counter store, numbers are lost on restart")
		return memory.NewCounterStore(), nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Infow("opened sqlite counter store", "path", cfg.SQLitePath)
		return store, nil

	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.PostgresDSN)
		if cfg.PostgresMaxConns > 0 {
			poolCfg.MaxConns = cfg.PostgresMaxConns
		}
		connectCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		store := postgres.NewCounterStore(pool)
		if err := store.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Infow("opened postgres counter store", "max_conns", poolCfg.MaxConns)
		return store, nil

	case config.DriverEtcd:
		store, err := etcd.Open(etcd.Config{
			Endpoints:   cfg.EtcdEndpoints,
			Prefix:      cfg.EtcdPrefix,
			DialTimeout: cfg.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open etcd store: %w", err)
		}
		log.Infow("opened etcd counter store", "endpoints", cfg.EtcdEndpoints, "prefix", cfg.EtcdPrefix)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
