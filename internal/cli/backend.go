package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/config"
	"exam-delivery-service/internal/infra/memory"
	redisstore "exam-delivery-service/internal/infra/redis"
	"exam-delivery-service/internal/infra/sqlstore"
	"exam-delivery-service/internal/infra/sqlstore/migrations"
	"github.com/redis/go-redis/v9"
)

// backend is the storage chosen once at startup.
type backend struct {
	repo     app.Repository
	sessions app.SessionRepository
	closers  []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("close backend: %v", err)
		}
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	var repo app.Repository
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		repo = memory.NewStore()
	case config.DriverRedis:
		if redisClient == nil {
			b.Close()
			return nil, fmt.Errorf("storage driver redis needs redis.addr")
		}
		repo = redisstore.NewStore(redisClient)
	case config.DriverPostgres, config.DriverSQLite:
		dsn := cfg.Postgres.URL
		if cfg.Storage.Driver == config.DriverSQLite {
			dsn = cfg.SQLite.Path
		}
		if cfg.Storage.Driver == config.DriverPostgres && dsn == "" {
			b.Close()
			return nil, fmt.Errorf("postgres url not configured")
		}
		db, err := sqlstore.Open(ctx, cfg.Storage.Driver, dsn)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := migrations.Apply(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		repo = sqlstore.NewStore(db)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Storage.Driver != config.DriverMemory {
		repo = memory.NewSetCache(repo, config.TTLDuration(cfg.Cache.TTL, 10*time.Minute))
	}
	b.repo = repo

	if redisClient != nil {
		b.sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.sessions = memory.NewSessionStore()
	}
	log.Printf("storage: %s", cfg.Storage.Driver)
	return b, nil
}
