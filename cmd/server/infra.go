package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"proofbridge/internal/events"
	"proofbridge/internal/issuance/service"
	issuancestore "proofbridge/internal/issuance/store"
	"proofbridge/internal/platform/config"
	"proofbridge/internal/platform/database"
	"proofbridge/internal/platform/health"
	"proofbridge/internal/platform/kafka/producer"
	"proofbridge/internal/platform/redis"
	"proofbridge/internal/proof/state"
)

type eventProducer interface {
	events.Producer
	Close() error
}

// infra holds the backing stores. Each optional backend falls back to an
// in-memory (or no-op) implementation when it is not configured.
type infra struct {
	redis    *redis.Client
	db       *database.Pool
	producer eventProducer

	state       state.Store
	records     service.RecordStore
	revocations service.RevocationStore
	latest      service.LatestCache
}

func openInfra(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger, checks *health.Handler) (*infra, error) {
	in := &infra{}

	rc, err := redis.New(cfg.Redis, redis.NewPoolMetrics(reg))
	if err != nil {
		return in, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		in.redis = rc
		in.state = state.NewRedisStore(rc.Client, cfg.Proof.StateTTL)
		in.latest = issuancestore.NewRedisLatestCache(rc.Client, cfg.Issuance.LatestTTL)
		checks.RegisterCheck("redis", rc.Health)
		checks.SetBackend("state", health.BackendRedis)
		checks.SetBackend("latest_credentials", health.BackendRedis)
		log.Info("redis configured", "pool_size", cfg.Redis.PoolSize)
	} else {
		in.state = state.NewInMemoryStore()
		in.latest = issuancestore.NewInMemoryLatestCache()
		checks.SetBackend("state", health.BackendMemory)
		checks.SetBackend("latest_credentials", health.BackendMemory)
		log.Warn("REDIS_URL not set, verification state is kept in process memory")
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	pool, err := database.New(ctx, dbCfg)
	if err != nil {
		return in, fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		in.db = pool
		in.records = issuancestore.NewPostgresRecordStore(pool.DB())
		in.revocations = issuancestore.NewPostgresRevocationStore(pool.DB())
		checks.RegisterCheck("postgres", pool.Health)
		checks.SetBackend("credentials", health.BackendPostgres)
		log.Info("postgres configured")
	} else {
		in.records = issuancestore.NewInMemoryRecordStore()
		in.revocations = issuancestore.NewInMemoryRevocationStore()
		checks.SetBackend("credentials", health.BackendMemory)
		log.Warn("DATABASE_URL not set, issued credentials are kept in process memory")
	}

	if cfg.Kafka.Brokers != "" {
		pcfg := producer.DefaultConfig()
		pcfg.Brokers = cfg.Kafka.Brokers
		p, err := producer.New(pcfg, log)
		if err != nil {
			return in, fmt.Errorf("create kafka producer: %w", err)
		}
		in.producer = p
		checks.RegisterCheck("kafka", p.Health)
		checks.SetBackend("events", health.BackendKafka)
		log.Info("kafka configured", "topic", cfg.Kafka.Topic)
	} else {
		in.producer = producer.NewNoopProducer()
		checks.SetBackend("events", health.BackendNoop)
		log.Info("KAFKA_BROKERS not set, domain events are dropped")
	}

	return in, nil
}

// Close releases backends in reverse order of opening.
func (in *infra) Close(log *slog.Logger) {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			log.Warn("failed to close kafka producer", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
}
