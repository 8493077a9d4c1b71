package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"proofbridge/internal/platform/config"
)

// PoolMetrics mirrors go-redis pool statistics into Prometheus.
type PoolMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
	staleConns prometheus.Counter
}

// NewPoolMetrics registers pool metrics with reg.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	factory := promauto.With(reg)
	return &PoolMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "proofbridge_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "proofbridge_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "proofbridge_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		totalConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proofbridge_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idleConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proofbridge_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
		staleConns: factory.NewCounter(prometheus.CounterOpts{
			Name: "proofbridge_redis_pool_stale_conns_total",
			Help: "Number of stale connections removed from the pool",
		}),
	}
}

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
	metrics   *PoolMetrics
	lastStats *redis.PoolStats
}

// New creates a new Redis client from the provided configuration.
// Returns nil if the URL is empty (Redis not configured).
func New(cfg config.RedisConfig, m *PoolMetrics) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client, metrics: m}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats updates Prometheus metrics with current pool statistics.
// Call this periodically from a background goroutine.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	m := c.metrics

	m.totalConns.Set(float64(stats.TotalConns))
	m.idleConns.Set(float64(stats.IdleConns))

	prev := c.lastStats
	if prev == nil {
		prev = &redis.PoolStats{}
	}
	if stats.Hits > prev.Hits {
		m.hits.Add(float64(stats.Hits - prev.Hits))
	}
	if stats.Misses > prev.Misses {
		m.misses.Add(float64(stats.Misses - prev.Misses))
	}
	if stats.Timeouts > prev.Timeouts {
		m.timeouts.Add(float64(stats.Timeouts - prev.Timeouts))
	}
	if stats.StaleConns > prev.StaleConns {
		m.staleConns.Add(float64(stats.StaleConns - prev.StaleConns))
	}

	c.lastStats = stats
}
