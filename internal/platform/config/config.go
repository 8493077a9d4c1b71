package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	Proof     Proof
	Templates Templates
	Services  Services
	Redis     RedisConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Reaper    ReaperConfig
	Issuance  IssuanceConfig
}

// Proof controls proof session polling.
type Proof struct {
	PollInterval time.Duration
	Timeout      time.Duration
	StateTTL     time.Duration
}

// Templates holds the proof template identifiers registered at the verification service.
type Templates struct {
	Loan      string
	CreditBio string
	Biometric string
	BankBio   string
}

// Services holds the upstream service endpoints and the key used to sign
// service tokens sent to them.
type Services struct {
	VerifierURL    string
	IssuerURL      string
	ServiceKey     string
	ServiceIssuer  string
	ServiceTimeout time.Duration
}

// RedisConfig configures the optional Redis client. An empty URL keeps state in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional Postgres pool. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL string
}

// KafkaConfig configures event publishing. Empty brokers disable it.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// IssuanceConfig controls the credential pickup cache.
type IssuanceConfig struct {
	LatestTTL time.Duration
}

// ReaperConfig controls closing of idle flows.
type ReaperConfig struct {
	Interval time.Duration
	IdleTTL  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("PROOFBRIDGE_ADDR", ":8080"),
		Environment: envString("ENVIRONMENT", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		Proof: Proof{
			PollInterval: envDuration("PROOF_POLL_INTERVAL", 5*time.Second),
			Timeout:      envDuration("PROOF_SESSION_TIMEOUT", 5*time.Minute),
			StateTTL:     envDuration("PROOF_STATE_TTL", 30*time.Minute),
		},
		Templates: Templates{
			Loan:      envString("TEMPLATE_LOAN_PROOF", "LOAN_PROOF"),
			CreditBio: envString("TEMPLATE_CREDITSCORE", "URBANSCAPE_CREDITSCORE"),
			Biometric: envString("TEMPLATE_BIOMETRIC", "BIOMETRIC_VERIFICATION"),
			BankBio:   envString("TEMPLATE_BANKBIO", "URBANSCAPE_BANKBIO"),
		},
		Services: Services{
			VerifierURL: envString("VERIFIER_URL", "http://localhost:9001"),
			IssuerURL:   envString("ISSUER_URL", "http://localhost:9002"),
			// Use a default for development - should be overridden in production
			ServiceKey:     envString("SERVICE_SIGNING_KEY", "dev-service-key-change-in-production"),
			ServiceIssuer:  envString("SERVICE_TOKEN_ISSUER", "proofbridge"),
			ServiceTimeout: envDuration("SERVICE_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.TrimSpace(os.Getenv("KAFKA_BROKERS")),
			Topic:   envString("KAFKA_CREDENTIAL_TOPIC", "proofbridge.credentials"),
		},
		Reaper: ReaperConfig{
			Interval: envDuration("REAPER_INTERVAL", time.Minute),
			IdleTTL:  envDuration("FLOW_IDLE_TTL", 15*time.Minute),
		},
		Issuance: IssuanceConfig{
			LatestTTL: envDuration("LATEST_CREDENTIAL_TTL", 24*time.Hour),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
