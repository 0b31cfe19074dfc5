// Package config loads runtime configuration from the environment.
//
// Every field is defaulted; nothing is required at boot. Each field is read
// from one flat, unprefixed environment variable (e.g. SUBSTRATE_HOST,
// BLOCK_MS); there is no on-disk config document and no file layering
// beneath it — environment variables are the only tier.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Substrate holds connection settings for the KV & stream backend.
type Substrate struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// Config is the full set of knobs the runtime recognizes.
type Config struct {
	Substrate Substrate

	Stream    string
	DLQStream string

	KeyPrefix       string
	TracePrefix     string
	MetricsPrefix   string
	IdempotencePrefix string

	ConsumerGroup string
	ConsumerName  string

	BlockMS             int
	ReadCount           int64
	IdleReclaimMS       int64
	PendingReclaimCount int64
	MaxAttempts         int
	DedupeTTLSeconds    int
	LockTTLSeconds      int

	LogLevel string
}

// Load reads the environment and returns a fully defaulted Config.
func Load() Config {
	return Config{
		Substrate: Substrate{
			Host:     getString("SUBSTRATE_HOST", "127.0.0.1"),
			Port:     getInt("SUBSTRATE_PORT", 6379),
			DB:       getInt("SUBSTRATE_DB", 0),
			Password: getString("SUBSTRATE_PASSWORD", ""),
		},
		Stream:    getString("STREAM_NAME", "audit:events"),
		DLQStream: getString("DLQ_STREAM_NAME", "audit:dlq"),

		KeyPrefix:         getString("KEY_PREFIX", "audit"),
		TracePrefix:        getString("TRACE_PREFIX", "audit:trace"),
		MetricsPrefix:      getString("METRICS_PREFIX", "audit:metrics"),
		IdempotencePrefix:  getString("IDEMPOTENCE_PREFIX", "audit:idem"),

		ConsumerGroup: getString("CONSUMER_GROUP", "orchestrator"),
		ConsumerName:  getString("CONSUMER_NAME", defaultConsumerName()),

		BlockMS:             getInt("BLOCK_MS", 5000),
		ReadCount:           int64(getInt("READ_COUNT", 10)),
		IdleReclaimMS:       int64(getInt("IDLE_RECLAIM_MS", 30000)),
		PendingReclaimCount: int64(getInt("PENDING_RECLAIM_COUNT", 10)),
		MaxAttempts:         getInt("MAX_ATTEMPTS", 5),
		DedupeTTLSeconds:    getInt("DEDUPE_TTL_SECONDS", 24*3600),
		LockTTLSeconds:      getInt("LOCK_TTL_S", 120),

		LogLevel: getString("LOG_LEVEL", "info"),
	}
}

func (c Config) IdleReclaimDuration() time.Duration {
	return time.Duration(c.IdleReclaimMS) * time.Millisecond
}

func (c Config) BlockDuration() time.Duration {
	return time.Duration(c.BlockMS) * time.Millisecond
}

func (c Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "consumer-1"
	}
	return host
}

func getString(key, def string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
