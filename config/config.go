package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	ListenAddr  string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	// Queue
	QueuePartitions   int
	ConsumerGroup     string
	ConsumerName      string
	WorkerConcurrency int
	RateLimitMax      int
	RateLimitWindow   time.Duration

	// Retry policy
	RetryAttempts int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration

	// Venue simulation
	QuoteLatency      time.Duration
	SettlementLatency time.Duration
	VenueFile         string // optional YAML venue/price-table override
	FailExecution     bool   // force executor failures (fault injection)

	// Logging
	LogFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":3000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/deadletters.db"),

		QueuePartitions:   getEnvInt("QUEUE_PARTITIONS", 4),
		ConsumerGroup:     getEnv("QUEUE_CONSUMER_GROUP", "order-workers"),
		ConsumerName:      getEnv("QUEUE_CONSUMER_NAME", defaultConsumerName()),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		RateLimitMax:      getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:  getEnvDuration("RETRY_BACKOFF", time.Second),
		RetryMaxDelay: getEnvDuration("RETRY_MAX_DELAY", 60*time.Second),

		QuoteLatency:      getEnvDuration("QUOTE_LATENCY", 200*time.Millisecond),
		SettlementLatency: getEnvDuration("SETTLEMENT_LATENCY", 15*time.Second),
		VenueFile:         getEnv("VENUE_FILE", ""),
		FailExecution:     getEnvBool("FAIL_EXECUTION", false),

		LogFile: getEnv("LOG_FILE", ""),
	}
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-1"
	}
	return host
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go duration strings ("15s", "200ms") and, for
// compatibility with older deploy scripts, bare integers meaning milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
