// Package config provides configuration structures and validation for the tip bot.
// It handles environment-based configuration for the event loop, the chain adapter,
// the stores it writes to and the admin HTTP surface.
package config

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Chain       ChainConfig
	Keystore    KeystoreConfig
	Bot         BotConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Directory   DirectoryConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains admin HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration for the platform bridge
type KafkaConfig struct {
	Brokers           string
	EventsTopic       string // Inbound comments and messages
	NotificationTopic string // Outbound replies and direct messages
	NumPartitions     int    // Number of partitions for topics
	ReplicationFactor int    // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	FetchBatchSize    int           // Maximum events returned by one fetch
	FetchTimeout      time.Duration // How long one fetch waits for new events
	DLQTopic          string        // Topic for events that exhausted their retries
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the key-value store configuration
type RedisConfig struct {
	Addrs        string // Comma separated; more than one address selects a cluster client
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// AddrList splits Addrs into individual host:port entries.
func (c RedisConfig) AddrList() []string {
	var addrs []string
	for _, a := range strings.Split(c.Addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// ChainConfig contains the algod node configuration
type ChainConfig struct {
	AlgodAddress   string
	AlgodToken     string
	APIKeyHeader   string        // Header carrying the token for hosted nodes, empty for a plain algod token
	RequestTimeout time.Duration // Upper bound for a single node call
}

// KeystoreConfig contains the key sealing configuration
type KeystoreConfig struct {
	MasterKey string // 64 hex characters, AES-256
}

// BotConfig contains the event loop and business rule settings
type BotConfig struct {
	Name                 string
	CommentPrefixes      string        // Comma separated invocation prefixes for comments
	CycleInterval        time.Duration // Idle delay between cycles
	ConfirmationEvery    int           // Drain the tracker every N cycles
	MaxConfirmationPolls int           // Drains before a pending transaction is reported unconfirmed
	MaxEventRetries      int           // Re-queues allowed for an event hitting an unavailable ledger
	IdempotencyTTL       time.Duration // Retention of processed-event markers
	SeenCacheSize        int           // In-memory dedupe window
	ReserveMicro         int64         // Balance a wallet must keep, in micro-units
	FirstContactMicro    int64         // Minimum first transfer to an empty wallet, in micro-units
}

// Prefixes returns the lowercased comment invocation prefixes.
func (c BotConfig) Prefixes() []string {
	var prefixes []string
	for _, p := range strings.Split(c.CommentPrefixes, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of events dispatched concurrently
}

// DirectoryConfig contains the identity directory endpoint of the platform bridge
type DirectoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// validate performs validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.EventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
	}
	if c.Kafka.NotificationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_NOTIFICATION_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.FetchBatchSize <= 0 {
		validationErrors = append(validationErrors, "KAFKA_FETCH_BATCH_SIZE must be greater than 0")
	}
	if c.Kafka.FetchTimeout <= 0 {
		validationErrors = append(validationErrors, "KAFKA_FETCH_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Validate Redis config
	if len(c.Redis.AddrList()) == 0 {
		validationErrors = append(validationErrors, "REDIS_ADDRS is required")
	}
	if c.Redis.DB < 0 {
		validationErrors = append(validationErrors, "REDIS_DB must not be negative")
	}

	// Validate Chain config
	if c.Chain.AlgodAddress == "" {
		validationErrors = append(validationErrors, "ALGOD_ADDRESS is required")
	}
	if c.Chain.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "ALGOD_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate Keystore config
	if key, err := hex.DecodeString(c.Keystore.MasterKey); err != nil || len(key) != 32 {
		validationErrors = append(validationErrors, "KEYSTORE_MASTER_KEY must be 64 hex characters")
	}

	// Validate Bot config
	if c.Bot.Name == "" {
		validationErrors = append(validationErrors, "BOT_NAME is required")
	}
	if len(c.Bot.Prefixes()) == 0 {
		validationErrors = append(validationErrors, "BOT_COMMENT_PREFIXES is required")
	}
	if c.Bot.CycleInterval <= 0 {
		validationErrors = append(validationErrors, "BOT_CYCLE_INTERVAL must be greater than 0")
	}
	if c.Bot.ConfirmationEvery <= 0 {
		validationErrors = append(validationErrors, "BOT_CONFIRMATION_EVERY must be greater than 0")
	}
	if c.Bot.MaxConfirmationPolls <= 0 {
		validationErrors = append(validationErrors, "BOT_MAX_CONFIRMATION_POLLS must be greater than 0")
	}
	if c.Bot.MaxEventRetries < 0 {
		validationErrors = append(validationErrors, "BOT_MAX_EVENT_RETRIES must not be negative")
	}
	if c.Bot.IdempotencyTTL <= 0 {
		validationErrors = append(validationErrors, "BOT_IDEMPOTENCY_TTL must be greater than 0")
	}
	if c.Bot.SeenCacheSize <= 0 {
		validationErrors = append(validationErrors, "BOT_SEEN_CACHE_SIZE must be greater than 0")
	}
	if c.Bot.ReserveMicro < 0 {
		validationErrors = append(validationErrors, "BOT_RESERVE_MICRO must not be negative")
	}
	if c.Bot.FirstContactMicro < 0 {
		validationErrors = append(validationErrors, "BOT_FIRST_CONTACT_MICRO must not be negative")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Directory config
	if c.Directory.BaseURL == "" {
		validationErrors = append(validationErrors, "DIRECTORY_BASE_URL is required")
	}
	if c.Directory.Timeout <= 0 {
		validationErrors = append(validationErrors, "DIRECTORY_TIMEOUT must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
