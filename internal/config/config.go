package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"telemetry-service/internal/util"
)

// Config is the full runtime configuration, loaded once at process start.
type Config struct {
	Environment string
	Logging     LoggingConfig
	Server      ServerConfig
	Redis       RedisConfig
	Scylla      ScyllaConfig
	Clickhouse  ClickhouseConfig
	Kafka       KafkaConfig
	Elastic     ElasticConfig
	KMS         KMSConfig
	Ingest      IngestConfig
	Reputation  ReputationConfig
	Correlation CorrelationConfig
	Score       ScoreConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AdminKey     string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
}

type ElasticConfig struct {
	URL           string
	Username      string
	Password      string
	IncidentIndex string
}

type KMSConfig struct {
	Enabled bool
	Region  string
	KeyID   string
}

// IngestConfig holds the knobs of the ingestion gate.
type IngestConfig struct {
	RateLimitPerMin int
	MaxBatchEvents  int
}

// ReputationConfig holds provider credentials and cache TTL.
// Keys may be KMS ciphertexts when KMS is enabled.
type ReputationConfig struct {
	TTL          time.Duration
	AbuseIPDBKey string
	IPInfoKey    string
	ShodanKey    string
}

type CorrelationConfig struct {
	WindowMinutes int
}

type ScoreConfig struct {
	WindowDays int
}

var (
	instance *Config
	once     sync.Once
)

// LoadConfig reads configuration from the environment (and .env if present).
func LoadConfig() *Config {
	once.Do(func() {
		// .env is optional; ignore the error when the file is absent.
		_ = godotenv.Load()

		instance = &Config{
			Environment: util.GetEnv("ENVIRONMENT", "development"),
			Logging: LoggingConfig{
				Level:  util.GetEnv("LOG_LEVEL", "info"),
				Format: util.GetEnv("LOG_FORMAT", "json"),
			},
			Server: ServerConfig{
				Port:         util.GetEnvInt("SERVER_PORT", 8080),
				ReadTimeout:  time.Duration(util.GetEnvInt("SERVER_READ_TIMEOUT_SEC", 15)) * time.Second,
				WriteTimeout: time.Duration(util.GetEnvInt("SERVER_WRITE_TIMEOUT_SEC", 30)) * time.Second,
				IdleTimeout:  time.Duration(util.GetEnvInt("SERVER_IDLE_TIMEOUT_SEC", 60)) * time.Second,
				AdminKey:     util.GetEnv("SERVER_ADMIN_KEY", ""),
			},
			Redis: RedisConfig{
				URL:      util.GetEnv("REDIS_URL", ""),
				Password: util.GetEnv("REDIS_PASSWORD", ""),
				DB:       util.GetEnvInt("REDIS_DB", 0),
				PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 50),
			},
			Scylla: ScyllaConfig{
				Nodes:    util.GetEnvList("SCYLLA_NODES", nil),
				Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "telemetry"),
				Username: util.GetEnv("SCYLLA_USERNAME", ""),
				Password: util.GetEnv("SCYLLA_PASSWORD", ""),
			},
			Clickhouse: ClickhouseConfig{
				URL:      util.GetEnv("CLICKHOUSE_URL", ""),
				Database: util.GetEnv("CLICKHOUSE_DATABASE", "telemetry"),
				Table:    util.GetEnv("CLICKHOUSE_EVENTS_TABLE", "events"),
				Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
				Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Kafka: KafkaConfig{
				Brokers:            util.GetEnvList("KAFKA_BROKERS", nil),
				NotificationsTopic: util.GetEnv("KAFKA_NOTIFICATIONS_TOPIC", "incident-notifications"),
			},
			Elastic: ElasticConfig{
				URL:           util.GetEnv("ELASTIC_URL", ""),
				Username:      util.GetEnv("ELASTIC_USERNAME", ""),
				Password:      util.GetEnv("ELASTIC_PASSWORD", ""),
				IncidentIndex: util.GetEnv("ELASTIC_INCIDENT_INDEX", "incidents"),
			},
			KMS: KMSConfig{
				Enabled: util.GetEnvBool("KMS_ENABLED", false),
				Region:  util.GetEnv("KMS_REGION", "us-east-1"),
				KeyID:   util.GetEnv("KMS_KEY_ID", ""),
			},
			Ingest: IngestConfig{
				RateLimitPerMin: util.GetEnvInt("INGEST_RATE_LIMIT_PER_MIN", 600),
				MaxBatchEvents:  util.GetEnvInt("INGEST_MAX_BATCH_EVENTS", 5000),
			},
			Reputation: ReputationConfig{
				TTL:          time.Duration(util.GetEnvInt("IP_REP_TTL_SEC", 86400)) * time.Second,
				AbuseIPDBKey: util.GetEnv("ABUSEIPDB_KEY", ""),
				IPInfoKey:    util.GetEnv("IPINFO_KEY", ""),
				ShodanKey:    util.GetEnv("SHODAN_KEY", ""),
			},
			Correlation: CorrelationConfig{
				WindowMinutes: util.GetEnvInt("CORRELATION_WINDOW_MINUTES", 30),
			},
			Score: ScoreConfig{
				WindowDays: util.GetEnvInt("SCORE_DEFAULT_WINDOW_DAYS", 7),
			},
		}
	})

	return instance
}

// Get returns the loaded configuration.
func Get() *Config {
	if instance == nil {
		return LoadConfig()
	}
	return instance
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
