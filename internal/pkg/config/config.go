package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MaxEventSize int64  `env:"MAX_EVENT_SIZE_BYTES" envDefault:"1048576"` // 1MB

	RedisAddr      string `env:"REDIS_ADDR,required,notEmpty"`
	PostgresURL    string `env:"POSTGRES_URL,required,notEmpty"`
	IncidentDBPath string `env:"INCIDENT_DB_PATH" envDefault:"incidents.db"`

	IngestServerAddr string `env:"INGEST_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr  string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`

	QueueKey            string        `env:"QUEUE_KEY" envDefault:"errorlog:queue"`
	DLQKey              string        `env:"DLQ_KEY" envDefault:"errorlog:dlq"`
	IgnoredSetKey       string        `env:"IGNORED_SET_KEY" envDefault:"lc:ignored:log_hash"`
	QueueTTL            time.Duration `env:"QUEUE_TTL" envDefault:"60m"`
	DLQTTL              time.Duration `env:"DLQ_TTL" envDefault:"168h"`
	RedisHealthInterval time.Duration `env:"REDIS_HEALTH_INTERVAL" envDefault:"5s"`

	ConsumerBatchSize  int           `env:"CONSUMER_BATCH_SIZE" envDefault:"50"`
	ConsumerPopTimeout time.Duration `env:"CONSUMER_POP_TIMEOUT" envDefault:"2s"`
	ConsumerInterval   time.Duration `env:"CONSUMER_INTERVAL" envDefault:"1s"`
	ConsumerWorkers    int           `env:"CONSUMER_WORKERS" envDefault:"2"`

	NotifyRepeatThreshold int64         `env:"NOTIFY_REPEAT_THRESHOLD" envDefault:"10"`
	NotifyWebhookURL      string        `env:"NOTIFY_WEBHOOK_URL"`
	NotifyTimeout         time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	DraftHostSpreadThreshold int64         `env:"DRAFT_HOST_SPREAD_THRESHOLD" envDefault:"3"`
	DraftHighRecurThreshold  int64         `env:"DRAFT_HIGH_RECUR_THRESHOLD" envDefault:"100"`
	DraftRetention           time.Duration `env:"DRAFT_RETENTION" envDefault:"168h"`
	DraftCleanupInterval     time.Duration `env:"DRAFT_CLEANUP_INTERVAL" envDefault:"24h"`

	ResolveGrace           time.Duration `env:"RESOLVE_GRACE" envDefault:"2h"`
	LifecycleCloseInterval time.Duration `env:"LIFECYCLE_CLOSE_INTERVAL" envDefault:"1m"`

	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1m"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
	OutboxBackoffBase time.Duration `env:"OUTBOX_BACKOFF_BASE" envDefault:"1m"`
	OutboxBackoffMax  time.Duration `env:"OUTBOX_BACKOFF_MAX" envDefault:"2h"`

	QueueGaugeInterval time.Duration `env:"QUEUE_GAUGE_INTERVAL" envDefault:"15s"`

	// TraceExporter is one of none, stdout, otlp.
	TraceExporter string `env:"TRACE_EXPORTER" envDefault:"none"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTLPInsecure  bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ConsumerBatchSize <= 0 {
		return fmt.Errorf("CONSUMER_BATCH_SIZE must be positive, got %d", c.ConsumerBatchSize)
	}
	if c.ConsumerWorkers <= 0 {
		return fmt.Errorf("CONSUMER_WORKERS must be positive, got %d", c.ConsumerWorkers)
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE and OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if c.OutboxBackoffBase <= 0 || c.OutboxBackoffMax < c.OutboxBackoffBase {
		return fmt.Errorf("invalid outbox backoff: base=%s max=%s", c.OutboxBackoffBase, c.OutboxBackoffMax)
	}
	return nil
}
