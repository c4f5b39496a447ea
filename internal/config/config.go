package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting of the gateway binaries. Nothing else reads the
// environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=expense_gateway"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=10s"`
	HttpServerWriteTimeout time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=10s"`
	HttpRequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=3m"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=expense"`

	PromNamespace string `env:"PROM_NAMESPACE,default=expense_gateway"`

	QueueName              string        `env:"QUEUE_NAME,default=reindex"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=reindexers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME,default=reindexer-1"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=1m"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	ProcessorWorkers       int           `env:"PROCESSOR_WORKERS,default=4"`

	DirectoryURL         string        `env:"DIRECTORY_URL"`
	DirectoryUser        string        `env:"DIRECTORY_USER"`
	DirectoryPassword    string        `env:"DIRECTORY_PASSWORD"`
	DirectoryTimeout     time.Duration `env:"DIRECTORY_TIMEOUT,default=30s"`
	DirectoryMaxAttempts int           `env:"DIRECTORY_MAX_ATTEMPTS,default=3"`
	DirectoryBackoff     time.Duration `env:"DIRECTORY_BACKOFF,default=1s"`
	DirectoryCacheTTL    time.Duration `env:"DIRECTORY_CACHE_TTL,default=5m"`

	ErpURL                   string        `env:"ERP_URL"`
	ErpTimeout               time.Duration `env:"ERP_TIMEOUT,default=15s"`
	ErpSupportsCorrelationID bool          `env:"ERP_SUPPORTS_CORRELATION_ID"`
	ErpCompanyID             int64         `env:"ERP_COMPANY_ID,default=1"`
	ErpPinTimeout            time.Duration `env:"ERP_PIN_TIMEOUT,default=5s"`

	SearchURL      string        `env:"SEARCH_URL"`
	SearchIndex    string        `env:"SEARCH_INDEX,default=expense_records"`
	SearchAPIKey   string        `env:"SEARCH_API_KEY"`
	SearchUsername string        `env:"SEARCH_USERNAME"`
	SearchPassword string        `env:"SEARCH_PASSWORD"`
	SearchTimeout  time.Duration `env:"SEARCH_TIMEOUT,default=10s"`

	TrackingURL     string        `env:"TRACKING_URL"`
	TrackingTimeout time.Duration `env:"TRACKING_TIMEOUT,default=3s"`
	VehicleTimeout  time.Duration `env:"VEHICLE_TIMEOUT,default=10s"`

	BotURL     string        `env:"BOT_URL"`
	BotTimeout time.Duration `env:"BOT_TIMEOUT,default=10s"`

	SyncSecretToken string        `env:"SYNC_SECRET_TOKEN"`
	ReconcileWindow time.Duration `env:"RECONCILE_WINDOW,default=10m"`
	SweepMaxAge     time.Duration `env:"SWEEP_MAX_AGE,default=1h"`
	SweepBatchLimit int           `env:"SWEEP_BATCH_LIMIT,default=50"`
	// SweepDeadline bounds one sweep run. cmd/api keeps it under HTTP_REQUEST_TIMEOUT.
	SweepDeadline time.Duration `env:"SWEEP_DEADLINE,default=2m"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Config")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
