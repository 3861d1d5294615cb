package config

import (
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting of the api, processor and cli processes.
// Only pkg/logger reads the environment on its own, since it logs the load.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=bookkeeping"`
	AppDebug            bool   `env:"APP_DEBUG"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:3000"`
	HttpBaseRequestUrl     string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpRequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=30s"`
	HttpServerReadTimeout  int           `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int           `env:"HTTP_SERVER_WRITE_TIMEOUT"`

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

	RedisAddr               string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=bookkeeping:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=bookkeeping"`

	LogLevel string `env:"LOG_LEVEL"`

	QueueName              string        `env:"QUEUE_NAME,default=imports"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=import-processors"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	// EventsBroker selects where import events go: redis, kafka or none.
	EventsBroker string `env:"EVENTS_BROKER,default=redis"`
	KafkaBrokers string `env:"KAFKA_BROKERS,default=localhost:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=bookkeeping.imports"`

	ImportTimezone       string        `env:"IMPORT_TIMEZONE,default=UTC"`
	ImportAccountLock    bool          `env:"IMPORT_ACCOUNT_LOCK"`
	ImportAccountLockTTL time.Duration `env:"IMPORT_ACCOUNT_LOCK_TTL,default=2m"`

	WorkerCount      int `env:"WORKER_COUNT,default=16"`
	WorkerBufferSize int `env:"WORKER_BUFFER_SIZE,default=1000"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err = c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	switch c.EventsBroker {
	case "redis", "kafka", "none":
	default:
		return errors.Errorf("EVENTS_BROKER must be one of redis, kafka, none; got %q", c.EventsBroker)
	}
	if _, err := time.LoadLocation(c.ImportTimezone); err != nil {
		return errors.Wrapf(err, "IMPORT_TIMEZONE %q", c.ImportTimezone)
	}
	return nil
}

// Location is the time zone used for calendar-day comparisons during imports.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ImportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KafkaBrokerList splits the comma separated KAFKA_BROKERS value.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
