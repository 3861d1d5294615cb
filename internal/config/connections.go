package config

import (
	"os"
	"strings"

	"github.com/ledgerkraft/bookkeeping/internal/queue"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
)

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) RedisOptions(clientName string) *redis.Options {
	return &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: clientName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}

// Queue describes the import event stream. consumerName falls back to
// QUEUE_CONSUMER_NAME and then to the host name.
func (c *Config) Queue(consumerName string) queue.Config {
	if consumerName == "" {
		consumerName = c.QueueConsumerName
	}
	if consumerName == "" {
		consumerName, _ = os.Hostname()
	}
	return queue.Config{
		Name:              c.QueueName,
		ConsumerGroup:     c.QueueConsumerGroup,
		ConsumerName:      consumerName,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}

// PgDebug turns on gorm statement logging outside production.
func (c *Config) PgDebug() bool {
	return c.AppDebug || c.AppEnv == "dev"
}

// ArgValue returns the value of a --name=value argument, or "" when absent.
func ArgValue(args []string, name string) string {
	prefix := "--" + name + "="
	for _, v := range args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}

// EnvPath returns the --env file when it exists. fallback is used when the
// flag is absent and the fallback file exists.
func EnvPath(args []string, fallback string) string {
	path := ArgValue(args, "env")
	if path == "" {
		path = fallback
	}
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("env file not readable, using process environment", "path", path, "error", err)
		return ""
	}
	return path
}
