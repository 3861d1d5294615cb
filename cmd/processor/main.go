package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerkraft/bookkeeping/internal/config"
	"github.com/ledgerkraft/bookkeeping/internal/processor"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"github.com/ledgerkraft/bookkeeping/pkg/prom"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(config.EnvPath(os.Args, ""))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.PgDebug())
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("processor"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	service, err := processor.NewProcessorService(redisAdap, processor.ServiceConfig{
		Queue:      cfg.Queue(""),
		Consumers:  cfg.QueueConsumers,
		Workers:    cfg.WorkerCount,
		BufferSize: cfg.WorkerBufferSize,
	})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewImportEventProcessor(repository.NewAccountRepository(db), idempotencyService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		service.Stop()
		return
	}

	<-c
	service.Stop()
}
