package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/ledgerkraft/bookkeeping/internal/config"
	"github.com/ledgerkraft/bookkeeping/internal/events"
	"github.com/ledgerkraft/bookkeeping/internal/handlers"
	"github.com/ledgerkraft/bookkeeping/internal/queue"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
	"github.com/ledgerkraft/bookkeeping/internal/services"
	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	s := xhttp.CreateServerWith(xhttp.DefaultServerOption.WithTimeouts(cfg.HttpServerReadTimeout, cfg.HttpServerWriteTimeout))
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.AuthenticatedUserMiddleware)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.PgDebug())
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("api"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	publisher, closePublisher, err := newPublisher(cfg, redisAdap)
	if err != nil {
		logger.Error("failed creating event publisher", "broker", cfg.EventsBroker, "error", err)
		return
	}
	defer closePublisher()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	loc := cfg.Location()
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	reconciler := services.NewBalanceReconciler(accountRepo, transactionRepo, repository.NewAccountBalanceRepository(db), loc)
	ingestion := services.NewIngestionService(
		db,
		transactionRepo,
		repository.NewCoordinateRepository(db),
		repository.NewCategoryRepository(db),
		services.NewNoCategoryCache(),
		services.NewIdentityResolver(repository.NewIdentityRepository(db)),
		reconciler,
		services.WithLocation(loc),
		services.WithPublisher(publisher),
		services.WithCashAccounts(repository.NewUserPreferenceRepository(db)),
	)
	accounts := services.NewAccountService(accountRepo, transactionRepo)

	var lock handlers.AccountLocker
	if cfg.ImportAccountLock {
		lock = handlers.NewRedisAccountLock(redisAdap, cfg.ImportAccountLockTTL)
	}

	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(ingestion, lock))
	handlers.RegisterAccountRoutes(g, handlers.NewAccountHandler(accounts))
	registerHealth(s.Router, g, db, redisAdap)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

// registerHealth serves the check at the root and under the api prefix.
func registerHealth(r *xhttp.Router, g *router.Group, db *pg.DB, redisAdap redis.RedisAdapter) {
	h := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"postgres": db,
		"redis":    redisAdap,
	})
	r.GET("/health", h.GetHealth)
	handlers.RegisterHealthRoutes(g, h)
}

func newPublisher(cfg *config.Config, redisAdap redis.RedisAdapter) (services.EventPublisher, func(), error) {
	switch cfg.EventsBroker {
	case "kafka":
		p, err := events.DialKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn("kafka producer close failed", "error", err)
			}
		}, nil
	case "none":
		return events.NopPublisher{}, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q, err := queue.New(ctx, redisAdap, cfg.Queue("api"))
	if err != nil {
		return nil, nil, err
	}
	return events.NewStreamPublisher(q), func() { _ = q.Stop(time.Second) }, nil
}
