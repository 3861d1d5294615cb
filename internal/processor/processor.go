package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/events"
	"github.com/ledgerkraft/bookkeeping/internal/queue"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/prom"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
	"github.com/ledgerkraft/bookkeeping/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const MetricsInterval = time.Second * 30
const ShutdownTimeout = time.Minute

const highLagThreshold = 10_000

var ErrWorkerPoolStopped = errors.New("worker pool is stopped")

// Processor handles one event type read from the import stream.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue      queue.Config
	Consumers  int
	Workers    int
	BufferSize int
}

// ProcessorService fans stream messages out to a worker pool and routes
// each one to the processor registered for its type.
type ProcessorService struct {
	adapter redis.RedisAdapter
	config  ServiceConfig
	metrics *ServiceMetrics
	worker  *worker.WorkerManager

	mu         sync.RWMutex
	processors map[string]Processor
	queues     []*queue.Queue

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter, cfg ServiceConfig) (*ProcessorService, error) {
	if adapter == nil {
		return nil, errors.New("redis adapter is required")
	}
	if cfg.Consumers <= 0 {
		cfg.Consumers = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:    adapter,
		config:     cfg,
		metrics:    NewServiceMetrics(),
		worker:     worker.NewWorkerManager(cfg.BufferSize, cfg.Workers, nil),
		processors: make(map[string]Processor),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (s *ProcessorService) RegisterProcessor(p Processor) {
	s.mu.Lock()
	s.processors[p.GetType()] = p
	s.mu.Unlock()
	logger.Info("Registered processor", "type", p.GetType())
}

func (s *ProcessorService) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

func (s *ProcessorService) Start() error {
	logger.Info("Starting Processor Service...")

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil && !errors.Is(err, worker.ErrWorkersTerminated) {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		qc := s.config.Queue
		qc.ConsumerName = fmt.Sprintf("%s-%d", qc.ConsumerName, i)

		q, err := queue.New(s.ctx, s.adapter, qc)
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}

		s.mu.Lock()
		s.queues = append(s.queues, q)
		s.mu.Unlock()
		logger.Debug("Started consumer", "consumer", qc.ConsumerName)
	}

	s.wg.Add(2)
	go s.every(MetricsInterval, s.reportMetrics)
	go s.every(HealthInterval, s.performHealthCheck)

	logger.Info("Processor Service started", "consumers", s.config.Consumers, "workers", s.config.Workers)
	return nil
}

func (s *ProcessorService) every(interval time.Duration, fn func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) consumers() []*queue.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*queue.Queue(nil), s.queues...)
}

func (s *ProcessorService) reportMetrics() {
	m := s.metrics.Snapshot()
	logger.Info("processor metrics",
		"processed", m.Processed,
		"failed", m.Failed,
		"unrouted", m.Unrouted,
		"worker_backlog", s.worker.Backlog(),
		"rate_per_second", m.RatePerSecond,
		"avg_duration_ms", m.AvgDuration.Milliseconds(),
		"uptime_seconds", int64(m.Uptime.Seconds()))

	// consumers share one stream, so the first one speaks for all
	if qs := s.consumers(); len(qs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if st, err := qs[0].Stats(ctx); err == nil {
			prom.SetQueueDepth(qs[0].Name(), st.TotalMessages, st.PendingMessages, st.DeadLetters)
			logger.Info("queue stats",
				"queue", qs[0].Name(),
				"total", st.TotalMessages,
				"pending", st.PendingMessages,
				"dead_letters", st.DeadLetters)
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}
	qs := s.consumers()
	if len(qs) == 0 {
		return
	}
	st, err := qs[0].Stats(ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "queue", qs[0].Name(), "error", err)
		return
	}
	if st.PendingMessages > highLagThreshold {
		logger.Warn("health check: queue has high lag", "queue", qs[0].Name(), "pending", st.PendingMessages)
	}
}

// Stop stops the consumers first so no new job is enqueued, then the pool.
func (s *ProcessorService) Stop() {
	logger.Info("Shutting down Processor Service...")
	s.cancel()

	var wg sync.WaitGroup
	for _, q := range s.consumers() {
		wg.Add(1)
		go func(q *queue.Queue) {
			defer wg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("Error stopping consumer", "error", err)
			}
		}(q)
	}
	wg.Wait()

	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("Processor Service stopped")
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler hands the message to the pool and waits for its result so
// the queue acks or leaves it pending accordingly.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	j := &job{ctx: ctx, msg: msg, result: make(chan error, 1)}
	if !s.worker.Enqueue(j) {
		return ErrWorkerPoolStopped
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker: %w", ctx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("job expired before processing", "worker", workerIndex, "id", j.msg.ID)
		return
	}

	// result is buffered so a timed out waiter never blocks the worker
	j.result <- s.dispatch(workerIndex, j)
}

func (s *ProcessorService) dispatch(workerIndex int, j *job) error {
	eventType := j.msg.Metadata[events.MetaEventType]

	s.mu.RLock()
	p, ok := s.processors[eventType]
	s.mu.RUnlock()
	if !ok {
		// retrying cannot help a message nobody handles
		s.metrics.RecordUnrouted()
		logger.Warn("no processor for message", "worker", workerIndex, "id", j.msg.ID, "type", eventType)
		return nil
	}

	ctx, cancel := context.WithTimeout(j.ctx, ProcessingTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Process(ctx, j.msg); err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to process message",
			"worker", workerIndex,
			"id", j.msg.ID,
			"type", eventType,
			"attempts", j.msg.Attempts,
			"error", err)
		return err
	}
	elapsed := time.Since(start)
	s.metrics.RecordSuccess(elapsed)
	prom.ObserveEventDuration(elapsed.Seconds())
	return nil
}
