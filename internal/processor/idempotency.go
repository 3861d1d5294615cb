package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("event already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "event:retry:",
		LockKeyPrefix:      "event:lock:",
		ProcessedKeyPrefix: "event:processed:",
	}
}

// IdempotencyService guards event handling with three redis keys per event:
// a processed marker, a short processing lock and a retry counter.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	EventID    string
	RetryCount int
	IsRetry    bool

	lockToken []byte
}

func (s *IdempotencyService) Acquire(ctx context.Context, eventID string) (*ProcessingContext, error) {
	processed, err := s.IsProcessed(ctx, eventID)
	if err != nil {
		// a lost marker check risks a repeat, which the handlers tolerate
		logger.Warn("processed marker check failed", "event_id", eventID, "error", err)
	} else if processed {
		logger.Debug("event already processed, skipping", "event_id", eventID)
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.RetryCount(ctx, eventID)
	if err != nil {
		logger.Warn("retry counter read failed", "event_id", eventID, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		logger.Error("event exceeded retries", "event_id", eventID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: event_id=%s, retries=%d", ErrMaxRetriesExceeded, eventID, retryCount)
	}

	token := []byte(uuid.NewString())
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+eventID, token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Debug("event lock held by another consumer", "event_id", eventID)
		return nil, ErrLockAcquireFailed
	}

	return &ProcessingContext{
		EventID:    eventID,
		RetryCount: retryCount,
		IsRetry:    retryCount > 0,
		lockToken:  token,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.EventID, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("mark event %s processed: %w", pc.EventID, err)
	}
	if err := s.redis.Del(ctx, s.config.RetryKeyPrefix+pc.EventID); err != nil {
		logger.Warn("retry counter cleanup failed", "event_id", pc.EventID, "error", err)
	}
	return s.Release(ctx, pc)
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next := pc.RetryCount + 1
	if err := s.redis.Set(ctx, s.config.RetryKeyPrefix+pc.EventID, []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("retry counter update failed", "event_id", pc.EventID, "error", err)
	}
	logger.Warn("event processing failed",
		"event_id", pc.EventID,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return s.Release(ctx, pc)
}

// Release drops the lock if this context still holds it.
func (s *IdempotencyService) Release(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || pc.lockToken == nil {
		return nil
	}
	released, err := s.redis.DelIfEqual(ctx, s.config.LockKeyPrefix+pc.EventID, pc.lockToken)
	if err != nil {
		return fmt.Errorf("release lock of event %s: %w", pc.EventID, err)
	}
	if !released {
		logger.Warn("event lock expired while processing", "event_id", pc.EventID, "lock_ttl", s.config.LockTTL)
	}
	pc.lockToken = nil
	return nil
}

func (s *IdempotencyService) RetryCount(ctx context.Context, eventID string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+eventID)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt retry counter for event %s: %w", eventID, err)
	}
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+eventID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
