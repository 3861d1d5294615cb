package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
)

var ErrAccountBusy = errors.New("another import for this account is running")

type AccountLocker interface {
	Lock(ctx context.Context, accountID int64) (unlock func(), err error)
}

const accountLockKeyPrefix = "import-lock:"

// RedisAccountLock serializes imports per account across API instances.
// The TTL bounds how long a crashed holder blocks the account.
type RedisAccountLock struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewRedisAccountLock(r redis.RedisAdapter, ttl time.Duration) *RedisAccountLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisAccountLock{redis: r, ttl: ttl}
}

func (l *RedisAccountLock) Lock(ctx context.Context, accountID int64) (func(), error) {
	key := accountLockKeyPrefix + strconv.FormatInt(accountID, 10)
	token := []byte(uuid.NewString())

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountBusy
	}

	return func() {
		released, err := l.redis.DelIfEqual(context.Background(), key, token)
		if err != nil {
			logger.Warn("release account lock", "account_id", accountID, "error", err)
			return
		}
		if !released {
			logger.Warn("account lock expired before release", "account_id", accountID, "ttl", l.ttl)
		}
	}, nil
}
