package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/ledger_backend/config"
)

var ErrLockNotObtained = errors.New("resource is busy, retry later")

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// PostingLock takes a short redis lock named lockType:id and returns its release func.
// Without a redis lock client it returns a no-op release: database constraints
// keep postings correct, the lock only smooths contention.
func PostingLock(ctx context.Context, lockType string, id int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("lock:posting:%s:%d", lockType, id)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain posting lock", lockKey, err)
		return nil, ErrLockNotObtained
	} else if err != nil {
		// redis trouble must not block postings
		config.LogError(logger, moduleName, functionName, "Error obtaining posting lock", lockKey, err)
		return func() {}, nil
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
