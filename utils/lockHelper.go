package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/retail_backend/config"
)

var ErrorLockNotObtained = errors.New("could not obtain lock")

const organizationLockTTL = 30 * time.Second

// ObtainOrganizationLock takes $lockType:$organizationId:$key with a short linear retry.
// The caller releases the lock once its transaction has committed.
func ObtainOrganizationLock(ctx context.Context, lockType string, organizationId string, key string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogError(logger, "lockHelper.go", "ObtainOrganizationLock", "Redis lock not initialized", organizationId, errors.New("redis lock is nil"))
		return nil, ErrorServiceNotReady
	}
	lockKey := fmt.Sprintf("%s:%s:%s", lockType, organizationId, key)
	lock, err := locker.Obtain(ctx, lockKey, organizationLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, "lockHelper.go", "ObtainOrganizationLock", "Could not obtain lock", lockKey, err)
		return nil, ErrorLockNotObtained
	} else if err != nil {
		config.LogError(logger, "lockHelper.go", "ObtainOrganizationLock", "Error obtaining lock", lockKey, err)
		return nil, err
	}
	return lock, nil
}

// ReleaseLock is nil-safe so callers can defer it unconditionally.
func ReleaseLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		config.LogError(config.GetLogger(), "lockHelper.go", "ReleaseLock", "Release lock", lock.Key(), err)
	}
}
