package gacha

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Claim lock strategy:
// - Acquire: SET NX with a TTL, one network call, no waiting. A quest whose
//   claim is in flight in another process is refused, not queued.
// - Release: Lua compare-and-delete so an expired holder never removes a
//   lock that another process has taken since.
const releaseLockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// RedisClaimLock guards a quest claim across processes sharing one user
type RedisClaimLock struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      Logger
	newValue    func() string
}

var _ ClaimLock = (*RedisClaimLock)(nil)

// NewRedisClaimLock creates a claim lock; ttl <= 0 uses DefaultClaimLockTTL
func NewRedisClaimLock(redisClient *redis.Client, ttl time.Duration, logger Logger) *RedisClaimLock {
	if ttl <= 0 {
		ttl = DefaultClaimLockTTL
	}
	return &RedisClaimLock{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      orSilent(logger),
		newValue:    generateLockValue,
	}
}

func claimLockKey(userID string, questID int) string {
	return fmt.Sprintf("%s%s:%d", ClaimLockKeyPrefix, userID, questID)
}

// Acquire takes the lock for one quest. It returns ErrLockNotAcquired when
// another holder exists and a transport error when redis is unreachable.
func (l *RedisClaimLock) Acquire(ctx context.Context, userID string, questID int) (func(), error) {
	key := claimLockKey(userID, questID)
	value := l.newValue()

	ok, err := l.redisClient.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, NewTransportError("claim_lock", err).WithUserID(userID)
	}
	if !ok {
		l.logger.Debug("Claim lock busy: key=%s", key)
		return nil, NewRejectedError(ErrCodeLockAcquisitionFailed, "claim_lock", ErrLockNotAcquired.Message).
			WithUserID(userID).WithMetadata("quest_id", questID)
	}

	release := func() {
		// the claim's own context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), l.ttl)
		defer cancel()

		res, err := l.redisClient.Eval(rctx, releaseLockScript, []string{key}, value).Result()
		if err != nil {
			l.logger.Error("Failed to release claim lock %s: %v", key, err)
			return
		}
		if n, _ := res.(int64); n == 0 {
			l.logger.Debug("Claim lock %s expired before release", key)
		}
	}
	return release, nil
}
