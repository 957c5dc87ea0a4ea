package gacha

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// questSnapshot is the persisted form of a quest refresh
type questSnapshot struct {
	UserID  string       `json:"user_id"`
	States  []QuestState `json:"states"`
	SavedAt int64        `json:"saved_at"`
}

// RedisQuestCache keeps the last quest snapshot and recent batch summaries
// in redis so a restarted client can render something before its first sync.
type RedisQuestCache struct {
	redisClient    *redis.Client
	logger         Logger
	ttl            time.Duration
	historySize    int
	retryAttempts  int
	retryBaseDelay time.Duration
}

var _ QuestCache = (*RedisQuestCache)(nil)

// NewRedisQuestCache creates a cache with default TTL, history size and retry settings
func NewRedisQuestCache(redisClient *redis.Client, logger Logger) *RedisQuestCache {
	return NewRedisQuestCacheWithRetry(redisClient, logger, DefaultRetryAttempts, DefaultRetryInterval)
}

// NewRedisQuestCacheWithRetry creates a cache with custom retry settings
func NewRedisQuestCacheWithRetry(redisClient *redis.Client, logger Logger, retryAttempts int, retryDelay time.Duration) *RedisQuestCache {
	return &RedisQuestCache{
		redisClient:    redisClient,
		logger:         orSilent(logger),
		ttl:            DefaultCacheTTL,
		historySize:    DefaultBatchHistorySize,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryDelay,
	}
}

// NewRedisQuestCacheFromConfig applies the cache section of Config
func NewRedisQuestCacheFromConfig(redisClient *redis.Client, config *CacheConfig, logger Logger) *RedisQuestCache {
	c := NewRedisQuestCache(redisClient, logger)
	if config != nil {
		if config.TTL > 0 {
			c.ttl = config.TTL
		}
		if config.HistorySize > 0 {
			c.historySize = config.HistorySize
		}
	}
	return c
}

func questKey(userID string) string   { return QuestKeyPrefix + userID }
func historyKey(userID string) string { return BatchHistoryKeyPrefix + userID }

// isRetriableRedisError checks if a Redis error is worth another attempt
func isRetriableRedisError(err error) bool {
	if err == nil || err == redis.Nil {
		return false
	}
	return IsRetryableError(err)
}

// executeWithRetry runs a redis operation with exponential backoff
func (c *RedisQuestCache) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	startTime := time.Now()

	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * c.retryBaseDelay
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}

			c.logger.Debug("Retrying %s (attempt %d/%d) after %v", operation, attempt, c.retryAttempts, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry for %s after %v: %w",
					operation, time.Since(startTime), ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Completed %s after %d retries in %v", operation, attempt, time.Since(startTime))
			}
			return nil
		}

		lastErr = err
		if !isRetriableRedisError(err) {
			c.logger.Debug("Non-retriable error for %s: %v", operation, err)
			break
		}
	}

	return fmt.Errorf("%s failed after %v: %w", operation, time.Since(startTime), lastErr)
}

// SaveQuests stores the snapshot with the configured TTL
func (c *RedisQuestCache) SaveQuests(ctx context.Context, userID string, states []QuestState) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	data, err := json.Marshal(questSnapshot{UserID: userID, States: states, SavedAt: time.Now().Unix()})
	if err != nil {
		return NewError(ErrCodeSerializationFailed, "failed to encode quest snapshot").WithCause(err)
	}

	key := questKey(userID)
	err = c.executeWithRetry(ctx, fmt.Sprintf("save[%s]", key), func() error {
		return c.redisClient.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		c.logger.Error("Failed to save quest snapshot: key=%s, error=%v", key, err)
		return NewTransportError("cache_save", err).WithUserID(userID)
	}

	c.logger.Debug("Saved quest snapshot: key=%s, quests=%d, size=%d bytes", key, len(states), len(data))
	return nil
}

// LoadQuests returns the stored snapshot, or nil when none exists
func (c *RedisQuestCache) LoadQuests(ctx context.Context, userID string) ([]QuestState, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	key := questKey(userID)
	var data []byte
	err := c.executeWithRetry(ctx, fmt.Sprintf("load[%s]", key), func() error {
		var err error
		data, err = c.redisClient.Get(ctx, key).Bytes()
		if err == redis.Nil {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Error("Failed to load quest snapshot: key=%s, error=%v", key, err)
		return nil, NewTransportError("cache_load", err).WithUserID(userID)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var snap questSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, NewError(ErrCodeDeserializationFailed, "quest snapshot is corrupted").WithCause(err)
	}
	return snap.States, nil
}

// AppendBatch pushes a summary and trims the list to the history size
func (c *RedisQuestCache) AppendBatch(ctx context.Context, userID string, summary BatchSummary) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return NewError(ErrCodeSerializationFailed, "failed to encode batch summary").WithCause(err)
	}

	key := historyKey(userID)
	err = c.executeWithRetry(ctx, fmt.Sprintf("append[%s]", key), func() error {
		return c.redisClient.LPush(ctx, key, data).Err()
	})
	if err == nil {
		err = c.executeWithRetry(ctx, fmt.Sprintf("trim[%s]", key), func() error {
			return c.redisClient.LTrim(ctx, key, 0, int64(c.historySize-1)).Err()
		})
	}
	if err != nil {
		c.logger.Error("Failed to append batch summary: key=%s, error=%v", key, err)
		return NewTransportError("cache_append", err).WithUserID(userID)
	}
	return nil
}

// RecentBatches returns up to limit summaries, newest first. Corrupted
// entries are skipped.
func (c *RedisQuestCache) RecentBatches(ctx context.Context, userID string, limit int) ([]BatchSummary, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if limit <= 0 || limit > c.historySize {
		limit = c.historySize
	}

	key := historyKey(userID)
	var raw []string
	err := c.executeWithRetry(ctx, fmt.Sprintf("range[%s]", key), func() error {
		var err error
		raw, err = c.redisClient.LRange(ctx, key, 0, int64(limit-1)).Result()
		return err
	})
	if err != nil {
		return nil, NewTransportError("cache_history", err).WithUserID(userID)
	}

	out := make([]BatchSummary, 0, len(raw))
	for _, item := range raw {
		var s BatchSummary
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			c.logger.Debug("Skipping corrupted batch summary in %s: %v", key, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Clear removes everything cached for userID
func (c *RedisQuestCache) Clear(ctx context.Context, userID string) error {
	keys := []string{questKey(userID), historyKey(userID)}
	err := c.executeWithRetry(ctx, "clear["+strings.Join(keys, ",")+"]", func() error {
		return c.redisClient.Del(ctx, keys...).Err()
	})
	if err != nil {
		return NewTransportError("cache_clear", err).WithUserID(userID)
	}
	return nil
}

// MemoryQuestCache is an in-process QuestCache
type MemoryQuestCache struct {
	mu          sync.Mutex
	quests      map[string][]QuestState
	batches     map[string][]BatchSummary
	historySize int
}

var _ QuestCache = (*MemoryQuestCache)(nil)

// NewMemoryQuestCache creates an empty in-memory cache
func NewMemoryQuestCache() *MemoryQuestCache {
	return &MemoryQuestCache{
		quests:      make(map[string][]QuestState),
		batches:     make(map[string][]BatchSummary),
		historySize: DefaultBatchHistorySize,
	}
}

// SaveQuests stores a copy of states
func (c *MemoryQuestCache) SaveQuests(_ context.Context, userID string, states []QuestState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quests[userID] = append([]QuestState(nil), states...)
	return nil
}

// LoadQuests returns a copy of the stored states
func (c *MemoryQuestCache) LoadQuests(_ context.Context, userID string) ([]QuestState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QuestState(nil), c.quests[userID]...), nil
}

// AppendBatch prepends a summary
func (c *MemoryQuestCache) AppendBatch(_ context.Context, userID string, summary BatchSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := append([]BatchSummary{summary}, c.batches[userID]...)
	if len(list) > c.historySize {
		list = list[:c.historySize]
	}
	c.batches[userID] = list
	return nil
}

// RecentBatches returns up to limit summaries, newest first
func (c *MemoryQuestCache) RecentBatches(_ context.Context, userID string, limit int) ([]BatchSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.batches[userID]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return append([]BatchSummary(nil), list...), nil
}
