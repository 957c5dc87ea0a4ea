package gacha

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQuestCache_SaveLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisQuestCache(db, nil)
	ctx := context.Background()

	states := []QuestState{{QuestID: 0, Claimable: true}, {QuestID: 1, Claimed: true, LastClaimed: 1700000000}}
	snap, err := json.Marshal(questSnapshot{UserID: "user-1", States: states, SavedAt: 1})
	require.NoError(t, err)

	mock.Regexp().ExpectSet(`lifegacha:quests:user-1`, `.*`, DefaultCacheTTL).SetVal("OK")
	mock.ExpectGet("lifegacha:quests:user-1").SetVal(string(snap))
	mock.ExpectGet("lifegacha:quests:user-2").RedisNil()

	require.NoError(t, cache.SaveQuests(ctx, "user-1", states))

	loaded, err := cache.LoadQuests(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, states, loaded)

	missing, err := cache.LoadQuests(ctx, "user-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQuestCache_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty_user", func(t *testing.T) {
		db, _ := redismock.NewClientMock()
		cache := NewRedisQuestCache(db, nil)

		assert.ErrorIs(t, cache.SaveQuests(ctx, "", nil), ErrEmptyUserID)
		_, err := cache.LoadQuests(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("corrupted_snapshot", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewRedisQuestCache(db, nil)
		mock.ExpectGet("lifegacha:quests:user-1").SetVal("{not json")

		_, err := cache.LoadQuests(ctx, "user-1")
		var ge *GachaError
		require.True(t, errors.As(err, &ge))
		assert.Equal(t, ErrCodeDeserializationFailed, ge.Code)
	})

	t.Run("retries_connection_errors", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewRedisQuestCacheWithRetry(db, nil, 2, time.Millisecond)
		mock.ExpectGet("lifegacha:quests:user-1").SetErr(errors.New("dial tcp: connection refused"))
		mock.ExpectGet("lifegacha:quests:user-1").RedisNil()

		states, err := cache.LoadQuests(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, states)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives_up_after_attempts", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewRedisQuestCacheWithRetry(db, nil, 1, time.Millisecond)
		mock.Regexp().ExpectSet(`lifegacha:quests:user-1`, `.*`, DefaultCacheTTL).SetErr(errors.New("i/o timeout"))
		mock.Regexp().ExpectSet(`lifegacha:quests:user-1`, `.*`, DefaultCacheTTL).SetErr(errors.New("i/o timeout"))

		err := cache.SaveQuests(ctx, "user-1", []QuestState{{QuestID: 0}})
		require.Error(t, err)
		assert.True(t, IsTransportError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_retry_on_logic_error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewRedisQuestCacheWithRetry(db, nil, 3, time.Millisecond)
		mock.ExpectGet("lifegacha:quests:user-1").SetErr(errors.New("WRONGTYPE Operation against a key"))

		_, err := cache.LoadQuests(ctx, "user-1")
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisQuestCache_BatchHistory(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisQuestCacheFromConfig(db, &CacheConfig{TTL: time.Hour, HistorySize: 5}, nil)
	ctx := context.Background()

	summary := BatchSummary{
		Requested:  10,
		Resolved:   10,
		RankCounts: map[Rank]int{RankMythic: 1, RankS: 1, RankA: 2, RankB: 6},
		Rewards:    []Reward{{Kind: RewardFlux, Amount: 3060}},
		FinishedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(summary)
	require.NoError(t, err)

	mock.ExpectLPush("lifegacha:batches:user-1", data).SetVal(1)
	mock.ExpectLTrim("lifegacha:batches:user-1", 0, 4).SetVal("OK")
	mock.ExpectLRange("lifegacha:batches:user-1", 0, 4).SetVal([]string{string(data), "garbage"})
	mock.ExpectDel("lifegacha:quests:user-1", "lifegacha:batches:user-1").SetVal(2)

	require.NoError(t, cache.AppendBatch(ctx, "user-1", summary))

	history, err := cache.RecentBatches(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, summary.RankCounts, history[0].RankCounts)
	assert.Equal(t, summary.Rewards, history[0].Rewards)
	assert.True(t, summary.FinishedAt.Equal(history[0].FinishedAt))

	require.NoError(t, cache.Clear(ctx, "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryQuestCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryQuestCache()

	states := []QuestState{{QuestID: 3, Claimable: true}}
	require.NoError(t, cache.SaveQuests(ctx, "u", states))
	states[0].Claimable = false

	loaded, err := cache.LoadQuests(ctx, "u")
	require.NoError(t, err)
	assert.True(t, loaded[0].Claimable)

	for i := 0; i < DefaultBatchHistorySize+5; i++ {
		require.NoError(t, cache.AppendBatch(ctx, "u", BatchSummary{Requested: i}))
	}
	all, err := cache.RecentBatches(ctx, "u", 0)
	require.NoError(t, err)
	assert.Len(t, all, DefaultBatchHistorySize)
	assert.Equal(t, DefaultBatchHistorySize+4, all[0].Requested)

	two, err := cache.RecentBatches(ctx, "u", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
