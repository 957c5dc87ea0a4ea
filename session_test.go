package gacha

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSessionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Client.UserID = "user-1"
	cfg.Pacing = ZeroPacingConfig()
	cfg.Sync.RefreshDelay = 0
	cfg.Log.Level = "error"
	return cfg
}

func TestNewSession(t *testing.T) {
	t.Run("nil_config", func(t *testing.T) {
		_, err := NewSession(nil)
		assert.Error(t, err)
	})

	t.Run("invalid_config", func(t *testing.T) {
		cfg := newTestSessionConfig()
		cfg.Client.UserID = ""
		_, err := NewSession(cfg)
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewSession(newTestSessionConfig(), WithService(&MockService{}))
		require.NoError(t, err)
		defer s.Close()

		assert.Nil(t, s.Collector())
		assert.IsType(t, &MemoryQuestCache{}, s.cache)
		assert.NotNil(t, s.Balance())
		assert.NotNil(t, s.Sequencer())
		assert.NotNil(t, s.Claims())
		assert.NotNil(t, s.Scheduler())
		assert.NotNil(t, s.Timers())
		assert.NotNil(t, s.Vouchers())
		assert.NotNil(t, s.Breaker())
		assert.True(t, s.Monitor().IsEnabled())
		assert.Len(t, s.Claims().Catalog(), QuestCount)
	})

	t.Run("metrics_enabled", func(t *testing.T) {
		cfg := newTestSessionConfig()
		cfg.Metrics.Enabled = true
		s, err := NewSession(cfg, WithService(&MockService{}))
		require.NoError(t, err)
		assert.NotNil(t, s.Collector())
	})

	t.Run("redis_cache", func(t *testing.T) {
		cfg := newTestSessionConfig()
		cfg.Cache.Enabled = true
		cfg.Cache.ClaimLock = true
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
		defer client.Close()

		s, err := NewSession(cfg, WithService(&MockService{}), WithRedisClient(client))
		require.NoError(t, err)
		assert.IsType(t, &RedisQuestCache{}, s.cache)
		assert.False(t, s.ownsRedis)
		assert.NoError(t, s.Close())
	})
}

func TestSession_RunBatchRefreshesQuests(t *testing.T) {
	svc := &MockService{}
	rec := &eventRecorder{}

	expectDraws(svc, outcomes(RankS, RankB))
	svc.On("Balance", mock.Anything).Return(Balance{Astrum: 2880}, nil)
	svc.On("Quests", mock.Anything).Return([]QuestState{
		{QuestID: 0, Claimed: true},
		{QuestID: 3, Claimable: true},
	}, nil).Once()

	s, err := NewSession(newTestSessionConfig(),
		WithService(svc),
		WithSessionNotifier(rec),
		WithSessionPacer(NoDelay{}),
	)
	require.NoError(t, err)

	result, err := s.RunBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 2)

	assert.Equal(t, Claimed, s.Claims().State(0))
	assert.Equal(t, Ready, s.Claims().State(3))
	assert.Equal(t, Balance{Astrum: 2880}, s.Balance().Current())
	assert.Len(t, rec.Of(EventBatchSummary), 1)
	assert.Len(t, rec.Of(EventQuestsSynced), 1)

	history, err := s.RecentBatches(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Resolved)
	svc.AssertExpectations(t)
}

func TestSession_BatchFailureSkipsRefresh(t *testing.T) {
	svc := &MockService{}
	svc.On("Draw", mock.Anything).Return(DrawOutcome{}, NewTransportError("draw", assert.AnError)).Once()

	s, err := NewSession(newTestSessionConfig(), WithService(svc), WithSessionPacer(NoDelay{}))
	require.NoError(t, err)

	_, err = s.Pull(context.Background())
	assert.True(t, IsTransportError(err))
	svc.AssertNotCalled(t, "Quests", mock.Anything)
}

func TestSession_ClaimRefreshesBalance(t *testing.T) {
	svc := &MockService{}
	svc.On("Quests", mock.Anything).Return([]QuestState{
		{QuestID: 0, Claimable: true},
		{QuestID: 2, Claimable: true},
	}, nil).Once()
	svc.On("ClaimQuest", mock.Anything, 0).Return([]Reward{{Kind: RewardAstrum, Amount: 160}}, nil).Once()
	svc.On("ClaimQuest", mock.Anything, 2).Return([]Reward{{Kind: RewardAstrai, Amount: 1}}, nil).Once()
	svc.On("Balance", mock.Anything).Return(Balance{Astrum: 160}, nil).Once()
	svc.On("Balance", mock.Anything).Return(Balance{Astrum: 160, Astrai: 1}, nil).Once()

	s, err := NewSession(newTestSessionConfig(), WithService(svc))
	require.NoError(t, err)
	require.NoError(t, s.Scheduler().Refresh(context.Background()))

	outcome := s.Claim(context.Background(), 0)
	assert.Equal(t, ClaimGranted, outcome.Status)
	assert.Equal(t, Balance{Astrum: 160}, s.Balance().Current())

	again := s.Claim(context.Background(), 0)
	assert.Equal(t, ClaimRefused, again.Status)

	_, tally := s.ClaimAll(context.Background())
	assert.Equal(t, int64(1), tally.Amount(RewardAstrai))
	assert.Equal(t, Balance{Astrum: 160, Astrai: 1}, s.Balance().Current())

	_, tally = s.ClaimAll(context.Background())
	assert.True(t, tally.Empty())
	svc.AssertExpectations(t)
	svc.AssertNumberOfCalls(t, "Balance", 2)
}

func TestSession_Refresh(t *testing.T) {
	svc := &MockService{}
	svc.On("Quests", mock.Anything).Return(nil, NewTransportError("quests", assert.AnError)).Once()
	svc.On("Balance", mock.Anything).Return(Balance{Flux: 500}, nil).Once()

	s, err := NewSession(newTestSessionConfig(), WithService(svc))
	require.NoError(t, err)

	err = s.Refresh(context.Background())
	assert.True(t, IsTransportError(err))
	assert.Equal(t, Balance{Flux: 500}, s.Balance().Current(), "balance still refreshes when quests fail")

	status, _ := s.Scheduler().Status()
	assert.Equal(t, StatusSyncFailed, status)
	svc.AssertExpectations(t)
}
