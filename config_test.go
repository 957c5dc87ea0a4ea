package gacha

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigManager_LoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "default_config",
			env:  map[string]string{"LIFEGACHA_CLIENT_USER_ID": "user-1"},
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "user-1", config.Client.UserID)
				assert.Equal(t, DefaultBaseURL, config.Client.BaseURL)
				assert.Equal(t, DefaultRequestTimeout, config.Client.RequestTimeout)
				assert.Equal(t, DefaultPacingConfig(), config.Pacing)
				assert.Equal(t, DefaultConversionTable(), config.Rewards.Table())
				assert.Equal(t, DefaultBalancePoll, config.Sync.BalanceInterval)
				assert.Equal(t, DefaultQuestInterval, config.Sync.QuestInterval)
				assert.True(t, config.CircuitBreaker.Enabled)
				assert.False(t, config.Cache.Enabled)
				assert.Equal(t, DefaultMetricsNamespace, config.Metrics.Namespace)
			},
		},
		{
			name: "environment_variables",
			env: map[string]string{
				"LIFEGACHA_CLIENT_USER_ID":       "user-2",
				"LIFEGACHA_CLIENT_BASE_URL":      "https://gacha.example.com",
				"LIFEGACHA_PACING_MYTHIC_DWELL":  "3s",
				"LIFEGACHA_REWARDS_KIND":         "Astrum",
				"LIFEGACHA_SYNC_QUEST_INTERVAL":  "5m",
				"LIFEGACHA_CACHE_ENABLED":        "true",
				"LIFEGACHA_REDIS_ADDR":           "redis:6379",
				"LIFEGACHA_CIRCUIT_BREAKER_NAME": "remote",
			},
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "https://gacha.example.com", config.Client.BaseURL)
				assert.Equal(t, 3*time.Second, config.Pacing.MythicDwell)
				assert.Equal(t, RewardAstrum, config.Rewards.Kind)
				assert.Equal(t, 5*time.Minute, config.Sync.QuestInterval)
				assert.True(t, config.Cache.Enabled)
				assert.Equal(t, "redis:6379", config.Redis.Addr)
				assert.Equal(t, "remote", config.CircuitBreaker.Name)
			},
		},
		{
			name:        "missing_user_id",
			env:         map[string]string{},
			expectError: true,
		},
		{
			name: "invalid_base_url",
			env: map[string]string{
				"LIFEGACHA_CLIENT_USER_ID":  "user-1",
				"LIFEGACHA_CLIENT_BASE_URL": "not a url",
			},
			expectError: true,
		},
		{
			name: "negative_delay",
			env: map[string]string{
				"LIFEGACHA_CLIENT_USER_ID":  "user-1",
				"LIFEGACHA_PACING_DRAW_GAP": "-1s",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LIFEGACHA_CLIENT_USER_ID", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cm := NewConfigManager()
			config, err := cm.LoadConfig()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cm.GetConfig())
				return
			}

			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Same(t, config, cm.GetConfig())

			if tt.validate != nil {
				tt.validate(t, config)
			}
		})
	}
}

func TestConfigManager_ConfigFile(t *testing.T) {
	t.Setenv("LIFEGACHA_CLIENT_USER_ID", "")

	path := filepath.Join(t.TempDir(), "gacha.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  user_id: file-user
  request_timeout: 3s
rewards:
  kind: Flux
  mythic: 5000
pacing:
  shuffle_ticks: 5
`), 0o600))

	cm := NewConfigManager()
	cm.SetConfigFile(path)
	config, err := cm.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "file-user", config.Client.UserID)
	assert.Equal(t, 3*time.Second, config.Client.RequestTimeout)
	assert.Equal(t, int64(5000), config.Rewards.Mythic)
	assert.Equal(t, int64(DefaultSRankFlux), config.Rewards.S)
	assert.Equal(t, 5, config.Pacing.ShuffleTicks)
	assert.Equal(t, DefaultShuffleTick, config.Pacing.ShuffleTick)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  error
		errorMsg     string
	}{
		{
			name:         "valid_config",
			modifyConfig: func(config *Config) {},
		},
		{
			name:         "empty_user_id",
			modifyConfig: func(config *Config) { config.Client.UserID = "" },
			expectError:  ErrEmptyUserID,
		},
		{
			name:         "relative_base_url",
			modifyConfig: func(config *Config) { config.Client.BaseURL = "/api" },
			expectError:  ErrInvalidBaseURL,
		},
		{
			name:         "negative_dwell",
			modifyConfig: func(config *Config) { config.Pacing.SDwell = -time.Second },
			expectError:  ErrInvalidDelay,
		},
		{
			name:         "negative_reward",
			modifyConfig: func(config *Config) { config.Rewards.B = -10 },
			expectError:  ErrInvalidRewardAmount,
		},
		{
			name:         "negative_sync_interval",
			modifyConfig: func(config *Config) { config.Sync.BalanceInterval = -time.Second },
			expectError:  ErrInvalidDelay,
		},
		{
			name:         "bad_failure_ratio",
			modifyConfig: func(config *Config) { config.CircuitBreaker.FailureRatio = 1.5 },
			expectError:  ErrInvalidFailureRatio,
		},
		{
			name:         "disabled_breaker_ignores_ratio",
			modifyConfig: func(config *Config) { config.CircuitBreaker = &CircuitBreakerConfig{} },
		},
		{
			name: "cache_without_redis",
			modifyConfig: func(config *Config) {
				config.Cache.Enabled = true
				config.Redis.Addr = ""
			},
			errorMsg: "redis address is required",
		},
		{
			name: "cache_with_bad_pool",
			modifyConfig: func(config *Config) {
				config.Cache.Enabled = true
				config.Redis.PoolSize = 0
			},
			errorMsg: "redis pool size must be positive",
		},
		{
			name:         "missing_section",
			modifyConfig: func(config *Config) { config.Sync = nil },
			errorMsg:     "sections are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Client.UserID = "user-1"
			tt.modifyConfig(config)

			err := config.Validate()
			switch {
			case tt.expectError != nil:
				assert.ErrorIs(t, err, tt.expectError)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestPacingConfig_Dwell(t *testing.T) {
	p := DefaultPacingConfig()
	assert.Equal(t, DefaultMythicDwell, p.Dwell(RankMythic))
	assert.Equal(t, DefaultSRankDwell, p.Dwell(RankS))
	assert.Equal(t, DefaultARankDwell, p.Dwell(RankA))
	assert.Equal(t, DefaultBRankDwell, p.Dwell(RankB))
	assert.Equal(t, time.Duration(0), p.Dwell(RankNoTickets))

	assert.Equal(t, time.Duration(0), ZeroPacingConfig().Dwell(RankMythic))
}

func TestNewDefaultConfigManager(t *testing.T) {
	cm := NewDefaultConfigManager("user-9")
	config := cm.GetConfig()
	require.NotNil(t, config)
	assert.Equal(t, "user-9", config.Client.UserID)
	assert.NoError(t, config.Validate())
}
