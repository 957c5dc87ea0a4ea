package gacha

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config 客户端完整配置
type Config struct {
	// 远程服务
	Client *ClientConfig `mapstructure:"client"`

	// 揭晓节奏
	Pacing *PacingConfig `mapstructure:"pacing"`

	// 抽卡奖励换算表
	Rewards *RewardsConfig `mapstructure:"rewards"`

	// 同步周期
	Sync *SyncConfig `mapstructure:"sync"`

	// 熔断器配置
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Redis 配置
	Redis *RedisConfig `mapstructure:"redis"`

	// 本地缓存
	Cache *CacheConfig `mapstructure:"cache"`

	// 指标
	Metrics *MetricsConfig `mapstructure:"metrics"`

	// 日志
	Log *LogConfig `mapstructure:"log"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Client == nil || c.Pacing == nil || c.Rewards == nil || c.Sync == nil {
		return fmt.Errorf("client, pacing, rewards and sync sections are required")
	}

	if c.Client.UserID == "" {
		return ErrEmptyUserID
	}
	if u, err := url.Parse(c.Client.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Client.BaseURL)
	}
	if c.Client.RequestTimeout < 0 {
		return ErrInvalidDelay
	}

	if err := c.Pacing.Validate(); err != nil {
		return err
	}
	if err := c.Rewards.Validate(); err != nil {
		return err
	}
	if c.Sync.QuestInterval < 0 || c.Sync.BalanceInterval < 0 || c.Sync.RefreshDelay < 0 {
		return ErrInvalidDelay
	}

	if c.CircuitBreaker != nil && c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return ErrInvalidFailureRatio
		}
	}

	if c.Cache != nil && c.Cache.Enabled {
		if c.Redis == nil || c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required when cache is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis pool size must be positive")
		}
	}

	return nil
}

// ClientConfig 远程服务配置
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserID         string        `mapstructure:"user_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DefaultClientConfig 返回默认远程服务配置
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// PacingConfig 揭晓节奏配置
type PacingConfig struct {
	ShuffleTicks int           `mapstructure:"shuffle_ticks"`
	ShuffleTick  time.Duration `mapstructure:"shuffle_tick"`
	SingleDwell  time.Duration `mapstructure:"single_dwell"`
	DrawGap      time.Duration `mapstructure:"draw_gap"`
	SummaryDelay time.Duration `mapstructure:"summary_delay"`
	MythicDwell  time.Duration `mapstructure:"mythic_dwell"`
	SDwell       time.Duration `mapstructure:"s_dwell"`
	ADwell       time.Duration `mapstructure:"a_dwell"`
	BDwell       time.Duration `mapstructure:"b_dwell"`
}

// DefaultPacingConfig 返回默认揭晓节奏
func DefaultPacingConfig() *PacingConfig {
	return &PacingConfig{
		ShuffleTicks: DefaultShuffleTicks,
		ShuffleTick:  DefaultShuffleTick,
		SingleDwell:  DefaultSingleDwell,
		DrawGap:      DefaultDrawGap,
		SummaryDelay: DefaultSummaryDelay,
		MythicDwell:  DefaultMythicDwell,
		SDwell:       DefaultSRankDwell,
		ADwell:       DefaultARankDwell,
		BDwell:       DefaultBRankDwell,
	}
}

// ZeroPacingConfig returns pacing without any delay, for tests and headless runs
func ZeroPacingConfig() *PacingConfig {
	return &PacingConfig{}
}

// Dwell returns how long a revealed rank is held in a batch
func (p *PacingConfig) Dwell(r Rank) time.Duration {
	switch r {
	case RankMythic:
		return p.MythicDwell
	case RankS:
		return p.SDwell
	case RankA:
		return p.ADwell
	case RankB:
		return p.BDwell
	default:
		return 0
	}
}

// Validate 验证节奏配置
func (p *PacingConfig) Validate() error {
	if p.ShuffleTicks < 0 {
		return fmt.Errorf("shuffle ticks cannot be negative")
	}
	for _, d := range []time.Duration{
		p.ShuffleTick, p.SingleDwell, p.DrawGap, p.SummaryDelay,
		p.MythicDwell, p.SDwell, p.ADwell, p.BDwell,
	} {
		if d < 0 {
			return ErrInvalidDelay
		}
	}
	return nil
}

// RewardsConfig 抽卡奖励换算表
type RewardsConfig struct {
	Kind   RewardKind `mapstructure:"kind"`
	Mythic int64      `mapstructure:"mythic"`
	S      int64      `mapstructure:"s"`
	A      int64      `mapstructure:"a"`
	B      int64      `mapstructure:"b"`
}

// DefaultRewardsConfig 返回默认换算表
func DefaultRewardsConfig() *RewardsConfig {
	return &RewardsConfig{
		Kind:   RewardFlux,
		Mythic: DefaultMythicFlux,
		S:      DefaultSRankFlux,
		A:      DefaultARankFlux,
		B:      DefaultBRankFlux,
	}
}

// Validate 验证换算表
func (r *RewardsConfig) Validate() error {
	if r.Kind == "" {
		return fmt.Errorf("reward kind is required")
	}
	if r.Mythic < 0 || r.S < 0 || r.A < 0 || r.B < 0 {
		return ErrInvalidRewardAmount
	}
	return nil
}

// Table converts the config into a ConversionTable
func (r *RewardsConfig) Table() ConversionTable {
	return ConversionTable{
		RankMythic: {Kind: r.Kind, Amount: r.Mythic},
		RankS:      {Kind: r.Kind, Amount: r.S},
		RankA:      {Kind: r.Kind, Amount: r.A},
		RankB:      {Kind: r.Kind, Amount: r.B},
	}
}

// SyncConfig 同步配置
type SyncConfig struct {
	QuestInterval   time.Duration `mapstructure:"quest_interval"`
	BalanceInterval time.Duration `mapstructure:"balance_interval"`
	RefreshDelay    time.Duration `mapstructure:"refresh_delay"`
}

// DefaultSyncConfig 返回默认同步配置
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		QuestInterval:   DefaultQuestInterval,
		BalanceInterval: DefaultBalancePoll,
		RefreshDelay:    DefaultRefreshDelay,
	}
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// CacheConfig 本地缓存配置
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TTL          time.Duration `mapstructure:"ttl"`
	HistorySize  int           `mapstructure:"history_size"`
	ClaimLock    bool          `mapstructure:"claim_lock"`
	ClaimLockTTL time.Duration `mapstructure:"claim_lock_ttl"`
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:      false,
		TTL:          DefaultCacheTTL,
		HistorySize:  DefaultBatchHistorySize,
		ClaimLock:    false,
		ClaimLockTTL: DefaultClaimLockTTL,
	}
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig 返回完整默认配置
func DefaultConfig() *Config {
	return &Config{
		Client:         DefaultClientConfig(),
		Pacing:         DefaultPacingConfig(),
		Rewards:        DefaultRewardsConfig(),
		Sync:           DefaultSyncConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Redis:          DefaultRedisConfig(),
		Cache:          DefaultCacheConfig(),
		Metrics:        &MetricsConfig{Enabled: false, Namespace: DefaultMetricsNamespace},
		Log:            &LogConfig{Level: "info"},
	}
}

// ConfigManager 配置管理器
type ConfigManager struct {
	viper  *viper.Viper
	mu     sync.RWMutex
	config *Config
	logger Logger
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("gacha")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lifegacha")
	v.AddConfigPath("$HOME/.lifegacha")

	// 设置环境变量前缀
	v.SetEnvPrefix("LIFEGACHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigManager{
		viper:  v,
		logger: NewSilentLogger(),
	}
}

// SetLogger 设置日志, 用于记录热更新失败
func (cm *ConfigManager) SetLogger(logger Logger) {
	cm.logger = orSilent(logger)
}

// SetConfigFile 使用指定的配置文件
func (cm *ConfigManager) SetConfigFile(path string) {
	cm.viper.SetConfigFile(path)
}

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	cm.setDefaults()

	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在时使用默认值和环境变量
	}

	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return config, nil
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	v := cm.viper

	v.SetDefault("client.base_url", DefaultBaseURL)
	v.SetDefault("client.user_id", "")
	v.SetDefault("client.request_timeout", DefaultRequestTimeout.String())

	v.SetDefault("pacing.shuffle_ticks", DefaultShuffleTicks)
	v.SetDefault("pacing.shuffle_tick", DefaultShuffleTick.String())
	v.SetDefault("pacing.single_dwell", DefaultSingleDwell.String())
	v.SetDefault("pacing.draw_gap", DefaultDrawGap.String())
	v.SetDefault("pacing.summary_delay", DefaultSummaryDelay.String())
	v.SetDefault("pacing.mythic_dwell", DefaultMythicDwell.String())
	v.SetDefault("pacing.s_dwell", DefaultSRankDwell.String())
	v.SetDefault("pacing.a_dwell", DefaultARankDwell.String())
	v.SetDefault("pacing.b_dwell", DefaultBRankDwell.String())

	v.SetDefault("rewards.kind", string(RewardFlux))
	v.SetDefault("rewards.mythic", DefaultMythicFlux)
	v.SetDefault("rewards.s", DefaultSRankFlux)
	v.SetDefault("rewards.a", DefaultARankFlux)
	v.SetDefault("rewards.b", DefaultBRankFlux)

	v.SetDefault("sync.quest_interval", DefaultQuestInterval.String())
	v.SetDefault("sync.balance_interval", DefaultBalancePoll.String())
	v.SetDefault("sync.refresh_delay", DefaultRefreshDelay.String())

	// 熔断器默认配置
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	v.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCircuitBreakerInterval.String())
	v.SetDefault("circuit_breaker.timeout", DefaultCircuitBreakerTimeout.String())
	v.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	v.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	v.SetDefault("circuit_breaker.on_state_change", DefaultCircuitBreakerOnStateChange)

	// Redis 默认配置
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", DefaultRedisPassword)
	v.SetDefault("redis.db", DefaultRedisDB)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	v.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	v.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout.String())
	v.SetDefault("redis.read_timeout", DefaultRedisReadTimeout.String())
	v.SetDefault("redis.write_timeout", DefaultRedisWriteTimeout.String())
	v.SetDefault("redis.pool_timeout", DefaultRedisPoolTimeout.String())

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", DefaultCacheTTL.String())
	v.SetDefault("cache.history_size", DefaultBatchHistorySize)
	v.SetDefault("cache.claim_lock", false)
	v.SetDefault("cache.claim_lock_ttl", DefaultClaimLockTTL.String())

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)

	v.SetDefault("log.level", "info")
}

// WatchConfig 监听配置变化; 只有通过校验的新配置才会生效
func (cm *ConfigManager) WatchConfig(callback func(*Config)) {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config := &Config{}
		if err := cm.viper.Unmarshal(config); err != nil {
			cm.logger.Error("Config reload from %s failed to unmarshal: %v", e.Name, err)
			return
		}

		if err := config.Validate(); err != nil {
			cm.logger.Error("Config reload from %s rejected: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		cm.logger.Info("Config reloaded from %s (%s)", e.Name, e.Op)
		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// NewDefaultConfigManager 创建默认配置, 不读取文件
func NewDefaultConfigManager(userID string) *ConfigManager {
	cm := NewConfigManager()
	cm.setDefaults()

	config := DefaultConfig()
	config.Client.UserID = userID
	cm.config = config
	return cm
}
