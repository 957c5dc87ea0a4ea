package gacha

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Session wires every component of the client around one Service
type Session struct {
	config *Config
	logger Logger

	service   Service
	breaker   *BreakerService
	monitor   *SessionMonitor
	collector *MetricsCollector
	notifier  Notifier

	redisClient *redis.Client
	ownsRedis   bool
	cache       QuestCache

	balance   *BalanceBoard
	sequencer *DrawSequencer
	claims    *ClaimStateMachine
	scheduler *SyncScheduler
	timers    *TimerController
	vouchers  *VoucherDesk
}

// SessionOption configures a Session
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	service     Service
	logger      Logger
	notifier    Notifier
	clock       clockwork.Clock
	pacer       Pacer
	redisClient *redis.Client
	catalog     []Quest
}

// WithService replaces the HTTP client with another Service
func WithService(s Service) SessionOption {
	return func(o *sessionOptions) { o.service = s }
}

// WithSessionLogger sets the logger shared by all components
func WithSessionLogger(l Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithSessionNotifier sets the event sink shared by all components
func WithSessionNotifier(n Notifier) SessionOption {
	return func(o *sessionOptions) { o.notifier = n }
}

// WithSessionClock sets the clock for pacing and sync tickers
func WithSessionClock(c clockwork.Clock) SessionOption {
	return func(o *sessionOptions) { o.clock = c }
}

// WithSessionPacer overrides the reveal pacer
func WithSessionPacer(p Pacer) SessionOption {
	return func(o *sessionOptions) { o.pacer = p }
}

// WithRedisClient uses an existing redis client for the cache. The session
// does not close it.
func WithRedisClient(c *redis.Client) SessionOption {
	return func(o *sessionOptions) { o.redisClient = c }
}

// WithQuestCatalog overrides the quest catalog
func WithQuestCatalog(catalog []Quest) SessionOption {
	return func(o *sessionOptions) { o.catalog = catalog }
}

// NewSession builds a session from config
func NewSession(config *Config, opts ...SessionOption) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Session{config: config}

	s.logger = o.logger
	if s.logger == nil {
		level := "info"
		if config.Log != nil && config.Log.Level != "" {
			level = config.Log.Level
		}
		s.logger = NewDefaultLogger(level)
	}
	s.notifier = orNop(o.notifier)

	s.monitor = NewSessionMonitor()
	if config.Metrics != nil && config.Metrics.Enabled {
		s.collector = NewMetricsCollector(s.monitor, config.Metrics.Namespace)
	}

	service := o.service
	if service == nil {
		client, err := NewHTTPClient(config.Client, s.logger)
		if err != nil {
			return nil, err
		}
		service = client
	}
	s.breaker = NewBreakerService(service, config.CircuitBreaker, s.logger)
	s.service = s.breaker

	userID := config.Client.UserID
	var lock ClaimLock
	if config.Cache != nil && config.Cache.Enabled {
		s.redisClient = o.redisClient
		if s.redisClient == nil {
			s.redisClient = NewRedisClientFromConfig(config.Redis)
			s.ownsRedis = true
		}
		s.cache = NewRedisQuestCacheFromConfig(s.redisClient, config.Cache, s.logger)
		if config.Cache.ClaimLock {
			lock = NewRedisClaimLock(s.redisClient, config.Cache.ClaimLockTTL, s.logger)
		}
	} else {
		s.cache = NewMemoryQuestCache()
	}

	clock := o.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	pacer := o.pacer
	if pacer == nil {
		pacer = NewClockPacer(clock)
	}

	s.balance = NewBalanceBoard(s.service, s.notifier, s.logger, s.monitor)

	var err error
	s.sequencer, err = NewDrawSequencer(s.service,
		WithPacer(pacer),
		WithPacing(config.Pacing),
		WithConversionTable(config.Rewards.Table()),
		WithBalanceBoard(s.balance),
		WithNotifier(s.notifier),
		WithSequencerLogger(s.logger),
		WithSequencerMonitor(s.monitor),
		WithBatchHistory(s.cache, userID),
	)
	if err != nil {
		return nil, err
	}

	claimOpts := []ClaimOption{
		WithClaimNotifier(s.notifier),
		WithClaimLogger(s.logger),
		WithClaimMonitor(s.monitor),
		WithQuestCache(s.cache, userID),
	}
	if lock != nil {
		claimOpts = append(claimOpts, WithClaimLock(lock, userID))
	}
	s.claims, err = NewClaimStateMachine(s.service, o.catalog, claimOpts...)
	if err != nil {
		return nil, err
	}

	s.scheduler, err = NewSyncScheduler(s.service, s.claims,
		WithClock(clock),
		WithSyncConfig(config.Sync),
		WithBalancePolling(s.balance),
		WithSnapshotCache(s.cache, userID),
		WithSyncNotifier(s.notifier),
		WithSyncLogger(s.logger),
		WithSyncMonitor(s.monitor),
	)
	if err != nil {
		return nil, err
	}

	s.timers = NewTimerController(s.service, s.notifier, s.logger)
	s.vouchers = NewVoucherDesk(s.service, s.notifier, s.logger)

	s.logger.Info("Session created: user=%s base_url=%s cache=%t metrics=%t",
		userID, config.Client.BaseURL, config.Cache != nil && config.Cache.Enabled, s.collector != nil)
	return s, nil
}

// RunBatch draws n times and then refreshes quests, since spending
// currency can make a quest claimable.
func (s *Session) RunBatch(ctx context.Context, n int) (*BatchResult, error) {
	return s.RunBatchWithProgress(ctx, n, nil)
}

// RunBatchWithProgress is RunBatch with a per-draw callback
func (s *Session) RunBatchWithProgress(ctx context.Context, n int, progress ProgressCallback) (*BatchResult, error) {
	result, err := s.sequencer.RunBatchWithProgress(ctx, n, progress)
	if err != nil {
		return nil, err
	}
	_ = s.scheduler.Refresh(ctx)
	return result, nil
}

// Pull performs a single draw and then refreshes quests
func (s *Session) Pull(ctx context.Context) (*BatchResult, error) {
	result, err := s.sequencer.Pull(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.scheduler.Refresh(ctx)
	return result, nil
}

// Claim claims one quest and refreshes the balance on success
func (s *Session) Claim(ctx context.Context, questID int) ClaimOutcome {
	outcome := s.claims.Claim(ctx, questID)
	if outcome.Status == ClaimGranted {
		_, _ = s.balance.Refresh(ctx)
	}
	return outcome
}

// ClaimAll claims every ready quest and refreshes the balance once
func (s *Session) ClaimAll(ctx context.Context) ([]ClaimOutcome, RewardTally) {
	outcomes, tally := s.claims.ClaimAll(ctx)
	if !tally.Empty() {
		_, _ = s.balance.Refresh(ctx)
	}
	return outcomes, tally
}

// Refresh re-reads quests and balance
func (s *Session) Refresh(ctx context.Context) error {
	questErr := s.scheduler.Refresh(ctx)
	_, balanceErr := s.balance.Refresh(ctx)
	if questErr != nil {
		return questErr
	}
	return balanceErr
}

// Run seeds quest states from the cache and runs the sync loop until ctx
// is done
func (s *Session) Run(ctx context.Context) {
	if err := s.claims.Warm(ctx); err != nil {
		s.logger.Error("Failed to warm quest states from cache: %v", err)
	}
	s.scheduler.Run(ctx)
}

// RecentBatches returns persisted batch summaries, newest first
func (s *Session) RecentBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	return s.cache.RecentBatches(ctx, s.config.Client.UserID, limit)
}

// Close releases the redis connection if the session opened it
func (s *Session) Close() error {
	if s.ownsRedis && s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}

// Config returns the configuration the session was built from
func (s *Session) Config() *Config { return s.config }

// Balance returns the balance board
func (s *Session) Balance() *BalanceBoard { return s.balance }

// Sequencer returns the draw sequencer
func (s *Session) Sequencer() *DrawSequencer { return s.sequencer }

// Claims returns the claim state machine
func (s *Session) Claims() *ClaimStateMachine { return s.claims }

// Scheduler returns the sync scheduler
func (s *Session) Scheduler() *SyncScheduler { return s.scheduler }

// Timers returns the timer controller
func (s *Session) Timers() *TimerController { return s.timers }

// Vouchers returns the voucher desk
func (s *Session) Vouchers() *VoucherDesk { return s.vouchers }

// Monitor returns the session monitor
func (s *Session) Monitor() *SessionMonitor { return s.monitor }

// Breaker returns the circuit breaker wrapping the service
func (s *Session) Breaker() *BreakerService { return s.breaker }

// Collector returns the prometheus collector, or nil when metrics are disabled
func (s *Session) Collector() prometheus.Collector {
	if s.collector == nil {
		return nil
	}
	return s.collector
}
