package gacha

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "quests"

// SyncScheduler pulls authoritative quest state into a ClaimStateMachine
// periodically and on demand. Overlapping refreshes are coalesced: a
// trigger that arrives while a refresh is in flight waits for that refresh
// and shares its result instead of starting another.
type SyncScheduler struct {
	service Service
	machine *ClaimStateMachine
	balance *BalanceBoard
	cache   QuestCache
	userID  string

	clock           clockwork.Clock
	pacer           Pacer
	refreshDelay    time.Duration
	questInterval   time.Duration
	balanceInterval time.Duration

	notifier Notifier
	logger   Logger
	monitor  *SessionMonitor

	group singleflight.Group

	mu       sync.RWMutex
	status   string
	lastErr  error
	lastSync time.Time
}

// SyncOption configures a SyncScheduler
type SyncOption func(*SyncScheduler)

// WithClock sets the clock used for tickers and the refresh delay
func WithClock(c clockwork.Clock) SyncOption {
	return func(s *SyncScheduler) { s.clock = c }
}

// WithSyncConfig applies intervals and the pre-fetch delay
func WithSyncConfig(c *SyncConfig) SyncOption {
	return func(s *SyncScheduler) {
		if c == nil {
			return
		}
		s.questInterval = c.QuestInterval
		s.balanceInterval = c.BalanceInterval
		s.refreshDelay = c.RefreshDelay
	}
}

// WithBalancePolling polls board on the balance interval
func WithBalancePolling(board *BalanceBoard) SyncOption {
	return func(s *SyncScheduler) { s.balance = board }
}

// WithSnapshotCache saves every successful refresh to cache
func WithSnapshotCache(cache QuestCache, userID string) SyncOption {
	return func(s *SyncScheduler) {
		s.cache = cache
		s.userID = userID
	}
}

// WithSyncNotifier sets the event sink
func WithSyncNotifier(n Notifier) SyncOption {
	return func(s *SyncScheduler) { s.notifier = n }
}

// WithSyncLogger sets the logger
func WithSyncLogger(l Logger) SyncOption {
	return func(s *SyncScheduler) { s.logger = l }
}

// WithSyncMonitor sets the metrics monitor
func WithSyncMonitor(m *SessionMonitor) SyncOption {
	return func(s *SyncScheduler) { s.monitor = m }
}

// NewSyncScheduler creates a scheduler writing into machine
func NewSyncScheduler(service Service, machine *ClaimStateMachine, opts ...SyncOption) (*SyncScheduler, error) {
	if service == nil {
		return nil, ErrNilService
	}
	if machine == nil {
		return nil, ErrNilStateMachine
	}

	s := &SyncScheduler{
		service:         service,
		machine:         machine,
		refreshDelay:    DefaultRefreshDelay,
		questInterval:   DefaultQuestInterval,
		balanceInterval: DefaultBalancePoll,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.pacer = NewClockPacer(s.clock)
	s.notifier = orNop(s.notifier)
	s.logger = orSilent(s.logger)

	return s, nil
}

// Refresh fetches all quest states in one round trip and overwrites the
// machine's cache. On failure the cache is untouched and the status becomes
// StatusSyncFailed; the error is returned for information only.
//
// Concurrent callers share one round trip. The shared refresh is not tied to
// any caller's cancellation; ctx only bounds how long this caller waits.
func (s *SyncScheduler) Refresh(ctx context.Context) error {
	leader := false
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		leader = true
		return nil, s.refresh(flightCtx)
	})

	select {
	case res := <-ch:
		if !leader {
			s.monitor.RecordCoalescedSync()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncScheduler) refresh(ctx context.Context) error {
	s.setStatus(StatusFetching, nil)

	if err := s.pacer.Sleep(ctx, s.refreshDelay); err != nil {
		return s.failed(err)
	}

	states, err := s.service.Quests(ctx)
	if err != nil {
		if IsTransportError(err) {
			s.monitor.RecordTransportError()
		}
		return s.failed(err)
	}

	s.machine.Apply(states)
	snapshot := s.machine.Snapshot()

	s.mu.Lock()
	s.lastSync = s.clock.Now()
	s.mu.Unlock()
	s.setStatus(StatusSynchronized, nil)
	s.monitor.RecordSync(true)

	claimed, total := s.machine.Progress()
	s.logger.Debug("Quest refresh applied: %d states, %d/%d claimed", len(states), claimed, total)
	emit(s.notifier, Event{Type: EventQuestsSynced, Quests: snapshot, Index: claimed, Total: total})

	if s.cache != nil && s.userID != "" {
		if err := s.cache.SaveQuests(ctx, s.userID, snapshot); err != nil {
			s.logger.Error("Failed to persist quest snapshot: %v", err)
		}
	}
	return nil
}

func (s *SyncScheduler) failed(err error) error {
	s.monitor.RecordSync(false)
	s.logger.Error("Quest refresh failed, keeping cached states: %v", err)
	s.setStatus(StatusSyncFailed, err)
	return err
}

func (s *SyncScheduler) setStatus(status string, err error) {
	s.mu.Lock()
	s.status = status
	s.lastErr = err
	s.mu.Unlock()

	emit(s.notifier, Event{Type: EventSyncStatus, Status: status, Err: err})
}

// Status returns the visible sync status and the last error
func (s *SyncScheduler) Status() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// LastSync returns the time of the last successful refresh
func (s *SyncScheduler) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Run refreshes once, then on every configured interval until ctx is done.
// A zero interval disables that poll.
func (s *SyncScheduler) Run(ctx context.Context) {
	var questC, balanceC <-chan time.Time

	if s.questInterval > 0 {
		t := s.clock.NewTicker(s.questInterval)
		defer t.Stop()
		questC = t.Chan()
	}
	if s.balance != nil && s.balanceInterval > 0 {
		t := s.clock.NewTicker(s.balanceInterval)
		defer t.Stop()
		balanceC = t.Chan()
	}

	s.logger.Info("Sync scheduler started: quest_interval=%v balance_interval=%v", s.questInterval, s.balanceInterval)
	_ = s.Refresh(ctx)
	if s.balance != nil {
		_, _ = s.balance.Refresh(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return
		case <-questC:
			_ = s.Refresh(ctx)
		case <-balanceC:
			_, _ = s.balance.Refresh(ctx)
		}
	}
}
