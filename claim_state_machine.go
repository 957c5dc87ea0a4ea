package gacha

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ClaimStatus is the result category of a claim attempt
type ClaimStatus int

const (
	// ClaimGranted means the service accepted the claim
	ClaimGranted ClaimStatus = iota
	// ClaimRefused means the claim was refused locally without a request
	ClaimRefused
	// ClaimFailed means the request failed or the service declined it
	ClaimFailed
)

// String returns a short label
func (s ClaimStatus) String() string {
	switch s {
	case ClaimGranted:
		return "granted"
	case ClaimRefused:
		return "refused"
	default:
		return "failed"
	}
}

// ClaimOutcome reports one claim attempt
type ClaimOutcome struct {
	QuestID int
	Status  ClaimStatus
	Rewards []Reward
	Err     error
}

// ClaimStateMachine owns the cached quest states. Only Claim and Apply
// write them.
type ClaimStateMachine struct {
	service  Service
	catalog  []Quest
	notifier Notifier
	logger   Logger
	monitor  *SessionMonitor
	lock     ClaimLock
	cache    QuestCache
	userID   string

	mu       sync.Mutex
	states   map[int]QuestState
	inFlight map[int]bool
	synced   time.Time
}

// ClaimOption configures a ClaimStateMachine
type ClaimOption func(*ClaimStateMachine)

// WithClaimNotifier sets the event sink
func WithClaimNotifier(n Notifier) ClaimOption {
	return func(m *ClaimStateMachine) { m.notifier = n }
}

// WithClaimLogger sets the logger
func WithClaimLogger(l Logger) ClaimOption {
	return func(m *ClaimStateMachine) { m.logger = l }
}

// WithClaimMonitor sets the metrics monitor
func WithClaimMonitor(mon *SessionMonitor) ClaimOption {
	return func(m *ClaimStateMachine) { m.monitor = mon }
}

// WithClaimLock guards each claim with a cross-process lock
func WithClaimLock(lock ClaimLock, userID string) ClaimOption {
	return func(m *ClaimStateMachine) {
		m.lock = lock
		m.userID = userID
	}
}

// WithQuestCache lets Warm seed states from a persisted snapshot
func WithQuestCache(cache QuestCache, userID string) ClaimOption {
	return func(m *ClaimStateMachine) {
		m.cache = cache
		m.userID = userID
	}
}

// NewClaimStateMachine creates a machine for catalog; nil uses the default catalog.
// Every quest starts Locked until the first refresh.
func NewClaimStateMachine(service Service, catalog []Quest, opts ...ClaimOption) (*ClaimStateMachine, error) {
	if service == nil {
		return nil, ErrNilService
	}
	if catalog == nil {
		catalog = DefaultQuestCatalog()
	}

	m := &ClaimStateMachine{
		service:  service,
		catalog:  catalog,
		states:   make(map[int]QuestState, len(catalog)),
		inFlight: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.notifier = orNop(m.notifier)
	m.logger = orSilent(m.logger)

	return m, nil
}

// Catalog returns the quest catalog
func (m *ClaimStateMachine) Catalog() []Quest {
	return m.catalog
}

// Apply overwrites the cached states wholesale with server truth. Any
// optimistic local state is discarded, including quests absent from states,
// which fall back to Locked.
func (m *ClaimStateMachine) Apply(states []QuestState) {
	next := make(map[int]QuestState, len(states))
	for _, s := range states {
		next[s.QuestID] = s.normalized()
	}

	m.mu.Lock()
	m.states = next
	m.synced = time.Now()
	m.mu.Unlock()
}

// State returns the current claim state of quest id
func (m *ClaimStateMachine) State(id int) ClaimState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id].State()
}

// Snapshot returns the cached states in catalog order
func (m *ClaimStateMachine) Snapshot() []QuestState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]QuestState, 0, len(m.catalog))
	for _, q := range m.catalog {
		s, ok := m.states[q.ID]
		if !ok {
			s = QuestState{QuestID: q.ID}
		}
		out = append(out, s)
	}
	return out
}

// Progress returns how many catalog quests are claimed, for the "n/4" display
func (m *ClaimStateMachine) Progress() (claimed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range m.catalog {
		if m.states[q.ID].State() == Claimed {
			claimed++
		}
	}
	return claimed, len(m.catalog)
}

// LastSynced returns when Apply last ran
func (m *ClaimStateMachine) LastSynced() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}

// Warm seeds the states from the quest cache when no refresh has happened yet
func (m *ClaimStateMachine) Warm(ctx context.Context) error {
	if m.cache == nil || m.userID == "" {
		return nil
	}

	states, err := m.cache.LoadQuests(ctx, m.userID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.synced.IsZero() {
		return nil
	}
	for _, s := range states {
		m.states[s.QuestID] = s.normalized()
	}
	m.logger.Debug("Warmed %d quest states from cache", len(states))
	return nil
}

// Claim claims quest id. A quest that is not locally Ready, or whose claim
// is already in flight, is refused without contacting the service. On
// success the quest becomes Claimed immediately; on failure it stays Ready.
func (m *ClaimStateMachine) Claim(ctx context.Context, id int) ClaimOutcome {
	if err := ValidateQuestID(id, m.catalog); err != nil {
		return m.refuse(id, invalidParams("claim", err))
	}

	m.mu.Lock()
	state := m.states[id].State()
	if state != Ready || m.inFlight[id] {
		m.mu.Unlock()
		reason := fmt.Sprintf("quest %d is %s", id, state)
		if state == Ready {
			reason = fmt.Sprintf("quest %d claim already in progress", id)
		}
		return m.refuse(id, NewRejectedError(ErrCodeClaimRefused, "claim", ErrClaimRefused.Message).WithDetails(reason))
	}
	m.inFlight[id] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlight, id)
		m.mu.Unlock()
	}()

	if m.lock != nil {
		release, err := m.lock.Acquire(ctx, m.userID, id)
		if err != nil {
			return m.fail(id, err)
		}
		defer release()
	}

	rewards, err := m.service.ClaimQuest(ctx, id)
	if err != nil {
		return m.fail(id, err)
	}
	if len(rewards) == 0 {
		rewards = m.catalogReward(id)
	}

	m.mu.Lock()
	m.states[id] = QuestState{QuestID: id, Claimable: false, Claimed: true, LastClaimed: time.Now().Unix()}
	m.mu.Unlock()

	m.monitor.RecordClaim(ClaimGranted)
	m.logger.Info("Quest %d claimed: rewards=%v", id, rewards)
	emit(m.notifier, Event{Type: EventQuestClaimed, QuestID: id, Rewards: rewards})

	return ClaimOutcome{QuestID: id, Status: ClaimGranted, Rewards: rewards}
}

// ClaimAll attempts every catalog quest in catalog order. A failure does
// not stop later quests. The tally is the sum of the granted rewards.
func (m *ClaimStateMachine) ClaimAll(ctx context.Context) ([]ClaimOutcome, RewardTally) {
	agg := NewRewardAggregator(ConversionTable{})
	outcomes := make([]ClaimOutcome, 0, len(m.catalog))

	ids := make([]int, 0, len(m.catalog))
	for _, q := range m.catalog {
		ids = append(ids, q.ID)
	}
	sort.Ints(ids)

	for _, id := range ids {
		outcome := m.Claim(ctx, id)
		if outcome.Status == ClaimGranted {
			agg.FoldRewards(outcome.Rewards)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, agg.Summarize()
}

func (m *ClaimStateMachine) refuse(id int, err error) ClaimOutcome {
	m.monitor.RecordClaim(ClaimRefused)
	m.logger.Debug("Claim of quest %d refused locally: %v", id, err)
	return ClaimOutcome{QuestID: id, Status: ClaimRefused, Err: err}
}

func (m *ClaimStateMachine) fail(id int, err error) ClaimOutcome {
	m.monitor.RecordClaim(ClaimFailed)
	if IsTransportError(err) {
		m.monitor.RecordTransportError()
	}
	m.logger.Error("Claim of quest %d failed: %v", id, err)
	emit(m.notifier, Event{Type: EventStatus, QuestID: id, Status: StatusMessage(err), Err: err})
	return ClaimOutcome{QuestID: id, Status: ClaimFailed, Err: err}
}

func (m *ClaimStateMachine) catalogReward(id int) []Reward {
	for _, q := range m.catalog {
		if q.ID == id && q.Reward.Amount > 0 {
			return []Reward{q.Reward}
		}
	}
	return nil
}
