package gacha

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockService is a testify mock of Service
type MockService struct {
	mock.Mock
}

var _ Service = (*MockService)(nil)

func (m *MockService) Draw(ctx context.Context) (DrawOutcome, error) {
	args := m.Called(ctx)
	return args.Get(0).(DrawOutcome), args.Error(1)
}

func (m *MockService) Balance(ctx context.Context) (Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(Balance), args.Error(1)
}

func (m *MockService) Quests(ctx context.Context) ([]QuestState, error) {
	args := m.Called(ctx)
	states, _ := args.Get(0).([]QuestState)
	return states, args.Error(1)
}

func (m *MockService) ClaimQuest(ctx context.Context, questID int) ([]Reward, error) {
	args := m.Called(ctx, questID)
	rewards, _ := args.Get(0).([]Reward)
	return rewards, args.Error(1)
}

func (m *MockService) StartTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(TimerResult), args.Error(1)
}

func (m *MockService) StopTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(TimerResult), args.Error(1)
}

func (m *MockService) Vouchers(ctx context.Context, filterID uint64) ([]Voucher, error) {
	args := m.Called(ctx, filterID)
	vouchers, _ := args.Get(0).([]Voucher)
	return vouchers, args.Error(1)
}

func (m *MockService) StoreTemplates(ctx context.Context) ([]Voucher, error) {
	args := m.Called(ctx)
	vouchers, _ := args.Get(0).([]Voucher)
	return vouchers, args.Error(1)
}

func (m *MockService) Purchase(ctx context.Context, templateID uint64, amount int) (string, error) {
	args := m.Called(ctx, templateID, amount)
	return args.String(0), args.Error(1)
}

func (m *MockService) Consume(ctx context.Context, voucherUUID string) (string, error) {
	args := m.Called(ctx, voucherUUID)
	return args.String(0), args.Error(1)
}

func (m *MockService) CreateTemplate(ctx context.Context, template VoucherTemplate) error {
	return m.Called(ctx, template).Error(0)
}

func (m *MockService) MarkSeen(ctx context.Context, voucherUUID string) error {
	return m.Called(ctx, voucherUUID).Error(0)
}

// recordingPacer records requested delays without sleeping
type recordingPacer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPacer) Sleep(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.delays = append(p.delays, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *recordingPacer) Delays() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

// eventRecorder collects events in order
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *eventRecorder) Of(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func outcomes(ranks ...Rank) []DrawOutcome {
	out := make([]DrawOutcome, len(ranks))
	for i, r := range ranks {
		out[i] = DrawOutcome{Rank: r}
	}
	return out
}

// expectDraws queues the outcomes as consecutive Draw responses
func expectDraws(svc *MockService, draws []DrawOutcome) {
	for _, d := range draws {
		svc.On("Draw", mock.Anything).Return(d, nil).Once()
	}
}

func int64Ptr(v int64) *int64 { return &v }
