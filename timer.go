package gacha

import (
	"context"
	"sync"
)

// TimerController starts and stops earning timers. The service owns the
// timer; the controller only remembers which category it last saw running.
type TimerController struct {
	service  Service
	notifier Notifier
	logger   Logger

	mu     sync.Mutex
	active TimerCategory
}

// NewTimerController creates a controller
func NewTimerController(service Service, notifier Notifier, logger Logger) *TimerController {
	return &TimerController{
		service:  service,
		notifier: orNop(notifier),
		logger:   orSilent(logger),
	}
}

// Active returns the running category, if any
func (t *TimerController) Active() (TimerCategory, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.active != ""
}

// Start starts a timer in category. "Timer Already Active" is a normal
// response and leaves the existing timer running.
func (t *TimerController) Start(ctx context.Context, category TimerCategory) (TimerResult, error) {
	if !category.Valid() {
		return TimerResult{}, invalidParams("start_timer", ErrInvalidCategory)
	}

	res, err := t.service.StartTimer(ctx, category)
	if err != nil {
		t.logger.Error("Start timer %s failed: %v", category, err)
		return TimerResult{}, err
	}

	t.mu.Lock()
	switch res.Status {
	case TimerStatusTiming:
		t.active = category
	case TimerStatusAlreadyActive:
		t.active = res.Category
	}
	t.mu.Unlock()

	t.logger.Info("Start timer %s: %s", category, res.Status)
	emit(t.notifier, Event{Type: EventTimer, Timer: &res, Status: res.Status})
	return res, nil
}

// Stop stops the running timer. A granted Astrum reward is folded into agg
// when agg is not nil.
func (t *TimerController) Stop(ctx context.Context, agg *RewardAggregator) (TimerResult, error) {
	t.mu.Lock()
	category := t.active
	t.mu.Unlock()
	if category == "" {
		category = CategorySNode
	}

	res, err := t.service.StopTimer(ctx, category)
	if err != nil {
		t.logger.Error("Stop timer failed: %v", err)
		return TimerResult{}, err
	}

	t.mu.Lock()
	t.active = ""
	t.mu.Unlock()

	if granted := res.Granted(); granted > 0 && agg != nil {
		agg.FoldReward(Reward{Kind: RewardAstrum, Amount: granted})
	}

	t.logger.Info("Stop timer %s: %s reward=%d", res.Category, res.Status, res.Granted())
	emit(t.notifier, Event{Type: EventTimer, Timer: &res, Status: res.Status,
		Rewards: nonZero(Reward{Kind: RewardAstrum, Amount: res.Granted()})})
	return res, nil
}

// Switch stops the running timer and starts one in category. The stop
// result carries the reward earned so far.
func (t *TimerController) Switch(ctx context.Context, category TimerCategory, agg *RewardAggregator) (stopped, started TimerResult, err error) {
	if !category.Valid() {
		return TimerResult{}, TimerResult{}, invalidParams("switch_timer", ErrInvalidCategory)
	}

	stopped, err = t.Stop(ctx, agg)
	if err != nil {
		return TimerResult{}, TimerResult{}, err
	}
	started, err = t.Start(ctx, category)
	return stopped, started, err
}

func nonZero(rs ...Reward) []Reward {
	var out []Reward
	for _, r := range rs {
		if r.Amount > 0 {
			out = append(out, r)
		}
	}
	return out
}
