package gacha

import (
	"context"
	"time"
)

// BatchResult describes a finished batch
type BatchResult struct {
	// Requested is the batch size asked for
	Requested int
	// Sent is the number of draw requests issued, including a final NoTickets one
	Sent int
	// Outcomes holds the resolved draws in reveal order
	Outcomes []DrawOutcome
	// Exhausted is set when the service answered NoTickets
	Exhausted bool
	// Tally is the summary emitted at the end of the batch
	Tally RewardTally
	// Duration is the wall time of the whole batch
	Duration time.Duration
}

// DrawSequencer issues draws one at a time and paces their reveal. Batches
// never overlap: a second RunBatch waits for the first to finish.
type DrawSequencer struct {
	service  Service
	pacer    Pacer
	pacing   *PacingConfig
	table    ConversionTable
	balance  *BalanceBoard
	notifier Notifier
	logger   Logger
	monitor  *SessionMonitor
	history  QuestCache
	userID   string

	sem chan struct{}
}

// SequencerOption configures a DrawSequencer
type SequencerOption func(*DrawSequencer)

// WithPacer sets the delay port
func WithPacer(p Pacer) SequencerOption {
	return func(s *DrawSequencer) { s.pacer = p }
}

// WithPacing sets reveal timings
func WithPacing(p *PacingConfig) SequencerOption {
	return func(s *DrawSequencer) { s.pacing = p }
}

// WithConversionTable sets the rank to reward table
func WithConversionTable(t ConversionTable) SequencerOption {
	return func(s *DrawSequencer) { s.table = t }
}

// WithBalanceBoard makes the sequencer refresh balances after each draw
func WithBalanceBoard(b *BalanceBoard) SequencerOption {
	return func(s *DrawSequencer) { s.balance = b }
}

// WithNotifier sets the event sink
func WithNotifier(n Notifier) SequencerOption {
	return func(s *DrawSequencer) { s.notifier = n }
}

// WithSequencerLogger sets the logger
func WithSequencerLogger(l Logger) SequencerOption {
	return func(s *DrawSequencer) { s.logger = l }
}

// WithSequencerMonitor sets the metrics monitor
func WithSequencerMonitor(m *SessionMonitor) SequencerOption {
	return func(s *DrawSequencer) { s.monitor = m }
}

// WithBatchHistory records each summary in cache under userID
func WithBatchHistory(cache QuestCache, userID string) SequencerOption {
	return func(s *DrawSequencer) {
		s.history = cache
		s.userID = userID
	}
}

// NewDrawSequencer creates a sequencer. Without options it uses wall-clock
// pacing with default timings and the default conversion table.
func NewDrawSequencer(service Service, opts ...SequencerOption) (*DrawSequencer, error) {
	if service == nil {
		return nil, ErrNilService
	}

	s := &DrawSequencer{
		service: service,
		sem:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pacer == nil {
		s.pacer = NewClockPacer(nil)
	}
	if s.pacing == nil {
		s.pacing = DefaultPacingConfig()
	}
	if s.table == nil {
		s.table = DefaultConversionTable()
	}
	s.notifier = orNop(s.notifier)
	s.logger = orSilent(s.logger)

	return s, nil
}

// RunBatch issues n draws and returns the batch tally
func (s *DrawSequencer) RunBatch(ctx context.Context, n int) (*BatchResult, error) {
	return s.run(ctx, n, false, nil)
}

// RunBatchWithProgress is RunBatch with a callback after each revealed draw
func (s *DrawSequencer) RunBatchWithProgress(ctx context.Context, n int, progress ProgressCallback) (*BatchResult, error) {
	return s.run(ctx, n, false, progress)
}

// Pull issues a single draw paced with the single-pull dwell
func (s *DrawSequencer) Pull(ctx context.Context) (*BatchResult, error) {
	return s.run(ctx, 1, true, nil)
}

func (s *DrawSequencer) run(ctx context.Context, n int, single bool, progress ProgressCallback) (*BatchResult, error) {
	if err := ValidateCount(n); err != nil {
		return nil, invalidParams("draw_batch", err)
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	start := time.Now()
	agg := NewRewardAggregator(s.table)
	result := &BatchResult{Requested: n}

	s.logger.Info("Starting draw batch: n=%d", n)
	emit(s.notifier, Event{Type: EventBatchStarted, Total: n})

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, s.abort(result, start, err)
		}

		outcome, err := s.service.Draw(ctx)
		result.Sent++
		if err != nil {
			if IsTransportError(err) {
				s.monitor.RecordTransportError()
			}
			return nil, s.abort(result, start, err)
		}
		s.monitor.RecordDraw(outcome.Rank)

		if outcome.Rank == RankNoTickets {
			s.logger.Info("Draw %d/%d returned NoTickets, ending batch early", i, n)
			result.Exhausted = true
			emit(s.notifier, Event{Type: EventStatus, Index: i, Total: n, Status: StatusOutOfTickets})
			break
		}

		if err := s.reveal(ctx, i, n, outcome, agg, single); err != nil {
			return nil, s.abort(result, start, err)
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if progress != nil {
			progress(i, n, outcome)
		}
	}

	if err := s.pacer.Sleep(ctx, s.pacing.SummaryDelay); err != nil {
		return nil, s.abort(result, start, err)
	}

	result.Tally = agg.Summarize()
	result.Duration = time.Since(start)
	s.monitor.RecordBatch(false, result.Duration)

	s.logger.Info("Draw batch finished: sent=%d resolved=%d exhausted=%t rewards=%v",
		result.Sent, len(result.Outcomes), result.Exhausted, result.Tally.Rewards)
	emit(s.notifier, Event{
		Type:       EventBatchSummary,
		Total:      n,
		Index:      result.Sent,
		RankCounts: result.Tally.RankCounts,
		Rewards:    result.Tally.Rewards,
	})

	s.recordHistory(ctx, result)
	return result, nil
}

// reveal runs the shuffle window, folds the outcome, refreshes the balance
// and holds the rank for its dwell time.
func (s *DrawSequencer) reveal(ctx context.Context, i, n int, outcome DrawOutcome, agg *RewardAggregator, single bool) error {
	for tick := 1; tick <= s.pacing.ShuffleTicks; tick++ {
		emit(s.notifier, Event{Type: EventRevealTick, Index: i, Total: n, Tick: tick})
		if err := s.pacer.Sleep(ctx, s.pacing.ShuffleTick); err != nil {
			return err
		}
	}

	agg.Fold(outcome)
	s.logger.Debug("Draw %d/%d revealed %s", i, n, outcome.Rank)
	emit(s.notifier, Event{
		Type:       EventDrawRevealed,
		Index:      i,
		Total:      n,
		Outcome:    outcome,
		RankCounts: agg.Counts(),
	})

	if s.balance != nil {
		// a failed refresh is reported by the board and does not stop the batch
		_, _ = s.balance.Refresh(ctx)
	}

	if single {
		return s.pacer.Sleep(ctx, s.pacing.SingleDwell)
	}
	if err := s.pacer.Sleep(ctx, s.pacing.Dwell(outcome.Rank)); err != nil {
		return err
	}
	return s.pacer.Sleep(ctx, s.pacing.DrawGap)
}

func (s *DrawSequencer) abort(result *BatchResult, start time.Time, err error) error {
	s.monitor.RecordBatch(true, time.Since(start))
	s.logger.Error("Draw batch aborted after %d of %d requests: %v", result.Sent, result.Requested, err)
	emit(s.notifier, Event{
		Type:   EventBatchAborted,
		Index:  result.Sent,
		Total:  result.Requested,
		Status: StatusMessage(err),
		Err:    err,
	})
	return err
}

func (s *DrawSequencer) recordHistory(ctx context.Context, result *BatchResult) {
	if s.history == nil || s.userID == "" {
		return
	}

	summary := BatchSummary{
		Requested:  result.Requested,
		Resolved:   len(result.Outcomes),
		Exhausted:  result.Exhausted,
		RankCounts: result.Tally.RankCounts,
		Rewards:    result.Tally.Rewards,
		FinishedAt: time.Now(),
	}
	if err := s.history.AppendBatch(ctx, s.userID, summary); err != nil {
		s.logger.Error("Failed to record batch summary: %v", err)
	}
}
