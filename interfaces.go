package gacha

import (
	"context"
	"time"
)

// ProgressCallback is invoked after each revealed draw of a batch
type ProgressCallback func(completed, total int, outcome DrawOutcome)

// Service is the request/response contract of the remote reward service.
// Every method is a single round trip; implementations must not retry.
type Service interface {
	// Draw resolves one draw for the user
	Draw(ctx context.Context) (DrawOutcome, error)

	// Balance returns the three currency amounts
	Balance(ctx context.Context) (Balance, error)

	// Quests lists the status of every quest in one round trip
	Quests(ctx context.Context) ([]QuestState, error)

	// ClaimQuest claims a single quest and returns the granted rewards
	ClaimQuest(ctx context.Context, questID int) ([]Reward, error)

	// StartTimer starts an earning timer in the given category
	StartTimer(ctx context.Context, category TimerCategory) (TimerResult, error)

	// StopTimer stops the active timer and reports the granted Astrum
	StopTimer(ctx context.Context, category TimerCategory) (TimerResult, error)

	// Vouchers lists owned vouchers, optionally filtered by template id
	Vouchers(ctx context.Context, filterID uint64) ([]Voucher, error)

	// StoreTemplates lists voucher templates offered in the store
	StoreTemplates(ctx context.Context) ([]Voucher, error)

	// Purchase buys amount vouchers of the template id
	Purchase(ctx context.Context, templateID uint64, amount int) (string, error)

	// Consume removes an owned voucher by uuid
	Consume(ctx context.Context, voucherUUID string) (string, error)

	// CreateTemplate adds a voucher template to the store
	CreateTemplate(ctx context.Context, template VoucherTemplate) error

	// MarkSeen clears the "new" marker of an owned voucher
	MarkSeen(ctx context.Context, voucherUUID string) error
}

// Pacer is the delay port used between reveal steps
type Pacer interface {
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

// Notifier receives events produced by the core
type Notifier interface {
	Notify(event Event)
}

// QuestCache persists the last known quest snapshot and batch summaries
type QuestCache interface {
	SaveQuests(ctx context.Context, userID string, states []QuestState) error
	LoadQuests(ctx context.Context, userID string) ([]QuestState, error)
	AppendBatch(ctx context.Context, userID string, summary BatchSummary) error
	RecentBatches(ctx context.Context, userID string, limit int) ([]BatchSummary, error)
}

// ClaimLock serializes claims of the same quest across processes
type ClaimLock interface {
	Acquire(ctx context.Context, userID string, questID int) (release func(), err error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
