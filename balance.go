package gacha

import (
	"context"
	"sync"
	"time"
)

// BalanceBoard holds the displayed currency balance. Draw batches and the
// periodic poll both write it; the last write wins.
type BalanceBoard struct {
	service  Service
	notifier Notifier
	logger   Logger
	monitor  *SessionMonitor

	mu        sync.RWMutex
	balance   Balance
	known     bool
	updatedAt time.Time
	status    string
}

// NewBalanceBoard creates a board reading from service
func NewBalanceBoard(service Service, notifier Notifier, logger Logger, monitor *SessionMonitor) *BalanceBoard {
	return &BalanceBoard{
		service:  service,
		notifier: orNop(notifier),
		logger:   orSilent(logger),
		monitor:  monitor,
	}
}

// Refresh re-queries the balance. On failure the cached value is kept and
// the board reports StatusSyncFailed.
func (b *BalanceBoard) Refresh(ctx context.Context) (Balance, error) {
	balance, err := b.service.Balance(ctx)
	if err != nil {
		b.monitor.RecordBalanceRefresh(false)
		if IsTransportError(err) {
			b.monitor.RecordTransportError()
		}
		b.logger.Error("Balance refresh failed: %v", err)

		b.mu.Lock()
		b.status = StatusSyncFailed
		b.mu.Unlock()

		emit(b.notifier, Event{Type: EventSyncStatus, Status: StatusSyncFailed, Err: err})
		return b.Current(), err
	}

	b.monitor.RecordBalanceRefresh(true)
	b.Set(balance)
	return balance, nil
}

// Set overwrites the displayed balance
func (b *BalanceBoard) Set(balance Balance) {
	b.mu.Lock()
	b.balance = balance
	b.known = true
	b.updatedAt = time.Now()
	b.status = StatusSynchronized
	b.mu.Unlock()

	emit(b.notifier, Event{Type: EventBalanceUpdated, Balance: balance})
}

// Current returns the last known balance
func (b *BalanceBoard) Current() Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance
}

// Known reports whether any refresh has succeeded yet
func (b *BalanceBoard) Known() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.known
}

// UpdatedAt returns when the balance was last written
func (b *BalanceBoard) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// Status returns the last refresh status string
func (b *BalanceBoard) Status() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}
