package gacha

import (
	"sync/atomic"
	"time"
)

// EventType identifies what an Event reports
type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventRevealTick     EventType = "reveal_tick"
	EventDrawRevealed   EventType = "draw_revealed"
	EventBatchSummary   EventType = "batch_summary"
	EventBatchAborted   EventType = "batch_aborted"
	EventBalanceUpdated EventType = "balance_updated"
	EventQuestsSynced   EventType = "quests_synced"
	EventQuestClaimed   EventType = "quest_claimed"
	EventSyncStatus     EventType = "sync_status"
	EventTimer          EventType = "timer"
	EventStatus         EventType = "status"
)

// Event is a message from the core to the presentation layer. Only the
// fields relevant to Type are set.
type Event struct {
	Type       EventType
	Index      int
	Total      int
	Tick       int
	Outcome    DrawOutcome
	RankCounts map[Rank]int
	Balance    Balance
	Rewards    []Reward
	Quests     []QuestState
	QuestID    int
	Timer      *TimerResult
	Status     string
	Err        error
	At         time.Time
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Event)

// Notify calls f(event)
func (f NotifierFunc) Notify(event Event) { f(event) }

// ChanNotifier delivers events on a buffered channel. Sends never block;
// events that do not fit are counted and dropped.
type ChanNotifier struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChanNotifier creates a notifier with the given buffer size
func NewChanNotifier(buffer int) *ChanNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanNotifier{ch: make(chan Event, buffer)}
}

// Notify enqueues event or drops it when the buffer is full
func (n *ChanNotifier) Notify(event Event) {
	select {
	case n.ch <- event:
	default:
		n.dropped.Add(1)
	}
}

// Events returns the receive side of the channel
func (n *ChanNotifier) Events() <-chan Event { return n.ch }

// Dropped returns the number of events discarded so far
func (n *ChanNotifier) Dropped() int64 { return n.dropped.Load() }

type multiNotifier []Notifier

func (m multiNotifier) Notify(event Event) {
	for _, n := range m {
		n.Notify(event)
	}
}

// Notifiers fans an event out to several notifiers
func Notifiers(ns ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func emit(n Notifier, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	n.Notify(event)
}
