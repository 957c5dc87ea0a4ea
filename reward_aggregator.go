package gacha

import (
	"sort"
	"sync"
)

// ConversionTable maps a resolved rank to the reward it grants
type ConversionTable map[Rank]Reward

// DefaultConversionTable returns the Flux table used by the batch reveal
func DefaultConversionTable() ConversionTable {
	return DefaultRewardsConfig().Table()
}

// RewardTally is the summary of everything folded into an aggregator
type RewardTally struct {
	// Draws is the number of resolved ranks folded in
	Draws int
	// RankCounts holds per-rank counters for display
	RankCounts map[Rank]int
	// Rewards lists non-zero amounts in RewardKinds order
	Rewards []Reward
}

// Amount returns the tallied amount of kind
func (t RewardTally) Amount(kind RewardKind) int64 {
	for _, r := range t.Rewards {
		if r.Kind == kind {
			return r.Amount
		}
	}
	return 0
}

// Total returns the sum of all tallied amounts
func (t RewardTally) Total() int64 {
	var total int64
	for _, r := range t.Rewards {
		total += r.Amount
	}
	return total
}

// Empty reports whether nothing was received
func (t RewardTally) Empty() bool {
	return len(t.Rewards) == 0
}

// RewardAggregator folds draw outcomes and payouts into running totals.
// One aggregator belongs to one batch.
type RewardAggregator struct {
	mu     sync.Mutex
	table  ConversionTable
	draws  int
	counts map[Rank]int
	totals map[RewardKind]int64
}

// NewRewardAggregator creates an aggregator using table; nil uses the default table
func NewRewardAggregator(table ConversionTable) *RewardAggregator {
	if table == nil {
		table = DefaultConversionTable()
	}
	return &RewardAggregator{
		table:  table,
		counts: make(map[Rank]int, len(Ranks)),
		totals: make(map[RewardKind]int64, len(RewardKinds)),
	}
}

// Fold adds one draw outcome. NoTickets resolves nothing and is ignored.
func (a *RewardAggregator) Fold(outcome DrawOutcome) {
	if !outcome.Rank.IsResolved() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.draws++
	a.counts[outcome.Rank]++
	if r, ok := a.table[outcome.Rank]; ok && r.Amount > 0 {
		a.totals[r.Kind] += r.Amount
	}
	if outcome.BonusVouchers > 0 {
		a.totals[RewardVoucher] += int64(outcome.BonusVouchers)
	}
}

// FoldReward adds a single payout such as a timer or quest reward
func (a *RewardAggregator) FoldReward(r Reward) {
	if r.Amount <= 0 || r.Kind == "" {
		return
	}

	a.mu.Lock()
	a.totals[r.Kind] += r.Amount
	a.mu.Unlock()
}

// FoldRewards adds several payouts
func (a *RewardAggregator) FoldRewards(rs []Reward) {
	for _, r := range rs {
		a.FoldReward(r)
	}
}

// Counts returns a copy of the rank counters
func (a *RewardAggregator) Counts() map[Rank]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.countsLocked()
}

func (a *RewardAggregator) countsLocked() map[Rank]int {
	out := make(map[Rank]int, len(a.counts))
	for r, n := range a.counts {
		out[r] = n
	}
	return out
}

// Summarize returns the current totals with zero amounts filtered out. It
// does not mutate the aggregator, so repeated calls return equal tallies.
func (a *RewardAggregator) Summarize() RewardTally {
	a.mu.Lock()
	defer a.mu.Unlock()

	tally := RewardTally{
		Draws:      a.draws,
		RankCounts: a.countsLocked(),
	}

	seen := make(map[RewardKind]bool, len(RewardKinds))
	for _, kind := range RewardKinds {
		seen[kind] = true
		if amount := a.totals[kind]; amount > 0 {
			tally.Rewards = append(tally.Rewards, Reward{Kind: kind, Amount: amount})
		}
	}

	// kinds outside the known set keep a stable order
	var extra []RewardKind
	for kind := range a.totals {
		if !seen[kind] {
			extra = append(extra, kind)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, kind := range extra {
		if amount := a.totals[kind]; amount > 0 {
			tally.Rewards = append(tally.Rewards, Reward{Kind: kind, Amount: amount})
		}
	}

	return tally
}
