package gacha

import (
	"fmt"
	"time"
)

// Rank is the categorical outcome of a draw
type Rank int

const (
	// RankNoTickets is the sentinel returned when the balance cannot pay for a draw
	RankNoTickets Rank = iota
	RankB
	RankA
	RankS
	RankMythic
)

// Ranks lists the resolvable ranks from rarest to most common
var Ranks = []Rank{RankMythic, RankS, RankA, RankB}

// String returns the display name of the rank
func (r Rank) String() string {
	switch r {
	case RankMythic:
		return "Mythic"
	case RankS:
		return "S"
	case RankA:
		return "A"
	case RankB:
		return "B"
	case RankNoTickets:
		return "NoTickets"
	default:
		return fmt.Sprintf("Rank(%d)", int(r))
	}
}

// IsResolved reports whether the rank is a real draw result
func (r Rank) IsResolved() bool {
	return r >= RankB && r <= RankMythic
}

// ParseRank converts a wire value into a Rank
func ParseRank(s string) (Rank, error) {
	switch s {
	case "MythicSSS", "Mythic", "SSS":
		return RankMythic, nil
	case "S":
		return RankS, nil
	case "A":
		return RankA, nil
	case "B":
		return RankB, nil
	case "NoTickets":
		return RankNoTickets, nil
	}
	return RankNoTickets, fmt.Errorf("%w: %q", ErrUnknownRank, s)
}

// MarshalText encodes the rank using its display name
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes any accepted wire spelling
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// DrawOutcome is the immutable result of one draw request
type DrawOutcome struct {
	Rank          Rank `json:"result"`
	BonusVouchers int  `json:"bonus_vouchers,omitempty"`
}

// RewardKind names a currency or item that can be granted
type RewardKind string

const (
	RewardAstrum  RewardKind = "Astrum"
	RewardAstrai  RewardKind = "Astrai"
	RewardFlux    RewardKind = "Flux"
	RewardVoucher RewardKind = "Voucher"
)

// RewardKinds is the fixed display order of reward kinds
var RewardKinds = []RewardKind{RewardAstrum, RewardFlux, RewardAstrai, RewardVoucher}

// Reward is one granted amount of a single kind
type Reward struct {
	Kind   RewardKind `json:"reward_type" mapstructure:"kind"`
	Amount int64      `json:"amount" mapstructure:"amount"`
}

// Balance holds the three currency amounts of a user
type Balance struct {
	Astrum int64 `json:"astrum"`
	Astrai int64 `json:"astrai"`
	Flux   int64 `json:"flux"`
}

// CanPull reports whether the balance covers one more draw. The service
// decides for real; this only drives UI hints.
func (b Balance) CanPull() bool {
	return b.Astrai >= PullCostAstrai || b.Astrum >= PullCostAstrum
}

// Quest is a static entry of the daily catalog
type Quest struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      Reward `json:"reward"`
}

// DefaultQuestCatalog returns the four daily quests
func DefaultQuestCatalog() []Quest {
	return []Quest{
		{ID: 0, Title: "Login", Description: "Establish connection to the Astrai network.",
			Reward: Reward{Kind: RewardAstrum, Amount: 160}},
		{ID: 1, Title: "Complete Preflight", Description: "Shower, dishes, maintenance, teeth. Clear mind and let go.",
			Reward: Reward{Kind: RewardAstrum, Amount: 160}},
		{ID: 2, Title: "Blood & Hormones", Description: "20 burpees of 7 sets or until failure. Pump the system.",
			Reward: Reward{Kind: RewardAstrai, Amount: 1}},
		{ID: 3, Title: "Flux Expenditure", Description: "Channel 500 Flux through the extraction conduits.",
			Reward: Reward{Kind: RewardAstrai, Amount: 1}},
	}
}

// ClaimState is the client-side lifecycle of a quest
type ClaimState int

const (
	Locked ClaimState = iota
	Ready
	Claimed
)

// String returns the label shown next to a quest
func (s ClaimState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Claimed:
		return "claimed"
	default:
		return "locked"
	}
}

// QuestState is the server-reported status of one quest
type QuestState struct {
	QuestID     int   `json:"id"`
	Claimable   bool  `json:"claimable"`
	Claimed     bool  `json:"claimed"`
	LastClaimed int64 `json:"last_claimed,omitempty"`
}

// State derives the claim state. A pair with both flags set cannot be
// represented and is treated as Claimed, so it can never be claimed twice.
func (q QuestState) State() ClaimState {
	switch {
	case q.Claimed:
		return Claimed
	case q.Claimable:
		return Ready
	default:
		return Locked
	}
}

// normalized returns the state with the both-true combination folded into Claimed
func (q QuestState) normalized() QuestState {
	if q.Claimed && q.Claimable {
		q.Claimable = false
	}
	return q
}

// TimerCategory selects the earning rate of a timer
type TimerCategory string

const (
	CategorySNode TimerCategory = "SNode"
	CategoryANode TimerCategory = "ANode"
	CategoryBNode TimerCategory = "BNode"
)

// Valid reports whether the category is known
func (c TimerCategory) Valid() bool {
	return c == CategorySNode || c == CategoryANode || c == CategoryBNode
}

// TimerResult is the service response to a timer action
type TimerResult struct {
	Status   string        `json:"status"`
	Category TimerCategory `json:"category"`
	Reward   *int64        `json:"reward,omitempty"`
}

// Granted returns the reward amount or zero
func (t TimerResult) Granted() int64 {
	if t.Reward == nil {
		return 0
	}
	return *t.Reward
}

// Voucher is a redeemable item owned by the user or offered by the store
type Voucher struct {
	ID          uint64 `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Cost        uint64 `json:"cost"`
	Description string `json:"description"`
}

// VoucherTemplate is a store entry created by the user
type VoucherTemplate struct {
	ID          uint64 `json:"id" validate:"required"`
	Cost        uint64 `json:"cost" validate:"gte=1"`
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

// BatchSummary is the record of a completed batch
type BatchSummary struct {
	Requested  int          `json:"requested"`
	Resolved   int          `json:"resolved"`
	Exhausted  bool         `json:"exhausted"`
	RankCounts map[Rank]int `json:"rank_counts"`
	Rewards    []Reward     `json:"rewards"`
	FinishedAt time.Time    `json:"finished_at"`
}
