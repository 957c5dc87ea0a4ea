package gacha

import "errors"

// Validation errors returned before any request is sent
var (
	// ErrEmptyUserID indicates the session has no user id configured
	ErrEmptyUserID = errors.New("GACHA_001: user id cannot be empty")

	// ErrInvalidCount indicates a batch size outside 1..MaxBatchSize
	ErrInvalidCount = errors.New("GACHA_002: invalid count: must be between 1 and 100")

	// ErrUnknownQuest indicates a quest id outside the catalog
	ErrUnknownQuest = errors.New("GACHA_003: unknown quest id")

	// ErrUnknownRank indicates the service returned an unrecognized rank
	ErrUnknownRank = errors.New("GACHA_004: unknown draw rank")

	// ErrInvalidCategory indicates an unknown timer category
	ErrInvalidCategory = errors.New("GACHA_005: invalid timer category")

	// ErrInvalidVoucher indicates a voucher template failed local validation
	ErrInvalidVoucher = errors.New("GACHA_006: invalid voucher template")

	// ErrInvalidAmount indicates a non-positive purchase amount
	ErrInvalidAmount = errors.New("GACHA_007: invalid amount: must be between 1 and 255")

	// ErrNilService indicates a component was built without a remote service
	ErrNilService = errors.New("GACHA_008: remote service cannot be nil")

	// ErrNilStateMachine indicates a scheduler was built without a claim state machine
	ErrNilStateMachine = errors.New("GACHA_013: claim state machine cannot be nil")

	// ErrInvalidBaseURL indicates the configured base url cannot be parsed
	ErrInvalidBaseURL = errors.New("GACHA_009: invalid base url")

	// ErrInvalidDelay indicates a negative pacing delay
	ErrInvalidDelay = errors.New("GACHA_010: invalid delay: cannot be negative")

	// ErrInvalidRewardAmount indicates a negative conversion table amount
	ErrInvalidRewardAmount = errors.New("GACHA_011: invalid reward amount: cannot be negative")

	// ErrInvalidFailureRatio indicates a breaker failure ratio outside (0,1]
	ErrInvalidFailureRatio = errors.New("GACHA_012: invalid failure ratio: must be in (0, 1]")
)
