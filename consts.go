package gacha

import "time"

// Remote service endpoints
const (
	EndpointPull         = "/pull"
	EndpointFunds        = "/user_funds_info"
	EndpointDailies      = "/dailies"
	EndpointStartTimer   = "/start_timer"
	EndpointStopTimer    = "/stop_timer"
	EndpointVouchers     = "/get_user_vouchers"
	EndpointPurchase     = "/purchase"
	EndpointConsume      = "/consume"
	EndpointCreate       = "/create"
	EndpointRemoveNewTag = "/remove_new_logo"
)

const (
	// DefaultBaseURL is where the reward service listens by default
	DefaultBaseURL = "http://localhost:3000"

	// DefaultRequestTimeout bounds every remote call
	DefaultRequestTimeout = 10 * time.Second

	// RequestIDHeader carries a per-call uuid
	RequestIDHeader = "X-Request-ID"

	// QuestCount is the size of the daily quest catalog
	QuestCount = 4

	// quest id sent with list-mode dailies requests; ignored by the service
	listModeQuestID = 255

	// PullCostAstrum is charged per draw when no Astrai is left
	PullCostAstrum = 160

	// PullCostAstrai is charged per draw while Astrai remains
	PullCostAstrai = 1

	// DefaultBatchSize is the size of a "pull x10" batch
	DefaultBatchSize = 10

	// MaxBatchSize caps a single batch request
	MaxBatchSize = 100
)

// Reveal pacing defaults
const (
	DefaultShuffleTicks  = 15
	DefaultShuffleTick   = 25 * time.Millisecond
	DefaultSingleDwell   = 576 * time.Millisecond
	DefaultDrawGap       = 300 * time.Millisecond
	DefaultSummaryDelay  = 500 * time.Millisecond
	DefaultMythicDwell   = 8 * time.Second
	DefaultSRankDwell    = 2 * time.Second
	DefaultARankDwell    = 500 * time.Millisecond
	DefaultBRankDwell    = 100 * time.Millisecond
	DefaultMythicFlux    = 2400
	DefaultSRankFlux     = 360
	DefaultARankFlux     = 120
	DefaultBRankFlux     = 10
	DefaultBalancePoll   = 15 * time.Second
	DefaultRefreshDelay  = 550 * time.Millisecond
	DefaultQuestInterval = 15 * time.Second
)

// Visible status strings
const (
	StatusFetching     = "Fetching..."
	StatusSynchronized = "Synchronized"
	StatusSyncFailed   = "Sync Failed"
	StatusOffline      = "Error: Server Offline"
	StatusOutOfTickets = "OUT OF ASTRUM"
)

// Timer statuses reported by the service
const (
	TimerStatusTiming        = "Timing..."
	TimerStatusAlreadyActive = "Timer Already Active"
	TimerStatusStopped       = "Timer Stopped"
	TimerStatusNoActive      = "No Active Timers"
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "lifegacha-remote"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
)

const (
	// QuestKeyPrefix is the prefix for cached quest snapshots
	QuestKeyPrefix = "lifegacha:quests:"

	// BatchHistoryKeyPrefix is the prefix for recent batch summaries
	BatchHistoryKeyPrefix = "lifegacha:batches:"

	// ClaimLockKeyPrefix is the prefix for claim lock keys
	ClaimLockKeyPrefix = "lifegacha:claim:"

	// DefaultCacheTTL keeps a quest snapshot for one daily cycle
	DefaultCacheTTL = 24 * time.Hour

	// DefaultBatchHistorySize is how many batch summaries are kept
	DefaultBatchHistorySize = 20

	// DefaultClaimLockTTL bounds how long a claim lock may be held
	DefaultClaimLockTTL = 10 * time.Second

	// DefaultRetryAttempts is the default number of cache retry attempts
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default base delay between cache retries
	DefaultRetryInterval = 100 * time.Millisecond

	// maxRetryDelay caps exponential cache retry backoff
	maxRetryDelay = 5 * time.Second
)

// DefaultMetricsNamespace prefixes exported prometheus metrics
const DefaultMetricsNamespace = "lifegacha"
