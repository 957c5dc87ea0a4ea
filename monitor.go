package gacha

import (
	"sync"
	"sync/atomic"
	"time"
)

// SessionMetrics 会话指标快照
type SessionMetrics struct {
	// 抽卡统计
	Draws       int64          `json:"draws"`        // 已揭晓次数
	DrawsByRank map[Rank]int64 `json:"draws_by_rank"` // 按稀有度
	OutOfTicket int64          `json:"out_of_ticket"` // NoTickets 次数

	// 批次统计
	Batches        int64 `json:"batches"`          // 完成的批次
	AbortedBatches int64 `json:"aborted_batches"`  // 因传输错误中止
	BatchTimeNanos int64 `json:"batch_time_nanos"` // 批次总耗时

	// 领取统计
	ClaimsGranted int64 `json:"claims_granted"`
	ClaimsRefused int64 `json:"claims_refused"` // 本地拒绝, 未发请求
	ClaimsFailed  int64 `json:"claims_failed"`

	// 同步统计
	SyncsOK           int64 `json:"syncs_ok"`
	SyncsFailed       int64 `json:"syncs_failed"`
	SyncsCoalesced    int64 `json:"syncs_coalesced"`
	BalanceRefreshes  int64 `json:"balance_refreshes"`
	BalanceFailures   int64 `json:"balance_failures"`
	TransportFailures int64 `json:"transport_failures"`

	StartTime int64 `json:"start_time"`
}

// AverageBatchTime 平均批次耗时
func (m SessionMetrics) AverageBatchTime() time.Duration {
	if m.Batches == 0 {
		return 0
	}
	return time.Duration(m.BatchTimeNanos / m.Batches)
}

// SessionMonitor 会话指标收集器; nil 接收者上的调用都是空操作
type SessionMonitor struct {
	draws        atomic.Int64
	drawsByRank  [RankMythic + 1]atomic.Int64
	outOfTickets atomic.Int64

	batches        atomic.Int64
	abortedBatches atomic.Int64
	batchTime      atomic.Int64

	claimsGranted atomic.Int64
	claimsRefused atomic.Int64
	claimsFailed  atomic.Int64

	syncsOK          atomic.Int64
	syncsFailed      atomic.Int64
	syncsCoalesced   atomic.Int64
	balanceRefreshes atomic.Int64
	balanceFailures  atomic.Int64
	transport        atomic.Int64

	mu        sync.RWMutex
	enabled   bool
	startTime time.Time
}

// NewSessionMonitor 创建会话指标收集器
func NewSessionMonitor() *SessionMonitor {
	return &SessionMonitor{enabled: true, startTime: time.Now()}
}

// Enable 启用收集
func (m *SessionMonitor) Enable() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
}

// Disable 停用收集
func (m *SessionMonitor) Disable() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
}

// IsEnabled 是否启用
func (m *SessionMonitor) IsEnabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// RecordDraw 记录一次抽卡结果
func (m *SessionMonitor) RecordDraw(rank Rank) {
	if !m.IsEnabled() {
		return
	}
	if !rank.IsResolved() {
		m.outOfTickets.Add(1)
		return
	}
	m.draws.Add(1)
	m.drawsByRank[rank].Add(1)
}

// RecordBatch 记录一个批次
func (m *SessionMonitor) RecordBatch(aborted bool, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}
	if aborted {
		m.abortedBatches.Add(1)
		return
	}
	m.batches.Add(1)
	m.batchTime.Add(int64(duration))
}

// RecordClaim 记录一次领取
func (m *SessionMonitor) RecordClaim(status ClaimStatus) {
	if !m.IsEnabled() {
		return
	}
	switch status {
	case ClaimGranted:
		m.claimsGranted.Add(1)
	case ClaimRefused:
		m.claimsRefused.Add(1)
	default:
		m.claimsFailed.Add(1)
	}
}

// RecordSync 记录一次任务同步
func (m *SessionMonitor) RecordSync(ok bool) {
	if !m.IsEnabled() {
		return
	}
	if ok {
		m.syncsOK.Add(1)
	} else {
		m.syncsFailed.Add(1)
	}
}

// RecordCoalescedSync 记录被合并的同步请求
func (m *SessionMonitor) RecordCoalescedSync() {
	if !m.IsEnabled() {
		return
	}
	m.syncsCoalesced.Add(1)
}

// RecordBalanceRefresh 记录一次余额刷新
func (m *SessionMonitor) RecordBalanceRefresh(ok bool) {
	if !m.IsEnabled() {
		return
	}
	m.balanceRefreshes.Add(1)
	if !ok {
		m.balanceFailures.Add(1)
	}
}

// RecordTransportError 记录传输错误
func (m *SessionMonitor) RecordTransportError() {
	if !m.IsEnabled() {
		return
	}
	m.transport.Add(1)
}

// GetMetrics 获取指标快照
func (m *SessionMonitor) GetMetrics() SessionMetrics {
	if m == nil {
		return SessionMetrics{DrawsByRank: map[Rank]int64{}}
	}

	byRank := make(map[Rank]int64, len(Ranks))
	for _, r := range Ranks {
		byRank[r] = m.drawsByRank[r].Load()
	}

	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	return SessionMetrics{
		Draws:             m.draws.Load(),
		DrawsByRank:       byRank,
		OutOfTicket:       m.outOfTickets.Load(),
		Batches:           m.batches.Load(),
		AbortedBatches:    m.abortedBatches.Load(),
		BatchTimeNanos:    m.batchTime.Load(),
		ClaimsGranted:     m.claimsGranted.Load(),
		ClaimsRefused:     m.claimsRefused.Load(),
		ClaimsFailed:      m.claimsFailed.Load(),
		SyncsOK:           m.syncsOK.Load(),
		SyncsFailed:       m.syncsFailed.Load(),
		SyncsCoalesced:    m.syncsCoalesced.Load(),
		BalanceRefreshes:  m.balanceRefreshes.Load(),
		BalanceFailures:   m.balanceFailures.Load(),
		TransportFailures: m.transport.Load(),
		StartTime:         start.UnixNano(),
	}
}

// Reset 重置所有指标
func (m *SessionMonitor) Reset() {
	if m == nil {
		return
	}
	for _, c := range []*atomic.Int64{
		&m.draws, &m.outOfTickets, &m.batches, &m.abortedBatches, &m.batchTime,
		&m.claimsGranted, &m.claimsRefused, &m.claimsFailed,
		&m.syncsOK, &m.syncsFailed, &m.syncsCoalesced,
		&m.balanceRefreshes, &m.balanceFailures, &m.transport,
	} {
		c.Store(0)
	}
	for i := range m.drawsByRank {
		m.drawsByRank[i].Store(0)
	}
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
