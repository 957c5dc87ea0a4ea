package gacha

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// BreakerService 带熔断器的远程服务包装, 服务离线时快速失败
type BreakerService struct {
	service Service

	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

var _ Service = (*BreakerService)(nil)

// NewBreakerService 创建带熔断器的远程服务
func NewBreakerService(service Service, config *CircuitBreakerConfig, logger Logger) *BreakerService {
	logger = orSilent(logger)
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if !config.Enabled {
		// 未启用时透传
		return &BreakerService{service: service, logger: logger, config: config}
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 请求数达到最小要求且失败率超过阈值时熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		// 只有传输失败计入熔断; 服务拒绝和主动取消不算
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransportError(err) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	}

	return &BreakerService{
		service: service,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		config:  config,
	}
}

// State 返回熔断器状态
func (b *BreakerService) State() gobreaker.State {
	if b.breaker == nil {
		return gobreaker.StateClosed
	}
	return b.breaker.State()
}

// execute 使用熔断器执行操作
func execute[T any](b *BreakerService, op string, fn func() (T, error)) (T, error) {
	if b.breaker == nil {
		return fn()
	}

	result, err := b.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return zero, newBreakerOpenError(op, "circuit breaker is open, requests are being rejected")
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, newBreakerOpenError(op, "too many requests, circuit breaker is half-open")
		}
		// 业务错误时 result 可能带有部分数据, 统一返回零值
		return zero, err
	}

	return result.(T), nil
}

type none struct{}

// Draw 抽卡
func (b *BreakerService) Draw(ctx context.Context) (DrawOutcome, error) {
	return execute(b, "draw", func() (DrawOutcome, error) { return b.service.Draw(ctx) })
}

// Balance 查询余额
func (b *BreakerService) Balance(ctx context.Context) (Balance, error) {
	return execute(b, "balance", func() (Balance, error) { return b.service.Balance(ctx) })
}

// Quests 查询每日任务
func (b *BreakerService) Quests(ctx context.Context) ([]QuestState, error) {
	return execute(b, "quests", func() ([]QuestState, error) { return b.service.Quests(ctx) })
}

// ClaimQuest 领取每日任务
func (b *BreakerService) ClaimQuest(ctx context.Context, questID int) ([]Reward, error) {
	return execute(b, "claim", func() ([]Reward, error) { return b.service.ClaimQuest(ctx, questID) })
}

// StartTimer 开始计时
func (b *BreakerService) StartTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	return execute(b, "start_timer", func() (TimerResult, error) { return b.service.StartTimer(ctx, category) })
}

// StopTimer 停止计时
func (b *BreakerService) StopTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	return execute(b, "stop_timer", func() (TimerResult, error) { return b.service.StopTimer(ctx, category) })
}

// Vouchers 查询已有兑换券
func (b *BreakerService) Vouchers(ctx context.Context, filterID uint64) ([]Voucher, error) {
	return execute(b, "vouchers", func() ([]Voucher, error) { return b.service.Vouchers(ctx, filterID) })
}

// StoreTemplates 查询商店
func (b *BreakerService) StoreTemplates(ctx context.Context) ([]Voucher, error) {
	return execute(b, "store", func() ([]Voucher, error) { return b.service.StoreTemplates(ctx) })
}

// Purchase 购买兑换券
func (b *BreakerService) Purchase(ctx context.Context, templateID uint64, amount int) (string, error) {
	return execute(b, "purchase", func() (string, error) { return b.service.Purchase(ctx, templateID, amount) })
}

// Consume 使用兑换券
func (b *BreakerService) Consume(ctx context.Context, voucherUUID string) (string, error) {
	return execute(b, "consume", func() (string, error) { return b.service.Consume(ctx, voucherUUID) })
}

// CreateTemplate 创建兑换券模板
func (b *BreakerService) CreateTemplate(ctx context.Context, template VoucherTemplate) error {
	_, err := execute(b, "create", func() (none, error) { return none{}, b.service.CreateTemplate(ctx, template) })
	return err
}

// MarkSeen 清除新标记
func (b *BreakerService) MarkSeen(ctx context.Context, voucherUUID string) error {
	_, err := execute(b, "mark_seen", func() (none, error) { return none{}, b.service.MarkSeen(ctx, voucherUUID) })
	return err
}
