package gacha

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统 / 传输错误 (1000-1999)
	ErrCodeSystem             ErrorCode = "GACHA_1000"
	ErrCodeTransport          ErrorCode = "GACHA_1001"
	ErrCodeTimeout            ErrorCode = "GACHA_1002"
	ErrCodeBadStatus          ErrorCode = "GACHA_1003"
	ErrCodeMalformedResponse  ErrorCode = "GACHA_1004"
	ErrCodeConfigInvalid      ErrorCode = "GACHA_1005"
	ErrCodeServiceUnavailable ErrorCode = "GACHA_1006"

	// 参数错误 (2000-2999)
	ErrCodeInvalidParameters ErrorCode = "GACHA_2000"
	ErrCodeInvalidCount      ErrorCode = "GACHA_2001"
	ErrCodeUnknownQuest      ErrorCode = "GACHA_2002"
	ErrCodeInvalidVoucher    ErrorCode = "GACHA_2003"

	// 锁相关错误 (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "GACHA_3000"
	ErrCodeLockReleaseFailure    ErrorCode = "GACHA_3001"

	// 服务拒绝 (4000-4999)
	ErrCodeRejected          ErrorCode = "GACHA_4000"
	ErrCodeInsufficientFunds ErrorCode = "GACHA_4001"
	ErrCodeClaimRefused      ErrorCode = "GACHA_4002"
	ErrCodeNotFound          ErrorCode = "GACHA_4003"
	ErrCodeOutOfTickets      ErrorCode = "GACHA_4004"

	// 熔断 (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "GACHA_5000"

	// 本地缓存 (6000-6999)
	ErrCodeCacheSaveFailure      ErrorCode = "GACHA_6000"
	ErrCodeCacheLoadFailure      ErrorCode = "GACHA_6001"
	ErrCodeSerializationFailed   ErrorCode = "GACHA_6002"
	ErrCodeDeserializationFailed ErrorCode = "GACHA_6003"
)

// ErrorKind 区分两类对外可见的失败
type ErrorKind string

const (
	// KindTransport 请求未能完成或返回非成功状态
	KindTransport ErrorKind = "transport"
	// KindRejected 请求完成但服务拒绝了该操作
	KindRejected ErrorKind = "rejected"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// GachaError 客户端统一错误类型
type GachaError struct {
	Code       ErrorCode      `json:"code"`
	Kind       ErrorKind      `json:"kind"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Severity   ErrorSeverity  `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Cause      error          `json:"-"`
	Retryable  bool           `json:"retryable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Error 实现 error 接口
func (e *GachaError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *GachaError) Unwrap() error {
	return e.Cause
}

// Is 按错误代码比较
func (e *GachaError) Is(target error) bool {
	if t, ok := target.(*GachaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause 添加原因错误
func (e *GachaError) WithCause(cause error) *GachaError {
	e.Cause = cause
	return e
}

// WithDetails 添加详细信息
func (e *GachaError) WithDetails(details string) *GachaError {
	e.Details = details
	return e
}

// WithRequestID 添加请求ID
func (e *GachaError) WithRequestID(requestID string) *GachaError {
	e.RequestID = requestID
	return e
}

// WithUserID 添加用户ID
func (e *GachaError) WithUserID(userID string) *GachaError {
	e.UserID = userID
	return e
}

// WithOperation 添加操作信息
func (e *GachaError) WithOperation(operation string) *GachaError {
	e.Operation = operation
	return e
}

// WithStatusCode 记录 HTTP 状态码
func (e *GachaError) WithStatusCode(code int) *GachaError {
	e.StatusCode = code
	return e
}

// WithMetadata 添加元数据
func (e *GachaError) WithMetadata(key string, value any) *GachaError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithStackTrace 添加堆栈跟踪
func (e *GachaError) WithStackTrace() *GachaError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// NewError 创建新的错误, 默认归为拒绝类
func NewError(code ErrorCode, message string) *GachaError {
	return &GachaError{
		Code:      code,
		Kind:      KindRejected,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
	}
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *GachaError {
	err := NewError(code, message)
	err.Severity = SeverityCritical
	return err.WithStackTrace()
}

// NewTransportError wraps a failed round trip. The caller is expected to
// surface the offline indicator; nothing here retries.
func NewTransportError(operation string, cause error) *GachaError {
	code := ErrCodeTransport
	if cause != nil && strings.Contains(strings.ToLower(cause.Error()), "timeout") {
		code = ErrCodeTimeout
	}
	err := &GachaError{
		Code:      code,
		Kind:      KindTransport,
		Message:   "request could not complete",
		Severity:  SeverityHigh,
		Timestamp: time.Now(),
		Operation: operation,
		Cause:     cause,
		Retryable: IsRetryableError(cause),
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewStatusError wraps a non-success HTTP status that is not a known rejection
func NewStatusError(operation string, status int, body string) *GachaError {
	err := &GachaError{
		Code:       ErrCodeBadStatus,
		Kind:       KindTransport,
		Message:    "service returned non-success status",
		Details:    fmt.Sprintf("status=%d body=%s", status, strings.TrimSpace(body)),
		Severity:   SeverityHigh,
		Timestamp:  time.Now(),
		Operation:  operation,
		StatusCode: status,
		Retryable:  status >= 500,
	}
	return err
}

// NewRejectedError reports a completed request the service declined
func NewRejectedError(code ErrorCode, operation, reason string) *GachaError {
	err := NewError(code, reason)
	err.Operation = operation
	err.Severity = SeverityLow
	return err
}

// 预定义的错误实例, 仅用于 errors.Is 比较
var (
	ErrTransport          = &GachaError{Code: ErrCodeTransport, Kind: KindTransport, Message: "request could not complete"}
	ErrBadStatus          = &GachaError{Code: ErrCodeBadStatus, Kind: KindTransport, Message: "service returned non-success status"}
	ErrMalformedResponse  = &GachaError{Code: ErrCodeMalformedResponse, Kind: KindTransport, Message: "malformed response body"}
	ErrCircuitBreakerOpen = &GachaError{Code: ErrCodeCircuitBreakerOpen, Kind: KindTransport, Message: "circuit breaker is open"}
	ErrInsufficientFunds  = &GachaError{Code: ErrCodeInsufficientFunds, Kind: KindRejected, Message: "insufficient funds"}
	ErrClaimRefused       = &GachaError{Code: ErrCodeClaimRefused, Kind: KindRejected, Message: "quest is not ready to claim"}
	ErrNotFound           = &GachaError{Code: ErrCodeNotFound, Kind: KindRejected, Message: "not found"}
	ErrOutOfTickets       = &GachaError{Code: ErrCodeOutOfTickets, Kind: KindRejected, Message: "no tickets left"}
	ErrLockNotAcquired    = &GachaError{Code: ErrCodeLockAcquisitionFailed, Kind: KindRejected, Message: "claim already in progress elsewhere"}
	ErrCacheSaveFailure   = &GachaError{Code: ErrCodeCacheSaveFailure, Kind: KindTransport, Message: "failed to save cache"}
	ErrCacheLoadFailure   = &GachaError{Code: ErrCodeCacheLoadFailure, Kind: KindTransport, Message: "failed to load cache"}
)

// newBreakerOpenError 熔断器打开时的错误
func newBreakerOpenError(operation, details string) *GachaError {
	err := NewTransportError(operation, nil)
	err.Code = ErrCodeCircuitBreakerOpen
	err.Message = ErrCircuitBreakerOpen.Message
	err.Details = details
	err.Retryable = true
	return err
}

// IsTransportError 判断是否为传输类错误
func IsTransportError(err error) bool {
	var ge *GachaError
	if errors.As(err, &ge) {
		return ge.Kind == KindTransport
	}
	return false
}

// IsRejected 判断是否为服务拒绝类错误
func IsRejected(err error) bool {
	var ge *GachaError
	if errors.As(err, &ge) {
		return ge.Kind == KindRejected
	}
	return false
}

// StatusMessage maps an error to the status string shown to the user
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrOutOfTickets) {
		return StatusOutOfTickets
	}
	if IsTransportError(err) {
		return StatusOffline
	}
	var ge *GachaError
	if errors.As(err, &ge) {
		if ge.Details != "" {
			return ge.Details
		}
		return ge.Message
	}
	return err.Error()
}

// IsRetryableError 检查是否为可重试错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"connection timed out",
		"no route to host",
		"host is down",
		"eof",
		"redis: connection pool timeout",
		"redis: client is closed",
		"context deadline exceeded",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
