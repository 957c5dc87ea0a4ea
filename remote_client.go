package gacha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

type userRequest struct {
	UserID string `json:"userid"`
}

type pullResponse struct {
	Result        string `json:"result"`
	BonusVouchers int    `json:"bonus_vouchers"`
}

type dailiesRequest struct {
	UserID string `json:"userid"`
	Info   bool   `json:"info"`
	ID     int    `json:"id"`
}

type dailiesResponse struct {
	Dailies []QuestState `json:"dailies"`
}

type claimResponse struct {
	Rewards []Reward `json:"rewards"`
}

type timerRequest struct {
	UserID   string        `json:"userid"`
	Category TimerCategory `json:"category"`
}

type voucherRequest struct {
	UserID     string `json:"userid"`
	RequestAll bool   `json:"request_all"`
	FilterByID uint64 `json:"filter_by_id"`
	Store      bool   `json:"store"`
}

type purchaseRequest struct {
	UserID string `json:"userid"`
	Amount int    `json:"amount"`
	ID     uint64 `json:"id"`
}

type consumeRequest struct {
	UserID string `json:"userid"`
	UUID   string `json:"uuid"`
}

type createRequest struct {
	UserID  string          `json:"userid"`
	Voucher VoucherTemplate `json:"voucher"`
}

// HTTPClient talks to the reward service with JSON POST requests. It
// issues exactly one request per call and never retries.
type HTTPClient struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	headers    map[string]string
	logger     Logger
}

// NewHTTPClient creates a client from config
func NewHTTPClient(config *ClientConfig, logger Logger) (*HTTPClient, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.UserID == "" {
		return nil, ErrEmptyUserID
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return NewHTTPClientWithHTTP(config.BaseURL, config.UserID, &http.Client{Timeout: timeout}, logger), nil
}

// NewHTTPClientWithHTTP creates a client around an existing *http.Client
func NewHTTPClientWithHTTP(baseURL, userID string, hc *http.Client, logger Logger) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: hc,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		logger: orSilent(logger),
	}
}

// SetHeader sets a custom header sent with every request
func (c *HTTPClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// UserID returns the user the client acts for
func (c *HTTPClient) UserID() string { return c.userID }

// post sends one JSON POST request and returns status and body. Only
// failures to complete the round trip are returned as errors.
func (c *HTTPClient) post(ctx context.Context, op, endpoint string, payload any) (int, []byte, error) {
	requestID := uuid.NewString()

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, NewError(ErrCodeSerializationFailed, "failed to encode request").
			WithCause(errors.Wrapf(err, "marshal %s payload", op)).
			WithOperation(op).WithRequestID(requestID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, NewTransportError(op, errors.Wrap(err, "failed to create request")).
			WithRequestID(requestID).WithUserID(c.userID)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("%s %s failed after %v: %v", op, endpoint, time.Since(start), err)
		return 0, nil, NewTransportError(op, errors.Wrap(err, "failed to send request")).
			WithRequestID(requestID).WithUserID(c.userID)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, NewTransportError(op, errors.Wrap(err, "failed to read response")).
			WithRequestID(requestID).WithUserID(c.userID).WithStatusCode(resp.StatusCode)
	}

	c.logger.Debug("%s %s -> %d in %v (request_id=%s)", op, endpoint, resp.StatusCode, time.Since(start), requestID)
	return resp.StatusCode, respBody, nil
}

// call posts payload and decodes a 2xx response into out. rejections maps
// status codes the service uses for declined actions.
func (c *HTTPClient) call(ctx context.Context, op, endpoint string, payload, out any, rejections map[int]*GachaError) error {
	status, body, err := c.post(ctx, op, endpoint, payload)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		if template, ok := rejections[status]; ok {
			return NewRejectedError(template.Code, op, template.Message).
				WithStatusCode(status).WithUserID(c.userID).WithDetails(strings.TrimSpace(string(body)))
		}
		return NewStatusError(op, status, string(body)).WithUserID(c.userID)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newMalformedError(op, err)
	}
	return nil
}

func newMalformedError(op string, cause error) *GachaError {
	err := NewTransportError(op, errors.Wrap(cause, "decode response"))
	err.Code = ErrCodeMalformedResponse
	err.Message = ErrMalformedResponse.Message
	err.Retryable = false
	return err
}

// Draw resolves one draw
func (c *HTTPClient) Draw(ctx context.Context) (DrawOutcome, error) {
	var resp pullResponse
	if err := c.call(ctx, "draw", EndpointPull, userRequest{UserID: c.userID}, &resp, nil); err != nil {
		return DrawOutcome{}, err
	}

	rank, err := ParseRank(resp.Result)
	if err != nil {
		return DrawOutcome{}, newMalformedError("draw", err)
	}
	return DrawOutcome{Rank: rank, BonusVouchers: resp.BonusVouchers}, nil
}

// Balance returns the three currency amounts
func (c *HTTPClient) Balance(ctx context.Context) (Balance, error) {
	var b Balance
	err := c.call(ctx, "balance", EndpointFunds, userRequest{UserID: c.userID}, &b, nil)
	return b, err
}

// Quests lists every quest status in list mode
func (c *HTTPClient) Quests(ctx context.Context) ([]QuestState, error) {
	var resp dailiesResponse
	req := dailiesRequest{UserID: c.userID, Info: true, ID: listModeQuestID}
	if err := c.call(ctx, "quests", EndpointDailies, req, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Dailies == nil {
		return nil, newMalformedError("quests", fmt.Errorf("missing dailies field"))
	}
	return resp.Dailies, nil
}

// ClaimQuest claims questID in claim mode. The service may omit the
// rewards body, in which case nil is returned.
func (c *HTTPClient) ClaimQuest(ctx context.Context, questID int) ([]Reward, error) {
	var resp claimResponse
	req := dailiesRequest{UserID: c.userID, Info: false, ID: questID}
	err := c.call(ctx, "claim", EndpointDailies, req, &resp, map[int]*GachaError{
		http.StatusForbidden: NewError(ErrCodeClaimRefused, "quest claim declined"),
		http.StatusConflict:  NewError(ErrCodeClaimRefused, "quest already claimed"),
	})
	if err != nil {
		return nil, err
	}
	return resp.Rewards, nil
}

// StartTimer starts a timer
func (c *HTTPClient) StartTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	var res TimerResult
	err := c.call(ctx, "start_timer", EndpointStartTimer, timerRequest{UserID: c.userID, Category: category}, &res, nil)
	return res, err
}

// StopTimer stops the active timer
func (c *HTTPClient) StopTimer(ctx context.Context, category TimerCategory) (TimerResult, error) {
	var res TimerResult
	err := c.call(ctx, "stop_timer", EndpointStopTimer, timerRequest{UserID: c.userID, Category: category}, &res, nil)
	return res, err
}

var voucherRejections = map[int]*GachaError{
	http.StatusNotFound: NewError(ErrCodeNotFound, "voucher not found"),
}

// Vouchers lists owned vouchers; filterID 0 returns all
func (c *HTTPClient) Vouchers(ctx context.Context, filterID uint64) ([]Voucher, error) {
	var out []Voucher
	req := voucherRequest{UserID: c.userID, RequestAll: true, FilterByID: filterID}
	if err := c.call(ctx, "vouchers", EndpointVouchers, req, &out, voucherRejections); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreTemplates lists the store
func (c *HTTPClient) StoreTemplates(ctx context.Context) ([]Voucher, error) {
	var out []Voucher
	req := voucherRequest{UserID: c.userID, Store: true}
	if err := c.call(ctx, "store", EndpointVouchers, req, &out, voucherRejections); err != nil {
		return nil, err
	}
	return out, nil
}

// Purchase buys vouchers; insufficient flux is a rejection
func (c *HTTPClient) Purchase(ctx context.Context, templateID uint64, amount int) (string, error) {
	var resp struct {
		Result string `json:"result"`
	}
	err := c.call(ctx, "purchase", EndpointPurchase,
		purchaseRequest{UserID: c.userID, Amount: amount, ID: templateID}, &resp,
		map[int]*GachaError{
			http.StatusForbidden: NewError(ErrCodeInsufficientFunds, "insufficient flux"),
			http.StatusNotFound:  NewError(ErrCodeNotFound, "voucher template not found"),
		})
	return resp.Result, err
}

// Consume removes an owned voucher
func (c *HTTPClient) Consume(ctx context.Context, voucherUUID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.call(ctx, "consume", EndpointConsume, consumeRequest{UserID: c.userID, UUID: voucherUUID}, &resp, voucherRejections)
	return resp.Status, err
}

// CreateTemplate adds a store template
func (c *HTTPClient) CreateTemplate(ctx context.Context, template VoucherTemplate) error {
	return c.call(ctx, "create", EndpointCreate, createRequest{UserID: c.userID, Voucher: template}, nil,
		map[int]*GachaError{
			http.StatusLengthRequired: NewError(ErrCodeInvalidVoucher, "voucher needs a name and a cost of at least 1"),
		})
}

// MarkSeen clears the "new" marker; the body is the bare uuid string
func (c *HTTPClient) MarkSeen(ctx context.Context, voucherUUID string) error {
	return c.call(ctx, "mark_seen", EndpointRemoveNewTag, voucherUUID, nil, nil)
}
