// Package gateway talks to a Stripe-compatible payment provider over its
// form-encoded REST API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/resilience"
	"github.com/sony/gobreaker/v2"
)

const (
	opCreatePaymentIntent   = "create_payment_intent"
	opRetrievePaymentIntent = "retrieve_payment_intent"
	opCancelAtPeriodEnd     = "cancel_at_period_end"

	maxResponseBytes = 1 << 20
)

// Config holds the provider endpoint, credentials and resilience settings
type Config struct {
	BaseURL   string
	SecretKey string
	Currency  string
	// Timeout bounds each HTTP exchange
	Timeout time.Duration
	Retry   resilience.RetryPolicy
	Breaker BreakerConfig
}

// BreakerConfig configures the circuit breaker shared by all gateway calls
type BreakerConfig struct {
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
	MaxRequests uint32
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30 seconds
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second, MaxRequests: 1}
}

// Client implements ports.PaymentGateway
type Client struct {
	httpClient ports.HTTPClient
	logger     ports.Logger
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cfg        Config
}

var _ ports.PaymentGateway = (*Client)(nil)

// NewClient creates a gateway client using httpClient for transport
func NewClient(cfg Config, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker = DefaultBreakerConfig()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{httpClient: httpClient, logger: logger, cfg: cfg}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.Breaker.MaxRequests,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		// a rejected request says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Gateway circuit breaker state changed",
				ports.String("breaker", name),
				ports.String("from", from.String()),
				ports.String("to", to.String()),
			)
			observability.RecordCircuitBreakerState(name, breakerStateValue(to))
		},
	})
	return c
}

type paymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type paymentIntentDetailsResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Metadata struct {
		UserID         string `json:"userId"`
		Type           string `json:"type"`
		Interval       string `json:"interval"`
		SubscriptionID string `json:"subscriptionId"`
	} `json:"metadata"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CreatePaymentIntent opens an intent for req.Amount. Transient failures are
// retried under the same idempotency key so at most one intent exists.
func (c *Client) CreatePaymentIntent(ctx context.Context, req ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	if req.IdempotencyKey == "" {
		return nil, domain.ErrInvalidRequest.WithDetail("field", "idempotencyKey")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", c.cfg.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if req.Email != "" {
		form.Set("receipt_email", req.Email)
	}
	form.Set("metadata[userId]", req.UserID)
	form.Set("metadata[type]", string(req.Plan))
	if interval := req.Plan.Interval(); interval != "" {
		form.Set("metadata[interval]", interval)
	}

	var body []byte
	err := resilience.Retry(ctx, c.cfg.Retry, retryable,
		func(ctx context.Context) error {
			var err error
			body, err = c.call(ctx, opCreatePaymentIntent, http.MethodPost, "/v1/payment_intents", form, req.IdempotencyKey)
			return err
		},
		func(err error, wait time.Duration) {
			c.logger.Warn("Retrying payment intent creation",
				ports.String("user_id", req.UserID),
				ports.Duration("wait", wait),
				ports.Err(err),
			)
		},
	)
	if err != nil {
		return nil, err
	}

	var resp paymentIntentResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" || resp.ClientSecret == "" {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, "malformed payment intent response", err)
	}

	c.logger.Info("Payment intent created",
		ports.String("user_id", req.UserID),
		ports.String("payment_id", resp.ID),
		ports.String("plan", string(req.Plan)),
		ports.Int64("amount", req.Amount),
	)
	return &ports.PaymentIntent{ClientSecret: resp.ClientSecret, PaymentID: resp.ID}, nil
}

// RetrievePaymentIntent reads an intent with its metadata. Transient
// failures are retried; reads are safe to repeat.
func (c *Client) RetrievePaymentIntent(ctx context.Context, paymentID string) (*ports.PaymentIntentDetails, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidRequest.WithDetail("field", "paymentIntentId")
	}
	path := "/v1/payment_intents/" + url.PathEscape(paymentID)

	var body []byte
	err := resilience.Retry(ctx, c.cfg.Retry, retryable,
		func(ctx context.Context) error {
			var err error
			body, err = c.call(ctx, opRetrievePaymentIntent, http.MethodGet, path, nil, "")
			return err
		},
		func(err error, wait time.Duration) {
			c.logger.Warn("Retrying payment intent lookup",
				ports.String("payment_id", paymentID),
				ports.Duration("wait", wait),
				ports.Err(err),
			)
		},
	)
	if err != nil {
		return nil, err
	}

	var resp paymentIntentDetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, "malformed payment intent response", err)
	}
	return &ports.PaymentIntentDetails{
		ID:             resp.ID,
		Status:         resp.Status,
		UserID:         resp.Metadata.UserID,
		Type:           resp.Metadata.Type,
		Interval:       resp.Metadata.Interval,
		SubscriptionID: resp.Metadata.SubscriptionID,
		Amount:         resp.Amount,
	}, nil
}

// CancelAtPeriodEnd flags a gateway subscription to stop renewing. It is not
// retried; the caller reports the failure and leaves local state alone.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string) error {
	if gatewaySubscriptionID == "" {
		return domain.ErrInvalidRequest.WithDetail("field", "gatewaySubscriptionId")
	}
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")

	path := "/v1/subscriptions/" + url.PathEscape(gatewaySubscriptionID)
	if _, err := c.call(ctx, opCancelAtPeriodEnd, http.MethodPost, path, form, ""); err != nil {
		return err
	}
	c.logger.Info("Gateway subscription set to cancel at period end",
		ports.String("gateway_subscription_id", gatewaySubscriptionID),
	)
	return nil
}

// retryable excludes an open breaker: waiting a few hundred milliseconds
// will not close it
func retryable(err error) bool {
	return domain.IsRetryable(err) &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests)
}

// call performs one request through the breaker with its own timeout
func (c *Client) call(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, form, idempotencyKey)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = domain.WrapError(domain.ErrorCodeGatewayUnavailable, "payment gateway circuit open", err)
	}

	observability.RecordGatewayRequest(op, outcome(err), time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("Gateway call failed",
			ports.String("operation", op),
			ports.String("code", string(domain.GetErrorCode(err))),
			ports.Err(err),
		)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var payload io.Reader
	if form != nil {
		payload = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, payload)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "build gateway request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, "payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnavailable, "read gateway response", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, mapStatus(resp.StatusCode, body)
}

// mapStatus turns a non-2xx answer into a domain error. 4xx other than 429
// carries the provider's message verbatim for the client to show.
func mapStatus(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("gateway status %d", status)

	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.WrapError(domain.ErrorCodeGatewayUnavailable, msg, cause).
			WithDetail("status", status)
	}
	derr := domain.WrapError(domain.ErrorCodeInvalidRequest, msg, cause).WithDetail("status", status)
	if er.Error.Code != "" {
		derr = derr.WithDetail("gateway_code", er.Error.Code)
	}
	return derr
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case domain.IsRetryable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
