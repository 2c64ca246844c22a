// Package client is the buyer-side payment protocol client. It validates
// input locally, sends one request per call, never retries, and turns every
// answer into a typed outcome or an error classified by apperr.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
	"checkout/internal/config"
	"checkout/internal/validation"
)

const correlationHeader = "X-Correlation-Id"

// Client talks to the payment server.
type Client struct {
	baseURL string
	http    *http.Client

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the configured server.
func New(cfg config.ClientConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrder creates an order and its payment.
func (c *Client) CreateOrder(ctx context.Context, productName string, amount decimal.Decimal, email string) (*Order, error) {
	if err := validation.CheckOrder(productName, amount, email); err != nil {
		return nil, err
	}

	body := struct {
		ProductName string          `json:"productName"`
		Amount      decimal.Decimal `json:"amount"`
		Email       string          `json:"email"`
	}{productName, amount, email}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order, true); err != nil {
		return nil, err
	}
	return &order, nil
}

// Authorize submits card data for a payment.
func (c *Client) Authorize(ctx context.Context, paymentID string, card Card) (AuthorizationOutcome, error) {
	card.Number = validation.NormalizeCardNumber(card.Number)
	card.Holder = strings.TrimSpace(card.Holder)
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}
	if err := validation.CheckCard(card.Number, card.Holder, card.ExpiryMonth, card.ExpiryYear, card.CVV); err != nil {
		return nil, err
	}

	release, err := c.acquire(paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp struct {
		Status            string `json:"status"`
		BankName          string `json:"bankName"`
		Message           string `json:"message"`
		ProviderReference string `json:"providerReference"`
	}
	if err := c.do(ctx, http.MethodPost, paymentPath(paymentID, "pay"), card, &resp, true); err != nil {
		return nil, err
	}

	switch resp.Status {
	case wireRequires3DS:
		return ChallengeRequired{BankName: resp.BankName}, nil
	case wireFailed:
		return Declined{Message: resp.Message}, nil
	case wireCaptured:
		return Settled{ProviderReference: resp.ProviderReference, Message: resp.Message}, nil
	default:
		return nil, &Error{
			Kind:          apperr.ErrService,
			Status:        http.StatusOK,
			Message:       fmt.Sprintf("unexpected authorization status %q", resp.Status),
			Indeterminate: true,
		}
	}
}

// VerifyChallenge submits the one-time code for a payment.
func (c *Client) VerifyChallenge(ctx context.Context, paymentID, otp string) (ChallengeOutcome, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}
	if err := validation.CheckChallengeCode(otp); err != nil {
		return nil, err
	}

	release, err := c.acquire(paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp struct {
		Success           *bool  `json:"success"`
		Status            string `json:"status"`
		ProviderReference string `json:"providerReference"`
		Message           string `json:"message"`
		Code              string `json:"code"`
		RemainingAttempts int    `json:"remainingAttempts"`
	}
	body := struct {
		OTP string `json:"otp"`
	}{otp}
	if err := c.do(ctx, http.MethodPost, paymentPath(paymentID, "verify-3ds"), body, &resp, true); err != nil {
		return nil, err
	}

	switch {
	case resp.Success == nil:
		return nil, &Error{Kind: apperr.ErrService, Status: http.StatusOK, Message: "verification response without outcome", Indeterminate: true}
	case *resp.Success:
		return Settled{ProviderReference: resp.ProviderReference, Message: resp.Message}, nil
	default:
		return Rejected{
			Code:              resp.Code,
			Message:           resp.Message,
			RemainingAttempts: resp.RemainingAttempts,
			Status:            resp.Status,
		}, nil
	}
}

// Cancel abandons a payment that has not reached a terminal status.
func (c *Client) Cancel(ctx context.Context, paymentID, reason string) (*Payment, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}

	release, err := c.acquire(paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	body := struct {
		Reason string `json:"reason,omitempty"`
	}{reason}
	var payment Payment
	if err := c.do(ctx, http.MethodPost, paymentPath(paymentID, "cancel"), body, &payment, true); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Refund returns money on a captured payment. A nil amount refunds
// everything not yet refunded.
func (c *Client) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (*Payment, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}
	if err := validation.CheckRefund(amount, reason); err != nil {
		return nil, err
	}

	release, err := c.acquire(paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	body := struct {
		Amount *decimal.Decimal `json:"amount,omitempty"`
		Reason string           `json:"reason,omitempty"`
	}{amount, reason}
	var payment Payment
	if err := c.do(ctx, http.MethodPost, paymentPath(paymentID, "refund"), body, &payment, true); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Attempts returns a payment's recorded attempts, oldest first.
func (c *Client) Attempts(ctx context.Context, paymentID string) ([]Attempt, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}
	var attempts []Attempt
	if err := c.do(ctx, http.MethodGet, paymentPath(paymentID, "attempts"), nil, &attempts, false); err != nil {
		return nil, err
	}
	return attempts, nil
}

// GetPayment returns a payment with its attempts.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return nil, err
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, paymentPath(paymentID, ""), nil, &payment, false); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPayments returns every payment, newest first.
func (c *Client) ListPayments(ctx context.Context) ([]Payment, error) {
	var payments []Payment
	if err := c.do(ctx, http.MethodGet, "/payments", nil, &payments, false); err != nil {
		return nil, err
	}
	return payments, nil
}

// Receipt returns the plain-text receipt of a captured payment.
func (c *Client) Receipt(ctx context.Context, paymentID string) (string, error) {
	if err := checkPaymentID(paymentID); err != nil {
		return "", err
	}
	var text string
	if err := c.do(ctx, http.MethodGet, paymentPath(paymentID, "receipt"), nil, &text, false); err != nil {
		return "", err
	}
	return text, nil
}

// ListTestCards returns the test-card catalogue.
func (c *Client) ListTestCards(ctx context.Context) ([]TestCard, error) {
	var cards []TestCard
	if err := c.do(ctx, http.MethodGet, "/test-cards", nil, &cards, false); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListAPILogs returns the latest captured exchanges, or those of one
// payment when paymentID is set.
func (c *Client) ListAPILogs(ctx context.Context, paymentID string) ([]APILog, error) {
	path := "/api-logs"
	if paymentID != "" {
		path += "?paymentId=" + url.QueryEscape(paymentID)
	}
	var logs []APILog
	if err := c.do(ctx, http.MethodGet, path, nil, &logs, false); err != nil {
		return nil, err
	}
	return logs, nil
}

// APILogStats returns request statistics.
func (c *Client) APILogStats(ctx context.Context) (*APILogStats, error) {
	var stats APILogStats
	if err := c.do(ctx, http.MethodGet, "/api-logs/stats", nil, &stats, false); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Metrics returns the dashboard summary.
func (c *Client) Metrics(ctx context.Context) (*Metrics, error) {
	var m Metrics
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &m, false); err != nil {
		return nil, err
	}
	return &m, nil
}

// acquire marks paymentID busy until release is called.
func (c *Client) acquire(paymentID string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[paymentID]; busy {
		return nil, ErrInFlight
	}
	c.inFlight[paymentID] = struct{}{}

	return func() {
		c.mu.Lock()
		delete(c.inFlight, paymentID)
		c.mu.Unlock()
	}, nil
}

// do sends one request. out may be a *string to receive a text body.
func (c *Client) do(ctx context.Context, method, path string, in, out any, mutating bool) error {
	correlationID := uuid.NewString()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(correlationHeader, correlationID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if _, text := out.(*string); text {
		req.Header.Set("Accept", "text/plain")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{
			Kind:          transportKind(err),
			Message:       err.Error(),
			CorrelationID: correlationID,
			Indeterminate: mutating,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Kind:          apperr.ErrService,
			Status:        resp.StatusCode,
			Message:       "read response: " + err.Error(),
			CorrelationID: correlationID,
			Indeterminate: mutating,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data, correlationID)
	}

	if text, ok := out.(*string); ok {
		*text = string(data)
		return nil
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:          apperr.ErrService,
			Status:        resp.StatusCode,
			Message:       "decode response: " + err.Error(),
			CorrelationID: correlationID,
			Indeterminate: mutating,
		}
	}
	return nil
}

func decodeError(status int, data []byte, correlationID string) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &Error{
		Kind:          apperr.FromHTTPStatus(status),
		Status:        status,
		Code:          body.Code,
		Message:       msg,
		CorrelationID: correlationID,
	}
}

// transportKind classifies a failed round trip. Timeouts stay matchable as
// context.DeadlineExceeded through the service kind.
func transportKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperr.ErrService, context.DeadlineExceeded)
	}
	return apperr.ErrService
}

func checkPaymentID(paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return ErrInvalidPaymentID
	}
	return nil
}

func paymentPath(paymentID, action string) string {
	p := "/payments/" + url.PathEscape(paymentID)
	if action != "" {
		p += "/" + action
	}
	return p
}
