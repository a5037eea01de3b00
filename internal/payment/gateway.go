// Package payment is the boundary adapter for the external split-payment
// gateway. The gateway is opaque: it either returns a payment session or
// fails. Dedupe happens on the Idempotency-Key header, so a retried call for
// the same order is a no-op server-side even if a prior attempt timed out
// after actually succeeding.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable means the gateway could not be reached or kept failing
// within the retry budget. Retryable from the caller's perspective.
var ErrUnavailable = errors.New("payment: gateway unavailable")

// ErrRejected means the gateway refused the request outright (4xx).
// Retrying with the same input will not help.
var ErrRejected = errors.New("payment: gateway rejected request")

type InitiateRequest struct {
	OrderRef       string `json:"orderRef"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"-"`
}

type Session struct {
	PaymentURL string `json:"paymentUrl"`
	TxRef      string `json:"txRef"`
}

type Gateway interface {
	InitiateSplitPayment(ctx context.Context, req InitiateRequest) (*Session, error)
}

// HTTPGateway talks to the configured gateway endpoint. Every attempt runs
// under a timeout, attempts are bounded with exponential backoff, and a
// circuit breaker fails fast once the gateway is known to be down.
type HTTPGateway struct {
	endpoint   string
	client     *http.Client
	timeout    time.Duration
	maxRetries uint64
	breaker    *gobreaker.CircuitBreaker[*Session]
	logger     *log.Logger
}

func NewHTTPGateway(endpoint string, timeout time.Duration, maxRetries int, logger *log.Logger) *HTTPGateway {
	return &HTTPGateway{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		breaker: gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
			Name:    "payment-gateway",
			Timeout: 30 * time.Second,
		}),
		logger: logger,
	}
}

func (g *HTTPGateway) InitiateSplitPayment(ctx context.Context, req InitiateRequest) (*Session, error) {
	var session *Session

	backoff := retry.WithMaxRetries(g.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := g.breaker.Execute(func() (*Session, error) {
			return g.attempt(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// Breaker is shedding load, backing off here won't help.
				return fmt.Errorf("%w: circuit open", ErrUnavailable)
			}
			if errors.Is(err, ErrRejected) {
				return err
			}
			g.logger.Printf("payment gateway attempt failed for %s: %v", req.OrderRef, err)
			return retry.RetryableError(err)
		}
		session = s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return session, nil
}

func (g *HTTPGateway) attempt(ctx context.Context, req InitiateRequest) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var session Session
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to decode gateway response: %w", err)
		}
		if session.PaymentURL == "" {
			return nil, fmt.Errorf("gateway returned empty payment url")
		}
		return &session, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	default:
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
}
