// Package refundapi calls a backend refund endpoint that accepts the payment
// reference and answers ok or not-ok.
package refundapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portraitstudio/internal/domain"
	"portraitstudio/internal/infra"
)

// ErrOffline is returned when the refund endpoint cannot process the request.
var ErrOffline = errors.New("Automated refund service is currently offline")

// Options configures the endpoint client.
type Options struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
}

// Client posts refund requests to the configured endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *infra.Logger
}

type refundRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs a client. The endpoint is required.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("refundapi: endpoint is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}, nil
}

// Refund posts the payment reference. Any non-2xx answer is a failure.
func (c *Client) Refund(ctx context.Context, req domain.RefundRequest) error {
	body, err := json.Marshal(refundRequest{
		PaymentID: req.PaymentReference,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		return fmt.Errorf("refundapi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("refundapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn().Err(err).Str("endpoint", c.endpoint).Msg("refundapi: request failed")
		return ErrOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var detail errorResponse
		_ = json.Unmarshal(raw, &detail)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("payment_reference", req.PaymentReference).
			Str("detail", firstNonEmpty(detail.Message, detail.Error, strings.TrimSpace(string(raw)))).
			Msg("refundapi: refund rejected")
		return ErrOffline
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Offline always fails. It stands in when no refund backend is configured so
// that customers are pointed to manual support.
type Offline struct{}

func (Offline) Refund(ctx context.Context, _ domain.RefundRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrOffline
}
