// Package razorpay adapts the Razorpay Orders and Payments APIs to the studio's
// payment and refund capabilities.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	rzp "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"

	"portraitstudio/internal/domain"
	"portraitstudio/internal/infra"
)

// ErrMissingKeys indicates that live Razorpay credentials were not configured.
var ErrMissingKeys = errors.New("razorpay: key id and secret are required")

const sandboxOrderPrefix = "order_sandbox_"

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Options configures the Razorpay adapters. Orders and Payments default to the
// SDK client built from the keys.
type Options struct {
	KeyID     string
	KeySecret string
	Logger    *infra.Logger

	Orders   orderAPI
	Payments paymentAPI
}

func (o Options) normalized() Options {
	o.KeyID = strings.TrimSpace(o.KeyID)
	o.KeySecret = strings.TrimSpace(o.KeySecret)
	if o.Logger == nil {
		discard := zerolog.New(io.Discard)
		o.Logger = &discard
	}
	if o.KeyID != "" && o.KeySecret != "" && (o.Orders == nil || o.Payments == nil) {
		client := rzp.NewClient(o.KeyID, o.KeySecret)
		if o.Orders == nil {
			o.Orders = client.Order
		}
		if o.Payments == nil {
			o.Payments = client.Payment
		}
	}
	return o
}

// Gateway opens Razorpay orders for the checkout widget and verifies the
// signature the widget returns. Without keys it runs in sandbox mode: orders
// are minted locally and every well-formed outcome is accepted.
type Gateway struct {
	keyID     string
	keySecret string
	orders    orderAPI
	logger    *infra.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(opts Options) *Gateway {
	opts = opts.normalized()
	return &Gateway{
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		orders:    opts.Orders,
		logger:    opts.Logger,
	}
}

// Sandbox reports whether the gateway mints orders locally.
func (g *Gateway) Sandbox() bool {
	return g.orders == nil || g.keySecret == ""
}

// KeyID returns the public key the checkout widget is opened with.
func (g *Gateway) KeyID() string {
	return g.keyID
}

// Open creates an order for the charge.
func (g *Gateway) Open(ctx context.Context, charge domain.Charge) (domain.Checkout, error) {
	checkout := domain.Checkout{
		KeyID:       g.keyID,
		Amount:      charge.Amount,
		Currency:    charge.Currency,
		Description: charge.Description,
	}
	if g.Sandbox() {
		checkout.OrderID = sandboxOrderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
		checkout.Sandbox = true
		g.logger.Debug().Str("order_id", checkout.OrderID).Msg("razorpay: sandbox order minted")
		return checkout, nil
	}

	body := map[string]interface{}{
		"amount":   charge.Amount,
		"currency": charge.Currency,
		"receipt":  truncate(charge.Receipt, 40),
		"notes":    map[string]interface{}{"description": charge.Description},
	}
	resp, err := call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(body, nil)
	})
	if err != nil {
		return domain.Checkout{}, fmt.Errorf("razorpay: create order: %w", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return domain.Checkout{}, fmt.Errorf("razorpay: create order: %w: response without id", domain.ErrProviderFailure)
	}
	checkout.OrderID = id
	return checkout, nil
}

// Verify checks the checkout signature of a successful outcome.
func (g *Gateway) Verify(_ context.Context, outcome domain.PaymentOutcome) error {
	if outcome.PaymentID == "" {
		return domain.ErrInvalidOutcome
	}
	if g.Sandbox() {
		if !strings.HasPrefix(outcome.OrderID, sandboxOrderPrefix) {
			return fmt.Errorf("%w: not a sandbox order", domain.ErrSignature)
		}
		return nil
	}
	if !ValidSignature(g.keySecret, outcome.OrderID, outcome.PaymentID, outcome.Signature) {
		return domain.ErrSignature
	}
	return nil
}

// Sign computes the checkout signature Razorpay issues for an order and payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares a widget signature against the expected one in
// constant time.
func ValidSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Refunder reverses captured payments through the Payments API.
type Refunder struct {
	payments paymentAPI
	logger   *infra.Logger
}

// NewRefunder constructs a Refunder. Live keys are required.
func NewRefunder(opts Options) (*Refunder, error) {
	opts = opts.normalized()
	if opts.Payments == nil {
		return nil, ErrMissingKeys
	}
	return &Refunder{payments: opts.Payments, logger: opts.Logger}, nil
}

// Refund asks Razorpay to refund the given amount of the payment.
func (r *Refunder) Refund(ctx context.Context, req domain.RefundRequest) error {
	if req.PaymentReference == "" {
		return domain.ErrInvalidOutcome
	}
	data := map[string]interface{}{
		"speed": "normal",
		"notes": map[string]interface{}{"reason": req.Reason},
	}
	resp, err := call(ctx, func() (map[string]interface{}, error) {
		return r.payments.Refund(req.PaymentReference, int(req.Amount), data, nil)
	})
	if err != nil {
		return fmt.Errorf("razorpay: refund %s: %w", req.PaymentReference, err)
	}
	if status, _ := resp["status"].(string); status == "failed" {
		return fmt.Errorf("razorpay: refund %s: %w: status failed", req.PaymentReference, domain.ErrProviderFailure)
	}
	refundID, _ := resp["id"].(string)
	r.logger.Info().
		Str("payment_reference", req.PaymentReference).
		Str("refund_id", refundID).
		Msg("razorpay: refund created")
	return nil
}

type result struct {
	body map[string]interface{}
	err  error
}

// call runs a blocking SDK request and gives up when ctx is done. The SDK has
// no context support, so an abandoned request finishes in the background.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
