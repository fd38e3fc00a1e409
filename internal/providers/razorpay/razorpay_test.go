package razorpay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"portraitstudio/internal/domain"
)

type fakeOrders struct {
	data map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.data = data
	return f.resp, f.err
}

type fakePayments struct {
	paymentID string
	amount    int
	resp      map[string]interface{}
	err       error
	delay     time.Duration
}

func (f *fakePayments) Refund(paymentID string, amount int, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.paymentID = paymentID
	f.amount = amount
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.resp, f.err
}

func TestGatewayOpenCreatesOrder(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{"id": "order_abc", "status": "created"}}
	gw := NewGateway(Options{KeyID: "rzp_test_key", KeySecret: "secret", Orders: orders, Payments: &fakePayments{}})
	if gw.Sandbox() {
		t.Fatalf("gateway with keys should not be in sandbox mode")
	}

	checkout, err := gw.Open(context.Background(), domain.Charge{
		Amount: 500, Currency: "INR", Description: "Transformation: Cyberpunk Neon", Receipt: "session-1",
	})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if checkout.OrderID != "order_abc" || checkout.KeyID != "rzp_test_key" || checkout.Amount != 500 || checkout.Sandbox {
		t.Fatalf("unexpected checkout %#v", checkout)
	}
	if orders.data["amount"] != int64(500) || orders.data["currency"] != "INR" || orders.data["receipt"] != "session-1" {
		t.Fatalf("unexpected order body %#v", orders.data)
	}
}

func TestGatewayOpenErrors(t *testing.T) {
	tests := []struct {
		name   string
		orders *fakeOrders
	}{
		{name: "api error", orders: &fakeOrders{err: errors.New("BAD_REQUEST_ERROR")}},
		{name: "missing id", orders: &fakeOrders{resp: map[string]interface{}{"status": "created"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(Options{KeyID: "k", KeySecret: "s", Orders: tt.orders, Payments: &fakePayments{}})
			if _, err := gw.Open(context.Background(), domain.Charge{Amount: 500, Currency: "INR"}); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestGatewayVerifySignature(t *testing.T) {
	gw := NewGateway(Options{KeyID: "k", KeySecret: "topsecret", Orders: &fakeOrders{}, Payments: &fakePayments{}})
	outcome := domain.PaymentOutcome{
		Kind:      domain.OutcomeSucceeded,
		OrderID:   "order_1",
		PaymentID: "pay_123",
		Signature: Sign("topsecret", "order_1", "pay_123"),
	}
	if err := gw.Verify(context.Background(), outcome); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	outcome.Signature = strings.ToUpper(outcome.Signature)
	if err := gw.Verify(context.Background(), outcome); err != nil {
		t.Fatalf("upper-case signature rejected: %v", err)
	}

	outcome.PaymentID = "pay_456"
	if err := gw.Verify(context.Background(), outcome); !errors.Is(err, domain.ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}

	outcome.Signature = ""
	if err := gw.Verify(context.Background(), outcome); !errors.Is(err, domain.ErrSignature) {
		t.Fatalf("expected ErrSignature for empty signature, got %v", err)
	}
}

func TestSandboxGateway(t *testing.T) {
	gw := NewGateway(Options{})
	if !gw.Sandbox() {
		t.Fatalf("expected sandbox mode without keys")
	}
	checkout, err := gw.Open(context.Background(), domain.Charge{Amount: 500, Currency: "INR"})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !checkout.Sandbox || !strings.HasPrefix(checkout.OrderID, sandboxOrderPrefix) {
		t.Fatalf("unexpected sandbox checkout %#v", checkout)
	}

	ok := domain.PaymentOutcome{Kind: domain.OutcomeSucceeded, OrderID: checkout.OrderID, PaymentID: "pay_sandbox"}
	if err := gw.Verify(context.Background(), ok); err != nil {
		t.Fatalf("sandbox outcome rejected: %v", err)
	}
	forged := domain.PaymentOutcome{Kind: domain.OutcomeSucceeded, OrderID: "order_live", PaymentID: "pay_x"}
	if err := gw.Verify(context.Background(), forged); !errors.Is(err, domain.ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestRefunder(t *testing.T) {
	payments := &fakePayments{resp: map[string]interface{}{"id": "rfnd_1", "status": "processed"}}
	refunder, err := NewRefunder(Options{KeyID: "k", KeySecret: "s", Orders: &fakeOrders{}, Payments: payments})
	if err != nil {
		t.Fatalf("NewRefunder error: %v", err)
	}
	err = refunder.Refund(context.Background(), domain.RefundRequest{PaymentReference: "pay_123", Amount: 500, Currency: "INR"})
	if err != nil {
		t.Fatalf("Refund error: %v", err)
	}
	if payments.paymentID != "pay_123" || payments.amount != 500 {
		t.Fatalf("unexpected refund call %q %d", payments.paymentID, payments.amount)
	}

	payments.resp = map[string]interface{}{"id": "rfnd_2", "status": "failed"}
	if err := refunder.Refund(context.Background(), domain.RefundRequest{PaymentReference: "pay_123", Amount: 500}); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestRefunderHonoursDeadline(t *testing.T) {
	payments := &fakePayments{delay: 200 * time.Millisecond}
	refunder, _ := NewRefunder(Options{Payments: payments})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := refunder.Refund(ctx, domain.RefundRequest{PaymentReference: "pay_1", Amount: 500})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewRefunderRequiresKeys(t *testing.T) {
	if _, err := NewRefunder(Options{}); !errors.Is(err, ErrMissingKeys) {
		t.Fatalf("expected ErrMissingKeys, got %v", err)
	}
}
