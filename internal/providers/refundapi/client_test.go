package refundapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portraitstudio/internal/domain"
)

func TestRefundPostsPaymentID(t *testing.T) {
	var got refundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Options{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if err := client.Refund(context.Background(), domain.RefundRequest{PaymentReference: "pay_123", Amount: 500, Currency: "INR"}); err != nil {
		t.Fatalf("Refund error: %v", err)
	}
	if got.PaymentID != "pay_123" || got.Amount != 500 {
		t.Fatalf("unexpected body %#v", got)
	}
}

func TestRefundNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Options{Endpoint: srv.URL})
	err := client.Refund(context.Background(), domain.RefundRequest{PaymentReference: "pay_123"})
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestRefundTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, _ := NewClient(Options{Endpoint: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.Refund(ctx, domain.RefundRequest{PaymentReference: "pay_123"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected an error without endpoint")
	}
}

func TestOffline(t *testing.T) {
	err := Offline{}.Refund(context.Background(), domain.RefundRequest{PaymentReference: "pay_1"})
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}
