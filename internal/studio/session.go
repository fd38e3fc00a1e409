// Package studio implements the upload → pay → generate → refund lifecycle of
// one storefront session. Transitions are expressed as events folded into an
// immutable Session by Reduce; Service performs the side effects around them.
package studio

import (
	"time"

	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
)

// RefundState tracks the single best-effort refund attempt of a session.
type RefundState string

const (
	RefundNotRequested RefundState = "not-requested"
	RefundInFlight     RefundState = "in-flight"
	RefundSucceeded    RefundState = "succeeded"
	RefundFailed       RefundState = "failed"
)

// Terminal reports whether the refund attempt has resolved.
func (r RefundState) Terminal() bool {
	return r == RefundSucceeded || r == RefundFailed
}

// Session is the complete state of one attempted transaction. It is a value:
// transitions return a new Session instead of mutating the old one.
type Session struct {
	ID                string          `json:"id"`
	SourceImage       *domain.Image   `json:"source_image,omitempty"`
	SelectedStyle     catalog.StyleID `json:"selected_style,omitempty"`
	Processing        bool            `json:"processing"`
	ResultImage       *domain.Image   `json:"result_image,omitempty"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	PaymentAuthorized bool            `json:"payment_authorized"`
	PendingOrder      string          `json:"pending_order,omitempty"`
	PendingSince      time.Time       `json:"pending_since,omitzero"`
	RefundState       RefundState     `json:"refund_state"`
	LastError         string          `json:"last_error,omitempty"`
}

// NewSession returns the default state for the given id.
func NewSession(id string) Session {
	return Session{ID: id, RefundState: RefundNotRequested}
}

// HasSource reports whether a photo has been accepted.
func (s Session) HasSource() bool { return s.SourceImage != nil }

// HasResult reports whether a stylized image is available.
func (s Session) HasResult() bool { return s.ResultImage != nil }

// Paid reports whether a payment reference has been committed.
func (s Session) Paid() bool { return s.PaymentReference != "" }

// CheckoutPending reports whether a checkout awaits the widget's outcome.
func (s Session) CheckoutPending() bool { return s.PendingOrder != "" }

// CheckoutStale reports whether the pending checkout was opened more than
// expiry ago, so its outcome is no longer awaited.
func (s Session) CheckoutStale(now time.Time, expiry time.Duration) bool {
	return s.CheckoutPending() && now.Sub(s.PendingSince) >= expiry
}
