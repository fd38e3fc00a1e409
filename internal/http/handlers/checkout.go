package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"portraitstudio/internal/domain"
)

type checkoutResponse struct {
	Checkout checkoutView `json:"checkout"`
	Session  sessionView  `json:"session"`
}

// checkoutView carries the options the storefront passes to the widget.
type checkoutView struct {
	domain.Checkout
	Name string `json:"name"`
}

// CheckoutOpen runs the payment initiation stage.
func (a *App) CheckoutOpen(w http.ResponseWriter, r *http.Request) {
	checkout, sess, err := a.Studio.InitiatePayment(r.Context(), sessionID(r))
	if err != nil {
		a.stageError(w, r, err, sess)
		return
	}
	a.json(w, http.StatusOK, checkoutResponse{
		Checkout: checkoutView{Checkout: checkout, Name: a.Studio.Catalog().Studio},
		Session:  newSessionView(sess),
	})
}

// CheckoutCancel abandons a pending checkout whose widget outcome never came.
func (a *App) CheckoutCancel(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.CancelCheckout(r.Context(), sessionID(r))
	a.respond(w, r, sess, err)
}

// callbackRequest accepts both the neutral field names and the ones the
// Razorpay widget hands to its success handler.
type callbackRequest struct {
	Kind        domain.OutcomeKind `json:"kind"`
	OrderID     string             `json:"order_id"`
	PaymentID   string             `json:"payment_id"`
	Signature   string             `json:"signature"`
	Description string             `json:"description"`

	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (c callbackRequest) outcome() domain.PaymentOutcome {
	out := domain.PaymentOutcome{
		Kind:        domain.OutcomeKind(strings.ToLower(string(c.Kind))),
		OrderID:     firstNonEmpty(c.OrderID, c.RazorpayOrderID),
		PaymentID:   firstNonEmpty(c.PaymentID, c.RazorpayPaymentID),
		Signature:   firstNonEmpty(c.Signature, c.RazorpaySignature),
		Description: c.Description,
	}
	if out.Kind == "" && out.PaymentID != "" {
		out.Kind = domain.OutcomeSucceeded
	}
	return out
}

// CheckoutCallback applies the widget's outcome. A captured payment starts
// generation in the background and answers 202; progress is visible through
// the session snapshot and the events stream.
func (a *App) CheckoutCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	outcome := req.outcome()
	id := sessionID(r)

	sess, err := a.Studio.CapturePayment(r.Context(), id, outcome)
	if err != nil {
		a.stageError(w, r, err, sess)
		return
	}
	if outcome.Kind != domain.OutcomeSucceeded {
		a.json(w, http.StatusOK, newSessionView(sess))
		return
	}

	a.background.Add(1)
	go func(ctx context.Context, reference string) {
		defer a.background.Done()
		if _, err := a.Studio.Generate(ctx, id, reference); err != nil {
			a.Logger.Warn().Err(err).Str("session_id", id).Str("payment_reference", reference).
				Msg("handler: background generation ended with error")
		}
	}(context.WithoutCancel(r.Context()), outcome.PaymentID)

	a.json(w, http.StatusAccepted, newSessionView(sess))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
