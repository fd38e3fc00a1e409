package domain

// Charge is what the checkout widget is asked to collect.
type Charge struct {
	Amount      int64 // minor units (paise)
	Currency    string
	Description string
	Receipt     string
}

// Checkout is an opened checkout waiting for the widget to report an outcome.
type Checkout struct {
	OrderID     string `json:"order_id"`
	KeyID       string `json:"key_id,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Sandbox     bool   `json:"sandbox,omitempty"`
}

// OutcomeKind discriminates the three mutually exclusive checkout results.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeDismissed OutcomeKind = "dismissed"
)

// PaymentOutcome is the widget's answer for one checkout.
type PaymentOutcome struct {
	Kind        OutcomeKind `json:"kind"`
	OrderID     string      `json:"order_id"`
	PaymentID   string      `json:"payment_id,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	Description string      `json:"description,omitempty"`
}

// Valid reports whether the outcome carries the fields its kind requires.
func (o PaymentOutcome) Valid() bool {
	switch o.Kind {
	case OutcomeSucceeded:
		return o.PaymentID != ""
	case OutcomeFailed, OutcomeDismissed:
		return true
	default:
		return false
	}
}

// RefundRequest asks the refund capability to reverse a captured payment.
type RefundRequest struct {
	PaymentReference string
	Amount           int64
	Currency         string
	Reason           string
}
