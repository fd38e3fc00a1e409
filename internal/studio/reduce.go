package studio

import (
	"time"

	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
)

// Event is one transition applied to a Session by Reduce.
type Event interface {
	event()
}

type (
	ImageAccepted    struct{ Image domain.Image }
	ImageRejected    struct{ Message string }
	ImageCleared     struct{}
	StyleSelected    struct{ Style catalog.StyleID }
	ValidationFailed struct{ Message string }
	CheckoutOpened   struct {
		OrderID string
		At      time.Time
	}
	CheckoutFailed      struct{ Message string }
	PaymentCaptured     struct{ Reference string }
	PaymentFailed       struct{ Message string }
	PaymentDismissed    struct{}
	GenerationStarted   struct{}
	GenerationSucceeded struct{ Image domain.Image }
	GenerationFailed    struct{ Message string }
	RefundStarted       struct{}
	RefundSettled       struct{ Message string }
	RefundRejected      struct{ Message string }
	Reset               struct{}
)

func (ImageAccepted) event()       {}
func (ImageRejected) event()       {}
func (ImageCleared) event()        {}
func (StyleSelected) event()       {}
func (ValidationFailed) event()    {}
func (CheckoutOpened) event()      {}
func (CheckoutFailed) event()      {}
func (PaymentCaptured) event()     {}
func (PaymentFailed) event()       {}
func (PaymentDismissed) event()    {}
func (GenerationStarted) event()   {}
func (GenerationSucceeded) event() {}
func (GenerationFailed) event()    {}
func (RefundStarted) event()       {}
func (RefundSettled) event()       {}
func (RefundRejected) event()      {}
func (Reset) event()               {}

// Reduce maps (current session, event) to the next session. It has no side
// effects. Events that would break an invariant leave the session unchanged.
func Reduce(s Session, e Event) Session {
	switch e := e.(type) {
	case ImageAccepted:
		img := e.Image
		s.SourceImage = &img
		s.ResultImage = nil
		s.LastError = ""
	case ImageRejected:
		s.LastError = e.Message
	case ImageCleared:
		s.SourceImage = nil
	case StyleSelected:
		s.SelectedStyle = e.Style
		s.LastError = ""
	case ValidationFailed:
		s.LastError = e.Message
	case CheckoutOpened:
		s.PendingOrder = e.OrderID
		s.PendingSince = e.At
		s.LastError = ""
	case CheckoutFailed:
		s.PendingOrder = ""
		s.PendingSince = time.Time{}
		s.Processing = false
		s.LastError = e.Message
	case PaymentCaptured:
		if e.Reference == "" {
			return s
		}
		s.PendingOrder = ""
		s.PendingSince = time.Time{}
		s.PaymentReference = e.Reference
	case PaymentFailed:
		s.PendingOrder = ""
		s.PendingSince = time.Time{}
		s.Processing = false
		s.LastError = e.Message
	case PaymentDismissed:
		s.PendingOrder = ""
		s.PendingSince = time.Time{}
		s.Processing = false
	case GenerationStarted:
		if !s.Paid() {
			return s
		}
		s.Processing = true
		s.LastError = ""
	case GenerationSucceeded:
		if !s.Paid() || !s.Processing {
			return s
		}
		img := e.Image
		s.ResultImage = &img
		s.Processing = false
		s.PaymentAuthorized = true
	case GenerationFailed:
		s.Processing = false
		s.LastError = e.Message
	case RefundStarted:
		if !s.Paid() || s.RefundState != RefundNotRequested {
			return s
		}
		s.RefundState = RefundInFlight
		s.LastError = ""
	case RefundSettled:
		if s.RefundState != RefundInFlight {
			return s
		}
		s.RefundState = RefundSucceeded
		s.LastError = e.Message
	case RefundRejected:
		if s.RefundState != RefundInFlight {
			return s
		}
		s.RefundState = RefundFailed
		s.LastError = e.Message
	case Reset:
		return NewSession(s.ID)
	}
	return s
}
