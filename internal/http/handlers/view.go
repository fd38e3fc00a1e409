package handlers

import (
	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
	"portraitstudio/internal/studio"
)

type imageView struct {
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
	URL    string `json:"url"`
}

// sessionView is the JSON shape of a session. Image bytes are served by the
// source and result endpoints instead of being inlined.
type sessionView struct {
	ID                string             `json:"id"`
	Source            *imageView         `json:"source,omitempty"`
	SelectedStyle     catalog.StyleID    `json:"selected_style,omitempty"`
	Processing        bool               `json:"processing"`
	Result            *imageView         `json:"result,omitempty"`
	PaymentReference  string             `json:"payment_reference,omitempty"`
	PaymentAuthorized bool               `json:"payment_authorized"`
	CheckoutPending   bool               `json:"checkout_pending"`
	RefundState       studio.RefundState `json:"refund_state"`
	CanRefund         bool               `json:"can_refund"`
	LastError         string             `json:"last_error,omitempty"`
}

func newSessionView(s studio.Session) sessionView {
	return sessionView{
		ID:                s.ID,
		Source:            newImageView(s.SourceImage, "/v1/sessions/"+s.ID+"/source"),
		SelectedStyle:     s.SelectedStyle,
		Processing:        s.Processing,
		Result:            newImageView(s.ResultImage, "/v1/sessions/"+s.ID+"/result"),
		PaymentReference:  s.PaymentReference,
		PaymentAuthorized: s.PaymentAuthorized,
		CheckoutPending:   s.CheckoutPending(),
		RefundState:       s.RefundState,
		CanRefund:         s.Paid() && !s.Processing && s.RefundState == studio.RefundNotRequested,
		LastError:         s.LastError,
	}
}

func newImageView(img *domain.Image, url string) *imageView {
	if img == nil {
		return nil
	}
	return &imageView{MIME: img.MIME, Width: img.Width, Height: img.Height, Bytes: img.Size(), URL: url}
}
