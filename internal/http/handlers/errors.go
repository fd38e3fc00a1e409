package handlers

import (
	"errors"
	"net/http"

	"portraitstudio/internal/studio"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var stageErrors = []errorMapping{
	{studio.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{studio.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{studio.ErrUnsupportedImage, http.StatusUnprocessableEntity, "unsupported_image"},
	{studio.ErrUnknownStyle, http.StatusUnprocessableEntity, "unknown_style"},
	{studio.ErrMissingInput, http.StatusUnprocessableEntity, "missing_input"},
	{studio.ErrBusy, http.StatusConflict, "busy"},
	{studio.ErrAlreadyPaid, http.StatusConflict, "already_paid"},
	{studio.ErrNoCheckout, http.StatusConflict, "no_checkout"},
	{studio.ErrNotPaid, http.StatusConflict, "not_paid"},
	{studio.ErrRefundClosed, http.StatusConflict, "refund_closed"},
	{studio.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{studio.ErrCheckoutUnavailable, http.StatusBadGateway, "checkout_unavailable"},
	{studio.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"},
	{studio.ErrRefundFailed, http.StatusBadGateway, "refund_failed"},
}

// stageError writes the error envelope for a failed stage. When the stage
// recorded a message on the session, that message is shown to the user.
func (a *App) stageError(w http.ResponseWriter, r *http.Request, err error, sess studio.Session) {
	status, code := http.StatusInternalServerError, "internal"
	for _, m := range stageErrors {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	message := err.Error()
	if sess.LastError != "" {
		message = sess.LastError
	}
	if status == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handler: unexpected stage error")
		message = "internal error"
	}

	body := errorEnvelope{Error: errorBody{Code: code, Message: message}}
	if sess.ID != "" {
		view := newSessionView(sess)
		body.Session = &view
	}
	a.json(w, status, body)
}
