package studio

import (
	"errors"
	"fmt"

	"portraitstudio/internal/domain"
)

var (
	ErrSessionNotFound = fmt.Errorf("session %w", domain.ErrNotFound)

	// Validation errors are detected locally and never reach a capability.
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrUnknownStyle     = errors.New("unknown style")
	ErrMissingInput     = errors.New("missing photo or style")

	// Lifecycle errors reject a stage without touching the session.
	ErrBusy         = errors.New("another operation is in progress")
	ErrAlreadyPaid  = errors.New("session already paid")
	ErrNoCheckout   = errors.New("no matching checkout")
	ErrNotPaid      = errors.New("no payment reference")
	ErrRefundClosed = errors.New("refund already attempted")

	// Capability errors: the failure is recorded on the session.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrRefundFailed        = errors.New("refund failed")
)

// IsValidation reports whether err is a user-correctable input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrUnknownStyle) ||
		errors.Is(err, ErrMissingInput)
}
