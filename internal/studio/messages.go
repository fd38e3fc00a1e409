package studio

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	msgMissingInput       = "missing photo or style: please upload a photo and select a style first"
	msgUnsupportedImage   = "unsupported image: please upload a PNG, JPEG, GIF or WebP photo"
	msgUnknownStyle       = "unknown style: please pick one of the listed styles"
	msgPaymentFailed      = "Payment failed. Please try again."
	msgPaymentUnverified  = "Payment could not be verified. If you were charged, contact support."
	msgRefundSucceeded    = "Refund successful! The amount will be back in your account in 5-7 days."
	msgNoImageData        = "no image data received from AI model"
	msgGenerationTimeout  = "the image service did not answer in time"
	msgStyleMisconfigured = "style configuration missing"
)

func fileTooLargeMessage(size int64) string {
	return fmt.Sprintf("file too large: %s exceeds the %s limit, please upload a smaller image",
		humanize.IBytes(uint64(size)), humanize.IBytes(MaxUploadBytes))
}

func generationFailedMessage(cause, reference string) string {
	return fmt.Sprintf("Generation failed: %s. Payment ID: %s. You can request a refund for this payment.", cause, reference)
}

func refundFailedMessage(cause, reference, support string) string {
	return fmt.Sprintf("Automatic refund failed: %s. Please take a screenshot of your Payment ID: %s and contact support at %s for a manual refund.",
		cause, reference, support)
}
