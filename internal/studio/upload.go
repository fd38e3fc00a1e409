package studio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder"

	"portraitstudio/internal/domain"
)

// MaxUploadBytes is the largest photo accepted by the acquisition stage.
const MaxUploadBytes = 5 * 1024 * 1024

// DecodeUpload validates a raw upload and turns it into a displayable image.
func DecodeUpload(u domain.Upload) (domain.Image, error) {
	size := u.Size
	if n := int64(len(u.Data)); n > size {
		size = n
	}
	if size > MaxUploadBytes {
		return domain.Image{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	if len(u.Data) == 0 {
		return domain.Image{}, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	mime := http.DetectContentType(u.Data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/" + format
	}
	return domain.Image{
		Data:   u.Data,
		MIME:   mime,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
