package studio

import (
	"errors"
	"testing"

	"portraitstudio/internal/domain"
)

func TestDecodeUpload(t *testing.T) {
	png := pngBytes(t, 3, 2)
	tests := []struct {
		name    string
		upload  domain.Upload
		wantErr error
	}{
		{name: "png", upload: domain.Upload{Filename: "a.png", Size: int64(len(png)), Data: png}},
		{name: "at limit", upload: domain.Upload{Data: paddedPNG(t, MaxUploadBytes)}},
		{name: "over limit", upload: domain.Upload{Data: paddedPNG(t, MaxUploadBytes+1)}, wantErr: ErrFileTooLarge},
		{name: "declared size over limit", upload: domain.Upload{Size: MaxUploadBytes + 1, Data: png}, wantErr: ErrFileTooLarge},
		{name: "empty", upload: domain.Upload{Filename: "a.png"}, wantErr: ErrUnsupportedImage},
		{name: "not an image", upload: domain.Upload{Data: []byte("%PDF-1.4 hello")}, wantErr: ErrUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeUpload(tt.upload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !IsValidation(err) {
					t.Fatalf("%v should be a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.MIME != "image/png" {
				t.Fatalf("mime = %q", img.MIME)
			}
		})
	}
}

func TestDecodeUploadDimensions(t *testing.T) {
	img, err := DecodeUpload(domain.Upload{Data: pngBytes(t, 7, 5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 7 || img.Height != 5 {
		t.Fatalf("dimensions = %dx%d", img.Width, img.Height)
	}
}

func TestFileTooLargeMessage(t *testing.T) {
	got := fileTooLargeMessage(6 << 20)
	want := "file too large: 6.0 MiB exceeds the 5.0 MiB limit, please upload a smaller image"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
