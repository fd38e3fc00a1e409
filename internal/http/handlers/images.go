package handlers

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"portraitstudio/internal/domain"
	"portraitstudio/internal/studio"
	"portraitstudio/pkg/zip"
)

const webpQuality = 85

func (a *App) SourceImage(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Get(r.Context(), sessionID(r))
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	if sess.SourceImage == nil {
		a.error(w, http.StatusNotFound, "not_found", "no photo uploaded")
		return
	}
	a.image(w, r, *sess.SourceImage)
}

// ResultImage serves the stylized image. ?format=webp re-encodes it as WebP.
func (a *App) ResultImage(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Get(r.Context(), sessionID(r))
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	if sess.ResultImage == nil {
		a.error(w, http.StatusNotFound, "not_found", "no result yet")
		return
	}
	img := *sess.ResultImage
	if strings.EqualFold(r.URL.Query().Get("format"), "webp") && img.MIME != "image/webp" {
		converted, err := toWebP(img)
		if err != nil {
			a.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("handler: webp conversion failed")
			a.error(w, http.StatusUnprocessableEntity, "conversion_failed", "image could not be converted")
			return
		}
		img = converted
	}
	a.image(w, r, img)
}

// Download bundles the original and the stylized image into one zip.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Get(r.Context(), sessionID(r))
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	if sess.ResultImage == nil {
		a.error(w, http.StatusNotFound, "not_found", "no result yet")
		return
	}
	assets := []zip.Asset{{
		Filename: "portrait-" + string(sess.SelectedStyle) + extension(sess.ResultImage.MIME),
		MIME:     sess.ResultImage.MIME,
		Data:     sess.ResultImage.Data,
	}}
	if sess.SourceImage != nil {
		assets = append(assets, zip.Asset{
			Filename: "original" + extension(sess.SourceImage.MIME),
			MIME:     sess.SourceImage.MIME,
			Data:     sess.SourceImage.Data,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="portrait-%s.zip"`, sess.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	_, _ = w.Write(archive)
}

func (a *App) image(w http.ResponseWriter, _ *http.Request, img domain.Image) {
	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}

func toWebP(img domain.Image) (domain.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("decode image: %w", err)
	}
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return domain.Image{}, fmt.Errorf("webp options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, decoded, options); err != nil {
		return domain.Image{}, fmt.Errorf("encode webp: %w", err)
	}
	b := decoded.Bounds()
	return domain.Image{Data: buf.Bytes(), MIME: "image/webp", Width: b.Dx(), Height: b.Dy()}, nil
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
