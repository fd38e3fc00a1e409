package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
	"portraitstudio/internal/studio"
)

const (
	photoField = "photo"
	// maxUploadBody bounds what is read from an upload request at all; files
	// between MaxUploadBytes and this are measured and rejected with a message.
	maxUploadBody = 64 << 20
)

func (a *App) SessionCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Create(r.Context())
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	a.json(w, http.StatusCreated, newSessionView(sess))
}

func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Get(r.Context(), sessionID(r))
	if err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	a.json(w, http.StatusOK, newSessionView(sess))
}

func (a *App) SessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.Discard(r.Context(), sessionID(r)); err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PhotoUpload reads the multipart "photo" field and runs the acquisition stage.
func (a *App) PhotoUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := readPhoto(w, r, maxUploadBody)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	sess, err := a.Studio.UploadImage(r.Context(), sessionID(r), upload)
	a.respond(w, r, sess, err)
}

func (a *App) PhotoDelete(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.ClearImage(r.Context(), sessionID(r))
	a.respond(w, r, sess, err)
}

type styleRequest struct {
	Style catalog.StyleID `json:"style"`
}

func (a *App) StyleSelect(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, err := a.Studio.SelectStyle(r.Context(), sessionID(r), req.Style)
	a.respond(w, r, sess, err)
}

func (a *App) Refund(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.RequestRefund(r.Context(), sessionID(r))
	a.respond(w, r, sess, err)
}

func (a *App) Reset(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Studio.Reset(r.Context(), sessionID(r))
	a.respond(w, r, sess, err)
}

func (a *App) respond(w http.ResponseWriter, r *http.Request, sess studio.Session, err error) {
	if err != nil {
		a.stageError(w, r, err, sess)
		return
	}
	a.json(w, http.StatusOK, newSessionView(sess))
}

// readPhoto streams the photo part. Oversized files are counted but not kept
// so that the acquisition stage can report their size. Bodies over limit are
// counted up to the limit.
func readPhoto(w http.ResponseWriter, r *http.Request, limit int64) (domain.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	mr, err := r.MultipartReader()
	if err != nil {
		return domain.Upload{}, errors.New("expected a multipart/form-data body")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return domain.Upload{}, errors.New(`missing "photo" file field`)
		}
		if err != nil {
			return domain.Upload{}, errors.New("malformed multipart body")
		}
		if part.FormName() != photoField {
			_ = part.Close()
			continue
		}
		return readPart(part)
	}
}

func readPart(part *multipart.Part) (domain.Upload, error) {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, studio.MaxUploadBytes+1))
	if err != nil {
		return domain.Upload{}, errors.New("failed to read photo")
	}
	size := int64(len(data))
	if size > studio.MaxUploadBytes {
		// On a body limit error rest still counts what was read before it.
		rest, err := io.Copy(io.Discard, part)
		var tooBig *http.MaxBytesError
		if err != nil && !errors.As(err, &tooBig) {
			return domain.Upload{}, errors.New("failed to read photo")
		}
		size += rest
		data = nil
	}
	return domain.Upload{Filename: part.FileName(), Size: size, Data: data}, nil
}
