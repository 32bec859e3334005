package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"dormdesk/internal/models"
)

const multipartDataField = "data"

var errUploadTooLarge = errors.New("upload too large")

// parsedForm is a JSON payload plus any files sent alongside it.
type parsedForm struct {
	files []*multipart.FileHeader
	open  []multipart.File
}

func (f *parsedForm) Close() {
	for _, file := range f.open {
		_ = file.Close()
	}
}

// uploads opens every attached file. The caller must Close the form.
func (f *parsedForm) uploads() ([]models.Upload, error) {
	out := make([]models.Upload, 0, len(f.files))
	for _, fh := range f.files {
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		f.open = append(f.open, file)
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		out = append(out, models.Upload{Name: fh.Filename, ContentType: contentType, Body: file})
	}
	return out, nil
}

// readForm accepts either a plain JSON body or a multipart form whose "data"
// field holds the JSON and whose fileField parts are uploads.
func (s *HTTPServer) readForm(w http.ResponseWriter, r *http.Request, fileField string, out any) (*parsedForm, error) {
	form := &parsedForm{}
	limit := s.cfg.HTTP.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return form, decodeJSON(r.Body, out)
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	if raw := r.FormValue(multipartDataField); raw != "" {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return nil, fmt.Errorf("invalid JSON in %q field: %w", multipartDataField, err)
		}
	}
	if r.MultipartForm != nil {
		form.files = r.MultipartForm.File[fileField]
	}
	return form, nil
}

func writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUploadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
