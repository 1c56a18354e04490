package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"example/merch-display/internal/backend"
	"example/merch-display/internal/logger"
)

// multipartSlack leaves room for form fields around the file itself
const multipartSlack = 1 << 20

var (
	errNotImage = errors.New("file must be an image")
	errTooLarge = errors.New("file is too large")
)

func (a *App) uploadFile(w http.ResponseWriter, r *http.Request) {
	if !a.parseMultipart(w, r) {
		return
	}
	f, err := a.readImage(r, "file")
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f == nil {
		WriteJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	resp, err := a.Backend.UploadFile(r.Context(), *f)
	a.relayMultipart(w, r, resp, err, "Failed to upload logo")
}

func (a *App) generateImages(w http.ResponseWriter, r *http.Request) {
	if !a.parseMultipart(w, r) {
		return
	}
	req := backend.ImageGenerationRequest{
		ProductID: strings.TrimSpace(r.FormValue("productId")),
		ImageType: r.FormValue("imageType"),
	}
	if req.ProductID == "" {
		WriteJSONError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.ImageType != backend.ImageTypeProduct && req.ImageType != backend.ImageTypeOffer {
		WriteJSONError(w, http.StatusBadRequest, "imageType must be product or offer")
		return
	}
	ref, err := a.readImage(r, "referenceImage")
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ReferenceImage = ref

	logger.Log.Infow("Requesting image generation", "product_id", req.ProductID, "image_type", req.Kind(), "reference", ref != nil)
	resp, err := a.Backend.GenerateImages(r.Context(), req)
	a.relayMultipart(w, r, resp, err, "Failed to generate product images")
}

func (a *App) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.Cfg.MaxUploadBytes()+multipartSlack)
	if err := r.ParseMultipartForm(a.Cfg.MaxUploadBytes() + multipartSlack); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			WriteJSONError(w, http.StatusBadRequest, errTooLarge.Error())
			return false
		}
		WriteJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// readImage returns nil when the form has no such file
func (a *App) readImage(r *http.Request, field string) (*backend.FilePart, error) {
	file, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()
	if hdr.Size > a.Cfg.MaxUploadBytes() {
		return nil, errTooLarge
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	ct := contentTypeOf(hdr, data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, errNotImage
	}
	return &backend.FilePart{Field: field, Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}

func contentTypeOf(hdr *multipart.FileHeader, data []byte) string {
	if ct := hdr.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(data)
}

// relayMultipart passes the upstream JSON error through when there is one
func (a *App) relayMultipart(w http.ResponseWriter, r *http.Request, resp *backend.Response, err error, failMsg string) {
	if err != nil {
		logger.Log.Errorw("Upload proxy failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if resp.OK() {
		relay(w, resp)
		return
	}
	logger.Log.Warnw("Backend rejected upload", "path", r.URL.Path, "status", resp.Status, "request_id", RequestIDFromContext(r.Context()))
	var upstream map[string]any
	if json.Unmarshal(resp.Body, &upstream) == nil && upstream != nil {
		writeJSON(w, resp.Status, upstream)
		return
	}
	WriteJSONError(w, resp.Status, failMsg)
}
