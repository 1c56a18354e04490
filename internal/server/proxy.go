package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"example/merch-display/internal/backend"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/settings"
)

const (
	msgInternal = "Internal server error"
	// maxJSONBody bounds product and settings bodies read from the dashboard
	maxJSONBody = 1 << 20
)

// productInput holds the fields checked before a product body is forwarded
type productInput struct {
	Price    *float64 `json:"price"`
	Discount *float64 `json:"discount"`
}

func (p productInput) validate() error {
	if p.Price != nil && *p.Price < 0 {
		return errors.New("price must not be negative")
	}
	if p.Discount != nil && (*p.Discount < 0 || *p.Discount > 100) {
		return errors.New("discount must be between 0 and 100")
	}
	return nil
}

func (a *App) listProducts(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.MethodGet, "/products", nil, "Failed to fetch products")
}

func (a *App) createProduct(w http.ResponseWriter, r *http.Request) {
	body, ok := readProduct(w, r)
	if !ok {
		return
	}
	a.forward(w, r, http.MethodPost, "/products", body, "Failed to create product")
}

func (a *App) updateProduct(w http.ResponseWriter, r *http.Request) {
	body, ok := readProduct(w, r)
	if !ok {
		return
	}
	a.forward(w, r, http.MethodPut, productPath(r), body, "Failed to update product")
}

func (a *App) deleteProduct(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.MethodDelete, productPath(r), nil, "Failed to delete product")
}

func (a *App) publishProduct(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.MethodPost, productPath(r)+"/publish", nil, "Failed to publish product")
}

func (a *App) unpublishProduct(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.MethodPost, productPath(r)+"/unpublish", nil, "Failed to unpublish product")
}

func (a *App) getSettings(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.MethodGet, "/settings", nil, "Failed to fetch settings")
}

// updateSettings goes through the store so the display picks up the result
func (a *App) updateSettings(w http.ResponseWriter, r *http.Request) {
	partial, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil || !isJSONObject(partial) {
		WriteJSONError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	fresh, err := a.Settings.Update(r.Context(), partial)
	if err != nil {
		if errors.Is(err, settings.ErrNotRefreshed) {
			writeJSON(w, http.StatusAccepted, models.Envelope[json.RawMessage]{Payload: partial})
			return
		}
		var se *backend.StatusError
		if errors.As(err, &se) {
			WriteJSONError(w, se.Status, "Failed to update settings")
			return
		}
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope[models.Settings]{Payload: fresh})
}

// forward relays one request to the backend. Upstream failures keep their
// status and answer with failMsg; an unreachable backend answers 500.
func (a *App) forward(w http.ResponseWriter, r *http.Request, method, path string, body []byte, failMsg string) {
	var rd io.Reader
	contentType := ""
	if body != nil {
		rd = bytes.NewReader(body)
		contentType = "application/json"
	}
	resp, err := a.Backend.Forward(r.Context(), method, path, rd, contentType)
	if err != nil {
		logger.Log.Errorw("Proxy request failed", "method", method, "path", path, "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if !resp.OK() {
		logger.Log.Warnw("Backend rejected proxy request", "method", method, "path", path, "status", resp.Status, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, resp.Status, failMsg)
		return
	}
	relay(w, resp)
}

// relay passes a successful upstream body through. A body that is not JSON
// counts as an internal error.
func relay(w http.ResponseWriter, resp *backend.Response) {
	if len(resp.Body) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !json.Valid(resp.Body) {
		logger.Log.Errorw("Backend answered with a non-JSON body", "status", resp.Status)
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func readProduct(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "could not read body")
		return nil, false
	}
	var in productInput
	if err := json.Unmarshal(body, &in); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid product body")
		return nil, false
	}
	if err := in.validate(); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}

func productPath(r *http.Request) string {
	return fmt.Sprintf("/products/%s", url.PathEscape(r.PathValue("id")))
}

func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
