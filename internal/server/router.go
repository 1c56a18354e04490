// Package server exposes the dashboard API proxy and the display endpoints.
package server

import (
	"net/http"
	"time"

	"example/merch-display/internal/backend"
	"example/merch-display/internal/config"
	"example/merch-display/internal/display"
	"example/merch-display/internal/settings"
)

// DisplaySource is the running display; *display.Session satisfies it
type DisplaySource interface {
	Snapshot() display.Snapshot
	Subscribe(fn func(display.Snapshot)) func()
}

// App carries the dependencies shared by the handlers
type App struct {
	Cfg      config.Config
	Backend  *backend.Client
	Settings *settings.Store
	Display  DisplaySource
	started  time.Time
}

// NewApp wires the handler dependencies
func NewApp(cfg config.Config, b *backend.Client, st *settings.Store, d DisplaySource) *App {
	return &App{Cfg: cfg, Backend: b, Settings: st, Display: d, started: time.Now()}
}

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", app.withSession(app.listProducts))
	mux.HandleFunc("POST /api/products", app.withSession(app.createProduct))
	mux.HandleFunc("GET /api/products/export", app.withSession(app.exportProducts))
	mux.HandleFunc("PUT /api/products/{id}", app.withSession(app.updateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", app.withSession(app.deleteProduct))
	mux.HandleFunc("POST /api/products/{id}/publish", app.withSession(app.publishProduct))
	mux.HandleFunc("POST /api/products/{id}/unpublish", app.withSession(app.unpublishProduct))

	mux.HandleFunc("GET /api/settings", app.withSession(app.getSettings))
	mux.HandleFunc("PUT /api/settings", app.withSession(app.updateSettings))
	mux.HandleFunc("POST /api/settings/preview", app.withSession(app.previewSettings))

	mux.HandleFunc("POST /api/upload", app.withSession(app.uploadFile))
	mux.HandleFunc("POST /api/product-image-generations", app.withSession(app.generateImages))

	mux.HandleFunc("GET /display", app.displayPage)
	mux.HandleFunc("GET /ws/display", app.displayWebSocket)
	mux.HandleFunc("GET /healthz", app.healthHandler)

	return WithRequestID(WithLogging(mux))
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"uptime_s": int64(time.Since(a.started).Seconds()),
	}
	if a.Display != nil {
		resp["connection"] = a.Display.Snapshot().Connection.Status
	}
	if a.Settings != nil {
		resp["settings_loaded"] = a.Settings.Loaded()
	}
	writeJSON(w, http.StatusOK, resp)
}
