package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/session"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

// RequestIDFromContext returns the id assigned by WithRequestID
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	h  http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) Header() http.Header { return w.h.Header() }
func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.h.WriteHeader(code)
}
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.h.Write(b)
	w.n += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.h.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.st = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *statusRecorder) Flush() {
	if f, ok := w.h.(http.Flusher); ok {
		f.Flush()
	}
}

// WithRequestID tags every request with an X-Request-Id
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// WithLogging writes one access log line per request
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: http.StatusOK}
		next.ServeHTTP(sr, r)
		lat := time.Since(start)
		logger.Log.Infow("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// withSession rejects requests without a usable access token and hands
// the token to the backend client through the request context
func (a *App) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := session.FromRequest(r)
		if err != nil {
			logger.Log.Warnw("Rejected request without session", "path", r.URL.Path, "error", err, "request_id", RequestIDFromContext(r.Context()))
			WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(session.WithToken(r.Context(), tok)))
	}
}
