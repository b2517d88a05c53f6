package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/John-Robertt/domainrouter-go/internal/logging"
)

// NewHandler returns the production handler (router + observability
// middleware). Tests can use NewRouter directly to avoid noisy logs.
func NewHandler() http.Handler {
	return NewHandlerWithOptions(Options{})
}

func NewHandlerWithOptions(opt Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, withObservability, middleware.Recoverer)
	mount(r, opt)
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withObservability(next http.Handler) http.Handler {
	logger := logging.Get("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		// chi fills the route context while routing, so the pattern is
		// only known after the request is served.
		pattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		if pattern == "" {
			pattern = "(unmatched)"
		} else {
			pattern = r.Method + " " + pattern
		}
		dur := time.Since(start)
		metricsIncRequest(pattern, status, dur)

		// Never log the query string.
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("pattern", pattern).
			Int("status", status).
			Dur("dur", dur.Round(time.Millisecond)).
			Int("bytes", sw.bytes).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}
