package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// NewRouter returns the bare API router without access logging.
func NewRouter(opt Options) *chi.Mux {
	r := chi.NewRouter()
	mount(r, opt)
	return r
}

func mount(r chi.Router, opt Options) {
	opt = opt.withDefaults()
	h := reduceHandler{opt: opt}

	r.Get("/healthz", handleHealthz)
	r.Get("/metrics", handleMetrics)
	r.Get("/api/verbs", handleVerbs)
	r.Post("/api/reduce", h.handleReduce)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, model.AppError{
			Code:    "NOT_FOUND",
			Message: "接口不存在",
			Stage:   "validate_request",
			Snippet: r.URL.Path,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, model.AppError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "不支持的请求方法",
			Stage:   "validate_request",
			Snippet: r.Method + " " + r.URL.Path,
		})
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}
