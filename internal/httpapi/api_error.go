package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/domainrouter-go/internal/audit"
	"github.com/John-Robertt/domainrouter-go/internal/build"
	"github.com/John-Robertt/domainrouter-go/internal/compiler"
	"github.com/John-Robertt/domainrouter-go/internal/config"
	"github.com/John-Robertt/domainrouter-go/internal/fetch"
	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
	"github.com/John-Robertt/domainrouter-go/internal/render"
	"github.com/John-Robertt/domainrouter-go/internal/template"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

// AppErrorOf extracts the AppError carried by any typed error of the
// pipeline. ok is false for untyped errors.
func AppErrorOf(err error) (app model.AppError, status int, ok bool) {
	var (
		ae  *APIError
		fe  *fetch.FetchError
		pe  *profile.ParseError
		ce  *compiler.CompileError
		re  *render.RenderError
		te  *template.TemplateError
		cfe *config.ConfigError
		se  *audit.SinkError
		be  *build.BuildError
	)
	switch {
	case errors.As(err, &ae):
		return ae.AppError, ae.Status, true
	case errors.As(err, &fe):
		return fe.AppError, fe.Status, true
	// Document/render/template errors are user content errors => 422.
	case errors.As(err, &pe):
		return pe.AppError, http.StatusUnprocessableEntity, true
	case errors.As(err, &ce):
		return ce.AppError, http.StatusUnprocessableEntity, true
	case errors.As(err, &re):
		return re.AppError, http.StatusUnprocessableEntity, true
	case errors.As(err, &te):
		return te.AppError, http.StatusUnprocessableEntity, true
	case errors.As(err, &cfe):
		return cfe.AppError, http.StatusInternalServerError, true
	case errors.As(err, &se):
		return se.AppError, http.StatusInternalServerError, true
	case errors.As(err, &be):
		if be.AppError.Stage == "validate_request" {
			return be.AppError, http.StatusBadRequest, true
		}
		return be.AppError, http.StatusInternalServerError, true
	}
	return model.AppError{}, 0, false
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if app, status, ok := AppErrorOf(err); ok {
		WriteError(w, status, app)
		return
	}

	// Fallback: internal bug.
	WriteError(w, http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	})
}
