package template

import (
	"fmt"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

const stage = "validate_template"

type TemplateError struct {
	AppError model.AppError
	Cause    error
}

func (e *TemplateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

func tplErr(code, msg, templateURL string) *TemplateError {
	return &TemplateError{AppError: model.AppError{Code: code, Message: msg, Stage: stage, URL: templateURL}}
}
