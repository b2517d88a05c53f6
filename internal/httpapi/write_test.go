package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/domainrouter-go/internal/build"
	"github.com/John-Robertt/domainrouter-go/internal/fetch"
	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
	"github.com/John-Robertt/domainrouter-go/internal/template"
)

func TestWriteError_JSONShapeAndHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusUnprocessableEntity, model.AppError{
		Code:    "PROFILE_PARSE_ERROR",
		Message: "invalid binding line",
		Stage:   "parse_profile",
		URL:     "https://example.com/my.wei",
		Line:    123,
		Snippet: "Proxy PROXY",
		Hint:    "expected: <GROUP|CLAUSE>: <POLICY>[,option...]",
	})

	if got, want := rr.Code, http.StatusUnprocessableEntity; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}
	if got, want := rr.Header().Get("Content-Type"), "application/json; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	if resp.Error.Code != "PROFILE_PARSE_ERROR" {
		t.Fatalf("code = %q, want %q", resp.Error.Code, "PROFILE_PARSE_ERROR")
	}
	if resp.Error.Stage != "parse_profile" {
		t.Fatalf("stage = %q, want %q", resp.Error.Stage, "parse_profile")
	}
	if resp.Error.Line != 123 {
		t.Fatalf("line = %d, want %d", resp.Error.Line, 123)
	}
}

func TestWriteErrorFromErr_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&fetch.FetchError{Status: http.StatusGatewayTimeout, AppError: model.AppError{Code: "FETCH_TIMEOUT", Stage: "fetch_document"}}, http.StatusGatewayTimeout, "FETCH_TIMEOUT"},
		{fmt.Errorf("load: %w", &profile.ParseError{AppError: model.AppError{Code: "PROFILE_PARSE_ERROR", Stage: "parse_profile"}}), http.StatusUnprocessableEntity, "PROFILE_PARSE_ERROR"},
		{&template.TemplateError{AppError: model.AppError{Code: "TEMPLATE_ANCHOR_MISSING", Stage: "validate_template"}}, http.StatusUnprocessableEntity, "TEMPLATE_ANCHOR_MISSING"},
		{&build.BuildError{AppError: model.AppError{Code: "WRITE_ERROR", Stage: "write_output"}}, http.StatusInternalServerError, "WRITE_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		writeErrorFromErr(rr, tt.err)
		if rr.Code != tt.status {
			t.Fatalf("%v: status=%d, want %d", tt.err, rr.Code, tt.status)
		}
		var resp model.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.Error.Code != tt.code {
			t.Fatalf("%v: code=%q, want %q", tt.err, resp.Error.Code, tt.code)
		}
	}
}
