package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

func TestRouter_Healthz(t *testing.T) {
	rr := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	tests := []struct {
		method, path string
		status       int
		code         string
	}{
		{http.MethodGet, "/sub", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodGet, "/api/reduce", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	mux := NewRouter(Options{})
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.status {
			t.Fatalf("%s %s: status=%d, want %d", tt.method, tt.path, rr.Code, tt.status)
		}
		var resp model.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
		}
		if resp.Error.Code != tt.code || resp.Error.Stage != "validate_request" {
			t.Fatalf("%s %s: error=%+v", tt.method, tt.path, resp.Error)
		}
	}
}

func TestRouter_Verbs(t *testing.T) {
	rr := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/verbs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Verbs []verbInfo `json:"verbs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Verbs) != 28 {
		t.Fatalf("verbs=%d, want 28", len(resp.Verbs))
	}
	if resp.Verbs[0] != (verbInfo{Verb: "DOMAIN-KEYWORD", Priority: 0, Surge: true}) {
		t.Fatalf("verbs[0]=%+v", resp.Verbs[0])
	}
	if resp.Verbs[2].Verb != "GEOSITE" || resp.Verbs[2].Surge {
		t.Fatalf("verbs[2]=%+v", resp.Verbs[2])
	}
}
