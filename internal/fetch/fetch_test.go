package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func assertFetchError(t *testing.T, err error, status int, code, stage string) *FetchError {
	t.Helper()
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Status != status {
		t.Fatalf("status=%d, want=%d", fe.Status, status)
	}
	if fe.AppError.Code != code {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, code)
	}
	if stage != "" && fe.AppError.Stage != stage {
		t.Fatalf("stage=%q, want=%q", fe.AppError.Stage, stage)
	}
	return fe
}

func TestFetchText_UnsupportedScheme(t *testing.T) {
	_, err := FetchText(context.Background(), KindRuleSource, "file:///etc/passwd")
	fe := assertFetchError(t, err, http.StatusBadRequest, "INVALID_ARGUMENT", "fetch_source")
	if fe.Retryable() {
		t.Fatalf("bad scheme must not be retryable")
	}
}

func TestFetchText_SendsUserAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	}))
	defer ts.Close()

	got, err := FetchText(context.Background(), KindRuleSource, ts.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if got != UserAgent {
		t.Fatalf("user agent=%q, want=%q", got, UserAgent)
	}
}

func TestFetchText_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 32)))
	}))
	defer ts.Close()

	_, err := FetchTextWithOptions(context.Background(), KindTemplate, ts.URL, Options{MaxBytes: 10})
	assertFetchError(t, err, http.StatusUnprocessableEntity, "TOO_LARGE", "fetch_template")
}

func TestFetchText_InvalidUTF8(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 0xff is always invalid in UTF-8.
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer ts.Close()

	_, err := FetchText(context.Background(), KindTemplate, ts.URL)
	assertFetchError(t, err, http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "fetch_template")
}

func TestFetchText_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	_, err := FetchTextWithOptions(context.Background(), KindDocument, ts.URL, Options{Timeout: 50 * time.Millisecond})
	fe := assertFetchError(t, err, http.StatusGatewayTimeout, "FETCH_TIMEOUT", "fetch_document")
	if !fe.Retryable() {
		t.Fatalf("timeout must be retryable")
	}
}

func TestFetchText_TooManyRedirects(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusFound)
	}))
	defer ts.Close()

	_, err := FetchTextWithOptions(context.Background(), KindRuleSource, ts.URL, Options{MaxRedirects: 2})
	assertFetchError(t, err, http.StatusBadGateway, "FETCH_FAILED", "")
}

func TestFetchText_RedirectToNonHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "file:///etc/passwd", http.StatusFound)
	}))
	defer ts.Close()

	_, err := FetchTextWithOptions(context.Background(), KindRuleSource, ts.URL, Options{MaxRedirects: 5})
	assertFetchError(t, err, http.StatusBadRequest, "INVALID_ARGUMENT", "")
}
