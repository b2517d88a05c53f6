package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

const sampleList = "payload:\n" +
	"  - '+.google.com'\n" +
	"  - 'www.google.com'\n" +
	"1.1.1.1\n" +
	"1.1.1.0/24\n" +
	"GEOIP,CN\n" +
	"USER-AGENT,foo*\n"

func doReduce(t *testing.T, h http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeReduce(t *testing.T, rr *httptest.ResponseRecorder) reduceResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	var resp reduceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestReduce_PlainText(t *testing.T) {
	resp := decodeReduce(t, doReduce(t, NewRouter(Options{}), "/api/reduce", "text/plain", sampleList))

	assert.Equal(t, []string{"+.google.com", "1.1.1.0/24", "GEOIP,CN,no-resolve"}, resp.Entries)
	assert.Equal(t, 1, resp.Counts.Domains)
	assert.Equal(t, 1, resp.Counts.IPv4)
	assert.Equal(t, 1, resp.Counts.Classical)

	reasons := map[string]model.RemovalReason{}
	for _, r := range resp.Removed {
		reasons[r.Entry] = r.Reason
	}
	assert.Equal(t, model.ReasonCovered, reasons["www.google.com"])
	assert.Equal(t, model.ReasonSubsumed, reasons["1.1.1.1/32"])
	assert.Equal(t, model.ReasonUnsupportedVerb, reasons["USER-AGENT,foo*"])
}

func TestReduce_JSONOptions(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"lines":    []string{"10.0.0.0/24", "10.0.1.0/24"},
		"collapse": false,
	})
	require.NoError(t, err)
	resp := decodeReduce(t, doReduce(t, NewRouter(Options{}), "/api/reduce", "application/json", string(body)))
	assert.Equal(t, []string{"10.0.0.0/24", "10.0.1.0/24"}, resp.Entries)
	assert.Empty(t, resp.Removed)
	assert.NotNil(t, resp.Removed)

	resp = decodeReduce(t, doReduce(t, NewRouter(Options{}), "/api/reduce?collapse=true", "text/plain", "10.0.0.0/24\n10.0.1.0/24\n"))
	assert.Equal(t, []string{"10.0.0.0/23"}, resp.Entries)
}

func TestReduce_TextFormat(t *testing.T) {
	rr := doReduce(t, NewRouter(Options{}), "/api/reduce?format=text", "", "b.com\na.com\n")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "+.a.com\n+.b.com\n", rr.Body.String())
}

func TestReduce_EmptyBody(t *testing.T) {
	resp := decodeReduce(t, doReduce(t, NewRouter(Options{}), "/api/reduce", "text/plain", ""))
	assert.Empty(t, resp.Entries)
	assert.Equal(t, model.Counts{}, resp.Counts)
}

func TestReduce_BadRequests(t *testing.T) {
	tests := []struct {
		name, path, contentType, body string
		status                        int
		code                          string
	}{
		{"unknown field", "/api/reduce", "application/json", `{"lines":[],"target":"clash"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"two documents", "/api/reduce", "application/json", `{"lines":[]}{"lines":[]}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"negative threshold", "/api/reduce", "application/json", `{"max_illegal_chars":-1}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad collapse", "/api/reduce?collapse=maybe", "text/plain", "a.com", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad threshold", "/api/reduce?max_illegal_chars=x", "text/plain", "a.com", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"invalid utf8", "/api/reduce", "text/plain", "\xff\xfe", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"too large", "/api/reduce", "text/plain", strings.Repeat("a", 64), http.StatusRequestEntityTooLarge, "TOO_LARGE"},
		{"too large json", "/api/reduce", "application/json", `{"text":"` + strings.Repeat("a", 64) + `"}`, http.StatusRequestEntityTooLarge, "TOO_LARGE"},
	}
	h := NewRouter(Options{MaxBodyBytes: 32})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doReduce(t, h, tt.path, tt.contentType, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "validate_request", resp.Error.Stage)
		})
	}
}

func TestReduce_StrictThreshold(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"lines":             []string{"a_b.com"},
		"max_illegal_chars": 0,
	}))
	resp := decodeReduce(t, doReduce(t, NewRouter(Options{}), "/api/reduce", "application/json", buf.String()))
	assert.Empty(t, resp.Entries)
}
