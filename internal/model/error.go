package model

// AppError is the error payload shared by the CLI and the HTTP API.
//
// Stage names the pipeline step that failed (fetch_document, parse_profile,
// compile, render, ...). Engine stages never produce an AppError: malformed
// rule lines are dropped, not reported.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	URL     string `json:"url,omitempty"`
	Line    int    `json:"line,omitempty"`    // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"` // truncated to 200 chars
	Hint    string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}
