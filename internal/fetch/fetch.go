package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

type Kind int

const (
	KindRuleSource Kind = iota
	KindDocument
	KindTemplate
)

func (k Kind) stage() string {
	switch k {
	case KindRuleSource:
		return "fetch_source"
	case KindDocument:
		return "fetch_document"
	case KindTemplate:
		return "fetch_template"
	default:
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	switch k {
	case KindRuleSource:
		return 8 * 1024 * 1024
	case KindDocument:
		return 1 * 1024 * 1024
	case KindTemplate:
		return 2 * 1024 * 1024
	default:
		return 1 * 1024 * 1024
	}
}

// UserAgent is sent with every request; some list hosts reject empty agents.
const UserAgent = "domainrouter-go"

type Options struct {
	Timeout      time.Duration // default 15s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
	Transport    http.RoundTripper
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt may succeed. Bad URLs,
// oversized and non-UTF-8 bodies fail the same way every time.
func (e *FetchError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.AppError.Code {
	case "FETCH_FAILED", "FETCH_TIMEOUT":
		return true
	}
	return false
}

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

func FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, Options{})
}

func FetchTextWithOptions(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	stage := kind.stage()
	fail := func(status int, code, msg string, cause error) *FetchError {
		return &FetchError{
			Status:   status,
			AppError: model.AppError{Code: code, Message: msg, Stage: stage, URL: rawURL},
			Cause:    cause,
		}
	}
	timedOut := func(err error) *FetchError {
		return fail(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程资源超时", err)
	}

	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = kind.defaultMaxBytes()
	}
	if maxBytes <= 0 {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "响应大小上限必须大于 0", nil)
	}
	transport := opt.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "仅允许 http/https URL", errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// len(via) counts redirects already followed.
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "请求 URL 不合法", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case errors.Is(err, errTooManyRedirects):
			return "", fail(http.StatusBadGateway, "FETCH_FAILED", fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects), err)
		case errors.Is(err, errRedirectBadScheme):
			return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "重定向目标仅允许 http/https", err)
		case isTimeout(err):
			return "", timedOut(err)
		}
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", "拉取远程资源失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), nil)
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", timedOut(err)
		}
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", "读取上游响应失败", err)
	}
	if int64(len(body)) > maxBytes {
		return "", fail(http.StatusUnprocessableEntity, "TOO_LARGE", fmt.Sprintf("远程资源过大（>%d bytes）", maxBytes), nil)
	}
	if !utf8.Valid(body) {
		return "", fail(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "远程资源不是合法 UTF-8 文本", nil)
	}
	return string(body), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
