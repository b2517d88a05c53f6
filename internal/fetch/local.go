package fetch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// IsRemote reports whether ref is an http(s) URL rather than a local file.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// localPath turns "file:///x" or a plain path into a filesystem path.
func localPath(ref string) (string, error) {
	if !strings.HasPrefix(ref, "file://") {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", errors.New("file url must not carry a host")
	}
	return u.Path, nil
}

// ReadLocal reads a local source with the same size and UTF-8 limits as a
// remote fetch of the same kind.
func ReadLocal(kind Kind, ref string, maxBytes int64) (string, error) {
	fail := func(status int, code, msg string, cause error) *FetchError {
		return &FetchError{
			Status:   status,
			AppError: model.AppError{Code: code, Message: msg, Stage: kind.stage(), URL: ref},
			Cause:    cause,
		}
	}
	if maxBytes <= 0 {
		maxBytes = kind.defaultMaxBytes()
	}

	p, err := localPath(ref)
	if err != nil || p == "" {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "本地路径不合法", err)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fail(http.StatusNotFound, "INVALID_ARGUMENT", "本地文件不存在", err)
		}
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", "读取本地文件失败", err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", "读取本地文件失败", err)
	}
	if int64(len(b)) > maxBytes {
		return "", fail(http.StatusUnprocessableEntity, "TOO_LARGE", "本地文件过大", nil)
	}
	if !utf8.Valid(b) {
		return "", fail(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "本地文件不是合法的 UTF-8 文本", nil)
	}
	return string(b), nil
}

// Load reads ref from the network with retries, or from disk when ref is
// a file:// URL or a plain path.
func Load(ctx context.Context, kind Kind, ref string, p RetryPolicy) (string, error) {
	if IsRemote(ref) {
		return FetchWithRetry(ctx, kind, ref, p)
	}
	return ReadLocal(kind, ref, p.Options.MaxBytes)
}
