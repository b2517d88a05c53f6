package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/render"
	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

type reduceHandler struct {
	opt Options
}

type reduceRequestJSON struct {
	Lines           []string `json:"lines"`
	Text            string   `json:"text"`
	Collapse        *bool    `json:"collapse"`
	MaxIllegalChars *int     `json:"max_illegal_chars"`
}

type reduceResponse struct {
	Entries []string        `json:"entries"`
	Removed []model.Removal `json:"removed"`
	Counts  model.Counts    `json:"counts"`
}

func (h reduceHandler) handleReduce(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opt.MaxBodyBytes)
	lines, opt, err := h.parseReduce(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opt.ReduceTimeout)
	defer cancel()

	done := make(chan rules.Result, 1)
	go func() { done <- rules.Process(lines, opt) }()

	var res rules.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		WriteError(w, http.StatusGatewayTimeout, model.AppError{
			Code:    "REDUCE_TIMEOUT",
			Message: "规则归约超时",
			Stage:   "reduce",
		})
		return
	}
	metricsAddRemoved(res.Removed)

	if r.URL.Query().Get("format") == "text" {
		var b strings.Builder
		for _, l := range res.Lines() {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		WriteText(w, http.StatusOK, b.String())
		return
	}

	resp := reduceResponse{Entries: res.Lines(), Removed: res.Removed, Counts: res.Counts}
	if resp.Removed == nil {
		resp.Removed = []model.Removal{}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// parseReduce accepts a JSON body or raw list text. Raw text takes its
// engine options from the query string.
func (h reduceHandler) parseReduce(r *http.Request) ([]string, rules.Options, error) {
	opt := *h.opt.Rules

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := decodeReduceJSON(r.Body)
		if err != nil {
			return nil, opt, err
		}
		lines := body.Lines
		if body.Text != "" {
			lines = append(lines, splitBody(body.Text)...)
		}
		if body.Collapse != nil {
			opt.Networks.Collapse = *body.Collapse
		}
		if body.MaxIllegalChars != nil {
			if *body.MaxIllegalChars < 0 {
				return nil, opt, requestError("INVALID_ARGUMENT", "max_illegal_chars 不能为负数", strconv.Itoa(*body.MaxIllegalChars))
			}
			opt.Policy = rules.StrictPolicy(*body.MaxIllegalChars)
		}
		return lines, opt, nil
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, opt, bodyReadError(err)
	}
	if !utf8.Valid(b) {
		return nil, opt, requestError("INVALID_ARGUMENT", "请求体不是合法 UTF-8 文本", "")
	}

	q := r.URL.Query()
	if v := q.Get("collapse"); v != "" {
		c, err := strconv.ParseBool(v)
		if err != nil {
			return nil, opt, requestError("INVALID_ARGUMENT", "collapse 参数不合法", "expected: true|false")
		}
		opt.Networks.Collapse = c
	}
	if v := q.Get("max_illegal_chars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, opt, requestError("INVALID_ARGUMENT", "max_illegal_chars 参数不合法", "expected: non-negative integer")
		}
		opt.Policy = rules.StrictPolicy(n)
	}
	return splitBody(string(b)), opt, nil
}

func decodeReduceJSON(body io.Reader) (reduceRequestJSON, error) {
	var req reduceRequestJSON
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if be := bodyReadError(err); isTooLarge(be) {
			return req, be
		}
		return req, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return req, requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return req, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	return req, nil
}

func bodyReadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apiError(http.StatusRequestEntityTooLarge, model.AppError{
			Code:    "TOO_LARGE",
			Message: "请求体过大",
			Stage:   "validate_request",
			Hint:    "limit=" + strconv.FormatInt(mbe.Limit, 10) + " bytes",
		}, err)
	}
	return requestError("INVALID_ARGUMENT", "读取请求体失败", err.Error())
}

func isTooLarge(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.AppError.Code == "TOO_LARGE"
}

func splitBody(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

type verbInfo struct {
	Verb     string `json:"verb"`
	Priority int    `json:"priority"`
	Surge    bool   `json:"surge"`
}

func handleVerbs(w http.ResponseWriter, r *http.Request) {
	surge := render.SupportedVerbs(render.TargetSurge)
	verbs := rules.Verbs()
	out := make([]verbInfo, 0, len(verbs))
	for _, v := range verbs {
		_, ok := surge[v]
		out = append(out, verbInfo{Verb: v, Priority: rules.VerbPriority(v), Surge: ok})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"verbs": out})
}
