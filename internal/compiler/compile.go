package compiler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/John-Robertt/domainrouter-go/internal/audit"
	"github.com/John-Robertt/domainrouter-go/internal/fetch"
	"github.com/John-Robertt/domainrouter-go/internal/logging"
	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

type Options struct {
	// Workers bounds the groups reduced at once. Default 10.
	Workers int
	Rules   rules.Options
	Fetch   fetch.PoolOptions
	// Sink receives every group's removal records. Nil means no audit.
	Sink audit.Sink
}

// GroupResult is one reduced group. FetchErrors lists the lists that could
// not be retrieved; the group is still reduced over what was fetched.
type GroupResult struct {
	Name        string
	Lines       []string
	Result      rules.Result
	FetchErrors []error
}

// Empty reports whether nothing survived; callers skip writing the group.
func (g GroupResult) Empty() bool { return g.Result.Empty() }

type Result struct {
	Groups []GroupResult
}

// Group returns the result for name, if present.
func (r *Result) Group(name string) (GroupResult, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupResult{}, false
}

// Removed returns the total removal count across groups.
func (r *Result) Removed() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Result.Removed)
	}
	return n
}

type CompileError struct {
	AppError model.AppError
	Cause    error
}

func (e *CompileError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Compile fetches every list the document references, reduces each group
// and records what was removed. Groups come back in document order.
//
// A list that cannot be fetched is reported in its group's FetchErrors and
// contributes no lines. Compile fails only on a nil document, a
// cancelled context or an audit write error.
func Compile(ctx context.Context, doc *profile.Document, opt Options) (*Result, error) {
	if doc == nil {
		return nil, &CompileError{
			AppError: model.AppError{
				Code:    "PROFILE_VALIDATE_ERROR",
				Message: "规则源文档不能为空",
				Stage:   "compile",
			},
		}
	}
	logger := logging.Get("compiler")
	done := logging.LogOperationStart(logger, "compile")
	defer done()

	sink := opt.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	fetchOpt := opt.Fetch
	fetchOpt.Kind = fetch.KindRuleSource
	fetched := fetch.FetchAll(ctx, doc.URLs(), fetchOpt)
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	groups := make([]GroupResult, len(doc.Groups))
	for i, g := range doc.Groups {
		groups[i] = collectLines(g, fetched)
	}

	workers := opt.Workers
	if workers <= 0 {
		workers = 10
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	tasks := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				g := &groups[i]
				g.Result = rules.Process(g.Lines, opt.Rules)
				err := sink.Append(ctx, g.Name, g.Result.Removed)
				if err != nil {
					logger.Error().Err(err).Str("group", g.Name).Msg("audit write failed")
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
				logger.Info().
					Str("group", g.Name).
					Int("lines", len(g.Lines)).
					Int("kept", len(g.Result.Entries)).
					Int("removed", len(g.Result.Removed)).
					Int("fetch_errors", len(g.FetchErrors)).
					Msg("group reduced")
			}
		}()
	}
	for i := range groups {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	return &Result{Groups: groups}, nil
}

// collectLines yields the group's inline lines followed by each list's
// lines, in document order.
func collectLines(g profile.Group, fetched map[string]fetch.Outcome) GroupResult {
	out := GroupResult{Name: g.Name}
	out.Lines = append(out.Lines, g.Lines...)
	for _, u := range g.URLs {
		o := fetched[u]
		if o.Err != nil {
			logger := logging.Get("compiler")
			logger.Warn().Err(o.Err).Str("group", g.Name).Str("url", u).Msg("list skipped")
			out.FetchErrors = append(out.FetchErrors, o.Err)
			continue
		}
		out.Lines = append(out.Lines, SplitLines(o.Text)...)
	}
	return out
}

// SplitLines splits list text into lines, dropping a UTF-8 BOM and CR line endings.
func SplitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func cancelled(err error) *CompileError {
	return &CompileError{
		AppError: model.AppError{Code: "CANCELLED", Message: "编译被取消", Stage: "compile"},
		Cause:    err,
	}
}
