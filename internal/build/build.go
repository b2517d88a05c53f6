// Package build turns a rule-source document into the published output
// tree: Clash providers, Surge lists, dnsmasq files, Shadowrocket modules,
// rulesets.toml and an optional templated conf.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/domainrouter-go/internal/audit"
	"github.com/John-Robertt/domainrouter-go/internal/compiler"
	"github.com/John-Robertt/domainrouter-go/internal/config"
	"github.com/John-Robertt/domainrouter-go/internal/fetch"
	"github.com/John-Robertt/domainrouter-go/internal/logging"
	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
	"github.com/John-Robertt/domainrouter-go/internal/render"
	"github.com/John-Robertt/domainrouter-go/internal/template"
)

const (
	RulesetsFile = "rulesets.toml"
	ConfFile     = "domainrouter.conf"
)

type Options struct {
	Config *config.Config
	// Source and OutDir override the config values when set.
	Source string
	OutDir string
	// Sink overrides the sink opened from Config.Audit.
	Sink audit.Sink
	Now  func() time.Time
}

type Summary struct {
	Files       []string // relative paths, sorted
	Groups      int
	Skipped     []string // groups with nothing left to publish
	FetchErrors int
	Removed     int
}

type BuildError struct {
	AppError model.AppError
	Cause    error
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

func buildErr(code, msg, path string, cause error) *BuildError {
	return &BuildError{
		AppError: model.AppError{Code: code, Message: msg, Stage: "write_output", URL: path},
		Cause:    cause,
	}
}

// Run loads the document, reduces every group and writes the enabled
// outputs under the output directory. Empty groups produce no files and
// are left out of rulesets.toml and the conf rules.
func Run(ctx context.Context, opt Options) (*Summary, error) {
	cfg := opt.Config
	if cfg == nil {
		cfg = config.Default()
	}
	source := firstNonEmpty(opt.Source, cfg.Source)
	if source == "" {
		return nil, &BuildError{AppError: model.AppError{
			Code:    "INVALID_ARGUMENT",
			Message: "未指定规则源文档",
			Stage:   "validate_request",
			Hint:    "set source in the config file or pass --source",
		}}
	}
	outDir := firstNonEmpty(opt.OutDir, cfg.OutputDir)
	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	logger := logging.Get("build")

	retry := fetch.RetryPolicy{
		Attempts: cfg.Fetch.Retries,
		Wait:     cfg.Fetch.RetryWait,
		Options:  fetch.Options{Timeout: cfg.Fetch.Timeout},
	}
	text, err := fetch.Load(ctx, fetch.KindDocument, source, retry)
	if err != nil {
		return nil, err
	}
	doc, err := profile.ParseDocument(source, text)
	if err != nil {
		return nil, err
	}

	sink := opt.Sink
	if sink == nil {
		s, err := audit.Open(ctx, audit.Config{Driver: cfg.Audit.Driver, DSN: cfg.Audit.DSN, Path: cfg.Audit.Path})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Error().Err(err).Msg("closing audit sink")
			}
		}()
		sink = s
	}

	sourceRetry := retry
	sourceRetry.Options.MaxBytes = cfg.Fetch.MaxBytes
	res, err := compiler.Compile(ctx, doc, compiler.Options{
		Workers: cfg.Workers,
		Rules:   cfg.RulesOptions(),
		Fetch:   fetch.PoolOptions{Workers: cfg.Workers, Retry: sourceRetry},
		Sink:    sink,
	})
	if err != nil {
		return nil, err
	}

	w := &writer{dir: outDir, produced: render.Produced{}}
	meta := render.Meta{Author: cfg.Meta.Author, Repo: cfg.Meta.Repo, Updated: now().In(cfg.Location())}
	sum := &Summary{Groups: len(res.Groups), Removed: res.Removed()}
	published := make(map[string]compiler.GroupResult, len(res.Groups))

	for _, g := range res.Groups {
		sum.FetchErrors += len(g.FetchErrors)
		if g.Empty() {
			logger.Warn().Str("group", g.Name).Msg("group is empty, nothing written")
			sum.Skipped = append(sum.Skipped, g.Name)
			continue
		}
		if err := w.group(g, cfg, meta); err != nil {
			return nil, err
		}
		published[g.Name] = g
	}

	if cfg.Outputs.Module {
		if err := w.modules(doc.Bindings, published, meta); err != nil {
			return nil, err
		}
	}

	if cfg.Outputs.Rulesets {
		text, err := render.RenderRulesets(doc.Bindings, w.produced, render.RulesetOptions{
			BaseURL:  cfg.Rulesets.BaseURL,
			Interval: cfg.Rulesets.Interval,
		})
		if err != nil {
			return nil, err
		}
		if err := w.write(RulesetsFile, text); err != nil {
			return nil, err
		}
	}

	if cfg.Conf.Template != "" {
		if err := w.conf(ctx, doc, cfg, retry); err != nil {
			return nil, err
		}
	}

	sum.Files = w.files()
	logger.Info().
		Int("groups", sum.Groups).
		Int("files", len(sum.Files)).
		Int("removed", sum.Removed).
		Int("fetch_errors", sum.FetchErrors).
		Str("out", outDir).
		Msg("build finished")
	return sum, nil
}

type writer struct {
	dir      string
	produced render.Produced
}

func (w *writer) group(g compiler.GroupResult, cfg *config.Config, meta render.Meta) error {
	if cfg.Outputs.Clash {
		files, err := render.ClashProviders(g.Name, g.Result, meta)
		if err != nil {
			return err
		}
		for rel, text := range files {
			if err := w.write(rel, text); err != nil {
				return err
			}
		}
	}
	if cfg.Outputs.Surge {
		if text := render.RenderSurgeList(g.Result); text != "" {
			if err := w.write(render.SurgeListPath(g.Name), text); err != nil {
				return err
			}
		}
	}
	if cfg.Outputs.Dnsmasq {
		text, err := render.RenderDnsmasq(g.Result.Domains(), render.DnsmasqOptions{
			Upstream: cfg.Dnsmasq.Upstream,
			Exclude:  cfg.Dnsmasq.Exclude,
		})
		if err != nil {
			return err
		}
		if text != "" {
			if err := w.write(render.DnsmasqPath(g.Name), text); err != nil {
				return err
			}
		}
	}
	return nil
}

// modules writes one module per bound group, carrying the policy of the
// group's first binding.
func (w *writer) modules(bindings []profile.Binding, groups map[string]compiler.GroupResult, meta render.Meta) error {
	for _, b := range bindings {
		if b.IsMatch() || b.Inline() {
			continue
		}
		g, ok := groups[b.Key]
		rel := render.ModulePath(b.Key)
		if !ok || w.produced.Has(rel) {
			continue
		}
		text, err := render.RenderModule(g.Name, b.Policy, g.Result, meta)
		if err != nil {
			return err
		}
		if text == "" {
			continue
		}
		if err := w.write(rel, text); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) conf(ctx context.Context, doc *profile.Document, cfg *config.Config, retry fetch.RetryPolicy) error {
	tmpl, err := fetch.Load(ctx, fetch.KindTemplate, cfg.Conf.Template, retry)
	if err != nil {
		return err
	}
	block, err := render.RenderConfRules(doc.Bindings, w.produced, firstNonEmpty(cfg.Conf.BaseURL, cfg.Rulesets.BaseURL))
	if err != nil {
		return err
	}
	out, err := template.InjectRules(tmpl, block, template.AnchorOptions{TemplateURL: cfg.Conf.Template})
	if err != nil {
		return err
	}
	if cfg.Conf.PublicURL != "" {
		out, err = template.EnsureManagedConfig(out, cfg.Conf.PublicURL, cfg.Conf.Template)
		if err != nil {
			return err
		}
	}
	return w.write(ConfFile, out)
}

// write replaces dir/rel through a temp file and rename, so readers never
// see a half-written file.
func (w *writer) write(rel, text string) error {
	path := filepath.Join(w.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return buildErr("WRITE_ERROR", "创建输出目录失败", path, err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return buildErr("WRITE_ERROR", "创建临时文件失败", path, err)
	}
	tmp := f.Name()
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return buildErr("WRITE_ERROR", "写入输出文件失败", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return buildErr("WRITE_ERROR", "写入输出文件失败", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return buildErr("WRITE_ERROR", "写入输出文件失败", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return buildErr("WRITE_ERROR", "写入输出文件失败", path, err)
	}
	w.produced.Add(rel)
	return nil
}

func (w *writer) files() []string {
	out := make([]string, 0, len(w.produced))
	for rel := range w.produced {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
