package render

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

type Target string

const (
	TargetClash   Target = "clash"
	TargetSurge   Target = "surge" // Surge and Shadowrocket share the list format
	TargetDnsmasq Target = "dnsmasq"
)

// ProviderKind is the Clash rule-provider behavior of one output file.
type ProviderKind string

const (
	KindDomain    ProviderKind = "domain"
	KindIPCIDR    ProviderKind = "ipcidr"
	KindClassical ProviderKind = "classical"
)

// ProviderKinds lists the kinds in output order.
func ProviderKinds() []ProviderKind {
	return []ProviderKind{KindDomain, KindIPCIDR, KindClassical}
}

// ProviderPath is the output path of a group's provider file, relative to
// the output directory.
func ProviderPath(kind ProviderKind, group string) string {
	switch kind {
	case KindDomain:
		return path.Join("domain", group+".yaml")
	case KindIPCIDR:
		return path.Join("ipcidr", group+"-ipcidr.yaml")
	default:
		return path.Join("classic", group+"-classic.yaml")
	}
}

func SurgeListPath(group string) string { return path.Join("surge", group+".list") }

func DnsmasqPath(group string) string { return path.Join("dnsmasq", group+".conf") }

// Produced is the set of relative paths written by a build. Rulesets and
// conf rules only reference files present in it.
type Produced map[string]bool

func (p Produced) Add(rel string)      { p[rel] = true }
func (p Produced) Has(rel string) bool { return p[rel] }

// Meta feeds the provider file header.
type Meta struct {
	Author  string
	Repo    string
	Updated time.Time
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

func renderErr(code, msg, snippet string) *RenderError {
	return &RenderError{AppError: model.AppError{Code: code, Message: msg, Stage: "render", Snippet: snippet}}
}

// joinURL joins base and a relative output path, escaping each segment.
// An empty base yields the relative path.
func joinURL(base, rel string) (string, error) {
	if base == "" {
		return rel, nil
	}
	u, err := url.JoinPath(base, strings.Split(rel, "/")...)
	if err != nil {
		return "", &RenderError{
			AppError: model.AppError{Code: "INVALID_ARGUMENT", Message: "base URL 不合法", Stage: "render", Snippet: base},
			Cause:    err,
		}
	}
	return u, nil
}
