package render

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

// RenderClashProvider renders the entries of one kind as a Clash
// rule-provider document. It returns "" when the group has no entries of
// that kind, and the caller skips the file.
func RenderClashProvider(kind ProviderKind, group string, res rules.Result, meta Meta) (string, error) {
	var items []string
	var total int
	var extra []string

	switch kind {
	case KindDomain:
		for _, d := range res.Domains() {
			items = append(items, "  - "+yamlSQ(d.String()))
		}
		total = res.Counts.Domains
	case KindIPCIDR:
		for _, n := range res.Networks() {
			items = append(items, "  - "+yamlSQ(n.String()))
		}
		total = res.Counts.IPv4 + res.Counts.IPv6
		if res.Counts.IPv4 > 0 {
			extra = append(extra, fmt.Sprintf("# IP-CIDR TOTAL: %d", res.Counts.IPv4))
		}
		if res.Counts.IPv6 > 0 {
			extra = append(extra, fmt.Sprintf("# IP-CIDR6 TOTAL: %d", res.Counts.IPv6))
		}
	case KindClassical:
		prev := ""
		for _, c := range res.Classicals() {
			if prev != "" && prev != c.Verb {
				items = append(items, "")
			}
			items = append(items, "  - "+c.String())
			prev = c.Verb
		}
		total = res.Counts.Classical
		for _, vc := range res.Counts.Verbs {
			extra = append(extra, fmt.Sprintf("# %s TOTAL: %d", vc.Verb, vc.Count))
		}
	default:
		return "", renderErr("INVALID_ARGUMENT", fmt.Sprintf("不支持的 provider 类型：%s", kind), string(kind))
	}
	if len(items) == 0 {
		return "", nil
	}
	if strings.ContainsAny(group, "\r\n") {
		return "", renderErr("INVALID_ARGUMENT", "分组名含有换行符", group)
	}

	lines := []string{"# NAME: " + group}
	if meta.Author != "" {
		lines = append(lines, "# AUTHOR: "+meta.Author)
	}
	if meta.Repo != "" {
		lines = append(lines, "# REPO: "+meta.Repo)
	}
	if !meta.Updated.IsZero() {
		lines = append(lines, "# UPDATED: "+updatedLabel(meta.Updated))
	}
	lines = append(lines, "# TYPE: "+string(kind), fmt.Sprintf("# TOTAL: %d", total))
	lines = append(lines, extra...)
	lines = append(lines, "payload:")
	lines = append(lines, items...)
	return strings.Join(lines, "\n") + "\n", nil
}

// ClashProviders renders every non-empty kind of a group, keyed by
// ProviderPath.
func ClashProviders(group string, res rules.Result, meta Meta) (map[string]string, error) {
	out := make(map[string]string, 3)
	for _, kind := range ProviderKinds() {
		text, err := RenderClashProvider(kind, group, res, meta)
		if err != nil {
			return nil, err
		}
		if text != "" {
			out[ProviderPath(kind, group)] = text
		}
	}
	return out, nil
}

// providerType is the rulesets.toml type of a provider file.
func providerType(kind ProviderKind) string {
	switch kind {
	case KindDomain:
		return "clash-domain"
	case KindIPCIDR:
		return "clash-ipcidr"
	default:
		return "clash-classic"
	}
}
