package render

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/miekg/dns"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

type DnsmasqOptions struct {
	// Upstream is the resolver address, optionally with "#port".
	Upstream string
	// Exclude holds lower-case domains; they and their subdomains are skipped.
	Exclude []string
}

// RenderDnsmasq renders server=/<domain>/<upstream> lines for the domain
// entries of a group. Wildcard patterns and names that are not valid DNS
// names are skipped.
func RenderDnsmasq(domains []model.DomainRule, opt DnsmasqOptions) (string, error) {
	if err := upstreamOK(opt.Upstream); err != nil {
		return "", err
	}

	seen := make(map[string]bool, len(domains))
	names := make([]string, 0, len(domains))
	for _, d := range domains {
		name := strings.TrimSuffix(d.Pattern, ".")
		if d.Form == model.FormWildcard || name == "" || strings.Contains(name, "*") || seen[name] {
			continue
		}
		if _, ok := dns.IsDomainName(name); !ok || excluded(name, opt.Exclude) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", nil
	}

	sort.SliceStable(names, func(i, j int) bool {
		a, b := registrableLabel(names[i]), registrableLabel(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	for _, name := range names {
		b.WriteString("server=/")
		b.WriteString(name)
		b.WriteString("/")
		b.WriteString(opt.Upstream)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// registrableLabel returns the label left of the TLD ("google" for
// "www.google.com"), or the name itself when it has a single label.
func registrableLabel(name string) string {
	labels := dns.SplitDomainName(name)
	if len(labels) < 2 {
		return name
	}
	return labels[len(labels)-2]
}

func excluded(name string, exclude []string) bool {
	for _, ex := range exclude {
		if name == ex || strings.HasSuffix(name, "."+ex) {
			return true
		}
	}
	return false
}

func upstreamOK(upstream string) error {
	host, _, _ := strings.Cut(upstream, "#")
	if _, err := netip.ParseAddr(host); err != nil {
		return &RenderError{
			AppError: model.AppError{Code: "INVALID_ARGUMENT", Message: "dnsmasq 上游必须是 IP 地址", Stage: "render", Snippet: upstream},
			Cause:    err,
		}
	}
	return nil
}
