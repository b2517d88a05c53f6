package render

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

// RenderSurgeList renders a reduced group as a Surge/Shadowrocket rule list.
// Classical lines whose verb Surge cannot import are dropped.
func RenderSurgeList(res rules.Result) string {
	domains := res.Domains()
	plainSkip := make(map[string]bool)
	for _, d := range domains {
		if d.Form == model.FormLeadingDot {
			plainSkip[d.Pattern] = true
		}
	}

	lines := make([]string, 0, len(res.Entries))
	for _, d := range domains {
		switch d.Form {
		case model.FormSuffix, model.FormLeadingDot:
			lines = append(lines, "DOMAIN-SUFFIX,"+d.Pattern)
		case model.FormWildcard:
			lines = append(lines, "DOMAIN-WILDCARD,"+d.String())
		default:
			if plainSkip[d.Pattern] {
				continue
			}
			lines = append(lines, "DOMAIN,"+d.Pattern)
		}
	}
	for _, n := range res.Networks() {
		lines = append(lines, n.ClauseType()+","+n.String()+",no-resolve")
	}
	allowed := SupportedVerbs(TargetSurge)
	for _, c := range res.Classicals() {
		if _, ok := allowed[c.Verb]; !ok {
			continue
		}
		lines = append(lines, c.String())
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// RenderConfRules renders the [Rule] block of a Surge/Shadowrocket conf.
// Group bindings reference their .list under base and are skipped when the
// list was not produced; MATCH always comes last as FINAL.
func RenderConfRules(bindings []profile.Binding, produced Produced, base string) (string, error) {
	var lines []string
	final := ""
	for _, b := range bindings {
		if err := policyOK(b.Policy); err != nil {
			return "", withLine(err, b.Line)
		}
		switch {
		case b.IsMatch():
			final = "FINAL," + b.Policy
		case b.Inline():
			line := strings.TrimSpace(b.Key) + "," + b.Policy
			if len(b.Options) > 0 {
				line += "," + strings.Join(b.Options, ",")
			}
			lines = append(lines, line)
		default:
			rel := SurgeListPath(b.Key)
			if !produced.Has(rel) {
				continue
			}
			u, err := joinURL(base, rel)
			if err != nil {
				return "", err
			}
			lines = append(lines, fmt.Sprintf("RULE-SET,%s,%s", u, b.Policy))
		}
	}
	if final != "" {
		lines = append(lines, final)
	}
	return strings.Join(lines, "\n"), nil
}

func withLine(err error, line int) error {
	if re, ok := err.(*RenderError); ok {
		re.AppError.Line = line
	}
	return err
}
