package render

import (
	"path"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

func ModulePath(group string) string { return path.Join("module", group+".module") }

// trailing rule options that stay after the policy
var moduleOptions = map[string]bool{"no-resolve": true, "extended-matching": true}

// RenderModule renders a Shadowrocket/Surge module carrying a group's rules
// with policy attached to every line. A group with nothing to route
// renders as "".
func RenderModule(group, policy string, res rules.Result, meta Meta) (string, error) {
	if err := policyOK(policy); err != nil {
		return "", err
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(RenderSurgeList(res), "\n"), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, withPolicy(line, policy))
	}
	if len(lines) == 0 {
		return "", nil
	}

	desc := "Generated by domainrouter"
	if meta.Repo != "" {
		desc += " (" + meta.Repo + ")"
	}
	var b strings.Builder
	b.WriteString("#!name=" + group + "\n")
	b.WriteString("#!desc=" + desc + "\n")
	if !meta.Updated.IsZero() {
		b.WriteString("#!date=" + meta.Updated.Format("2006-01-02 15:04:05") + "\n")
	}
	b.WriteString("\n[Rule]\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// withPolicy inserts policy after the rule value, ahead of any trailing
// options such as no-resolve.
func withPolicy(line, policy string) string {
	parts := strings.Split(line, ",")
	at := len(parts)
	for at > 2 && moduleOptions[strings.ToLower(strings.TrimSpace(parts[at-1]))] {
		at--
	}
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts[:at]...)
	out = append(out, policy)
	out = append(out, parts[at:]...)
	return strings.Join(out, ",")
}
