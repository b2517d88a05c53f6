package render

import (
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/profile"
)

type RulesetOptions struct {
	// BaseURL is where the output directory is published.
	BaseURL string
	// Interval is the provider refresh interval in seconds.
	Interval int
}

// Ruleset is one [[rulesets]] table of rulesets.toml.
type Ruleset struct {
	Group    string `toml:"group"`
	Ruleset  string `toml:"ruleset"`
	Type     string `toml:"type,omitempty"`
	Interval int    `toml:"interval,omitempty"`
}

type rulesetFile struct {
	Rulesets []Ruleset `toml:"rulesets"`
}

// Rulesets maps bindings onto ruleset entries. Group bindings expand to
// one entry per produced provider file; inline bindings become "[]KEY"
// entries; MATCH bindings are appended last as "[]MATCH".
func Rulesets(bindings []profile.Binding, produced Produced, opt RulesetOptions) ([]Ruleset, error) {
	var out, matches []Ruleset
	for _, b := range bindings {
		if err := policyOK(b.Policy); err != nil {
			return nil, withLine(err, b.Line)
		}
		switch {
		case b.IsMatch():
			matches = append(matches, Ruleset{Group: b.Policy, Ruleset: "[]MATCH"})
		case b.Inline():
			rs := "[]" + strings.TrimSpace(b.Key)
			if hasPrefixFold(b.Key, "GEOIP,") && b.HasOption("no-resolve") {
				rs += ",no-resolve"
			}
			out = append(out, Ruleset{Group: b.Policy, Ruleset: rs})
		default:
			for _, kind := range ProviderKinds() {
				rel := ProviderPath(kind, b.Key)
				if !produced.Has(rel) {
					continue
				}
				u, err := joinURL(opt.BaseURL, rel)
				if err != nil {
					return nil, err
				}
				out = append(out, Ruleset{Group: b.Policy, Ruleset: u, Type: providerType(kind), Interval: opt.Interval})
			}
		}
	}
	return append(out, matches...), nil
}

// RenderRulesets encodes Rulesets as rulesets.toml.
func RenderRulesets(bindings []profile.Binding, produced Produced, opt RulesetOptions) (string, error) {
	rs, err := Rulesets(bindings, produced, opt)
	if err != nil {
		return "", err
	}
	b, err := toml.Marshal(rulesetFile{Rulesets: rs})
	if err != nil {
		return "", &RenderError{
			AppError: model.AppError{Code: "INTERNAL_ERROR", Message: "rulesets.toml 编码失败", Stage: "render"},
			Cause:    err,
		}
	}
	return strings.TrimSpace(string(b)) + "\n", nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
