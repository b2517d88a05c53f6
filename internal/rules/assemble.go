package rules

import (
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// Assembly is the merged, deduplicated output of one batch.
type Assembly struct {
	Entries []model.Entry
	Removed []model.Removal
	Counts  model.Counts
}

// Assemble concatenates domains, networks and classicals in that order,
// drops unsupported verbs, marks IP-type clauses no-resolve and removes
// later duplicates.
func Assemble(domains []model.DomainRule, networks []model.NetworkRule, classicals []model.ClassicalRule) Assembly {
	combined := make([]model.Entry, 0, len(domains)+len(networks)+len(classicals))
	var removed []model.Removal

	for _, d := range domains {
		combined = append(combined, d)
	}
	for _, n := range networks {
		combined = append(combined, n)
	}
	for _, c := range classicals {
		if !IsSupportedVerb(c.Verb) {
			removed = append(removed, model.Removal{
				Entry:  c.String(),
				Family: model.FamilyClassical,
				Reason: model.ReasonUnsupportedVerb,
			})
			continue
		}
		combined = append(combined, withNoResolve(c))
	}

	seen := make(map[string]struct{}, len(combined))
	out := make([]model.Entry, 0, len(combined))
	for _, e := range combined {
		key := e.String()
		if _, ok := seen[key]; ok {
			removed = append(removed, model.Removal{
				Entry:  key,
				Family: e.Family(),
				Reason: model.ReasonDuplicate,
			})
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	return Assembly{Entries: out, Removed: removed, Counts: countEntries(out)}
}

const noResolve = "no-resolve"

func needsNoResolve(verb string) bool {
	switch verb {
	case "IP-CIDR", "IP-CIDR6", "GEOIP":
		return true
	}
	return false
}

func withNoResolve(c model.ClassicalRule) model.ClassicalRule {
	if !needsNoResolve(c.Verb) || c.Args == "" {
		return c
	}
	if strings.HasSuffix(strings.ToLower(","+c.Args), ","+noResolve) {
		return c
	}
	c.Args += "," + noResolve
	return c
}

func countEntries(entries []model.Entry) model.Counts {
	var c model.Counts
	var classicals []model.ClassicalRule
	for _, e := range entries {
		switch v := e.(type) {
		case model.DomainRule:
			c.Domains++
		case model.NetworkRule:
			if v.Version() == 4 {
				c.IPv4++
			} else {
				c.IPv6++
			}
		case model.ClassicalRule:
			c.Classical++
			classicals = append(classicals, v)
		}
	}
	c.Verbs = countVerbs(classicals)
	return c
}
