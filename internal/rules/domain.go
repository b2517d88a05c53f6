package rules

import (
	"sort"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// Covers reports whether a matches every name c matches, so c is redundant
// next to a.
//
//	+.p  covers p and anything under p
//	*.p  covers one-label-deeper plain names, *.p itself and .p (same
//	     dot count); labels of p containing '*' match as globs
//	.p   covers anything strictly under p, including *.p
//	p    covers only itself
//
// *.p and .p cover each other; ReduceDomains keeps the earlier one, which
// is always the wildcard.
func Covers(a, c model.DomainRule) bool {
	if a == c {
		return true
	}
	switch a.Form {
	case model.FormSuffix:
		return c.Pattern == a.Pattern || isSubdomain(c.Pattern, a.Pattern)
	case model.FormLeadingDot:
		if isSubdomain(c.Pattern, a.Pattern) {
			return true
		}
		return c.Form == model.FormWildcard && c.Pattern == a.Pattern
	case model.FormWildcard:
		if c.Form == model.FormLeadingDot {
			return c.Pattern == a.Pattern
		}
		if c.Form != model.FormPlain && c.Form != model.FormWildcard {
			return false
		}
		return wildcardMatches(a.Pattern, c.String())
	default:
		return false
	}
}

func isSubdomain(child, parent string) bool {
	return len(child) > len(parent)+1 && strings.HasSuffix(child, parent) && child[len(child)-len(parent)-1] == '.'
}

// wildcardMatches reports whether text is "<label>.<p>" with the same
// label count as "*.<p>".
func wildcardMatches(p, text string) bool {
	head, rest, ok := strings.Cut(text, ".")
	if !ok || head == "" {
		return false
	}
	if !strings.Contains(p, "*") {
		return rest == p
	}
	pl := strings.Split(p, ".")
	tl := strings.Split(rest, ".")
	if len(pl) != len(tl) {
		return false
	}
	for i := range pl {
		if !globLabel(pl[i], tl[i]) {
			return false
		}
	}
	return true
}

// globLabel matches one label against a pattern where '*' stands for any
// run of characters.
func globLabel(pattern, s string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == s
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(s, mid)
		if i < 0 {
			return false
		}
		s = s[i+len(mid):]
	}
	return len(s) >= len(last) && strings.HasSuffix(s, last)
}

// ReduceDomains drops duplicates and every entry covered by another entry
// of the batch. kept is ordered +., *., ., plain; each class by dot count
// then text.
func ReduceDomains(entries []model.DomainRule) ([]model.DomainRule, []model.Removal) {
	uniq, removed := dedupDomains(entries)
	ordered := priorityOrder(uniq)

	idx := newDomainIndex(ordered)
	kept := make([]model.DomainRule, 0, len(ordered))
	for i, d := range ordered {
		if by, ok := idx.coveredBy(i); ok {
			removed = append(removed, model.Removal{
				Entry:     d.String(),
				Family:    model.FamilyDomain,
				Reason:    model.ReasonCovered,
				CoveredBy: ordered[by].String(),
			})
			continue
		}
		kept = append(kept, d)
	}

	sortDomainOutput(kept)
	return kept, removed
}

func dedupDomains(entries []model.DomainRule) ([]model.DomainRule, []model.Removal) {
	seen := make(map[model.DomainRule]struct{}, len(entries))
	out := make([]model.DomainRule, 0, len(entries))
	var removed []model.Removal
	for _, d := range entries {
		if _, ok := seen[d]; ok {
			removed = append(removed, model.Removal{
				Entry:  d.String(),
				Family: model.FamilyDomain,
				Reason: model.ReasonDuplicate,
			})
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, removed
}

func formClass(f model.DomainForm) int {
	switch f {
	case model.FormSuffix:
		return 0
	case model.FormWildcard:
		return 1
	default:
		return 2
	}
}

// priorityOrder is a stable partition: +. first, then *., then the rest.
func priorityOrder(entries []model.DomainRule) []model.DomainRule {
	out := make([]model.DomainRule, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return formClass(out[i].Form) < formClass(out[j].Form)
	})
	return out
}

func sortDomainOutput(entries []model.DomainRule) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Form != b.Form {
			return a.Form < b.Form
		}
		if da, db := a.Dots(), b.Dots(); da != db {
			return da < db
		}
		return a.String() < b.String()
	})
}
