package rules

import "github.com/John-Robertt/domainrouter-go/internal/model"

// Options configures one Process call.
type Options struct {
	Policy   Policy
	Networks NetworkOptions
}

// DefaultOptions collapses networks and uses DefaultMaxIllegalChars.
func DefaultOptions() Options {
	return Options{
		Policy:   Policy{MaxIllegalChars: DefaultMaxIllegalChars},
		Networks: NetworkOptions{Collapse: true},
	}
}

// Result is the reduced rule set of one batch plus its audit trail.
type Result struct {
	Entries []model.Entry
	Removed []model.Removal
	Counts  model.Counts
}

// Process runs one batch through normalize, classify, the three reducers
// and assembly. It is pure: the same lines and options always give the
// same Result. An empty or fully filtered batch yields the zero Result.
func Process(lines []string, opt Options) Result {
	normalized := Normalize(lines, opt.Policy)
	if len(normalized) == 0 {
		return Result{}
	}

	c := Classify(normalized)
	domains, domainRemoved := ReduceDomains(c.Domains)
	networks, networkRemoved := ReduceNetworks(c.Networks, opt.Networks)
	// The sorter counts verbs before dedup and the unsupported-verb filter;
	// Assemble recounts the entries that are actually published.
	classicals, _ := SortClassicals(c.Classicals)
	asm := Assemble(domains, networks, classicals)

	var removed []model.Removal
	removed = append(removed, c.Invalid...)
	removed = append(removed, domainRemoved...)
	removed = append(removed, networkRemoved...)
	removed = append(removed, asm.Removed...)

	return Result{Entries: asm.Entries, Removed: removed, Counts: asm.Counts}
}

func (r Result) Empty() bool { return len(r.Entries) == 0 }

// Lines returns the display form of every entry.
func (r Result) Lines() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.String())
	}
	return out
}

// Canonical returns lines that Process maps back onto the same entries.
// Plain domains are written as DOMAIN clauses, because a bare FQDN would
// be normalized into a "+." suffix pattern.
func (r Result) Canonical() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if d, ok := e.(model.DomainRule); ok && d.Form == model.FormPlain {
			out = append(out, "DOMAIN,"+d.Pattern)
			continue
		}
		out = append(out, e.String())
	}
	return out
}

func (r Result) Domains() []model.DomainRule {
	var out []model.DomainRule
	for _, e := range r.Entries {
		if d, ok := e.(model.DomainRule); ok {
			out = append(out, d)
		}
	}
	return out
}

func (r Result) Networks() []model.NetworkRule {
	var out []model.NetworkRule
	for _, e := range r.Entries {
		if n, ok := e.(model.NetworkRule); ok {
			out = append(out, n)
		}
	}
	return out
}

func (r Result) Classicals() []model.ClassicalRule {
	var out []model.ClassicalRule
	for _, e := range r.Entries {
		if c, ok := e.(model.ClassicalRule); ok {
			out = append(out, c)
		}
	}
	return out
}
