package rules

import (
	"math/bits"
	"net/netip"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// Classified is the Classifier output. Invalid holds domain-shaped lines
// that failed the syntax checks and clauses without a verb.
type Classified struct {
	Domains    []model.DomainRule
	Networks   []model.NetworkRule
	Classicals []model.ClassicalRule
	Invalid    []model.Removal
}

// Classify sorts normalized lines into the three rule families. The first
// matching check wins: bare IP, CIDR, domain shape, clause.
func Classify(lines []string) Classified {
	var c Classified
	for _, line := range lines {
		if p, ok := ParseNetwork(line); ok {
			c.Networks = append(c.Networks, model.NetworkRule{Prefix: p})
			continue
		}

		if isDomainShape(line) {
			d, ok := ParseDomain(line)
			if !ok {
				c.Invalid = append(c.Invalid, model.Removal{
					Entry:  line,
					Family: model.FamilyDomain,
					Reason: model.ReasonInvalid,
				})
				continue
			}
			c.Domains = append(c.Domains, d)
			continue
		}

		cl, err := ParseClause(line)
		if err != nil {
			c.Invalid = append(c.Invalid, model.Removal{
				Entry:  line,
				Family: model.FamilyClassical,
				Reason: model.ReasonInvalid,
			})
			continue
		}
		// IP-CIDR,1.2.3.0/24,no-resolve and friends carry a network.
		if p, ok := ParseNetwork(cl.Arg(0)); ok {
			c.Networks = append(c.Networks, model.NetworkRule{Prefix: p})
			continue
		}
		c.Classicals = append(c.Classicals, model.ClassicalRule{Verb: cl.Verb, Args: cl.Args()})
	}
	return c
}

// ParseNetwork accepts a bare address (promoted to a host route) or a CIDR
// with host bits set. IPv4 prefixes may also be written as a dotted
// netmask. The returned prefix is masked.
func ParseNetwork(s string) (netip.Prefix, bool) {
	if s == "" {
		return netip.Prefix{}, false
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		if addr.Zone() != "" {
			return netip.Prefix{}, false
		}
		return netip.PrefixFrom(addr, addr.BitLen()), true
	}

	addrPart, maskPart, ok := strings.Cut(s, "/")
	if !ok || maskPart == "" {
		return netip.Prefix{}, false
	}
	addr, err := netip.ParseAddr(addrPart)
	if err != nil || addr.Zone() != "" {
		return netip.Prefix{}, false
	}

	var n int
	if isDigits(maskPart) {
		if len(maskPart) > 3 {
			return netip.Prefix{}, false
		}
		for i := 0; i < len(maskPart); i++ {
			n = n*10 + int(maskPart[i]-'0')
		}
	} else {
		if !addr.Is4() {
			return netip.Prefix{}, false
		}
		n, ok = netmaskBits(maskPart)
		if !ok {
			return netip.Prefix{}, false
		}
	}
	if n > addr.BitLen() {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr, n).Masked(), true
}

func netmaskBits(s string) (int, bool) {
	m, err := netip.ParseAddr(s)
	if err != nil || !m.Is4() {
		return 0, false
	}
	b := m.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	ones := bits.LeadingZeros32(^v)
	if v != ^uint32(0)<<(32-ones) {
		return 0, false
	}
	return ones, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isASCIIDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

func isDomainShape(line string) bool {
	switch {
	case strings.HasPrefix(line, "+."), strings.HasPrefix(line, "*"):
		return true
	case hasPrefixFold(line, "DOMAIN-SUFFIX,"), hasPrefixFold(line, "DOMAIN,"):
		return true
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if !isASCIILetter(c) && !isASCIIDigit(c) && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

// ParseDomain converts a domain-shaped line into a DomainRule. Only the
// value field of DOMAIN-SUFFIX / DOMAIN clauses is used. The second
// result is false for syntactically invalid patterns.
func ParseDomain(line string) (model.DomainRule, bool) {
	text := line
	switch {
	case hasPrefixFold(line, "DOMAIN-SUFFIX,"):
		text = "+." + firstField(line[len("DOMAIN-SUFFIX,"):])
	case hasPrefixFold(line, "DOMAIN,"):
		text = firstField(line[len("DOMAIN,"):])
	}
	text = strings.ToLower(text)
	if !validDomainText(text) {
		return model.DomainRule{}, false
	}

	switch {
	case strings.HasPrefix(text, "+."):
		return model.DomainRule{Form: model.FormSuffix, Pattern: text[2:]}, true
	case strings.HasPrefix(text, "*."):
		return model.DomainRule{Form: model.FormWildcard, Pattern: text[2:]}, true
	case strings.HasPrefix(text, "."):
		return model.DomainRule{Form: model.FormLeadingDot, Pattern: text[1:]}, true
	default:
		return model.DomainRule{Form: model.FormPlain, Pattern: text}, true
	}
}

func validDomainText(s string) bool {
	switch s {
	case "", ".", "*", "+":
		return false
	}
	if !strings.Contains(s, ".") {
		return false
	}
	if (s[0] == '+' || s[0] == '*') && (len(s) < 2 || s[1] != '.') {
		return false
	}
	if strings.Contains(s, "**") || strings.Contains(s, "..") || strings.Contains(s, "++") {
		return false
	}
	for i, label := range strings.Split(s, ".") {
		if i > 0 && label == "" {
			return false
		}
		if strings.Count(label, "*") > 2 || strings.Count(label, "+") > 2 {
			return false
		}
	}
	return true
}

// firstField returns the value field of a clause tail, trimmed like a
// normalized line.
func firstField(s string) string {
	v, _, _ := strings.Cut(s, ",")
	return strings.TrimFunc(v, func(r rune) bool { return !isEdgeRune(r) })
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
