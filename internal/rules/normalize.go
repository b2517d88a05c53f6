package rules

import (
	"strings"
	"unicode"
)

// DefaultMaxIllegalChars is the number of characters outside the rule
// alphabet a line may carry before it is dropped as malformed.
const DefaultMaxIllegalChars = 3

// Policy holds the Normalizer thresholds.
type Policy struct {
	// MaxIllegalChars: 0 means DefaultMaxIllegalChars, a negative value
	// rejects any illegal character.
	MaxIllegalChars int
}

// StrictPolicy builds a Policy from a user-facing threshold, where 0
// rejects any illegal character. Negative n is treated as 0.
func StrictPolicy(n int) Policy {
	if n <= 0 {
		return Policy{MaxIllegalChars: -1}
	}
	return Policy{MaxIllegalChars: n}
}

func (p Policy) maxIllegal() int {
	switch {
	case p.MaxIllegalChars == 0:
		return DefaultMaxIllegalChars
	case p.MaxIllegalChars < 0:
		return 0
	default:
		return p.MaxIllegalChars
	}
}

// Normalize cleans raw list lines. Comment and marker lines and lines with
// too many illegal characters are dropped; bare FQDNs become "+." suffix
// patterns. It never fails.
func Normalize(lines []string, p Policy) []string {
	limit := p.maxIllegal()
	out := make([]string, 0, len(lines))
	for _, raw := range lines {
		if s, ok := normalizeLine(raw, limit); ok {
			out = append(out, s)
		}
	}
	return out
}

func normalizeLine(raw string, limit int) (string, bool) {
	line := stripSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "payload") {
		return "", false
	}
	if isStrictFQDN(line) {
		return "+." + line, true
	}

	line = strings.TrimFunc(line, func(r rune) bool { return !isEdgeRune(r) })
	if line == "" {
		return "", false
	}
	if countIllegal(line) > limit {
		return "", false
	}
	return line, true
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// isStrictFQDN: 2+ labels of [A-Za-z0-9-]{1,63} without edge hyphens, a
// final label of 2-6 letters, at most 253 bytes.
func isStrictFQDN(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	last := len(labels) - 1
	for i, l := range labels {
		if len(l) == 0 || len(l) > 63 {
			return false
		}
		if i == last {
			if len(l) < 2 || len(l) > 6 {
				return false
			}
			for j := 0; j < len(l); j++ {
				if !isASCIILetter(l[j]) {
					return false
				}
			}
			continue
		}
		if l[0] == '-' || l[len(l)-1] == '-' {
			return false
		}
		for j := 0; j < len(l); j++ {
			c := l[j]
			if !isASCIILetter(c) && !isASCIIDigit(c) && c != '-' {
				return false
			}
		}
	}
	return true
}

func isEdgeRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || isCJK(r) {
		return true
	}
	return r == ':' || r == '+' || r == '*' || r == '.'
}

const extendedPunct = `()$/\^,:+*.-`

func countIllegal(s string) int {
	n := 0
	for _, r := range s {
		if r < 0x80 {
			c := byte(r)
			if isASCIILetter(c) || isASCIIDigit(c) || strings.IndexByte(extendedPunct, c) >= 0 {
				continue
			}
			n++
			continue
		}
		if !isCJK(r) {
			n++
		}
	}
	return n
}

func isCJK(r rune) bool { return r >= 0x4e00 && r <= 0x9fa5 }

func isASCIILetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }
