package rules

import (
	"sort"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// verbOrder is the classical verb priority table. It doubles as the verb
// allow-list used when assembling output.
var verbOrder = [...]string{
	"DOMAIN-KEYWORD",
	"DOMAIN-REGEX",
	"GEOSITE",
	"IP-SUFFIX",
	"IP-ASN",
	"GEOIP",
	"SRC-GEOIP",
	"SRC-IP-ASN",
	"SRC-IP-CIDR",
	"SRC-IP-SUFFIX",
	"DST-PORT",
	"SRC-PORT",
	"IN-PORT",
	"IN-TYPE",
	"IN-USER",
	"IN-NAME",
	"PROCESS-PATH",
	"PROCESS-PATH-REGEX",
	"PROCESS-NAME",
	"PROCESS-NAME-REGEX",
	"UID",
	"NETWORK",
	"DSCP",
	"RULE-SET",
	"AND",
	"OR",
	"NOT",
	"SUB-RULE",
}

var verbPriority = func() map[string]int {
	m := make(map[string]int, len(verbOrder))
	for i, v := range verbOrder {
		m[v] = i
	}
	return m
}()

// Verbs returns the priority table in order.
func Verbs() []string { return append([]string(nil), verbOrder[:]...) }

// VerbPriority returns the table position of verb; unknown verbs sort last.
func VerbPriority(verb string) int {
	if p, ok := verbPriority[verb]; ok {
		return p
	}
	return len(verbOrder)
}

func IsSupportedVerb(verb string) bool {
	_, ok := verbPriority[verb]
	return ok
}

// SortClassicals orders entries by verb priority, keeping input order among
// equal verbs, and counts table verbs.
func SortClassicals(entries []model.ClassicalRule) ([]model.ClassicalRule, []model.VerbCount) {
	out := make([]model.ClassicalRule, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return VerbPriority(out[i].Verb) < VerbPriority(out[j].Verb)
	})
	return out, countVerbs(out)
}

func countVerbs(entries []model.ClassicalRule) []model.VerbCount {
	n := make([]int, len(verbOrder))
	for _, e := range entries {
		if p, ok := verbPriority[e.Verb]; ok {
			n[p]++
		}
	}
	var out []model.VerbCount
	for i, c := range n {
		if c > 0 {
			out = append(out, model.VerbCount{Verb: verbOrder[i], Count: c})
		}
	}
	return out
}
