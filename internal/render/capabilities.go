package render

import "github.com/John-Robertt/domainrouter-go/internal/rules"

// surgeVerbs is the classical subset Surge and Shadowrocket import from a
// .list file. Clash-only verbs (GEOSITE, IN-TYPE, SUB-RULE, ...) are left out
// so the client never rejects a whole list for one line.
var surgeVerbs = []string{
	"DOMAIN-KEYWORD",
	"IP-ASN",
	"GEOIP",
	"SRC-IP-CIDR",
	"DST-PORT",
	"SRC-PORT",
	"IN-PORT",
	"PROCESS-NAME",
	"RULE-SET",
	"AND",
	"OR",
	"NOT",
}

// SupportedVerbs returns the classical verb allow-list for target.
// A nil map means the target takes no classical rules.
func SupportedVerbs(target Target) map[string]struct{} {
	var verbs []string
	switch target {
	case TargetClash:
		verbs = rules.Verbs()
	case TargetSurge:
		verbs = surgeVerbs
	default:
		return nil
	}
	out := make(map[string]struct{}, len(verbs))
	for _, v := range verbs {
		out[v] = struct{}{}
	}
	return out
}
