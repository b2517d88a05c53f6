package model

import (
	"net/netip"
	"strings"
)

// Family is the rule family a normalized line was classified into.
type Family string

const (
	FamilyDomain    Family = "domain"
	FamilyNetwork   Family = "network"
	FamilyClassical Family = "classical"
)

// Entry is one classified rule. Concrete types: DomainRule, NetworkRule, ClassicalRule.
type Entry interface {
	Family() Family
	// String returns the canonical line used for dedup and output.
	String() string
}

type DomainForm int

const (
	FormSuffix     DomainForm = iota // "+.example.com": the domain and every subdomain
	FormWildcard                     // "*.example.com": exactly one extra label
	FormLeadingDot                   // ".example.com": every subdomain, not the domain itself
	FormPlain                        // "example.com": only itself
)

func (f DomainForm) Marker() string {
	switch f {
	case FormSuffix:
		return "+."
	case FormWildcard:
		return "*."
	case FormLeadingDot:
		return "."
	default:
		return ""
	}
}

func (f DomainForm) String() string {
	switch f {
	case FormSuffix:
		return "suffix"
	case FormWildcard:
		return "wildcard"
	case FormLeadingDot:
		return "leading-dot"
	default:
		return "plain"
	}
}

type DomainRule struct {
	Form    DomainForm
	Pattern string // without marker, lower-cased
}

func (DomainRule) Family() Family { return FamilyDomain }

func (d DomainRule) String() string { return d.Form.Marker() + d.Pattern }

// Dots is the dot count of the full text (marker included).
func (d DomainRule) Dots() int { return strings.Count(d.String(), ".") }

type NetworkRule struct {
	Prefix netip.Prefix // always masked
}

func (NetworkRule) Family() Family { return FamilyNetwork }

func (n NetworkRule) String() string { return n.Prefix.String() }

// Version returns 4 or 6.
func (n NetworkRule) Version() int {
	if n.Prefix.Addr().Is4() {
		return 4
	}
	return 6
}

// ClauseType is the clause verb used when a network is written as a
// classical rule (IP-CIDR / IP-CIDR6).
func (n NetworkRule) ClauseType() string {
	if n.Version() == 4 {
		return "IP-CIDR"
	}
	return "IP-CIDR6"
}

type ClassicalRule struct {
	Verb string // upper-cased
	Args string // everything after the first comma, may be empty
}

func (ClassicalRule) Family() Family { return FamilyClassical }

func (c ClassicalRule) String() string {
	if c.Args == "" {
		return c.Verb
	}
	return c.Verb + "," + c.Args
}

type RemovalReason string

const (
	ReasonCovered         RemovalReason = "covered"
	ReasonSubsumed        RemovalReason = "subsumed"
	ReasonMerged          RemovalReason = "merged"
	ReasonDuplicate       RemovalReason = "duplicate"
	ReasonInvalid         RemovalReason = "invalid"
	ReasonUnsupportedVerb RemovalReason = "unsupported-verb"
)

// Removal is one audit record: an entry dropped from a batch and why.
type Removal struct {
	Entry     string        `json:"entry"`
	Family    Family        `json:"family"`
	Reason    RemovalReason `json:"reason"`
	CoveredBy string        `json:"covered_by,omitempty"`
}

type VerbCount struct {
	Verb  string `json:"verb"`
	Count int    `json:"count"`
}

// Counts summarizes a final rule sequence per family.
type Counts struct {
	Domains   int         `json:"domains"`
	IPv4      int         `json:"ipv4"`
	IPv6      int         `json:"ipv6"`
	Classical int         `json:"classical"`
	Verbs     []VerbCount `json:"verbs,omitempty"`
}

func (c Counts) Total() int { return c.Domains + c.IPv4 + c.IPv6 + c.Classical }
