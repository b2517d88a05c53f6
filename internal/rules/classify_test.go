package rules

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

func TestClassify_BareIPBecomesHostRoute(t *testing.T) {
	c := Classify([]string{"192.168.1.1", "2001:db8::1"})

	require.Len(t, c.Networks, 2)
	assert.Equal(t, "192.168.1.1/32", c.Networks[0].String())
	assert.Equal(t, 4, c.Networks[0].Version())
	assert.Equal(t, "2001:db8::1/128", c.Networks[1].String())
	assert.Equal(t, 6, c.Networks[1].Version())
	assert.Empty(t, c.Domains)
	assert.Empty(t, c.Classicals)
}

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.5/24", "10.0.0.0/24"},
		{"10.1.2.3/255.255.0.0", "10.1.0.0/16"},
		{"0.0.0.0/0", "0.0.0.0/0"},
		{"2001:db8::1/32", "2001:db8::/32"},
		{"1.1.1.1", "1.1.1.1/32"},
	}
	for _, tt := range tests {
		p, ok := ParseNetwork(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, p.String(), tt.in)
	}

	for _, s := range []string{"", "1.2.3", "10.0.0.0/33", "10.0.0.0/255.0.255.0", "fe80::1%eth0", "2001:db8::/ffff::", "10.0.0.0/+8", "example.com"} {
		_, ok := ParseNetwork(s)
		assert.False(t, ok, s)
	}
}

func TestClassify_Families(t *testing.T) {
	c := Classify([]string{
		"DOMAIN-SUFFIX,Google.com",
		"domain,example.com",
		"DOMAIN-SUFFIX,github.com,PROXY",
		"*.example.org",
		".example.net",
		"plain.example.io",
		"IP-CIDR,1.1.1.0/24,no-resolve",
		"IP-CIDR6,2001:db8::/32",
		"SRC-IP-CIDR,192.168.0.0/16",
		"geoip,cn",
		"DOMAIN-KEYWORD,google",
	})

	assert.Equal(t, []model.DomainRule{
		{Form: model.FormSuffix, Pattern: "google.com"},
		{Form: model.FormPlain, Pattern: "example.com"},
		{Form: model.FormSuffix, Pattern: "github.com"},
		{Form: model.FormWildcard, Pattern: "example.org"},
		{Form: model.FormLeadingDot, Pattern: "example.net"},
		{Form: model.FormPlain, Pattern: "plain.example.io"},
	}, c.Domains)

	assert.Equal(t, []model.NetworkRule{
		{Prefix: netip.MustParsePrefix("1.1.1.0/24")},
		{Prefix: netip.MustParsePrefix("2001:db8::/32")},
		{Prefix: netip.MustParsePrefix("192.168.0.0/16")},
	}, c.Networks)

	assert.Equal(t, []model.ClassicalRule{
		{Verb: "GEOIP", Args: "cn"},
		{Verb: "DOMAIN-KEYWORD", Args: "google"},
	}, c.Classicals)
	assert.Empty(t, c.Invalid)
}

func TestClassify_InvalidDomains(t *testing.T) {
	bad := []string{
		"*",
		".",
		"localhost",
		"*example.com",
		"a..example.com",
		"+.",
		"example.com.",
		"*.a***.com",
		"DOMAIN,nodot",
	}
	c := Classify(bad)

	assert.Empty(t, c.Domains)
	require.Len(t, c.Invalid, len(bad))
	for i, r := range c.Invalid {
		assert.Equal(t, bad[i], r.Entry)
		assert.Equal(t, model.ReasonInvalid, r.Reason)
		assert.Equal(t, model.FamilyDomain, r.Family)
	}
}

func TestClassify_UnknownVerbStaysClassical(t *testing.T) {
	c := Classify([]string{"USER-AGENT,curl*", "IP-ASN,13335"})

	assert.Equal(t, []model.ClassicalRule{
		{Verb: "USER-AGENT", Args: "curl*"},
		{Verb: "IP-ASN", Args: "13335"},
	}, c.Classicals)
}
