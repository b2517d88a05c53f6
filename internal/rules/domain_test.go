package rules

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

func dr(text string) model.DomainRule {
	d, ok := ParseDomain(text)
	if !ok {
		panic("invalid domain in test: " + text)
	}
	return d
}

func plain(p string) model.DomainRule { return model.DomainRule{Form: model.FormPlain, Pattern: p} }

func domainStrings(ds []model.DomainRule) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}

func TestCovers(t *testing.T) {
	tests := []struct {
		a, c model.DomainRule
		want bool
	}{
		{dr("+.example.com"), plain("example.com"), true},
		{dr("+.example.com"), plain("a.example.com"), true},
		{dr("+.example.com"), dr("*.example.com"), true},
		{dr("+.example.com"), dr(".example.com"), true},
		{dr("+.example.com"), dr("+.a.example.com"), true},
		{dr("+.example.com"), plain("aexample.com"), false},

		{dr("*.example.com"), plain("a.example.com"), true},
		{dr("*.example.com"), plain("a.b.example.com"), false},
		{dr("*.example.com"), plain("example.com"), false},
		{dr("*.example.com"), dr(".example.com"), true},
		{dr("*.example.com"), dr(".a.example.com"), false},
		{dr("*.example.com"), dr("+.a.example.com"), false},
		{dr("*.a*.example.com"), plain("x.ab.example.com"), true},
		{dr("*.a*.example.com"), plain("x.b.example.com"), false},
		{dr("*.*.com"), dr("*.a.com"), true},
		{dr("*.a.com"), dr("*.*.com"), false},

		{dr(".example.com"), plain("a.example.com"), true},
		{dr(".example.com"), plain("example.com"), false},
		{dr(".example.com"), dr("*.example.com"), true},
		{dr(".example.com"), dr("+.a.example.com"), true},
		{dr(".example.com"), dr("+.example.com"), false},

		{plain("a.com"), plain("a.com"), true},
		{plain("a.com"), plain("b.a.com"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Covers(tt.a, tt.c), "Covers(%s, %s)", tt.a, tt.c)
	}
}

func TestGlobLabel(t *testing.T) {
	assert.True(t, globLabel("*", "anything"))
	assert.True(t, globLabel("a*", "abc"))
	assert.True(t, globLabel("*c", "abc"))
	assert.True(t, globLabel("a*c*e", "abcde"))
	assert.False(t, globLabel("a*c", "ab"))
	assert.True(t, globLabel("a*b*a", "aba"))
	assert.False(t, globLabel("a*b*a", "ab"))
	assert.True(t, globLabel("abc", "abc"))
}

// Scenario: *.example.com has two dots, example.com one, so only the
// one-label-deeper name is removed.
func TestReduceDomains_WildcardKeepsParent(t *testing.T) {
	kept, removed := ReduceDomains([]model.DomainRule{
		dr("*.example.com"),
		plain("a.example.com"),
		plain("example.com"),
	})

	assert.Equal(t, []string{"*.example.com", "example.com"}, domainStrings(kept))
	require.Len(t, removed, 1)
	assert.Equal(t, model.Removal{
		Entry:     "a.example.com",
		Family:    model.FamilyDomain,
		Reason:    model.ReasonCovered,
		CoveredBy: "*.example.com",
	}, removed[0])
}

func TestReduceDomains_SuffixSwallowsSubtree(t *testing.T) {
	kept, removed := ReduceDomains([]model.DomainRule{
		plain("www.google.com"),
		dr("+.mail.google.com"),
		dr("*.google.com"),
		dr(".google.com"),
		dr("+.google.com"),
		dr("+.example.org"),
	})

	assert.Equal(t, []string{"+.example.org", "+.google.com"}, domainStrings(kept))
	assert.Len(t, removed, 4)
	for _, r := range removed {
		assert.Equal(t, "+.google.com", r.CoveredBy, r.Entry)
	}
}

func TestReduceDomains_DuplicatesAndOrder(t *testing.T) {
	kept, removed := ReduceDomains([]model.DomainRule{
		plain("b.com"),
		dr(".x.org"),
		dr("*.y.net"),
		dr("+.z.io"),
		dr("+.a.b.c.io"),
		plain("b.com"),
	})

	assert.Equal(t, []string{"+.z.io", "+.a.b.c.io", "*.y.net", ".x.org", "b.com"}, domainStrings(kept))
	require.Len(t, removed, 1)
	assert.Equal(t, model.ReasonDuplicate, removed[0].Reason)
	assert.Equal(t, "b.com", removed[0].Entry)
}

func TestReduceDomains_WildcardBeatsLeadingDot(t *testing.T) {
	for _, in := range [][]model.DomainRule{
		{dr(".example.com"), dr("*.example.com")},
		{dr("*.example.com"), dr(".example.com")},
	} {
		kept, removed := ReduceDomains(in)

		assert.Equal(t, []string{"*.example.com"}, domainStrings(kept))
		require.Len(t, removed, 1)
		assert.Equal(t, model.Removal{
			Entry:     ".example.com",
			Family:    model.FamilyDomain,
			Reason:    model.ReasonCovered,
			CoveredBy: "*.example.com",
		}, removed[0])
	}

	kept, _ := ReduceDomains([]model.DomainRule{dr(".a*.com"), dr("*.a*.com")})
	assert.Equal(t, []string{"*.a*.com"}, domainStrings(kept))
}

func TestReduceDomains_Empty(t *testing.T) {
	kept, removed := ReduceDomains(nil)
	assert.Empty(t, kept)
	assert.Empty(t, removed)
}

// reducePairwise is the O(n^2) reference: every ordered pair is compared
// and, on mutual coverage, the later index loses.
func reducePairwise(entries []model.DomainRule) []model.DomainRule {
	uniq, _ := dedupDomains(entries)
	ordered := priorityOrder(uniq)

	gone := make([]bool, len(ordered))
	for i := range ordered {
		for j := range ordered {
			if i == j {
				continue
			}
			if Covers(ordered[i], ordered[j]) && !(Covers(ordered[j], ordered[i]) && j < i) {
				gone[j] = true
			}
		}
	}

	var kept []model.DomainRule
	for i, d := range ordered {
		if !gone[i] {
			kept = append(kept, d)
		}
	}
	sortDomainOutput(kept)
	return kept
}

func randomDomains(r *rand.Rand, n int) []model.DomainRule {
	labels := []string{"a", "b", "c", "x", "a*", "*b"}
	tlds := []string{"com", "net"}
	markers := []string{"", "+.", "*.", "."}

	out := make([]model.DomainRule, 0, n)
	for len(out) < n {
		depth := 1 + r.Intn(3)
		parts := make([]string, 0, depth+1)
		for i := 0; i < depth; i++ {
			parts = append(parts, labels[r.Intn(len(labels))])
		}
		parts = append(parts, tlds[r.Intn(len(tlds))])
		marker := markers[r.Intn(len(markers))]
		text := marker + strings.Join(parts, ".")
		if marker == "" {
			text = "DOMAIN," + text
		}
		d, ok := ParseDomain(text)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

func TestReduceDomains_TrieMatchesPairwise(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		in := randomDomains(r, 1+r.Intn(40))

		got, _ := ReduceDomains(in)
		want := reducePairwise(in)
		require.Equal(t, domainStrings(want), domainStrings(got), "round %d input %v", round, domainStrings(in))
	}
}

func TestReduceDomains_NoCoveredEntrySurvives(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		in := randomDomains(r, 30)
		kept, removed := ReduceDomains(in)

		for i, a := range kept {
			for j, c := range kept {
				if i != j {
					require.False(t, Covers(a, c), "%s covers kept %s", a, c)
				}
			}
		}
		// Every input is either kept or has an audit record.
		accounted := make(map[string]bool)
		for _, d := range kept {
			accounted[d.String()] = true
		}
		for _, rm := range removed {
			accounted[rm.Entry] = true
		}
		for _, d := range in {
			require.True(t, accounted[d.String()], d.String())
		}
	}
}
