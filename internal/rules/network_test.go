package rules

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

func nets(ss ...string) []model.NetworkRule {
	out := make([]model.NetworkRule, 0, len(ss))
	for _, s := range ss {
		p, ok := ParseNetwork(s)
		if !ok {
			panic("invalid network in test: " + s)
		}
		out = append(out, model.NetworkRule{Prefix: p})
	}
	return out
}

func netStrings(ns []model.NetworkRule) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.String())
	}
	return out
}

func TestReduceNetworks_SubsumedHostRoute(t *testing.T) {
	kept, removed := ReduceNetworks(nets("10.0.0.0/24", "10.0.0.5/32", "10.0.1.0/24"), NetworkOptions{})

	assert.Equal(t, []string{"10.0.0.0/24", "10.0.1.0/24"}, netStrings(kept))
	require.Len(t, removed, 1)
	assert.Equal(t, model.Removal{
		Entry:     "10.0.0.5/32",
		Family:    model.FamilyNetwork,
		Reason:    model.ReasonSubsumed,
		CoveredBy: "10.0.0.0/24",
	}, removed[0])
}

func TestReduceNetworks_CollapseMergesNeighbours(t *testing.T) {
	kept, removed := ReduceNetworks(nets("10.0.0.0/24", "10.0.0.5/32", "10.0.1.0/24"), NetworkOptions{Collapse: true})

	assert.Equal(t, []string{"10.0.0.0/23"}, netStrings(kept))
	require.Len(t, removed, 3)
	assert.Equal(t, model.ReasonSubsumed, removed[0].Reason)
	assert.Equal(t, model.ReasonMerged, removed[1].Reason)
	assert.Equal(t, "10.0.0.0/23", removed[1].CoveredBy)
	assert.Equal(t, model.ReasonMerged, removed[2].Reason)
	assert.Equal(t, "10.0.0.0/23", removed[2].CoveredBy)
}

func TestReduceNetworks_IPv4FirstAscending(t *testing.T) {
	in := nets("2001:db8::/32", "1.1.1.0/24", "2001:db8:1::/48", "1.0.0.0/24", "::1", "1.0.0.0/24")
	kept, removed := ReduceNetworks(in, NetworkOptions{Collapse: true})

	assert.Equal(t, []string{"1.0.0.0/24", "1.1.1.0/24", "::1/128", "2001:db8::/32"}, netStrings(kept))
	require.Len(t, removed, 2)
	assert.Equal(t, model.ReasonDuplicate, removed[0].Reason)
	assert.Equal(t, "1.0.0.0/24", removed[0].Entry)
	assert.Equal(t, model.ReasonSubsumed, removed[1].Reason)
	assert.Equal(t, "2001:db8:1::/48", removed[1].Entry)
}

func TestReduceNetworks_Empty(t *testing.T) {
	kept, removed := ReduceNetworks(nil, NetworkOptions{Collapse: true})
	assert.Empty(t, kept)
	assert.Empty(t, removed)
}

func ipSet(t *testing.T, ns []model.NetworkRule) *netipx.IPSet {
	t.Helper()
	var b netipx.IPSetBuilder
	for _, n := range ns {
		b.AddPrefix(n.Prefix)
	}
	s, err := b.IPSet()
	require.NoError(t, err)
	return s
}

func randomNetworks(r *rand.Rand, n int) []model.NetworkRule {
	out := make([]model.NetworkRule, 0, n)
	for i := 0; i < n; i++ {
		if r.Intn(4) == 0 {
			var a [16]byte
			a[0], a[1] = 0x20, 0x01
			a[2] = byte(r.Intn(4))
			a[3] = byte(r.Intn(256))
			out = append(out, model.NetworkRule{Prefix: netip.PrefixFrom(netip.AddrFrom16(a), 16+r.Intn(24)).Masked()})
			continue
		}
		a := [4]byte{10, byte(r.Intn(4)), byte(r.Intn(256)), byte(r.Intn(256))}
		out = append(out, model.NetworkRule{Prefix: netip.PrefixFrom(netip.AddrFrom4(a), 14+r.Intn(19)).Masked()})
	}
	return out
}

func TestReduceNetworks_PreservesAddressUnion(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for round := 0; round < 100; round++ {
		in := randomNetworks(r, 1+r.Intn(50))
		for _, collapse := range []bool{false, true} {
			kept, _ := ReduceNetworks(in, NetworkOptions{Collapse: collapse})

			require.True(t, ipSet(t, in).Equal(ipSet(t, kept)), "round %d collapse=%v", round, collapse)
			for i, a := range kept {
				for j, b := range kept {
					if i != j {
						require.False(t, a.Prefix.Bits() <= b.Prefix.Bits() && a.Prefix.Contains(b.Prefix.Addr()),
							"%s subsumes %s", a, b)
					}
				}
				if i > 0 {
					prev := kept[i-1]
					if prev.Version() == a.Version() {
						require.Negative(t, comparePrefix(prev.Prefix, a.Prefix))
					} else {
						require.Equal(t, 4, prev.Version())
					}
				}
			}
		}
	}
}
