package rules

import (
	"cmp"
	"net/netip"
	"slices"
	"sort"

	"go4.org/netipx"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

type NetworkOptions struct {
	// Collapse merges adjacent/overlapping networks into the minimal
	// covering set after subsumed entries are gone.
	Collapse bool
}

// ReduceNetworks drops duplicates and subsumed networks, optionally
// collapses the rest, and returns IPv4 before IPv6 in ascending address
// order.
func ReduceNetworks(entries []model.NetworkRule, opt NetworkOptions) ([]model.NetworkRule, []model.Removal) {
	var v4, v6 []model.NetworkRule
	var removed []model.Removal

	seen := make(map[netip.Prefix]struct{}, len(entries))
	for _, e := range entries {
		p := e.Prefix.Masked()
		if _, ok := seen[p]; ok {
			removed = append(removed, model.Removal{
				Entry:  p.String(),
				Family: model.FamilyNetwork,
				Reason: model.ReasonDuplicate,
			})
			continue
		}
		seen[p] = struct{}{}
		if p.Addr().Is4() {
			v4 = append(v4, model.NetworkRule{Prefix: p})
		} else {
			v6 = append(v6, model.NetworkRule{Prefix: p})
		}
	}

	k4, r4 := reduceVersion(v4, opt)
	k6, r6 := reduceVersion(v6, opt)
	removed = append(removed, r4...)
	removed = append(removed, r6...)
	return append(k4, k6...), removed
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return cmp.Compare(a.Bits(), b.Bits())
}

// reduceVersion expects one IP version, masked and unique.
func reduceVersion(nets []model.NetworkRule, opt NetworkOptions) ([]model.NetworkRule, []model.Removal) {
	if len(nets) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(nets)
	slices.SortFunc(sorted, func(a, b model.NetworkRule) int { return comparePrefix(a.Prefix, b.Prefix) })

	// Prefixes nest or are disjoint, so after sorting by (addr, bits) only
	// the last kept prefix can contain the next one.
	var removed []model.Removal
	kept := make([]model.NetworkRule, 0, len(sorted))
	for _, n := range sorted {
		if len(kept) > 0 {
			last := kept[len(kept)-1].Prefix
			if last.Bits() <= n.Prefix.Bits() && last.Contains(n.Prefix.Addr()) {
				removed = append(removed, model.Removal{
					Entry:     n.String(),
					Family:    model.FamilyNetwork,
					Reason:    model.ReasonSubsumed,
					CoveredBy: last.String(),
				})
				continue
			}
		}
		kept = append(kept, n)
	}
	if !opt.Collapse || len(kept) < 2 {
		return kept, removed
	}

	var b netipx.IPSetBuilder
	for _, n := range kept {
		b.AddPrefix(n.Prefix)
	}
	set, err := b.IPSet()
	if err != nil {
		// Only reachable with invalid prefixes, which ParseNetwork never yields.
		return kept, removed
	}
	merged := set.Prefixes()

	present := make(map[netip.Prefix]struct{}, len(merged))
	out := make([]model.NetworkRule, 0, len(merged))
	for _, p := range merged {
		present[p] = struct{}{}
		out = append(out, model.NetworkRule{Prefix: p})
	}
	for _, n := range kept {
		if _, ok := present[n.Prefix]; ok {
			continue
		}
		removed = append(removed, model.Removal{
			Entry:     n.String(),
			Family:    model.FamilyNetwork,
			Reason:    model.ReasonMerged,
			CoveredBy: containing(merged, n.Prefix.Addr()).String(),
		})
	}
	return out, removed
}

// containing finds the prefix of a sorted, disjoint list that holds addr.
func containing(sorted []netip.Prefix, addr netip.Addr) netip.Prefix {
	i := sort.Search(len(sorted), func(i int) bool { return addr.Less(sorted[i].Addr()) }) - 1
	if i >= 0 && sorted[i].Contains(addr) {
		return sorted[i]
	}
	return netip.Prefix{}
}
