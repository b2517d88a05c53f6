package rules

import (
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// labelNode is one level of the reversed-label trie: the root holds TLDs,
// its children second-level labels, and so on.
type labelNode struct {
	children map[string]*labelNode
	suffix   int // index of the "+." entry ending here, -1 if none
	dot      int // index of the "." entry ending here, -1 if none
}

func newLabelNode() *labelNode { return &labelNode{suffix: -1, dot: -1} }

// domainIndex answers "is entry i covered by another entry" in O(labels)
// for everything except wildcards whose parent contains '*', which fall
// back to a linear scan.
type domainIndex struct {
	entries []model.DomainRule
	root    *labelNode
	wild    map[string]int // "*.p" entries keyed by p
	globs   []int          // "*.p" entries where p has '*'
}

func newDomainIndex(entries []model.DomainRule) *domainIndex {
	x := &domainIndex{
		entries: entries,
		root:    newLabelNode(),
		wild:    make(map[string]int),
	}
	for i, d := range entries {
		switch d.Form {
		case model.FormSuffix:
			if n := x.insert(d.Pattern); n.suffix < 0 {
				n.suffix = i
			}
		case model.FormLeadingDot:
			if n := x.insert(d.Pattern); n.dot < 0 {
				n.dot = i
			}
		case model.FormWildcard:
			if strings.Contains(d.Pattern, "*") {
				x.globs = append(x.globs, i)
			} else if _, ok := x.wild[d.Pattern]; !ok {
				x.wild[d.Pattern] = i
			}
		}
	}
	return x
}

func (x *domainIndex) insert(pattern string) *labelNode {
	n := x.root
	labels := strings.Split(pattern, ".")
	for k := len(labels) - 1; k >= 0; k-- {
		child := n.children[labels[k]]
		if child == nil {
			child = newLabelNode()
			if n.children == nil {
				n.children = make(map[string]*labelNode)
			}
			n.children[labels[k]] = child
		}
		n = child
	}
	return n
}

// coveredBy returns the index of an entry covering entries[i].
func (x *domainIndex) coveredBy(i int) (int, bool) {
	c := x.entries[i]

	labels := strings.Split(c.Pattern, ".")
	n := x.root
	for k := len(labels) - 1; k >= 0; k-- {
		n = n.children[labels[k]]
		if n == nil {
			break
		}
		if n.suffix >= 0 && n.suffix != i {
			return n.suffix, true
		}
		// ".p" covers names strictly under p. It also covers "*.p", but
		// that pair is mutual and the earlier wildcard wins.
		if n.dot >= 0 && n.dot != i && (k > 0 || (c.Form == model.FormWildcard && n.dot < i)) {
			return n.dot, true
		}
	}

	switch c.Form {
	case model.FormLeadingDot:
		if j, ok := x.wild[c.Pattern]; ok && j < i {
			return j, true
		}
	case model.FormPlain, model.FormWildcard:
		if head, rest, ok := strings.Cut(c.String(), "."); ok && head != "" {
			if j, ok := x.wild[rest]; ok && j != i {
				return j, true
			}
		}
	default:
		return -1, false
	}
	for _, j := range x.globs {
		if j == i {
			continue
		}
		a := x.entries[j]
		if Covers(a, c) && !(Covers(c, a) && i < j) {
			return j, true
		}
	}
	return -1, false
}
