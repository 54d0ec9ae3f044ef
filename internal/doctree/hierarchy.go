package doctree

import (
	"sort"
)

// BuildHierarchy populates depth and ancestor ids on every node in place.
//
// A node whose parent id is missing from the collection, or whose parent
// chain loops back on itself, is treated as a root. The builder never fails:
// the validator is the authority on well-formedness.
func BuildHierarchy(nodes []*Node) {
	index := indexByID(nodes)
	resolved := make(map[*Node]bool, len(nodes))

	for _, n := range sortedBySequence(nodes) {
		if resolved[n] {
			continue
		}

		// Walk up until a resolved node, a root, a dangling parent, or a
		// node already on this walk.
		var chain []*Node
		onChain := make(map[*Node]bool)
		var anchor *Node
		cur := n
		for {
			if resolved[cur] {
				anchor = cur
				break
			}
			if onChain[cur] {
				break
			}
			onChain[cur] = true
			chain = append(chain, cur)
			if cur.ParentID == "" {
				break
			}
			p, ok := index[cur.ParentID]
			if !ok {
				break
			}
			cur = p
		}

		for i := len(chain) - 1; i >= 0; i-- {
			c := chain[i]
			var above *Node
			if i == len(chain)-1 {
				above = anchor
			} else {
				above = chain[i+1]
			}
			if above == nil {
				c.depth = 0
				c.ancestors = nil
			} else {
				c.depth = above.depth + 1
				c.ancestors = make([]string, 0, len(above.ancestors)+1)
				c.ancestors = append(c.ancestors, above.ancestors...)
				c.ancestors = append(c.ancestors, above.ID)
			}
			resolved[c] = true
		}
	}
}

// ChildIndex maps a structural node id to its direct children in sequence
// order. It is a derived view: rebuild it whenever the collection changes.
type ChildIndex struct {
	children map[string][]*Node
}

// PopulateChildren builds the children index for every structural node.
func PopulateChildren(nodes []*Node) ChildIndex {
	idx := ChildIndex{children: make(map[string][]*Node)}
	structural := make(map[string]bool)
	for _, n := range nodes {
		if n.Capability() == CapStructural {
			structural[n.ID] = true
			idx.children[n.ID] = nil
		}
	}
	for _, n := range sortedBySequence(nodes) {
		if n.ParentID != "" && n.ParentID != n.ID && structural[n.ParentID] {
			idx.children[n.ParentID] = append(idx.children[n.ParentID], n)
		}
	}
	return idx
}

// Children returns the direct children of the given node.
func (c ChildIndex) Children(id string) []*Node {
	return c.children[id]
}

// ChildIDs returns the ids of the direct children of the given node.
func (c ChildIndex) ChildIDs(id string) []string {
	kids := c.children[id]
	out := make([]string, len(kids))
	for i, k := range kids {
		out[i] = k.ID
	}
	return out
}

// Len returns the number of structural nodes in the index.
func (c ChildIndex) Len() int { return len(c.children) }

// Roots returns the nodes without a parent reference, in input order.
func Roots(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.ParentID == "" {
			out = append(out, n)
		}
	}
	return out
}

// Leaves returns the nodes that are no other node's parent, in input order.
func Leaves(nodes []*Node) []*Node {
	parents := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ParentID != "" && n.ParentID != n.ID {
			parents[n.ParentID] = true
		}
	}
	var out []*Node
	for _, n := range nodes {
		if !parents[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Resequence assigns dense sequence numbers in the current slice order.
func Resequence(nodes []*Node) {
	for i, n := range nodes {
		n.Sequence = i
	}
}

// Sequencer hands out sequence numbers for one document.
type Sequencer struct {
	next int
}

// Next returns the next sequence number.
func (s *Sequencer) Next() int {
	v := s.next
	s.next++
	return v
}

// Peek returns the number the next call to Next will return.
func (s *Sequencer) Peek() int { return s.next }

// Advance moves the counter forward to v when numbers up to v-1 were
// handed out by another producer. It never moves backwards.
func (s *Sequencer) Advance(v int) {
	if v > s.next {
		s.next = v
	}
}

func indexByID(nodes []*Node) map[string]*Node {
	index := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = n
		}
	}
	return index
}

func sortedBySequence(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}
