package doctree

import "sort"

// TreeNode is a materialized parent→children view over a node collection.
type TreeNode struct {
	Node     *Node
	Children []*TreeNode
}

// BuildTree materializes the collection as a forest ordered by sequence.
// Nodes with a dangling parent become roots, as does the earliest node left
// unreachable by a parent cycle, so every input node appears exactly once.
func BuildTree(nodes []*Node) []*TreeNode {
	ordered := sortedBySequence(nodes)
	index := indexByID(ordered)

	tn := make(map[*Node]*TreeNode, len(ordered))
	for _, n := range ordered {
		tn[n] = &TreeNode{Node: n}
	}

	parentOf := make(map[*TreeNode]*TreeNode, len(ordered))
	var roots []*TreeNode
	for _, n := range ordered {
		t := tn[n]
		p, ok := index[n.ParentID]
		if n.ParentID == "" || !ok || p == n {
			roots = append(roots, t)
			continue
		}
		pt := tn[p]
		pt.Children = append(pt.Children, t)
		parentOf[t] = pt
	}

	reached := make(map[*TreeNode]bool, len(ordered))
	var mark func(*TreeNode)
	mark = func(t *TreeNode) {
		if reached[t] {
			return
		}
		reached[t] = true
		for _, c := range t.Children {
			mark(c)
		}
	}
	for _, r := range roots {
		mark(r)
	}

	// Whatever is left hangs off a parent cycle. Promote the earliest such
	// node to a root, detach it from its parent, and repeat.
	for _, n := range ordered {
		t := tn[n]
		if reached[t] {
			continue
		}
		if p := parentOf[t]; p != nil {
			p.Children = removeChild(p.Children, t)
			delete(parentOf, t)
		}
		roots = append(roots, t)
		mark(t)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].Node.Sequence < roots[j].Node.Sequence
	})
	return roots
}

// FlattenTree collapses a forest back into a flat collection ordered by
// sequence number.
func FlattenTree(roots []*TreeNode) []*Node {
	var out []*Node
	seen := make(map[*TreeNode]bool)
	var walk func(*TreeNode)
	walk = func(t *TreeNode) {
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t.Node)
		for _, c := range t.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// Walk visits the forest depth-first. Returning false from fn skips the
// subtree below the visited node.
func Walk(roots []*TreeNode, fn func(t *TreeNode, depth int) bool) {
	var walk func(t *TreeNode, depth int)
	walk = func(t *TreeNode, depth int) {
		if !fn(t, depth) {
			return
		}
		for _, c := range t.Children {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
}

// Breadcrumb returns the titles of the structural ancestors of n, root first.
func Breadcrumb(n *Node, index map[string]*Node) []string {
	var out []string
	for _, id := range n.ancestors {
		a, ok := index[id]
		if !ok {
			continue
		}
		if s, ok := a.Body.(*Structural); ok && s.Title != "" {
			out = append(out, s.Title)
		}
	}
	return out
}

// Index returns the nodes keyed by id. The first node wins on duplicates.
func Index(nodes []*Node) map[string]*Node {
	return indexByID(nodes)
}

func removeChild(children []*TreeNode, t *TreeNode) []*TreeNode {
	for i, c := range children {
		if c == t {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}
