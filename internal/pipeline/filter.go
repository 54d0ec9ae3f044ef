package pipeline

import (
	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/dgallion1/docchunk/internal/validate"
)

// FilterHeadings drops headings whose detection confidence is below
// threshold and returns the remaining nodes as copies. Children of a
// dropped heading move up to its nearest kept ancestor. The input collection
// is left untouched.
func FilterHeadings(nodes []*doctree.Node, threshold float64) []*doctree.Node {
	if threshold <= 0 {
		return nodes
	}

	dropped := make(map[string]string) // id -> its parent id
	for _, n := range nodes {
		if n.Meta.HeadingLevel > 0 && n.Meta.Confidence < threshold {
			dropped[n.ID] = n.ParentID
		}
	}
	if len(dropped) == 0 {
		return nodes
	}

	out := make([]*doctree.Node, 0, len(nodes)-len(dropped))
	for _, n := range nodes {
		if _, gone := dropped[n.ID]; gone {
			continue
		}
		c := *n
		parent := c.ParentID
		// Bounded by the number of dropped headings so a cycle among them
		// cannot spin.
		for hops := 0; hops <= len(dropped); hops++ {
			up, gone := dropped[parent]
			if !gone {
				break
			}
			parent = up
		}
		if _, gone := dropped[parent]; gone {
			parent = ""
		}
		c.ParentID = parent
		out = append(out, &c)
	}
	doctree.BuildHierarchy(out)
	return out
}

// FilterResult applies FilterHeadings to res. When headings are dropped it
// returns a copy whose stats and validation report describe the kept nodes;
// split counts, counter and elapsed time carry over from the original run.
func FilterResult(res *Result, threshold float64) *Result {
	nodes := FilterHeadings(res.Nodes, threshold)
	if len(nodes) == len(res.Nodes) {
		return res
	}

	out := *res
	out.Nodes = nodes
	st := ComputeStats(nodes)
	st.SplitCount = res.Stats.SplitCount
	st.PiecesProduced = res.Stats.PiecesProduced
	st.Counter = res.Stats.Counter
	st.setElapsed(res.Stats.Elapsed)
	out.Stats = st
	if res.Report != nil {
		report := validate.Validate(nodes)
		out.Report = &report
	}
	return &out
}
