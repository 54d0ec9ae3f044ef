// Package validate checks a finished node collection for structural defects.
// It never mutates the collection; the report is advisory.
package validate

import (
	"fmt"
	"slices"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// Severity grades an issue.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IssueType names the check that failed.
type IssueType string

const (
	IssueOrphan           IssueType = "orphan"
	IssueCycle            IssueType = "cycle"
	IssueDepthMismatch    IssueType = "depth_mismatch"
	IssueAncestorMismatch IssueType = "ancestor_mismatch"
	IssueDuplicateID      IssueType = "duplicate_id"
	IssueSequenceOrder    IssueType = "sequence_order"
)

// MaxHops bounds the parent walk. A longer chain is reported as a cycle.
const MaxHops = 1000

// Issue is one finding against one node.
type Issue struct {
	NodeID   string    `json:"node_id"`
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Report is the result of a validation pass.
type Report struct {
	NodesChecked int     `json:"nodes_checked"`
	Issues       []Issue `json:"issues"`
}

// Valid reports whether no issue was found.
func (r Report) Valid() bool {
	return len(r.Issues) == 0
}

// HasErrors reports whether any issue is an error or critical.
func (r Report) HasErrors() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError || is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CountBySeverity tallies issues per severity.
func (r Report) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int)
	for _, is := range r.Issues {
		out[is.Severity]++
	}
	return out
}

// ByType returns the issues of one type, in report order.
func (r Report) ByType(t IssueType) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Type == t {
			out = append(out, is)
		}
	}
	return out
}

func (r *Report) add(id string, t IssueType, sev Severity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		NodeID:   id,
		Type:     t,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Validate walks nodes in collection order and reports orphans, cycles,
// duplicate ids, out-of-order sequence numbers, and nodes whose stored depth
// or ancestor chain disagrees with their parent pointers.
func Validate(nodes []*doctree.Node) Report {
	rep := Report{NodesChecked: len(nodes)}

	index := make(map[string]*doctree.Node, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			rep.add(n.ID, IssueDuplicateID, SeverityError, "id %q reused at position %d", n.ID, i)
			continue
		}
		index[n.ID] = n
	}

	for i, n := range nodes {
		if i > 0 && n.Sequence <= nodes[i-1].Sequence {
			rep.add(n.ID, IssueSequenceOrder, SeverityWarning,
				"sequence %d does not follow %d", n.Sequence, nodes[i-1].Sequence)
		}

		if n.ParentID != "" {
			if _, ok := index[n.ParentID]; !ok {
				rep.add(n.ID, IssueOrphan, SeverityError, "parent %q not in collection", n.ParentID)
			}
		}

		chain, cyclic := walk(n, index)
		if cyclic {
			rep.add(n.ID, IssueCycle, SeverityCritical, "parent chain revisits a node or exceeds %d hops", MaxHops)
			continue
		}

		if depth := len(chain); depth != n.Depth() {
			rep.add(n.ID, IssueDepthMismatch, SeverityWarning, "stored depth %d, actual %d", n.Depth(), depth)
		}
		if !slices.Equal(chain, n.AncestorIDs()) {
			rep.add(n.ID, IssueAncestorMismatch, SeverityWarning,
				"stored %d ancestors do not match actual chain of %d", len(n.AncestorIDs()), len(chain))
		}
	}
	return rep
}

// walk follows parent pointers from n and returns the ancestor ids from
// root to immediate parent. A parent missing from the index ends the walk
// as a root would.
func walk(n *doctree.Node, index map[string]*doctree.Node) (ancestors []string, cyclic bool) {
	visited := map[string]bool{n.ID: true}
	cur := n
	for hops := 0; cur.ParentID != ""; hops++ {
		if hops >= MaxHops {
			return nil, true
		}
		p, ok := index[cur.ParentID]
		if !ok {
			break
		}
		if visited[p.ID] {
			return nil, true
		}
		visited[p.ID] = true
		ancestors = append(ancestors, p.ID)
		cur = p
	}
	slices.Reverse(ancestors)
	return ancestors, false
}
