package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// sample builds: h1 > (p1, h2 > p2), h1b > p3
func sample() []*Node {
	h1 := New("h1", HeadingKind(1), &Structural{Title: "Intro", Level: 1})
	p1 := New("p1", KindParagraph, &Content{Text: "Body."})
	p1.ParentID = "h1"
	h2 := New("h2", HeadingKind(2), &Structural{Title: "Background", Level: 2})
	h2.ParentID = "h1"
	p2 := New("p2", KindParagraph, &Content{Text: "More."})
	p2.ParentID = "h2"
	h1b := New("h1b", HeadingKind(1), &Structural{Title: "Next", Level: 1})
	p3 := New("p3", KindParagraph, &Content{Text: "Tail."})
	p3.ParentID = "h1b"
	nodes := []*Node{h1, p1, h2, p2, h1b, p3}
	Resequence(nodes)
	return nodes
}

func TestNew_GeneratesID(t *testing.T) {
	n := New("", KindParagraph, &Content{Text: "x"})
	if n.ID == "" {
		t.Fatal("expected generated id")
	}
	m := New("", KindParagraph, &Content{Text: "x"})
	if n.ID == m.ID {
		t.Errorf("expected distinct ids, got %q twice", n.ID)
	}
}

func TestHeadingKind_Clamps(t *testing.T) {
	if got := HeadingKind(0); got != "Heading1" {
		t.Errorf("expected Heading1, got %q", got)
	}
	if got := HeadingKind(9); got != "Heading6" {
		t.Errorf("expected Heading6, got %q", got)
	}
	if got := HeadingKind(3); got != "Heading3" {
		t.Errorf("expected Heading3, got %q", got)
	}
}

func TestBuildHierarchy_DepthAndAncestors(t *testing.T) {
	nodes := sample()
	BuildHierarchy(nodes)
	index := Index(nodes)

	for _, n := range nodes {
		if n.ParentID == "" {
			if n.Depth() != 0 {
				t.Errorf("%s: expected root depth 0, got %d", n.ID, n.Depth())
			}
			if len(n.AncestorIDs()) != 0 {
				t.Errorf("%s: expected no ancestors, got %v", n.ID, n.AncestorIDs())
			}
			continue
		}
		p := index[n.ParentID]
		if n.Depth() != p.Depth()+1 {
			t.Errorf("%s: expected depth %d, got %d", n.ID, p.Depth()+1, n.Depth())
		}
		want := append(p.AncestorIDs(), p.ID)
		got := n.AncestorIDs()
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s: expected ancestors %v, got %v", n.ID, want, got)
		}
	}

	if got := index["p2"].AncestorIDs(); strings.Join(got, ",") != "h1,h2" {
		t.Errorf("expected p2 ancestors [h1 h2], got %v", got)
	}
}

func TestBuildHierarchy_InputOrderIndependent(t *testing.T) {
	nodes := sample()
	reversed := make([]*Node, len(nodes))
	for i, n := range nodes {
		reversed[len(nodes)-1-i] = n
	}
	BuildHierarchy(reversed)
	for _, n := range nodes {
		if n.ID == "p2" && n.Depth() != 2 {
			t.Errorf("expected p2 depth 2, got %d", n.Depth())
		}
	}
}

func TestBuildHierarchy_DanglingParentTreatedAsRoot(t *testing.T) {
	a := New("a", KindParagraph, &Content{Text: "x"})
	a.ParentID = "missing"
	b := New("b", KindParagraph, &Content{Text: "y"})
	b.ParentID = "a"
	b.Sequence = 1
	BuildHierarchy([]*Node{a, b})

	if a.Depth() != 0 || len(a.AncestorIDs()) != 0 {
		t.Errorf("expected dangling node at depth 0 without ancestors, got %d %v", a.Depth(), a.AncestorIDs())
	}
	if b.Depth() != 1 {
		t.Errorf("expected child of dangling node at depth 1, got %d", b.Depth())
	}
}

func TestBuildHierarchy_CycleTerminates(t *testing.T) {
	a := New("a", KindSection, &Structural{})
	a.ParentID = "b"
	b := New("b", KindSection, &Structural{})
	b.ParentID = "a"
	b.Sequence = 1
	BuildHierarchy([]*Node{a, b})

	if a.Depth()+b.Depth() != 1 {
		t.Errorf("expected one cycle member at depth 0 and one at 1, got %d and %d", a.Depth(), b.Depth())
	}
}

func TestBuildHierarchy_DeepChain(t *testing.T) {
	const n = 5000
	nodes := make([]*Node, n)
	for i := range nodes {
		nodes[i] = New("", KindSection, &Structural{})
		nodes[i].Sequence = i
		if i > 0 {
			nodes[i].ParentID = nodes[i-1].ID
		}
	}
	BuildHierarchy(nodes)
	if got := nodes[n-1].Depth(); got != n-1 {
		t.Errorf("expected depth %d, got %d", n-1, got)
	}
	if got := len(nodes[n-1].AncestorIDs()); got != n-1 {
		t.Errorf("expected %d ancestors, got %d", n-1, got)
	}
}

func TestPopulateChildren(t *testing.T) {
	nodes := sample()
	idx := PopulateChildren(nodes)

	if got := strings.Join(idx.ChildIDs("h1"), ","); got != "p1,h2" {
		t.Errorf("expected h1 children [p1 h2], got %s", got)
	}
	if got := idx.ChildIDs("p1"); len(got) != 0 {
		t.Errorf("expected content node to have no index entry, got %v", got)
	}
	if idx.Len() != 3 {
		t.Errorf("expected 3 structural entries, got %d", idx.Len())
	}
}

func TestRootsAndLeaves(t *testing.T) {
	nodes := sample()
	var roots, leaves []string
	for _, n := range Roots(nodes) {
		roots = append(roots, n.ID)
	}
	for _, n := range Leaves(nodes) {
		leaves = append(leaves, n.ID)
	}
	if strings.Join(roots, ",") != "h1,h1b" {
		t.Errorf("expected roots [h1 h1b], got %v", roots)
	}
	if strings.Join(leaves, ",") != "p1,p2,p3" {
		t.Errorf("expected leaves [p1 p2 p3], got %v", leaves)
	}
}

func TestBuildTree_FlattenRoundTrip(t *testing.T) {
	nodes := sample()
	roots := BuildTree(nodes)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	flat := FlattenTree(roots)
	if len(flat) != len(nodes) {
		t.Fatalf("expected %d nodes, got %d", len(nodes), len(flat))
	}
	for i := range nodes {
		if flat[i] != nodes[i] {
			t.Errorf("position %d: expected %s, got %s", i, nodes[i].ID, flat[i].ID)
		}
	}
}

func TestWalk_DepthAndSkip(t *testing.T) {
	roots := BuildTree(sample())

	var visited []string
	Walk(roots, func(tn *TreeNode, depth int) bool {
		visited = append(visited, fmt.Sprintf("%s@%d", tn.Node.ID, depth))
		return tn.Node.ID != "h2"
	})
	expected := "h1@0 p1@1 h2@1 h1b@0 p3@1"
	if got := strings.Join(visited, " "); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestBuildTree_CycleStillFlattensCompletely(t *testing.T) {
	a := New("a", KindSection, &Structural{})
	a.ParentID = "b"
	b := New("b", KindSection, &Structural{})
	b.ParentID = "a"
	b.Sequence = 1
	c := New("c", KindParagraph, &Content{Text: "x"})
	c.Sequence = 2

	flat := FlattenTree(BuildTree([]*Node{a, b, c}))
	if len(flat) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(flat))
	}
	for i, n := range flat {
		if n.Sequence != i {
			t.Errorf("position %d: expected sequence %d, got %d", i, i, n.Sequence)
		}
	}
}

func TestBreadcrumb(t *testing.T) {
	nodes := sample()
	BuildHierarchy(nodes)
	index := Index(nodes)
	bc := Breadcrumb(index["p2"], index)
	if strings.Join(bc, " > ") != "Intro > Background" {
		t.Errorf("expected breadcrumb Intro > Background, got %v", bc)
	}
}

func TestMeasure_OnceOnly(t *testing.T) {
	n := NewContent(KindParagraph, "Hello there world.")
	n.Measure(wordCounter{})
	q := n.Quality()
	if q.TokenCount != 3 || q.WordCount != 3 || q.CharCount != 18 {
		t.Errorf("unexpected quality %+v", q)
	}
	if q.Completeness != 1 {
		t.Errorf("expected completeness 1, got %v", q.Completeness)
	}

	n.Body = &Content{Text: "changed text that is longer"}
	n.Measure(wordCounter{})
	if n.Quality().TokenCount != 3 {
		t.Errorf("expected quality to stay immutable, got %+v", n.Quality())
	}
}

func TestMeasureSplit_Flags(t *testing.T) {
	n := NewContent(KindParagraph, "lowercase fragment without end")
	n.MeasureSplit(7, true)
	q := n.Quality()
	if !q.WasSplit || !q.Truncated {
		t.Errorf("expected split and truncated flags, got %+v", q)
	}
	if q.TokenCount != 7 {
		t.Errorf("expected window token count 7, got %d", q.TokenCount)
	}
	if q.Completeness >= 0.5 {
		t.Errorf("expected low completeness for truncated fragment, got %v", q.Completeness)
	}
}

func TestDerive_InheritsPlacement(t *testing.T) {
	nodes := sample()
	BuildHierarchy(nodes)
	p2 := Index(nodes)["p2"]
	d := p2.Derive("piece")
	if d.ID == p2.ID {
		t.Error("expected new id for derived node")
	}
	if d.ParentID != "h2" || d.Depth() != 2 || strings.Join(d.AncestorIDs(), ",") != "h1,h2" {
		t.Errorf("expected derived node to inherit placement, got parent=%s depth=%d anc=%v",
			d.ParentID, d.Depth(), d.AncestorIDs())
	}
	if d.Text() != "piece" {
		t.Errorf("expected text %q, got %q", "piece", d.Text())
	}
}

func TestNode_MarshalJSON(t *testing.T) {
	nodes := sample()
	BuildHierarchy(nodes)
	raw, err := json.Marshal(nodes[3])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["id"] != "p2" || got["parent_id"] != "h2" || got["depth"].(float64) != 2 {
		t.Errorf("unexpected json %s", raw)
	}
	if got["capability"] != string(CapContent) {
		t.Errorf("expected capability content, got %v", got["capability"])
	}
}

func TestTabular_Shape(t *testing.T) {
	tb := &Tabular{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "2", "3"}, {"4"}}}
	if tb.RowCount() != 2 {
		t.Errorf("expected 2 rows, got %d", tb.RowCount())
	}
	if tb.ColumnCount() != 3 {
		t.Errorf("expected 3 columns, got %d", tb.ColumnCount())
	}
	if tb.Capability() != CapTabular {
		t.Errorf("expected tabular capability, got %s", tb.Capability())
	}
}
