// Package doctree holds the chunk node model and the hierarchy builder that
// owns every node's depth and ancestor chain.
//
// Authority over structure is the parent pointer. Depth, ancestors and the
// children index are derived views recomputed by BuildHierarchy and
// PopulateChildren; nothing else writes them.
package doctree

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Capability is one of the four closed node variants.
type Capability string

const (
	CapStructural Capability = "structural"
	CapContent    Capability = "content"
	CapVisual     Capability = "visual"
	CapTabular    Capability = "tabular"
)

// Common node kinds. Headings use HeadingKind(level).
const (
	KindParagraph = "Paragraph"
	KindListItem  = "ListItem"
	KindCodeBlock = "CodeBlock"
	KindFormula   = "Formula"
	KindTable     = "Table"
	KindImage     = "Image"
	KindPage      = "Page"
	KindSheet     = "Sheet"
	KindSection   = "Section"
)

// HeadingKind returns the discriminator for a heading of the given level,
// clamped to 1..6.
func HeadingKind(level int) string {
	level = ClampLevel(level)
	return "Heading" + string(rune('0'+level))
}

// ClampLevel clamps a heading level into 1..6.
func ClampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// Body is the variant payload of a node. The set of implementations is
// closed: *Structural, *Content, *Visual and *Tabular.
type Body interface {
	Capability() Capability
	body()
}

// Structural organizes the document (headings, pages, sheets). Its direct
// children are never stored here; see PopulateChildren.
type Structural struct {
	Title string
	Level int // Heading level, 0 for pages/sheets/sections
}

// Content is leaf text: paragraphs, list items, code, formulas.
type Content struct {
	Text          string
	FormattedText string // Source markup, if the adapter kept it
}

// Visual is non-text media referenced by content address.
type Visual struct {
	Ref         string // "sha256:<hex>"
	MediaType   string
	Description string
}

// Tabular is content with row/column shape and a serialized rendering in
// Content.Text.
type Tabular struct {
	Content
	Headers []string
	Rows    [][]string
}

func (*Structural) Capability() Capability { return CapStructural }
func (*Content) Capability() Capability    { return CapContent }
func (*Visual) Capability() Capability     { return CapVisual }
func (*Tabular) Capability() Capability    { return CapTabular }

func (*Structural) body() {}
func (*Content) body()    {}
func (*Visual) body()     {}
func (*Tabular) body()    {}

// RowCount returns the number of data rows.
func (t *Tabular) RowCount() int { return len(t.Rows) }

// ColumnCount returns the widest of the header row and the data rows.
func (t *Tabular) ColumnCount() int {
	n := len(t.Headers)
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Metadata describes where a node came from and how it was detected.
type Metadata struct {
	Source          string            `json:"source,omitempty"`
	Format          string            `json:"format,omitempty"`
	Page            int               `json:"page,omitempty"`
	HeadingLevel    int               `json:"heading_level,omitempty"`
	DetectionMethod string            `json:"detection_method,omitempty"`
	Confidence      float64           `json:"confidence,omitempty"`
	Language        string            `json:"language,omitempty"`
	Fenced          bool              `json:"fenced,omitempty"`
	ListMarker      string            `json:"list_marker,omitempty"`
	ListNesting     int               `json:"list_nesting,omitempty"`
	SplitIndex      int               `json:"split_index,omitempty"`
	SplitFrom       string            `json:"split_from,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Node is the universal chunk unit.
type Node struct {
	ID       string
	ParentID string // Empty for roots
	Sequence int    // Zero-based total document order
	Kind     string
	Body     Body
	Meta     Metadata

	depth     int
	ancestors []string
	quality   Quality
	measured  bool
}

// New creates a node of the given kind. An empty id is replaced by a fresh
// UUID.
func New(id, kind string, body Body) *Node {
	if id == "" {
		id = uuid.NewString()
	}
	return &Node{ID: id, Kind: kind, Body: body}
}

// NewHeading creates a structural heading node.
func NewHeading(level int, title string) *Node {
	level = ClampLevel(level)
	n := New("", HeadingKind(level), &Structural{Title: title, Level: level})
	n.Meta.HeadingLevel = level
	return n
}

// NewContent creates a content node of the given kind.
func NewContent(kind, text string) *Node {
	return New("", kind, &Content{Text: text})
}

// Depth is zero for roots. Set only by BuildHierarchy.
func (n *Node) Depth() int { return n.depth }

// AncestorIDs lists ancestor ids from the root down to the immediate parent.
func (n *Node) AncestorIDs() []string {
	out := make([]string, len(n.ancestors))
	copy(out, n.ancestors)
	return out
}

// IsRoot reports whether the node has no parent reference.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// Capability returns the variant of the node body.
func (n *Node) Capability() Capability {
	if n.Body == nil {
		return CapContent
	}
	return n.Body.Capability()
}

// Text returns the text the node contributes for counting and splitting.
func (n *Node) Text() string {
	switch b := n.Body.(type) {
	case *Structural:
		return b.Title
	case *Content:
		return b.Text
	case *Tabular:
		return b.Text
	case *Visual:
		return b.Description
	}
	return ""
}

// Splittable reports whether the oversize splitter may replace this node.
func (n *Node) Splittable() bool {
	switch n.Body.(type) {
	case *Content, *Tabular:
		return true
	}
	return false
}

// Derive returns a sibling carrying the given text in place of n's. The
// sibling inherits parent, depth, ancestors, kind and metadata and gets a new
// id. Quality is left unmeasured.
func (n *Node) Derive(text string) *Node {
	d := &Node{
		ID:        uuid.NewString(),
		ParentID:  n.ParentID,
		Sequence:  n.Sequence,
		Kind:      n.Kind,
		Meta:      n.Meta,
		depth:     n.depth,
		ancestors: append([]string(nil), n.ancestors...),
	}
	if n.Meta.Extra != nil {
		d.Meta.Extra = make(map[string]string, len(n.Meta.Extra))
		for k, v := range n.Meta.Extra {
			d.Meta.Extra[k] = v
		}
	}
	switch b := n.Body.(type) {
	case *Content:
		d.Body = &Content{Text: text}
	case *Tabular:
		d.Body = &Tabular{Content: Content{Text: text}, Headers: append([]string(nil), b.Headers...)}
	default:
		d.Body = &Content{Text: text}
	}
	return d
}

type nodeJSON struct {
	ID          string     `json:"id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Sequence    int        `json:"sequence"`
	Depth       int        `json:"depth"`
	AncestorIDs []string   `json:"ancestor_ids"`
	Kind        string     `json:"kind"`
	Capability  Capability `json:"capability"`
	Title       string     `json:"title,omitempty"`
	Level       int        `json:"level,omitempty"`
	Text        string     `json:"text,omitempty"`
	Formatted   string     `json:"formatted_text,omitempty"`
	Ref         string     `json:"ref,omitempty"`
	MediaType   string     `json:"media_type,omitempty"`
	Headers     []string   `json:"headers,omitempty"`
	Rows        [][]string `json:"rows,omitempty"`
	Quality     Quality    `json:"quality"`
	Metadata    Metadata   `json:"metadata"`
}

// MarshalJSON renders the node as a flat record.
func (n *Node) MarshalJSON() ([]byte, error) {
	v := nodeJSON{
		ID:          n.ID,
		ParentID:    n.ParentID,
		Sequence:    n.Sequence,
		Depth:       n.depth,
		AncestorIDs: n.AncestorIDs(),
		Kind:        n.Kind,
		Capability:  n.Capability(),
		Quality:     n.quality,
		Metadata:    n.Meta,
	}
	switch b := n.Body.(type) {
	case *Structural:
		v.Title, v.Level = b.Title, b.Level
	case *Content:
		v.Text, v.Formatted = b.Text, b.FormattedText
	case *Tabular:
		v.Text, v.Headers, v.Rows = b.Text, b.Headers, b.Rows
	case *Visual:
		v.Ref, v.MediaType, v.Text = b.Ref, b.MediaType, b.Description
	}
	return json.Marshal(v)
}
