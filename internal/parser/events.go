package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/dgallion1/docchunk/internal/detect"
	"github.com/dgallion1/docchunk/internal/doctree"
)

// EventKind names a primitive produced by a format adapter.
type EventKind string

const (
	EventHeading   EventKind = "heading"
	EventListItem  EventKind = "list_item"
	EventCodeBlock EventKind = "code_block"
	EventParagraph EventKind = "paragraph"
	EventTable     EventKind = "table"
	EventImage     EventKind = "image"
)

// Event is one primitive in document order. Which fields apply depends on
// Kind.
type Event struct {
	Kind     EventKind  `json:"kind"`
	Level    int        `json:"level,omitempty"`
	Text     string     `json:"text,omitempty"`
	Marker   string     `json:"marker,omitempty"`
	Nesting  int        `json:"nesting,omitempty"`
	Language string     `json:"language,omitempty"`
	Fenced   bool       `json:"fenced,omitempty"`
	Headers  []string   `json:"headers,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	Ref      string     `json:"ref,omitempty"`
	Alt      string     `json:"alt,omitempty"`
	Data     []byte     `json:"data,omitempty"`
	Page     int        `json:"page,omitempty"`
}

// MethodMarkup is the detection method recorded on headings that came from
// explicit markup rather than inference.
const MethodMarkup = "markup"

type frame struct {
	level int
	id    string
}

// Assembler turns events into parent-linked nodes. Headings open a level
// stack exactly like the structural detector's; every other node hangs off
// the innermost open heading, or off the current container when none is
// open.
type Assembler struct {
	source string
	format string

	seq       doctree.Sequencer
	stack     []frame
	container string
	nodes     []*doctree.Node
}

// NewAssembler returns an assembler stamping source and format on every
// node it builds.
func NewAssembler(source, format string) *Assembler {
	return &Assembler{source: source, format: format}
}

// Assemble builds the node list for a complete event stream.
func Assemble(events []Event, source, format string) ([]*doctree.Node, error) {
	a := NewAssembler(source, format)
	for i, ev := range events {
		if err := a.Add(ev); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return a.Nodes(), nil
}

// Nodes returns the nodes built so far in sequence order.
func (a *Assembler) Nodes() []*doctree.Node {
	return a.nodes
}

// Open starts a top-level container (a page or a sheet). It closes every
// open heading; later nodes attach beneath the container.
func (a *Assembler) Open(kind, title string, page int) *doctree.Node {
	n := doctree.New("", kind, &doctree.Structural{Title: title})
	n.Meta.Page = page
	a.stack = nil
	a.container = ""
	a.place(n)
	a.container = n.ID
	return n
}

// Detect runs the structural detector over text with no markup and places
// the results under the current container.
func (a *Assembler) Detect(text string, page int) {
	a.stack = nil
	results, st := detect.DetectLines(detect.SplitLines(text), detect.NewState(detect.Options{
		ParentID:      a.container,
		StartSequence: a.seq.Peek(),
		Source:        a.source,
	}))
	for _, r := range results {
		r.Node.Meta.Format = a.format
		r.Node.Meta.Page = page
		a.nodes = append(a.nodes, r.Node)
	}
	a.seq.Advance(st.NextSequence)
}

// Add converts one event into a node.
func (a *Assembler) Add(ev Event) error {
	switch ev.Kind {
	case EventHeading:
		a.heading(ev)
	case EventListItem:
		n := doctree.NewContent(doctree.KindListItem, strings.TrimSpace(ev.Text))
		n.Meta.ListMarker = ev.Marker
		n.Meta.ListNesting = ev.Nesting
		a.content(n, ev)
	case EventCodeBlock:
		c := &doctree.Content{Text: ev.Text}
		if ev.Fenced {
			c.FormattedText = "```" + ev.Language + "\n" + ev.Text + "\n```"
		}
		n := doctree.New("", doctree.KindCodeBlock, c)
		n.Meta.Language = ev.Language
		n.Meta.Fenced = ev.Fenced
		a.content(n, ev)
	case EventParagraph:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return nil
		}
		a.content(doctree.NewContent(doctree.KindParagraph, text), ev)
	case EventTable:
		a.content(tableNode(ev.Headers, ev.Rows), ev)
	case EventImage:
		a.content(imageNode(ev), ev)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

func (a *Assembler) heading(ev Event) {
	level := doctree.ClampLevel(ev.Level)
	k := len(a.stack)
	for k > 0 && a.stack[k-1].level >= level {
		k--
	}
	a.stack = a.stack[:k]

	n := doctree.NewHeading(level, strings.TrimSpace(ev.Text))
	n.Meta.Page = ev.Page
	n.Meta.DetectionMethod = MethodMarkup
	n.Meta.Confidence = 1.0
	a.place(n)
	a.stack = append(a.stack, frame{level: level, id: n.ID})
}

func (a *Assembler) content(n *doctree.Node, ev Event) {
	n.Meta.Page = ev.Page
	a.place(n)
}

func (a *Assembler) place(n *doctree.Node) {
	if k := len(a.stack); k > 0 {
		n.ParentID = a.stack[k-1].id
	} else {
		n.ParentID = a.container
	}
	n.Sequence = a.seq.Next()
	n.Meta.Source = a.source
	n.Meta.Format = a.format
	a.nodes = append(a.nodes, n)
}

// tableNode builds a tabular node with a pipe-table rendering.
func tableNode(headers []string, rows [][]string) *doctree.Node {
	return doctree.New("", doctree.KindTable, &doctree.Tabular{
		Content: doctree.Content{Text: RenderTable(headers, rows)},
		Headers: headers,
		Rows:    rows,
	})
}

// RenderTable serializes a table as pipe-delimited rows, with a separator
// line under the header row when there is one.
func RenderTable(headers []string, rows [][]string) string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(strings.TrimSpace(c), "|", `\|`))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	if len(headers) > 0 {
		writeRow(headers)
		sep := make([]string, len(headers))
		for i := range sep {
			sep[i] = "---"
		}
		writeRow(sep)
	}
	for _, r := range rows {
		writeRow(r)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// imageNode content-addresses the image bytes when the adapter has them,
// and the reference string otherwise.
func imageNode(ev Event) *doctree.Node {
	data := ev.Data
	if len(data) == 0 {
		data = []byte(ev.Ref)
	}
	sum := sha256.Sum256(data)
	n := doctree.New("", doctree.KindImage, &doctree.Visual{
		Ref:         "sha256:" + hex.EncodeToString(sum[:]),
		MediaType:   mime.TypeByExtension(path.Ext(ev.Ref)),
		Description: strings.TrimSpace(ev.Alt),
	})
	if ev.Ref != "" {
		n.Meta.Extra = map[string]string{"src": ev.Ref}
	}
	return n
}
