package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables are
// enabled.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	w := &mdWalker{src: src}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, 0)
	}

	nodes, err := Assemble(w.events, filename, "markdown")
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:  FirstHeadingOr(nodes, baseTitle(filename)),
		Format: "markdown",
		Source: filename,
		Nodes:  nodes,
	}, nil
}

type mdWalker struct {
	src    []byte
	events []Event
}

func (w *mdWalker) emit(ev Event) {
	w.events = append(w.events, ev)
}

// block turns one block-level node into events. nesting is the list depth
// for list items.
func (w *mdWalker) block(n ast.Node, nesting int) {
	switch node := n.(type) {
	case *ast.Heading:
		w.emit(Event{Kind: EventHeading, Level: node.Level, Text: inlineText(node, w.src)})
		w.images(node)

	case *ast.Paragraph, *ast.TextBlock:
		if t := inlineText(node, w.src); t != "" {
			w.emit(Event{Kind: EventParagraph, Text: t})
		}
		w.images(node)

	case *ast.FencedCodeBlock:
		w.emit(Event{
			Kind:     EventCodeBlock,
			Language: string(node.Language(w.src)),
			Text:     blockLines(node, w.src),
			Fenced:   true,
		})

	case *ast.CodeBlock:
		w.emit(Event{Kind: EventCodeBlock, Text: blockLines(node, w.src)})

	case *ast.List:
		w.list(node, nesting)

	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, nesting)
		}

	case *extast.Table:
		w.table(node)

	case *ast.HTMLBlock, *ast.ThematicBreak:
		// No content.
	}
}

func (w *mdWalker) list(l *ast.List, nesting int) {
	idx := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := string(l.Marker)
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d%c", idx, l.Marker)
			idx++
		}

		// The item's own text comes first; nested blocks follow it.
		var parts []string
		var own, rest []ast.Node
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if len(rest) == 0 {
					if t := inlineText(c, w.src); t != "" {
						parts = append(parts, t)
					}
					own = append(own, c)
					continue
				}
			}
			rest = append(rest, c)
		}
		w.emit(Event{
			Kind:    EventListItem,
			Marker:  marker,
			Nesting: nesting,
			Text:    strings.Join(parts, " "),
		})
		for _, c := range own {
			w.images(c)
		}
		for _, c := range rest {
			w.block(c, nesting+1)
		}
	}
}

func (w *mdWalker) table(t *extast.Table) {
	var headers []string
	var rows [][]string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, inlineText(c, w.src))
		}
		if _, ok := r.(*extast.TableHeader); ok {
			headers = cells
			continue
		}
		rows = append(rows, cells)
	}
	w.emit(Event{Kind: EventTable, Headers: headers, Rows: rows})
}

// images emits an event for every image inside an inline container.
func (w *mdWalker) images(n ast.Node) {
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := c.(*ast.Image); ok {
			w.emit(Event{
				Kind: EventImage,
				Ref:  string(img.Destination),
				Alt:  inlineText(img, w.src),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

// inlineText collects the text of n's inline descendants. Images inside n
// are skipped; soft line breaks become spaces.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.Image:
				continue
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// blockLines joins the raw lines of a code block.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}
