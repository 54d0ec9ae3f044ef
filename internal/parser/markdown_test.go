package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docchunk/internal/doctree"
)

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Title" {
		t.Errorf("expected title %q, got %q", "Title", doc.Title)
	}
	if len(doc.Nodes) != 8 {
		t.Fatalf("expected 8 nodes, got %d", len(doc.Nodes))
	}

	byText := map[string]*doctree.Node{}
	for _, n := range doc.Nodes {
		byText[n.Text()] = n
	}
	parentOf := func(child, parent string) {
		t.Helper()
		c, p := byText[child], byText[parent]
		if c == nil || p == nil {
			t.Fatalf("missing %q or %q", child, parent)
		}
		if c.ParentID != p.ID {
			t.Errorf("expected %q under %q", child, parent)
		}
	}
	parentOf("Intro text.", "Title")
	parentOf("Section A", "Title")
	parentOf("Section A content.", "Section A")
	parentOf("Subsection A1", "Section A")
	parentOf("Subsection A1 content.", "Subsection A1")
	parentOf("Section B", "Title")
	parentOf("Section B content.", "Section B")

	if byText["Subsection A1"].Kind != "Heading3" {
		t.Errorf("expected Heading3, got %s", byText["Subsection A1"].Kind)
	}
	if byText["Title"].ParentID != "" {
		t.Error("expected h1 to be a root")
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(doc.Nodes))
	}
	for _, n := range doc.Nodes {
		if n.ParentID != "" || n.Kind != doctree.KindParagraph {
			t.Errorf("expected root paragraph, got %s under %q", n.Kind, n.ParentID)
		}
	}
}

func TestMarkdownParser_MixedContentWithCodeBlocks(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```http\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var code *doctree.Node
	var endpoints *doctree.Node
	for _, n := range doc.Nodes {
		switch {
		case n.Kind == doctree.KindCodeBlock:
			code = n
		case n.Text() == "Endpoints":
			endpoints = n
		}
	}
	if code == nil || endpoints == nil {
		t.Fatalf("expected code block and Endpoints heading, got %d nodes", len(doc.Nodes))
	}
	if code.Text() != "GET /api/users\nPOST /api/users" {
		t.Errorf("unexpected code text %q", code.Text())
	}
	if code.Meta.Language != "http" || !code.Meta.Fenced {
		t.Errorf("expected fenced http block, got %q fenced=%v", code.Meta.Language, code.Meta.Fenced)
	}
	if code.ParentID != endpoints.ID {
		t.Error("expected code block under Endpoints")
	}
	last := doc.Nodes[len(doc.Nodes)-1]
	if last.Text() != "More text after code." || last.ParentID != endpoints.ID {
		t.Errorf("expected trailing paragraph under Endpoints, got %q", last.Text())
	}
}

func TestMarkdownParser_ListsTablesImages(t *testing.T) {
	input := `# Inventory

- apples
  - green
- pears

1. first
2. second

| name | qty |
| ---- | --- |
| nut  | 3   |
| bolt | 7   |

![diagram of parts](parts.png)
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "inv.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var items, tables, images []*doctree.Node
	for _, n := range doc.Nodes {
		switch n.Kind {
		case doctree.KindListItem:
			items = append(items, n)
		case doctree.KindTable:
			tables = append(tables, n)
		case doctree.KindImage:
			images = append(images, n)
		}
	}

	if len(items) != 5 {
		t.Fatalf("expected 5 list items, got %d", len(items))
	}
	if items[1].Text() != "green" || items[1].Meta.ListNesting != 1 {
		t.Errorf("expected nested item green, got %q nesting %d", items[1].Text(), items[1].Meta.ListNesting)
	}
	if items[3].Meta.ListMarker != "1." || items[4].Meta.ListMarker != "2." {
		t.Errorf("expected ordered markers, got %q %q", items[3].Meta.ListMarker, items[4].Meta.ListMarker)
	}

	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	tb := tables[0].Body.(*doctree.Tabular)
	if tb.RowCount() != 2 || tb.ColumnCount() != 2 {
		t.Errorf("expected 2x2 table, got %dx%d", tb.RowCount(), tb.ColumnCount())
	}
	if !strings.HasPrefix(tb.Text, "| name | qty |") {
		t.Errorf("unexpected rendering %q", tb.Text)
	}

	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	v := images[0].Body.(*doctree.Visual)
	if !strings.HasPrefix(v.Ref, "sha256:") || v.Description != "diagram of parts" {
		t.Errorf("unexpected image body %+v", v)
	}
	if v.MediaType != "image/png" {
		t.Errorf("expected image/png, got %q", v.MediaType)
	}
}

func TestMarkdownParser_ImagesInHeadingsAndListItems(t *testing.T) {
	input := "# Logo ![mark](logo.png)\n\n- see ![wiring](wiring.svg)\n- plain item\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "imgs.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var heading *doctree.Node
	var alts []string
	for _, n := range doc.Nodes {
		switch n.Kind {
		case "Heading1":
			heading = n
		case doctree.KindImage:
			alts = append(alts, n.Body.(*doctree.Visual).Description)
			if heading == nil || n.ParentID != heading.ID {
				t.Errorf("expected image %q under the heading", n.Body.(*doctree.Visual).Description)
			}
		}
	}
	if strings.Join(alts, ",") != "mark,wiring" {
		t.Errorf("expected images [mark wiring] in order, got %v", alts)
	}
	if heading == nil || heading.Body.(*doctree.Structural).Title != "Logo" {
		t.Errorf("expected heading text without the image, got %+v", heading)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Nodes) != 0 {
		t.Errorf("expected 0 nodes for empty input, got %d", len(doc.Nodes))
	}
}
