package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles and numbering carry the
// structure; no detection runs.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docchunk-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	events := docxEvents(doc.Document.Body.Items)
	nodes, err := Assemble(events, filename, "docx")
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:  FirstHeadingOr(nodes, baseTitle(filename)),
		Format: "docx",
		Source: filename,
		Nodes:  nodes,
	}, nil
}

// docxEvents maps body items to events. Heading styles become headings,
// numbered paragraphs become list items, and tables keep their first row
// as the header.
func docxEvents(items []interface{}) []Event {
	var events []Event
	for _, item := range items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			if level := docxHeadingLevel(it); level > 0 {
				events = append(events, Event{Kind: EventHeading, Level: level, Text: text})
				continue
			}
			if nesting, ok := docxListLevel(it); ok {
				events = append(events, Event{Kind: EventListItem, Marker: "-", Nesting: nesting, Text: text})
				continue
			}
			events = append(events, Event{Kind: EventParagraph, Text: text})

		case *docx.Table:
			var rows [][]string
			for _, tr := range it.TableRows {
				var cells []string
				for _, tc := range tr.TableCells {
					var parts []string
					for _, para := range tc.Paragraphs {
						if t := docxParagraphText(para); t != "" {
							parts = append(parts, t)
						}
					}
					cells = append(cells, strings.Join(parts, " "))
				}
				rows = append(rows, cells)
			}
			if len(rows) == 0 {
				continue
			}
			events = append(events, Event{Kind: EventTable, Headers: rows[0], Rows: rows[1:]})
		}
	}
	return events
}

// docxListLevel reports whether a paragraph carries numbering and at which
// indentation level.
func docxListLevel(para *docx.Paragraph) (int, bool) {
	if para.Properties == nil || para.Properties.NumProperties == nil {
		return 0, false
	}
	np := para.Properties.NumProperties
	if np.NumID == nil || np.NumID.Val == "" || np.NumID.Val == "0" {
		return 0, false
	}
	level := 0
	if np.Ilvl != nil {
		if v, err := strconv.Atoi(np.Ilvl.Val); err == nil {
			level = v
		}
	}
	return level, true
}

// docxHeadingLevel reads "Heading N" / "heading N" style ids. The document
// "Title" style counts as level 1.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if n, ok := strings.CutPrefix(style, "heading"); ok {
		if v, err := strconv.Atoi(n); err == nil && v >= 1 && v <= 6 {
			return v
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		var run *docx.Run
		switch c := child.(type) {
		case *docx.Run:
			run = c
		case *docx.Hyperlink:
			run = &c.Run
		default:
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
