package parser

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// TextParser handles plain text files. Structure is inferred by the
// structural detector.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := string(src)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	a := NewAssembler(filename, "text")
	a.Detect(text, 0)

	return &Document{
		Title:  FirstHeadingOr(a.Nodes(), baseTitle(filename)),
		Format: "text",
		Source: filename,
		Nodes:  a.Nodes(),
	}, nil
}

// FirstHeadingOr returns the title of the first level-1 heading, or
// fallback when there is none.
func FirstHeadingOr(nodes []*doctree.Node, fallback string) string {
	for _, n := range nodes {
		if s, ok := n.Body.(*doctree.Structural); ok && s.Level == 1 {
			return s.Title
		}
	}
	return fallback
}
