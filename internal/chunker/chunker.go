// Package chunker replaces nodes whose token count exceeds a ceiling with
// sibling nodes cut at token boundaries.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/dgallion1/docchunk/internal/tokens"
)

// Config controls oversize splitting.
type Config struct {
	MaxTokensPerNode int // Ceiling before a node is split.
	OverlapTokens    int // Tokens shared by consecutive pieces.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokensPerNode: 500,
		OverlapTokens:    50,
	}
}

// Validate rejects a window the token splitter cannot honor.
func (c Config) Validate() error {
	return tokens.CheckWindow(c.MaxTokensPerNode, c.OverlapTokens)
}

// Splitter applies the oversize rule to a whole node collection.
type Splitter struct {
	counter tokens.Counter
	cfg     Config
}

// NewSplitter validates cfg up front so Apply never fails mid-document.
func NewSplitter(counter tokens.Counter, cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{counter: counter, cfg: cfg}, nil
}

// Result describes one Apply run.
type Result struct {
	Nodes    []*doctree.Node
	Split    int // Originals replaced
	Produced int // Pieces created
}

// Apply returns a new collection in which every oversize content or tabular
// node is replaced, at its own position, by pieces that share its parent.
// Sequence numbers are reassigned densely in document order. Children of a
// replaced node are re-parented to its first piece.
func (s *Splitter) Apply(nodes []*doctree.Node) Result {
	var res Result
	out := make([]*doctree.Node, 0, len(nodes))
	moved := make(map[string]string)

	for _, n := range nodes {
		n.Measure(s.counter)
		if !n.Splittable() || n.Quality().TokenCount <= s.cfg.MaxTokensPerNode {
			out = append(out, n)
			continue
		}
		pieces := s.splitNode(n)
		if len(pieces) == 1 {
			out = append(out, n)
			continue
		}
		moved[n.ID] = pieces[0].ID
		out = append(out, pieces...)
		res.Split++
		res.Produced += len(pieces)
	}

	if len(moved) > 0 {
		for _, n := range out {
			if first, ok := moved[n.ParentID]; ok {
				n.ParentID = first
			}
		}
		doctree.BuildHierarchy(out)
	}
	doctree.Resequence(out)
	res.Nodes = out
	return res
}

func (s *Splitter) splitNode(n *doctree.Node) []*doctree.Node {
	parts, err := tokens.SplitPieces(s.counter, n.Text(), s.cfg.MaxTokensPerNode, s.cfg.OverlapTokens)
	if err != nil || len(parts) <= 1 {
		return []*doctree.Node{n}
	}
	_, tabular := n.Body.(*doctree.Tabular)

	pieces := make([]*doctree.Node, len(parts))
	for i, piece := range parts {
		part := piece.Text
		p := n.Derive(part)
		p.Meta.SplitIndex = i
		p.Meta.SplitFrom = n.ID

		truncated := tabular
		if i < len(parts)-1 && !doctree.EndsSentence(part) {
			truncated = true
		}
		if i > 0 && !startsSentence(part) {
			truncated = true
		}
		p.MeasureSplit(piece.Tokens, truncated)
		pieces[i] = p
	}
	return pieces
}

// startsSentence reports whether text opens like a sentence.
func startsSentence(text string) bool {
	t := strings.TrimLeftFunc(text, unicode.IsSpace)
	t = strings.TrimLeft(t, `"'([{«“‘`)
	r, _ := utf8.DecodeRuneInString(t)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}
