package doctree

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// Quality is computed once per node and immutable afterwards.
type Quality struct {
	TokenCount   int     `json:"token_count"`
	CharCount    int     `json:"char_count"`
	WordCount    int     `json:"word_count"`
	Completeness float64 `json:"semantic_completeness"`
	WasSplit     bool    `json:"was_split"`
	Truncated    bool    `json:"truncated"`
}

// Quality returns the node's quality record.
func (n *Node) Quality() Quality { return n.quality }

// Measured reports whether quality has been computed.
func (n *Node) Measured() bool { return n.measured }

// Measure computes the quality record. It is a no-op once the node has been
// measured.
func (n *Node) Measure(tc TokenCounter) {
	if n.measured {
		return
	}
	text := n.Text()
	count := 0
	if tc != nil {
		count = tc.Count(text)
	}
	n.setQuality(text, count, false, false)
}

// MeasureSplit records the quality of a piece produced by the oversize
// splitter. tokenCount is the length of the token window the piece was
// decoded from, so the piece is never recounted under another strategy.
func (n *Node) MeasureSplit(tokenCount int, truncated bool) {
	if n.measured {
		return
	}
	n.setQuality(n.Text(), tokenCount, true, truncated)
}

func (n *Node) setQuality(text string, tokenCount int, split, truncated bool) {
	n.quality = Quality{
		TokenCount:   tokenCount,
		CharCount:    utf8.RuneCountInString(text),
		WordCount:    len(strings.Fields(text)),
		Completeness: completeness(n, text, truncated),
		WasSplit:     split,
		Truncated:    truncated,
	}
	n.measured = true
}

// Enrich measures every node not yet measured.
func Enrich(nodes []*Node, tc TokenCounter) {
	for _, n := range nodes {
		n.Measure(tc)
	}
}

// completeness scores how self-contained a piece of text reads, in [0,1].
// Structural, visual and code nodes are complete by construction.
func completeness(n *Node, text string, truncated bool) float64 {
	switch n.Body.(type) {
	case *Structural, *Visual:
		return 1
	}
	if n.Kind == KindCodeBlock || n.Kind == KindFormula {
		if truncated {
			return 0.5
		}
		return 1
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	score := 1.0
	first, _ := utf8.DecodeRuneInString(t)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) && !unicode.IsPunct(first) {
		score -= 0.2
	}
	if _, ok := n.Body.(*Tabular); !ok && n.Kind != KindListItem && !EndsSentence(t) {
		score -= 0.3
	}
	if truncated {
		score -= 0.3
	}
	if score < 0 {
		score = 0
	}
	return score
}

// EndsSentence reports whether text ends with sentence-closing punctuation,
// ignoring trailing quotes and brackets.
func EndsSentence(text string) bool {
	t := strings.TrimRight(strings.TrimSpace(text), `"')]}»”’`)
	if t == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(t)
	switch r {
	case '.', '!', '?', '…', ':', ';':
		return true
	}
	return false
}
