package tokens

import "unicode"

// Approximate counts one token per whitespace-delimited word. It needs no
// vocabulary and is always available.
type Approximate struct{}

func (Approximate) Name() string { return string(StrategyApproximate) }

func (Approximate) Count(text string) int {
	return len(wordSpans(text))
}

func (Approximate) Encode(text string) Encoding {
	return &wordEncoding{text: text, spans: wordSpans(text)}
}

// span is the byte range a word token owns: from the start of the word to
// the start of the next word, so consecutive spans tile the text.
type span struct {
	lo, hi int
}

type wordEncoding struct {
	text  string
	spans []span
}

func (e *wordEncoding) Len() int { return len(e.spans) }

func (e *wordEncoding) Decode(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(e.spans) {
		end = len(e.spans)
	}
	if start >= end {
		return ""
	}
	return e.text[e.spans[start].lo:e.spans[end-1].hi]
}

// wordSpans finds word boundaries. The first span also owns any leading
// whitespace and the last span runs to the end of the text.
func wordSpans(text string) []span {
	var starts []int
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			starts = append(starts, i)
			inWord = true
		}
	}
	spans := make([]span, len(starts))
	for i, s := range starts {
		hi := len(text)
		if i+1 < len(starts) {
			hi = starts[i+1]
		}
		if i == 0 {
			s = 0
		}
		spans[i] = span{s, hi}
	}
	return spans
}
