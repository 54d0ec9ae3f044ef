// Package tokens provides pluggable token counters and the token-window
// splitter shared by every counting strategy.
package tokens

import (
	"errors"
	"fmt"
)

// Strategy names a counting strategy.
type Strategy string

const (
	StrategyApproximate Strategy = "approximate"
	StrategyExact       Strategy = "exact"
	StrategyCustom      Strategy = "custom"
)

var (
	// ErrInvalidWindow is returned when max tokens is below one.
	ErrInvalidWindow = errors.New("max tokens must be at least 1")
	// ErrInvalidOverlap is returned when overlap is negative or not below max tokens.
	ErrInvalidOverlap = errors.New("overlap tokens must be >= 0 and < max tokens")
)

// Encoding is a text encoded once into a token sequence. Decode
// reconstructs the text of the contiguous token range [start, end).
type Encoding interface {
	Len() int
	Decode(start, end int) string
}

// Counter counts tokens and encodes text into a token sequence.
// Count(text) must equal Encode(text).Len().
type Counter interface {
	Name() string
	Count(text string) int
	Encode(text string) Encoding
}

// New returns the counter for a named strategy. Custom counters are
// supplied by the caller and cannot be built here.
func New(strategy Strategy, encoding string) (Counter, error) {
	switch strategy {
	case "", StrategyApproximate:
		return Approximate{}, nil
	case StrategyExact:
		return NewExact(encoding), nil
	case StrategyCustom:
		return nil, fmt.Errorf("custom token counter must be supplied by the caller")
	default:
		return nil, fmt.Errorf("unknown token counting strategy: %q", strategy)
	}
}

// CheckWindow validates a max/overlap pair.
func CheckWindow(maxTokens, overlapTokens int) error {
	if maxTokens < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWindow, maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return fmt.Errorf("%w: overlap %d, max %d", ErrInvalidOverlap, overlapTokens, maxTokens)
	}
	return nil
}

// Window is a half-open token range of an encoding.
type Window struct {
	Start, End int
}

// Boundaries is implemented by encodings whose tokens may end inside a
// character. Boundary reports whether decoding a range that starts or ends
// at token i yields whole characters. 0 and Len() are always boundaries.
type Boundaries interface {
	Boundary(i int) bool
}

// Windows returns the token ranges of length maxTokens advancing by
// maxTokens-overlapTokens, stopping once a window reaches the end.
func Windows(total, maxTokens, overlapTokens int) ([]Window, error) {
	if err := CheckWindow(maxTokens, overlapTokens); err != nil {
		return nil, err
	}
	return windows(total, maxTokens, overlapTokens, nil), nil
}

// windows lays out the token ranges. With a boundary func, each window end
// moves back to the nearest boundary and each start moves back too, which
// keeps at least overlapTokens shared. A start moves forward instead when no
// boundary lies inside the overlap, and an end moves forward only when a
// single character is longer than the whole window.
func windows(total, maxTokens, overlapTokens int, boundary func(int) bool) []Window {
	if total <= maxTokens {
		return []Window{{0, total}}
	}
	at := func(i int) bool {
		return i <= 0 || i >= total || boundary == nil || boundary(i)
	}

	var out []Window
	start := 0
	for {
		end := start + maxTokens
		if end >= total {
			out = append(out, Window{start, total})
			return out
		}
		e := end
		for e > start && !at(e) {
			e--
		}
		if e == start {
			for e = end; !at(e); e++ {
			}
		}
		out = append(out, Window{start, e})
		if e >= total {
			return out
		}

		next := max(e-overlapTokens, start+1)
		s := next
		for s > start && !at(s) {
			s--
		}
		if s == start {
			for s = next; !at(s); s++ {
			}
		}
		start = s
	}
}

// Piece is one slice of a split text with the length of its token window.
type Piece struct {
	Text   string
	Tokens int
}

// Split cuts text into slices of at most maxTokens tokens where consecutive
// slices share exactly overlapTokens tokens. Text that already fits is
// returned unchanged as the only slice.
func Split(c Counter, text string, maxTokens, overlapTokens int) ([]string, error) {
	pieces, err := SplitPieces(c, text, maxTokens, overlapTokens)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Text
	}
	return out, nil
}

// SplitPieces is Split keeping each slice's token count. When the encoding
// implements Boundaries, window edges that fall inside a character move to
// the nearest earlier boundary, so every slice is valid text and the
// overlap may grow by the tokens of that one character.
func SplitPieces(c Counter, text string, maxTokens, overlapTokens int) ([]Piece, error) {
	if err := CheckWindow(maxTokens, overlapTokens); err != nil {
		return nil, err
	}
	enc := c.Encode(text)
	if enc.Len() <= maxTokens {
		return []Piece{{Text: text, Tokens: enc.Len()}}, nil
	}
	var boundary func(int) bool
	if b, ok := enc.(Boundaries); ok {
		boundary = b.Boundary
	}
	ws := windows(enc.Len(), maxTokens, overlapTokens, boundary)
	out := make([]Piece, len(ws))
	for i, w := range ws {
		out[i] = Piece{Text: enc.Decode(w.Start, w.End), Tokens: w.End - w.Start}
	}
	return out, nil
}
