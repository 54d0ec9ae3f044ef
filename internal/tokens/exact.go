package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE vocabulary used when none is named.
const DefaultEncoding = "cl100k_base"

var (
	loaderOnce sync.Once
	encMu      sync.Mutex
	encCache   = map[string]*tiktoken.Tiktoken{}
)

// loadEncoding returns the shared, read-only vocabulary table for name,
// loading it on first use from the embedded offline BPE files.
func loadEncoding(name string) (*tiktoken.Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	encMu.Lock()
	defer encMu.Unlock()
	if tk, ok := encCache[name]; ok {
		return tk, nil
	}
	tk, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	encCache[name] = tk
	return tk, nil
}

// Exact tokenizes with a fixed subword vocabulary and decodes token ranges
// back to text. Input the vocabulary cannot encode falls back to the
// approximate counter.
type Exact struct {
	name     string
	tk       *tiktoken.Tiktoken
	fallback Approximate
}

// NewExact returns an exact counter for the named encoding. If the
// vocabulary cannot be loaded every call falls back to Approximate.
func NewExact(encoding string) *Exact {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	e := &Exact{name: encoding}
	if tk, err := loadEncoding(encoding); err == nil {
		e.tk = tk
	}
	return e
}

func (e *Exact) Name() string { return string(StrategyExact) + ":" + e.name }

// Available reports whether the vocabulary loaded.
func (e *Exact) Available() bool { return e.tk != nil }

func (e *Exact) Count(text string) int {
	return e.Encode(text).Len()
}

func (e *Exact) Encode(text string) Encoding {
	ids, ok := e.encode(text)
	if !ok {
		return e.fallback.Encode(text)
	}
	enc, ok := newBPEEncoding(e.tk, text, ids)
	if !ok {
		return e.fallback.Encode(text)
	}
	return enc
}

// encode reports false when the text cannot be tokenized: no vocabulary,
// invalid UTF-8, or a special-token literal in the input.
func (e *Exact) encode(text string) (ids []int, ok bool) {
	if e.tk == nil || !utf8.ValidString(text) {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			ids, ok = nil, false
		}
	}()
	return e.tk.Encode(text, nil, []string{"all"}), true
}

// bpeEncoding keeps the byte offset where each token starts. A single
// token may hold part of a multi-byte character.
type bpeEncoding struct {
	text string
	ids  []int
	offs []int // len(ids)+1 entries
}

// newBPEEncoding reports false when the token bytes do not tile text.
func newBPEEncoding(tk *tiktoken.Tiktoken, text string, ids []int) (*bpeEncoding, bool) {
	offs := make([]int, len(ids)+1)
	for i, id := range ids {
		offs[i+1] = offs[i] + len(tk.Decode([]int{id}))
	}
	if offs[len(ids)] != len(text) {
		return nil, false
	}
	return &bpeEncoding{text: text, ids: ids, offs: offs}, true
}

func (b *bpeEncoding) Len() int { return len(b.ids) }

func (b *bpeEncoding) Boundary(i int) bool {
	if i <= 0 || i >= len(b.ids) {
		return true
	}
	return utf8.RuneStart(b.text[b.offs[i]])
}

func (b *bpeEncoding) Decode(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(b.ids) {
		end = len(b.ids)
	}
	if start >= end {
		return ""
	}
	return b.text[b.offs[start]:b.offs[end]]
}
