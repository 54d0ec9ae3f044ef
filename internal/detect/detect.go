// Package detect infers document structure from text with no explicit
// markup. It is a line-oriented state machine: each Step looks at the line
// under the cursor (and at most one line past it for underlined headings)
// and returns the next state, at most one detection result, and how many
// lines it consumed.
package detect

import (
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// Method names the heuristic that produced a result.
type Method string

const (
	MethodUnderline    Method = "underlined_heading"
	MethodNumbered     Method = "numbered_section"
	MethodAllCaps      Method = "all_caps_heading"
	MethodPrefix       Method = "prefix_heading"
	MethodListItem     Method = "list_item"
	MethodFencedCode   Method = "fenced_code"
	MethodIndentedCode Method = "indented_code"
	MethodParagraph    Method = "paragraph"
)

// Heuristic confidences. Headings carry these on the node for downstream
// filtering.
const (
	ConfUnderline1  = 0.95
	ConfUnderline2  = 0.90
	ConfNumbered    = 0.85
	ConfPrefix      = 0.75
	ConfAllCaps     = 0.70
	ConfListContext = 0.90
	ConfList        = 0.80
	ConfFenced      = 1.00
	ConfIndented    = 0.80
	ConfParagraph   = 0.60
)

// Result is one detected node with the heuristic that fired.
type Result struct {
	Node       *doctree.Node
	Method     Method
	Confidence float64
	Depth      int // Stack depth at emission, relative to the detector's base
}

// IsHeading reports whether the result is a heading.
func (r Result) IsHeading() bool {
	switch r.Method {
	case MethodUnderline, MethodNumbered, MethodAllCaps, MethodPrefix:
		return true
	}
	return false
}

// Frame is one open heading on the level stack.
type Frame struct {
	Level int
	ID    string
}

// State is everything carried between lines.
type State struct {
	Stack        []Frame
	PrevLine     string // Trimmed text of the last non-blank line consumed
	PrevKind     string // Kind of the last emitted node
	NextSequence int
	BaseParent   string // Parent for nodes emitted with an empty stack
	Source       string
}

// Options configures a detection run.
type Options struct {
	ParentID      string // Attach top-level results under this node
	StartSequence int
	Source        string
}

// NewState returns the initial state for opts.
func NewState(opts Options) State {
	return State{
		NextSequence: opts.StartSequence,
		BaseParent:   opts.ParentID,
		Source:       opts.Source,
	}
}

// Detect runs the state machine over text.
func Detect(text string, opts Options) []Result {
	results, _ := DetectLines(SplitLines(text), NewState(opts))
	return results
}

// DetectLines runs the state machine over lines starting from st and
// returns the results and the final state.
func DetectLines(lines []string, st State) ([]Result, State) {
	var out []Result
	for i := 0; i < len(lines); {
		next, res, n := Step(st, lines, i)
		if res != nil {
			out = append(out, *res)
		}
		st = next
		if n < 1 {
			n = 1
		}
		i += n
	}
	return out, st
}

// SplitLines splits text on newlines, dropping carriage returns.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Step consumes the line at index i (plus any lines the detected construct
// spans) and returns the new state, the result if one was emitted, and the
// number of lines consumed.
//
// Priority is fixed: underlined, numbered, ALL-CAPS and #-prefixed
// headings, then list items, then code blocks, then paragraphs. The first
// heuristic that fires wins.
func Step(st State, lines []string, i int) (State, *Result, int) {
	line := lines[i]
	if isBlank(line) {
		return st, nil, 1
	}
	if isRule(line) {
		// A separator on its own carries no content. Underlines are
		// consumed together with their heading and never reach here.
		return st, nil, 1
	}

	if res, n, ok := tryHeading(st, lines, i); ok {
		next := st.emitHeading(&res, lines[i+n-1])
		return next, &res.Result, n
	}
	if res, ok := tryListItem(st, line); ok {
		return st.emit(res, line)
	}
	if res, n, ok := tryCode(lines, i); ok {
		return st.emitSpan(res, lines[i+n-1], n)
	}
	res, n := paragraph(lines, i)
	return st.emitSpan(res, lines[i+n-1], n)
}

type headingResult struct {
	Result
	level int
}

func tryHeading(st State, lines []string, i int) (headingResult, int, bool) {
	line := lines[i]
	if indentWidth(line) >= codeIndent || isFence(line) {
		return headingResult{}, 0, false
	}
	trimmed := strings.TrimSpace(line)

	if i+1 < len(lines) {
		switch underlineLevel(lines[i+1]) {
		case 1:
			return newHeading(1, trimmed, MethodUnderline, ConfUnderline1), 2, true
		case 2:
			return newHeading(2, trimmed, MethodUnderline, ConfUnderline2), 2, true
		}
	}

	if level, text, bare, ok := numberedSection(trimmed); ok {
		if !bare || bareNumberedHeading(st, text) {
			h := newHeading(level, text, MethodNumbered, ConfNumbered)
			h.Node.Meta.Extra = map[string]string{"number": numberPrefix(trimmed)}
			return h, 1, true
		}
	}

	if !listLike(line) && allCaps(trimmed) {
		return newHeading(1, trimmed, MethodAllCaps, ConfAllCaps), 1, true
	}

	if level, text, ok := prefixHeading(trimmed); ok {
		return newHeading(level, text, MethodPrefix, ConfPrefix), 1, true
	}
	return headingResult{}, 0, false
}

// bareNumberedHeading decides whether "1. Something" is a section title
// rather than the first item of a list.
func bareNumberedHeading(st State, text string) bool {
	if strings.HasSuffix(st.PrevLine, ":") {
		return false
	}
	if st.PrevKind == doctree.KindListItem {
		return false
	}
	return headingShaped(text)
}

func numberPrefix(trimmed string) string {
	m := numberedRe.FindStringSubmatch(trimmed)
	if m == nil {
		return ""
	}
	return m[1]
}

func newHeading(level int, text string, method Method, conf float64) headingResult {
	n := doctree.NewHeading(level, text)
	n.Meta.DetectionMethod = string(method)
	n.Meta.Confidence = conf
	return headingResult{
		Result: Result{Node: n, Method: method, Confidence: conf},
		level:  doctree.ClampLevel(level),
	}
}

func tryListItem(st State, line string) (Result, bool) {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return newListItem(m[3], m[2], indentWidth(m[1])/2, ConfList), true
	}
	m := orderedRe.FindStringSubmatch(line)
	if m == nil {
		return Result{}, false
	}
	text := strings.TrimSpace(m[4])
	contextual := strings.HasSuffix(st.PrevLine, ":") || st.PrevKind == doctree.KindListItem
	if contextual {
		return newListItem(text, m[2]+m[3], indentWidth(m[1])/2, ConfListContext), true
	}
	// Title-shaped lines the heading detector could see are left to it.
	if indentWidth(m[1]) < codeIndent && headingShaped(text) {
		return Result{}, false
	}
	return newListItem(text, m[2]+m[3], indentWidth(m[1])/2, ConfList), true
}

func newListItem(text, marker string, nesting int, conf float64) Result {
	n := doctree.NewContent(doctree.KindListItem, strings.TrimSpace(text))
	n.Meta.ListMarker = marker
	n.Meta.ListNesting = nesting
	n.Meta.DetectionMethod = string(MethodListItem)
	return Result{Node: n, Method: MethodListItem, Confidence: conf}
}

func tryCode(lines []string, i int) (Result, int, bool) {
	if isFence(lines[i]) {
		res, n := fencedCode(lines, i)
		return res, n, true
	}
	if indentWidth(lines[i]) >= codeIndent {
		return indentedCode(lines, i)
	}
	return Result{}, 0, false
}

// fencedCode consumes through the matching closing fence, or to the end of
// input when the fence is never closed.
func fencedCode(lines []string, i int) (Result, int) {
	open := strings.TrimSpace(lines[i])
	lang := strings.TrimSpace(strings.TrimLeft(open, "`"))

	j := i + 1
	closed := false
	for ; j < len(lines); j++ {
		if isFence(lines[j]) {
			closed = true
			break
		}
	}
	body := lines[i+1 : j]
	consumed := j - i
	if closed {
		consumed++
	}

	raw := strings.Join(lines[i:i+consumed], "\n")
	n := doctree.New("", doctree.KindCodeBlock, &doctree.Content{
		Text:          strings.Join(body, "\n"),
		FormattedText: raw,
	})
	n.Meta.Language = lang
	n.Meta.Fenced = true
	n.Meta.DetectionMethod = string(MethodFencedCode)
	return Result{Node: n, Method: MethodFencedCode, Confidence: ConfFenced}, consumed
}

// indentedCode needs at least two indented lines. Blank lines inside the
// block are kept; trailing blank lines are not part of it.
func indentedCode(lines []string, i int) (Result, int, bool) {
	last := i
	count := 0
	for j := i; j < len(lines); j++ {
		if isBlank(lines[j]) {
			continue
		}
		if indentWidth(lines[j]) < codeIndent {
			break
		}
		count++
		last = j
	}
	if count < 2 {
		return Result{}, 0, false
	}
	block := lines[i : last+1]
	n := doctree.New("", doctree.KindCodeBlock, &doctree.Content{
		Text:          strings.Join(stripIndent(block), "\n"),
		FormattedText: strings.Join(block, "\n"),
	})
	n.Meta.DetectionMethod = string(MethodIndentedCode)
	return Result{Node: n, Method: MethodIndentedCode, Confidence: ConfIndented}, last - i + 1, true
}

// paragraph accumulates lines until a blank line or a line that opens some
// other construct, and joins them with single spaces.
func paragraph(lines []string, i int) (Result, int) {
	parts := []string{strings.TrimSpace(lines[i])}
	j := i + 1
	for ; j < len(lines); j++ {
		l := lines[j]
		if isBlank(l) || indentWidth(l) >= codeIndent || isFence(l) || isRule(l) {
			break
		}
		if listLike(l) || headingLike(lines, j) {
			break
		}
		parts = append(parts, strings.TrimSpace(l))
	}
	n := doctree.NewContent(doctree.KindParagraph, strings.Join(parts, " "))
	n.Meta.DetectionMethod = string(MethodParagraph)
	return Result{Node: n, Method: MethodParagraph, Confidence: ConfParagraph}, j - i
}

// emitHeading places a heading: pop every open heading at the same or a
// deeper level, parent to what remains, then push.
func (st State) emitHeading(h *headingResult, lastLine string) State {
	k := len(st.Stack)
	for k > 0 && st.Stack[k-1].Level >= h.level {
		k--
	}
	st.Stack = st.Stack[:k]
	st.place(&h.Result)
	st.Stack = append(st.Stack[:k:k], Frame{Level: h.level, ID: h.Node.ID})
	st.PrevLine = strings.TrimSpace(lastLine)
	st.PrevKind = h.Node.Kind
	st.NextSequence++
	return st
}

func (st State) emit(res Result, lastLine string) (State, *Result, int) {
	return st.emitSpan(res, lastLine, 1)
}

func (st State) emitSpan(res Result, lastLine string, n int) (State, *Result, int) {
	st.place(&res)
	st.PrevLine = strings.TrimSpace(lastLine)
	st.PrevKind = res.Node.Kind
	st.NextSequence++
	return st, &res, n
}

// place assigns parent, sequence and depth from the current stack.
func (st State) place(res *Result) {
	if k := len(st.Stack); k > 0 {
		res.Node.ParentID = st.Stack[k-1].ID
	} else {
		res.Node.ParentID = st.BaseParent
	}
	res.Node.Sequence = st.NextSequence
	res.Node.Meta.Source = st.Source
	if res.Node.Meta.Format == "" {
		res.Node.Meta.Format = "text"
	}
	res.Depth = len(st.Stack)
}
