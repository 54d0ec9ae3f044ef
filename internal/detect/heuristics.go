package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	numberedRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)
	prefixRe   = regexp.MustCompile(`^(#{1,6})\s+(\S.*)$`)
	bulletRe   = regexp.MustCompile(`^([ \t]*)([-*•])\s+(\S.*)$`)
	orderedRe  = regexp.MustCompile(`^([ \t]*)(\d+)([.)])\s+(\S.*)$`)
)

const (
	maxHeadingChars = 100
	codeIndent      = 4
	tabWidth        = 4
)

// indentWidth measures leading indentation in columns, a tab counting as
// four spaces.
func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += tabWidth
		default:
			return w
		}
	}
	return w
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// isRuleOf reports whether s is three or more repetitions of c and nothing
// else.
func isRuleOf(s string, c rune) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < 3 {
		return false
	}
	for _, r := range s {
		if r != c {
			return false
		}
	}
	return true
}

// isRule reports a standalone separator line.
func isRule(line string) bool {
	return isRuleOf(line, '=') || isRuleOf(line, '-') || isRuleOf(line, '*') || isRuleOf(line, '_')
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// headingShaped is the shape a bare numbered line needs to read as a title:
// capital first letter, short, no sentence-ending punctuation.
func headingShaped(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxHeadingChars {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	if !unicode.IsUpper(first) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	switch last {
	case '.', '!', '?':
		return false
	}
	return true
}

// underlineLevel returns 1 for a run of '=' and 2 for a run of '-'.
func underlineLevel(line string) int {
	switch {
	case isRuleOf(line, '='):
		return 1
	case isRuleOf(line, '-'):
		return 2
	}
	return 0
}

// numberedSection parses "1.2.3 Title" forms. Level is the dot count plus
// one, capped at six.
func numberedSection(trimmed string) (level int, text string, bare bool, ok bool) {
	m := numberedRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, "", false, false
	}
	level = strings.Count(m[1], ".") + 1
	if level > 6 {
		level = 6
	}
	return level, strings.TrimSpace(m[2]), level == 1, true
}

// allCaps accepts 4–100 characters, at least half of them letters, with no
// lowercase letter. It runs before the # prefix check, so "## NOTES" is an
// ALL-CAPS heading.
func allCaps(trimmed string) bool {
	n := utf8.RuneCountInString(trimmed)
	if n < 4 || n > maxHeadingChars {
		return false
	}
	letters := 0
	for _, r := range trimmed {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters*2 >= n
}

func prefixHeading(trimmed string) (level int, text string, ok bool) {
	m := prefixRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, "", false
	}
	text = strings.TrimSpace(strings.TrimRight(m[2], "# \t"))
	if text == "" {
		text = strings.TrimSpace(m[2])
	}
	return len(m[1]), text, true
}

// listLike reports a bullet or ordered marker without applying context.
func listLike(line string) bool {
	return bulletRe.MatchString(line) || orderedRe.MatchString(line)
}

// headingLike is the paragraph-breaking test: would line i open a heading
// on its own.
func headingLike(lines []string, i int) bool {
	line := lines[i]
	if indentWidth(line) >= codeIndent || isFence(line) {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if i+1 < len(lines) && underlineLevel(lines[i+1]) > 0 && !isRule(line) {
		return true
	}
	if level, text, _, ok := numberedSection(trimmed); ok && (level > 1 || headingShaped(text)) {
		return true
	}
	if _, _, ok := prefixHeading(trimmed); ok {
		return true
	}
	return allCaps(trimmed)
}

func expandTabs(line string) string {
	var sb strings.Builder
	for i, r := range line {
		switch r {
		case '\t':
			sb.WriteString("    ")
		case ' ':
			sb.WriteRune(r)
		default:
			sb.WriteString(line[i:])
			return sb.String()
		}
	}
	return sb.String()
}

// stripIndent removes the common leading indentation of the non-blank lines.
func stripIndent(lines []string) []string {
	common := -1
	for _, l := range lines {
		if isBlank(l) {
			continue
		}
		if w := indentWidth(l); common < 0 || w < common {
			common = w
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if isBlank(l) {
			continue
		}
		e := expandTabs(l)
		if common > 0 && len(e) >= common {
			e = e[common:]
		}
		out[i] = strings.TrimRight(e, " \t")
	}
	return out
}
