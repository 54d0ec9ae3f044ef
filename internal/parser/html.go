package parser

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	w := &htmlWalker{}
	if body := findElement(doc, "body"); body != nil {
		w.walk(body, 0)
	} else {
		w.walk(doc, 0)
	}

	nodes, err := Assemble(w.events, filename, "html")
	if err != nil {
		return nil, err
	}

	title := findTitle(doc)
	if title == "" {
		title = FirstHeadingOr(nodes, baseTitle(filename))
	}
	return &Document{Title: title, Format: "html", Source: filename, Nodes: nodes}, nil
}

type htmlWalker struct {
	events []Event
}

func (w *htmlWalker) emit(ev Event) {
	w.events = append(w.events, ev)
}

// walk visits n's subtree. nesting counts enclosing lists.
func (w *htmlWalker) walk(n *html.Node, nesting int) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			w.emit(Event{Kind: EventHeading, Level: level, Text: textContent(n)})
			return
		}

		switch n.Data {
		case "script", "style", "nav", "footer", "header", "noscript", "template":
			return
		case "p":
			if t := textContent(n); t != "" {
				w.emit(Event{Kind: EventParagraph, Text: t})
			}
			w.images(n)
			return
		case "pre":
			w.emit(Event{Kind: EventCodeBlock, Text: rawText(n), Language: codeLanguage(n), Fenced: true})
			return
		case "ul", "ol":
			w.list(n, nesting)
			return
		case "table":
			w.table(n)
			return
		case "img":
			w.emit(imageEvent(n))
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, nesting)
	}
}

func (w *htmlWalker) list(l *html.Node, nesting int) {
	ordered := l.Data == "ol"
	idx := 1
	if v, err := strconv.Atoi(attr(l, "start")); err == nil {
		idx = v
	}
	for li := l.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		marker := "-"
		if ordered {
			marker = strconv.Itoa(idx) + "."
			idx++
		}
		w.emit(Event{Kind: EventListItem, Marker: marker, Nesting: nesting, Text: textContent(li, "ul", "ol")})
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				w.list(c, nesting+1)
			}
		}
	}
}

func (w *htmlWalker) table(t *html.Node) {
	var headers []string
	var rows [][]string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			allHeader := true
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
					continue
				}
				if c.Data != "th" {
					allHeader = false
				}
				cells = append(cells, textContent(c))
			}
			if allHeader && headers == nil && len(rows) == 0 && len(cells) > 0 {
				headers = cells
			} else if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		if n != t && n.Type == html.ElementNode && n.Data == "table" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(t)
	w.emit(Event{Kind: EventTable, Headers: headers, Rows: rows})
}

func (w *htmlWalker) images(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" {
			w.emit(imageEvent(c))
			continue
		}
		w.images(c)
	}
}

func imageEvent(n *html.Node) Event {
	return Event{Kind: EventImage, Ref: attr(n, "src"), Alt: attr(n, "alt")}
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// textContent collects the whitespace-normalized text under n, skipping
// the subtrees of any tag in skip.
func textContent(n *html.Node, skip ...string) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && slices.Contains(skip, c.Data) {
				continue
			}
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// rawText keeps whitespace, for preformatted blocks.
func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Trim(buf.String(), "\n")
}

// codeLanguage reads a "language-x" or "lang-x" class from a <pre> or its
// <code> child.
func codeLanguage(pre *html.Node) string {
	candidates := []*html.Node{pre}
	if code := findElement(pre, "code"); code != nil {
		candidates = append(candidates, code)
	}
	for _, n := range candidates {
		for _, cls := range strings.Fields(attr(n, "class")) {
			for _, prefix := range []string{"language-", "lang-"} {
				if strings.HasPrefix(cls, prefix) {
					return strings.TrimPrefix(cls, prefix)
				}
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
