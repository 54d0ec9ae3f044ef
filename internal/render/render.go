// Package render formats pipeline output for a terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docchunk/internal/detect"
	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/validate"
)

var (
	// titleStyle for bold headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// dimStyle for muted labels
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	criticalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160"))

	// boxStyle for the per-document summary
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)
)

// Summary renders the stats box for one document.
func Summary(w io.Writer, name string, res *pipeline.Result) {
	st := res.Stats

	status := successStyle.Render("VALID")
	switch {
	case res.Report == nil:
		status = dimStyle.Render("NOT VALIDATED")
	case res.Report.HasErrors():
		status = errorStyle.Render("ERRORS")
	case !res.Report.Valid():
		status = warningStyle.Render("WARNINGS")
	}

	title := res.Title
	if title == "" {
		title = name
	}

	lines := []string{
		titleStyle.Render(title) + "  " + status,
		fmt.Sprintf("%s %s  %s %s  %s %.1fms",
			dimStyle.Render("Source:"), name,
			dimStyle.Render("Format:"), res.Format,
			dimStyle.Render("Elapsed:"), st.ElapsedMs,
		),
		fmt.Sprintf("%s %d  %s %d  %s %d into %d",
			dimStyle.Render("Nodes:"), st.NodeCount,
			dimStyle.Render("Max depth:"), st.MaxDepth,
			dimStyle.Render("Split:"), st.SplitCount, st.PiecesProduced,
		),
		fmt.Sprintf("%s %s total  %d min  %d max  %.1f avg  %s",
			dimStyle.Render("Tokens:"), formatNumber(st.TotalTokens),
			st.MinTokens, st.MaxTokens, st.AvgTokens,
			dimStyle.Render("("+st.Counter+")"),
		),
	}
	if kinds := kindCounts(st.CountsByKind); kinds != "" {
		lines = append(lines, dimStyle.Render("Kinds:")+" "+kinds)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// Issues lists every validation issue with its severity colored.
func Issues(w io.Writer, report *validate.Report) {
	if report == nil {
		return
	}
	if len(report.Issues) == 0 {
		fmt.Fprintln(w, successStyle.Render("✓")+" "+fmt.Sprintf("%d nodes checked, no issues", report.NodesChecked))
		return
	}
	for _, is := range report.Issues {
		fmt.Fprintf(w, "%s %s %s %s\n",
			severity(is.Severity),
			dimStyle.Render(string(is.Type)),
			is.NodeID,
			is.Message,
		)
	}
	counts := report.CountBySeverity()
	fmt.Fprintf(w, "%s %d critical, %d errors, %d warnings\n",
		dimStyle.Render("Total:"),
		counts[validate.SeverityCritical], counts[validate.SeverityError], counts[validate.SeverityWarning],
	)
}

// Detections lists structural detector output, one line per node.
func Detections(w io.Writer, results []detect.Result) {
	for _, r := range results {
		indent := strings.Repeat("  ", r.Depth)
		label := r.Node.Kind
		if r.IsHeading() {
			label = headingStyle.Render(label)
		}
		fmt.Fprintf(w, "%s %s%s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%.2f", r.Confidence)),
			indent,
			label,
			dimStyle.Render("["+string(r.Method)+"]"),
			preview(r.Node, 60),
		)
	}
}

// Outline prints the structural skeleton of a node collection, one heading,
// page or sheet per line, with the number of content nodes directly under it.
func Outline(w io.Writer, nodes []*doctree.Node) {
	doctree.Walk(doctree.BuildTree(nodes), func(t *doctree.TreeNode, depth int) bool {
		s, ok := t.Node.Body.(*doctree.Structural)
		if !ok {
			return false
		}
		leaves := 0
		for _, c := range t.Children {
			if _, nested := c.Node.Body.(*doctree.Structural); !nested {
				leaves++
			}
		}
		title := s.Title
		if title == "" {
			title = t.Node.Kind
		}
		fmt.Fprintf(w, "%s%s %s\n",
			strings.Repeat("  ", depth),
			headingStyle.Render(title),
			dimStyle.Render(fmt.Sprintf("(%d)", leaves)),
		)
		return true
	})
}

func severity(s validate.Severity) string {
	switch s {
	case validate.SeverityCritical:
		return criticalStyle.Render(" CRITICAL ")
	case validate.SeverityError:
		return errorStyle.Render("ERROR")
	default:
		return warningStyle.Render("WARN")
	}
}

func kindCounts(counts map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

// preview returns the node text on one line, cut to limit runes.
func preview(n *doctree.Node, limit int) string {
	text := strings.Join(strings.Fields(n.Text()), " ")
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit-1]) + "…"
}

// formatNumber adds commas to large numbers for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
