// Package diagram repairs the mermaid blocks language models write into markdown so
// that they render. Everything outside ```mermaid fences is left untouched.
package diagram

import (
	"regexp"
	"strings"
)

const (
	// DefaultHeader is used when a block carries no diagram declaration
	DefaultHeader = "flowchart TD"

	openFence  = "```mermaid"
	closeFence = "```"
	indent     = "    "
)

var (
	wikiLinkRe = regexp.MustCompile(`\[([^\[\]]+)\]\(https?://[a-z\-]+\.(?:m\.)?wikipedia\.org/[^()\s]*(?:\([^()\s]*\)[^()\s]*)*\)`)

	flowchartHeaderRe = regexp.MustCompile(`(?i)^(flowchart|graph)(\s+(TB|TD|BT|RL|LR))?\s*;?$`)
	otherHeaderRe     = regexp.MustCompile(`^(sequenceDiagram|classDiagram(-v2)?|stateDiagram(-v2)?|erDiagram|gantt|pie|journey|gitGraph|mindmap|timeline|quadrantChart|requirementDiagram|C4Context|C4Container|C4Component|C4Dynamic|C4Deployment|sankey-beta|xychart-beta|block-beta|packet-beta|architecture-beta|kanban)(\s.*)?$`)

	arrowRe = regexp.MustCompile(`\s*(<?-\.+->|<?-{2,}>|<?={2,}>|-{3,})\s*`)
	spaceRe = regexp.MustCompile(` {2,}`)
)

// Normalize rewrites every fenced mermaid block in markdown. It is idempotent.
func Normalize(markdown string) string {
	if !strings.Contains(markdown, openFence) {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	out := make([]string, 0, len(lines))

	inOtherFence := false
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if inOtherFence {
			out = append(out, lines[i])
			if trimmed == closeFence {
				inOtherFence = false
			}
			continue
		}

		if strings.HasPrefix(trimmed, openFence) {
			var body []string
			j := i + 1
			for ; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == closeFence {
					break
				}
				body = append(body, lines[j])
			}

			out = append(out, openFence)
			out = append(out, normalizeBlock(body)...)
			out = append(out, closeFence)
			// j is the closing fence, or len(lines) for an unclosed block
			i = j
			continue
		}

		if strings.HasPrefix(trimmed, closeFence) {
			inOtherFence = true
		}
		out = append(out, lines[i])
	}

	return strings.Join(out, "\n")
}

// normalizeBlock returns the repaired body of one mermaid block, header first
func normalizeBlock(body []string) []string {
	lines := make([]string, 0, len(body))
	for _, raw := range body {
		line := strings.TrimSpace(stripWikiLinks(raw))
		if line == "" {
			continue
		}
		// Consecutive duplicate declarations collapse into one
		if n := len(lines); n > 0 && isHeader(line) && isHeader(lines[n-1]) && sameDiagramType(line, lines[n-1]) {
			continue
		}
		lines = append(lines, line)
	}

	lines = ensureHeader(lines)
	header := lines[0]
	flowchart := flowchartHeaderRe.MatchString(header)

	out := make([]string, 0, len(lines))
	out = append(out, header)
	for _, line := range lines[1:] {
		if flowchart && !isFlowchartDirective(line) {
			line = repairFlowchartLine(line)
		}
		out = append(out, indent+line)
	}
	return out
}

// stripWikiLinks keeps the text of encyclopedia links. Removing an inner link can
// expose an outer one, so it repeats until nothing matches.
func stripWikiLinks(line string) string {
	for {
		next := wikiLinkRe.ReplaceAllString(line, "$1")
		if next == line {
			return line
		}
		line = next
	}
}

func ensureHeader(lines []string) []string {
	if len(lines) == 0 {
		return []string{DefaultHeader}
	}
	if isHeader(lines[0]) {
		return lines
	}

	for i := 1; i < len(lines); i++ {
		if isHeader(lines[i]) {
			moved := make([]string, 0, len(lines))
			moved = append(moved, lines[i])
			moved = append(moved, lines[:i]...)
			return append(moved, lines[i+1:]...)
		}
	}

	return append([]string{DefaultHeader}, lines...)
}

func isHeader(line string) bool {
	return flowchartHeaderRe.MatchString(line) || otherHeaderRe.MatchString(line)
}

func sameDiagramType(a, b string) bool {
	return strings.EqualFold(firstWord(a), firstWord(b))
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return strings.TrimSuffix(fields[0], ";")
	}
	return ""
}

func isFlowchartDirective(line string) bool {
	if strings.HasPrefix(line, "%%") {
		return true
	}
	switch firstWord(line) {
	case "subgraph", "end", "classDef", "class", "style", "linkStyle", "click", "direction":
		return true
	}
	return false
}
