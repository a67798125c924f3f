package diagram

import "strings"

type shape struct {
	open, close string
	// parenDepth shapes end where the parenthesis opened by the shape is closed
	parenDepth bool
	// bracketDepth shapes end where the square bracket opened by the shape is closed
	bracketDepth bool
	// altClose is accepted in place of close (trapezoids)
	altClose string
}

// Longest openers first so "((" wins over "(" when both could apply
var shapes = []shape{
	{open: "(((", close: ")))", parenDepth: true},
	{open: "((", close: "))", parenDepth: true},
	{open: "([", close: "])"},
	{open: "(", close: ")", parenDepth: true},
	{open: "[[", close: "]]"},
	{open: "[(", close: ")]"},
	{open: "[/", close: "/]", altClose: `\]`},
	{open: `[\`, close: `\]`, altClose: "/]"},
	{open: "[", close: "]", bracketDepth: true},
	{open: "{{", close: "}}"},
	{open: "{", close: "}"},
	{open: ">", close: "]"},
}

type segment struct {
	text string
	code bool
	pipe bool
}

// repairFlowchartLine applies fixFlowchartLine until the line stops changing. A pass
// that rewrites a label removes at least one parenthesis, so the loop is bounded.
func repairFlowchartLine(line string) string {
	for pass := 0; pass < len(line)+2; pass++ {
		next := fixFlowchartLine(line)
		if next == line {
			break
		}
		line = next
	}
	return line
}

// fixFlowchartLine escapes parentheses inside node and edge labels and normalizes
// arrow spacing in the parts of the line that are not labels.
func fixFlowchartLine(line string) string {
	var segs []segment
	var code strings.Builder

	flush := func() {
		if code.Len() > 0 {
			segs = append(segs, segment{text: code.String(), code: true})
			code.Reset()
		}
	}

	for i := 0; i < len(line); {
		c := line[i]

		switch {
		case c == '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				code.WriteString(line[i:])
				i = len(line)
				continue
			}
			flush()
			segs = append(segs, segment{text: line[i : i+end+2]})
			i += end + 2

		case c == '|':
			end := strings.IndexByte(line[i+1:], '|')
			if end < 0 {
				code.WriteString(line[i:])
				i = len(line)
				continue
			}
			flush()
			label := line[i+1 : i+1+end]
			segs = append(segs, segment{text: "|" + escapeParens(label) + "|", pipe: true})
			i += end + 2

		case i > 0 && isIDChar(line[i-1]) && strings.IndexByte("([{>", c) >= 0:
			node, n := parseNodeLabel(line[i:])
			if n == 0 {
				code.WriteByte(c)
				i++
				continue
			}
			flush()
			segs = append(segs, segment{text: node})
			i += n

		default:
			code.WriteByte(c)
			i++
		}
	}
	flush()

	return joinSegments(segs)
}

// parseNodeLabel parses the shape starting at s[0]. It returns the rewritten shape and
// the number of bytes consumed, or 0 when s does not start a well-formed shape.
func parseNodeLabel(s string) (string, int) {
	for _, sh := range shapes {
		if !strings.HasPrefix(s, sh.open) {
			continue
		}

		end, closer := findClose(s, sh)
		if end < 0 {
			continue
		}
		content := s[len(sh.open) : end-len(closer)]
		return rewriteLabel(sh, closer, content), end
	}
	return "", 0
}

// findClose returns the index just past the closing delimiter and the delimiter used
func findClose(s string, sh shape) (int, string) {
	switch {
	case sh.parenDepth:
		j := matchDepth(s, '(', ')')
		if j < 0 || j+1 < len(sh.open)+len(sh.close) || !strings.HasSuffix(s[:j+1], sh.close) {
			return -1, ""
		}
		return j + 1, sh.close

	case sh.bracketDepth:
		j := matchDepth(s, '[', ']')
		if j < 0 {
			return -1, ""
		}
		return j + 1, sh.close

	default:
		rest := s[len(sh.open):]
		start := 0
		// Quoted labels may contain the closer
		if strings.HasPrefix(rest, `"`) {
			if q := strings.IndexByte(rest[1:], '"'); q >= 0 {
				start = q + 2
			}
		}
		best, closer := -1, ""
		for _, cl := range []string{sh.close, sh.altClose} {
			if cl == "" {
				continue
			}
			if k := strings.Index(rest[start:], cl); k >= 0 && (best < 0 || start+k < best) {
				best, closer = start+k, cl
			}
		}
		if best < 0 {
			return -1, ""
		}
		return len(sh.open) + best + len(closer), closer
	}
}

// matchDepth returns the index of the delimiter that closes s[0], skipping quoted text
func matchDepth(s string, open, close byte) int {
	depth := 0
	inQuote := false
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '"':
			inQuote = !inQuote
		case open:
			if !inQuote {
				depth++
			}
		case close:
			if !inQuote {
				depth--
				if depth == 0 {
					return j
				}
			}
		}
	}
	return -1
}

func rewriteLabel(sh shape, closer, content string) string {
	inner := content
	if len(inner) >= 2 && strings.HasPrefix(inner, `"`) && strings.HasSuffix(inner, `"`) {
		inner = inner[1 : len(inner)-1]
	}

	if !strings.ContainsAny(inner, "()") {
		return sh.open + content + closer
	}

	quoted := `"` + quoteEscaper.Replace(inner) + `"`
	if sh.open == "(" || sh.open == "[" {
		return "[" + quoted + "]"
	}
	return sh.open + quoted + closer
}

var (
	parenEscaper = strings.NewReplacer("(", "&#40;", ")", "&#41;")
	// Inside a quoted label a bare quote would end the label early
	quoteEscaper = strings.NewReplacer("(", "&#40;", ")", "&#41;", `"`, "#quot;")
)

func escapeParens(s string) string {
	return parenEscaper.Replace(s)
}

func isIDChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for i, seg := range segs {
		text := seg.text
		if seg.code {
			text = spaceRe.ReplaceAllString(arrowRe.ReplaceAllString(text, " $1 "), " ")
			if i == 0 {
				text = strings.TrimLeft(text, " ")
			}
			if i > 0 && segs[i-1].pipe {
				text = " " + strings.TrimLeft(text, " ")
			}
		}
		if seg.pipe {
			// The edge label hugs its arrow
			trimmed := strings.TrimRight(b.String(), " ")
			b.Reset()
			b.WriteString(trimmed)
		}
		b.WriteString(text)
	}
	return strings.TrimSpace(b.String())
}
