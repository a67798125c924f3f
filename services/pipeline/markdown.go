package pipeline

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.DefaultParser()

func parseMarkdown(source []byte) ast.Node {
	return markdownParser.Parse(text.NewReader(source))
}

// strongSpan is a **phrase** (or __phrase__) whose content is plain text.
// start and stop cover the delimiters.
type strongSpan struct {
	start, stop int
	phrase      string
}

// plainStrongSpans lists strong emphasis outside links, images, code and raw HTML,
// in document order. Spans holding anything but plain single-line text are left out.
func plainStrongSpans(doc ast.Node, source []byte) []strongSpan {
	var spans []strongSpan
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink, ast.KindImage, ast.KindCodeSpan, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		case ast.KindEmphasis:
			if n.(*ast.Emphasis).Level != 2 {
				return ast.WalkContinue, nil
			}
			if span, ok := strongSpanOf(n, source); ok {
				spans = append(spans, span)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return spans
}

func strongSpanOf(n ast.Node, source []byte) (strongSpan, bool) {
	first, ok := n.FirstChild().(*ast.Text)
	if !ok {
		return strongSpan{}, false
	}
	start, stop := first.Segment.Start, first.Segment.Stop
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok || t.SoftLineBreak() || t.HardLineBreak() {
			return strongSpan{}, false
		}
		stop = t.Segment.Stop
	}
	if start < 2 || stop+2 > len(source) {
		return strongSpan{}, false
	}
	openDelim, closeDelim := string(source[start-2:start]), string(source[stop:stop+2])
	if openDelim != closeDelim || (openDelim != "**" && openDelim != "__") {
		return strongSpan{}, false
	}
	return strongSpan{start: start - 2, stop: stop + 2, phrase: string(source[start:stop])}, true
}

// plainText renders the readable text of a document: code blocks, raw HTML and
// link targets are dropped, blocks are separated by spaces.
func plainText(doc ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock, ast.KindRawHTML, ast.KindImage:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			if entering {
				t := n.(*ast.Text)
				b.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case ast.KindString:
			if entering {
				b.Write(n.(*ast.String).Value)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
