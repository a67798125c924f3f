package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sahilchouksey/module-enhancer/utils"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

const (
	minSnippetRunes = 60
	maxSnippetRunes = 800

	furtherInfoHeading = "## Further Information"
)

// reference is a usable web snippet found for a module
type reference struct {
	Title string
	URL   string
	Text  string
}

// enrich appends up to MaxSnippets web references to text. When the search fails or
// yields nothing usable the text is returned unchanged.
func (p *Pipeline) enrich(ctx context.Context, log *logger.Logger, text, title, field string) (string, []reference) {
	if p.deps.Search == nil {
		return text, nil
	}

	query := searchQuery(title, field)
	results, err := p.deps.Search.Search(ctx, query, p.cfg.MaxSnippets*2)
	if err != nil {
		log.Warn("Web enrichment skipped", "query", query, "error", err)
		return text, nil
	}

	refs := make([]reference, 0, p.cfg.MaxSnippets)
	seen := make(map[string]bool)
	for _, r := range results {
		if len(refs) == p.cfg.MaxSnippets {
			break
		}
		url := strings.TrimSpace(r.URL)
		if url == "" || seen[url] {
			continue
		}

		// Emphasis inside snippets would otherwise be picked up by the keyword linker
		snippet := strings.ReplaceAll(utils.StripHTML(r.Content), "**", "")
		if utf8.RuneCountInString(snippet) < minSnippetRunes {
			continue
		}
		if utf8.RuneCountInString(snippet) > maxSnippetRunes {
			snippet = trimToWord(snippet, maxSnippetRunes) + "..."
		}

		refTitle := utils.CollapseWhitespace(utils.StripHTML(r.Title))
		if refTitle == "" {
			refTitle = url
		}

		seen[url] = true
		refs = append(refs, reference{Title: refTitle, URL: url, Text: snippet})
	}

	if len(refs) == 0 {
		return text, nil
	}
	return appendReferences(text, refs), refs
}

func appendReferences(text string, refs []reference) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n\n---\n\n")
	b.WriteString(furtherInfoHeading)
	b.WriteString("\n\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "- [%s](%s): %s\n", escapeLinkText(ref.Title), ref.URL, ref.Text)
	}
	return b.String()
}

// trimToWord cuts s to at most max runes, backing up to the last space when possible
func trimToWord(s string, max int) string {
	cut := utils.TruncateRunes(s, max)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", "(", "]", ")", "*", "").Replace(s)
}
