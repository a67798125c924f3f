package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	encyclopediaBaseURL = "https://en.wikipedia.org/wiki/"
	minLinkPhraseRunes  = 3
)

// EncyclopediaURL builds the reference link for a phrase
func EncyclopediaURL(phrase string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(phrase), " ", "_")
	return encyclopediaBaseURL + url.PathEscape(slug)
}

// linkKeywords rewrites the first limit distinct **phrase** spans into [phrase](url).
// Spans inside code, links or raw HTML are never touched. A reference whose title
// mentions the phrase supplies the url, otherwise the encyclopedia does. The
// remaining spans stay plain emphasis.
func (p *Pipeline) linkKeywords(ctx context.Context, text string, refs []reference, limit int) string {
	if limit <= 0 || (!strings.Contains(text, "**") && !strings.Contains(text, "__")) {
		return text
	}

	source := []byte(text)
	spans := plainStrongSpans(parseMarkdown(source), source)

	targets := make(map[string]string)
	var b strings.Builder
	last := 0
	for _, span := range spans {
		if len(targets) >= limit || ctx.Err() != nil {
			break
		}

		phrase := strings.TrimSpace(span.phrase)
		key := strings.ToLower(phrase)
		if utf8.RuneCountInString(phrase) < minLinkPhraseRunes || strings.ContainsAny(phrase, "[]()`*_\\<>") {
			continue
		}
		if _, dup := targets[key]; dup {
			continue
		}

		if len(targets) > 0 && p.cfg.KeywordLinkDelay > 0 {
			sleep(ctx, p.cfg.KeywordLinkDelay)
		}

		target := referenceURL(phrase, refs)
		targets[key] = target

		b.WriteString(text[last:span.start])
		b.WriteString("[" + phrase + "](" + target + ")")
		last = span.stop
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func referenceURL(phrase string, refs []reference) string {
	lower := strings.ToLower(phrase)
	for _, ref := range refs {
		if strings.Contains(strings.ToLower(ref.Title), lower) {
			return ref.URL
		}
	}
	return EncyclopediaURL(phrase)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
