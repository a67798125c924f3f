package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/utils"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

const maxTermRunes = 60

// termStrategy yields search phrases or reports that it could not
type termStrategy struct {
	name string
	run  func(ctx context.Context) ([]string, bool)
}

// videoTerms picks 1 to MaxVideoTerms search phrases. Strategies are tried in order
// and the first one that yields at least one phrase wins.
func (p *Pipeline) videoTerms(ctx context.Context, log *logger.Logger, title, content, rawContent, field string) []string {
	var primary string
	var primaryErr error
	primaryDone := false

	// Both parsing strategies read the same answer; ask only once
	ask := func(ctx context.Context) (string, error) {
		if !primaryDone {
			primaryDone = true
			primary, primaryErr = p.generateJSON(ctx, videoTermsPrompt(title, content, field))
		}
		return primary, primaryErr
	}

	strategies := []termStrategy{
		{name: "strict_json", run: func(ctx context.Context) ([]string, bool) {
			raw, err := ask(ctx)
			if err != nil {
				return nil, false
			}
			return parseStrictTerms(raw)
		}},
		{name: "extracted_json", run: func(ctx context.Context) ([]string, bool) {
			raw, err := ask(ctx)
			if err != nil {
				return nil, false
			}
			return parseExtractedTerms(raw)
		}},
		{name: "classify", run: func(ctx context.Context) ([]string, bool) {
			raw, err := p.generateJSON(ctx, classifyTermsPrompt(title, content))
			if err != nil {
				return nil, false
			}
			if terms, ok := parseStrictTerms(raw); ok {
				return terms, true
			}
			return parseExtractedTerms(raw)
		}},
		{name: "keyword_sniffing", run: func(context.Context) ([]string, bool) {
			return sniffTerms(p.cfg.FieldRules, title, rawContent)
		}},
		{name: "title_word", run: func(context.Context) ([]string, bool) {
			return titleWord(title, field), true
		}},
	}

	for _, s := range strategies {
		terms, ok := s.run(ctx)
		if !ok {
			continue
		}
		if terms = cleanTerms(terms, p.cfg.MaxVideoTerms); len(terms) > 0 {
			log.Debug("Video terms chosen", "strategy", s.name, "terms", terms)
			return terms
		}
	}
	return nil
}

func (p *Pipeline) generateJSON(ctx context.Context, prompt string) (string, error) {
	if p.deps.Text == nil {
		return "", fmt.Errorf("%w: no text generator", ErrParse)
	}
	return p.deps.Text.Generate(ctx, adapters.TextRequest{
		Prompt:      prompt,
		MaxTokens:   300,
		Temperature: 0.3,
		JSON:        true,
	})
}

func parseStrictTerms(raw string) ([]string, bool) {
	var terms []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &terms); err != nil {
		return nil, false
	}
	return terms, len(terms) > 0
}

func parseExtractedTerms(raw string) ([]string, bool) {
	extracted, err := utils.ExtractJSON(raw)
	if err != nil {
		return nil, false
	}

	var terms []string
	if err := json.Unmarshal([]byte(extracted), &terms); err == nil && len(terms) > 0 {
		return terms, true
	}

	var wrapped struct {
		Terms   []string `json:"terms"`
		Phrases []string `json:"phrases"`
	}
	if err := json.Unmarshal([]byte(extracted), &wrapped); err != nil {
		return nil, false
	}
	if len(wrapped.Terms) > 0 {
		return wrapped.Terms, true
	}
	return wrapped.Phrases, len(wrapped.Phrases) > 0
}

// sniffTerms collects rule keywords that occur in the title or content, title matches first
func sniffTerms(rules []FieldRule, title, content string) ([]string, bool) {
	var terms []string
	for _, source := range []string{strings.ToLower(title), strings.ToLower(content)} {
		for _, rule := range rules {
			for _, kw := range rule.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" && containsWord(source, kw) {
					terms = append(terms, kw)
				}
			}
		}
	}
	return terms, len(terms) > 0
}

func titleWord(title, field string) []string {
	if fields := strings.Fields(title); len(fields) > 0 {
		return []string{strings.Trim(fields[0], ".,:;!?\"'()[]")}
	}
	return []string{field}
}

// cleanTerms trims, drops empties and duplicates, and caps the list
func cleanTerms(terms []string, max int) []string {
	out := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, t := range terms {
		t = utils.CollapseWhitespace(strings.Trim(t, " \t\n\"'*`"))
		if t == "" || utf8.RuneCountInString(t) > maxTermRunes {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return out
}
