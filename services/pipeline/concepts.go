package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// resolveConcepts builds a KeyConcept for each of the first MaxConcepts terms.
// A term that found no videos and whose definition call failed carries nothing
// worth showing and is dropped.
func (p *Pipeline) resolveConcepts(ctx context.Context, log *logger.Logger, terms []string, field string) []model.KeyConcept {
	concepts := make([]model.KeyConcept, 0, p.cfg.MaxConcepts)

	for i, term := range terms {
		if i == p.cfg.MaxConcepts || ctx.Err() != nil {
			break
		}

		videos := []model.VideoResult{}
		if p.deps.Videos != nil {
			found, err := p.deps.Videos.SearchVideos(ctx, term, p.cfg.VideosPerConcept)
			if err != nil {
				log.Warn("Video lookup failed", "term", term, "error", err)
			} else if found != nil {
				videos = found
			}
		}
		if len(videos) > p.cfg.VideosPerConcept {
			videos = videos[:p.cfg.VideosPerConcept]
		}

		definition, defined := p.define(ctx, term, field)
		if !defined && len(videos) == 0 {
			log.Debug("Dropping empty concept", "term", term)
			continue
		}

		concepts = append(concepts, model.KeyConcept{
			Concept:           capitalize(term),
			Definition:        definition,
			Videos:            videos,
			EncyclopediaLinks: []string{EncyclopediaURL(term)},
		})
	}
	return concepts
}

// define returns a one-line definition, or the static fallback and false
func (p *Pipeline) define(ctx context.Context, term, field string) (string, bool) {
	fallback := fmt.Sprintf("%s: a key concept in %s.", capitalize(term), field)
	if p.deps.Text == nil {
		return fallback, false
	}

	out, err := p.deps.Text.Generate(ctx, adapters.TextRequest{
		Prompt:      definitionPrompt(term, field),
		MaxTokens:   100,
		Temperature: 0.2,
	})
	if err != nil {
		return fallback, false
	}

	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return fallback, false
	}
	return line, true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
