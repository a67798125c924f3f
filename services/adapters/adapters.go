// Package adapters wraps the external providers the enhancement pipeline talks to:
// text generation, web search, video search and speech synthesis. Every adapter
// returns *ServiceError (or *RateLimitError) on failure and bounds its own calls
// with a timeout.
package adapters

import (
	"context"
	"time"

	"github.com/sahilchouksey/module-enhancer/model"
)

const (
	DefaultTextTimeout   = 120 * time.Second
	DefaultSearchTimeout = 30 * time.Second
	DefaultVideoTimeout  = 15 * time.Second
	DefaultSpeechTimeout = 60 * time.Second
)

// TextRequest is a single-turn generation request
type TextRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON-only answer where supported
	JSON bool
}

// TextGenerator produces text from a prompt
type TextGenerator interface {
	Generate(ctx context.Context, req TextRequest) (string, error)
}

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// WebSearcher runs a web search and returns at most max results
type WebSearcher interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}

// VideoSearcher finds playable videos for a phrase
type VideoSearcher interface {
	SearchVideos(ctx context.Context, query string, max int) ([]model.VideoResult, error)
}

// Audio is synthesized speech
type Audio struct {
	Data        []byte
	ContentType string
	Extension   string
}

// SpeechSynthesizer turns text into audio
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// withTimeout bounds ctx by d unless ctx already has an earlier deadline
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
