package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeText answers each request through respond and records the prompts it saw
type fakeText struct {
	mu      sync.Mutex
	prompts []string
	respond func(ctx context.Context, req adapters.TextRequest) (string, error)
}

func (f *fakeText) Generate(ctx context.Context, req adapters.TextRequest) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeText) count(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

type fakeSearch struct {
	results []adapters.SearchResult
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, query string, max int) ([]adapters.SearchResult, error) {
	return f.results, f.err
}

type fakeVideos struct {
	mu      sync.Mutex
	queries []string
	results []model.VideoResult
}

func (f *fakeVideos) SearchVideos(ctx context.Context, query string, max int) ([]model.VideoResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.results, nil
}

type fakeNarrator struct {
	calls int
	text  string
	url   string
	err   error
}

func (f *fakeNarrator) Narrate(ctx context.Context, title, text string) (string, error) {
	f.calls++
	f.text = text
	return f.url, f.err
}

const (
	markerDetailed = "into a detailed"
	markerConcise  = "Write a concise version"
	markerTerms    = "Suggest 1 to 3 short YouTube"
	markerClassify = "Analyze the module below"
	markerDefine   = "In one sentence"
	markerQuiz     = "Create quiz set"
)

const photosynthesisRaw = "Plants convert light into chemical energy. Chlorophyll absorbs sunlight and the leaf releases oxygen."

const detailedAnswer = "## Photosynthesis\n\n" +
	"Plants capture **light energy** with **chlorophyll** and turn **carbon dioxide** and water into **glucose**.\n" +
	"Gas exchange happens through the **stomata**.\n\n" +
	"```mermaid\ngraph TD\nA[Light (sun)] --> B[Leaf]\n```\n"

const conciseAnswer = "**Photosynthesis** turns light into **glucose** inside the leaf."

func testConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		KeywordLinkLimit: 3,
		Retry:            adapters.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 1},
	}
}

func validQuestions(n int) []model.QuizQuestion {
	qs := make([]model.QuizQuestion, n)
	for i := range qs {
		qs[i] = model.QuizQuestion{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Explanation:   "Because.",
		}
	}
	return qs
}

func quizJSON(t *testing.T, qs []model.QuizQuestion) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"questions": qs})
	require.NoError(t, err)
	return string(data)
}

func searchResults() []adapters.SearchResult {
	body := "Photosynthesis is the process used by plants to convert light energy into chemical energy stored in sugars."
	return []adapters.SearchResult{
		{Title: "Photosynthesis overview", URL: "https://example.com/one", Content: body},
		{Title: "How plants make food", URL: "https://example.com/two", Content: "<p>" + body + "</p>"},
		{Title: "Leaf biology", URL: "https://example.com/three", Content: body},
	}
}

func happyText(t *testing.T) *fakeText {
	quiz := quizJSON(t, validQuestions(10))
	return &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		switch {
		case strings.Contains(req.Prompt, markerDetailed):
			return detailedAnswer, nil
		case strings.Contains(req.Prompt, markerConcise):
			return conciseAnswer, nil
		case strings.Contains(req.Prompt, markerTerms):
			return `["photosynthesis process", "chlorophyll function"]`, nil
		case strings.Contains(req.Prompt, markerDefine):
			return "The way a plant turns light into sugar.", nil
		case strings.Contains(req.Prompt, markerQuiz):
			return quiz, nil
		}
		return "", errors.New("unexpected prompt")
	}}
}

func TestGenerate_Photosynthesis(t *testing.T) {
	text := happyText(t)
	videos := &fakeVideos{results: []model.VideoResult{
		{Title: "Photosynthesis in 5 minutes", VideoID: "abc", URL: "https://www.youtube.com/watch?v=abc"},
		{Title: "Chlorophyll explained", VideoID: "def", URL: "https://www.youtube.com/watch?v=def"},
	}}
	narrator := &fakeNarrator{url: "https://cdn.example.com/narration/1_photosynthesis.mp3"}

	p := New(testConfig(), Deps{
		Text:     text,
		Search:   &fakeSearch{results: searchResults()},
		Videos:   videos,
		Narrator: narrator,
	}, logger.NewNop())

	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})

	assert.False(t, out.Degraded)
	assert.Empty(t, out.FallbackReason)

	body := strings.SplitN(out.DetailedVersion, furtherInfoHeading, 2)
	require.Len(t, body, 2, "references are appended")
	assert.Equal(t, 3, strings.Count(body[0], "](https://en.wikipedia.org/wiki/"), "link count is bounded by the limit")
	assert.Contains(t, body[0], "[light energy](https://en.wikipedia.org/wiki/light_energy)")
	assert.Contains(t, body[0], "**glucose**")
	assert.Contains(t, body[0], "**stomata**")
	assert.Contains(t, body[1], "[Photosynthesis overview](https://example.com/one)")
	assert.Contains(t, out.DetailedVersion, "&#40;sun&#41;")
	assert.NotContains(t, out.DetailedVersion, "[Light (sun)]")

	assert.Contains(t, out.ConciseVersion, "[Photosynthesis](https://example.com/one)", "a matching reference title wins")
	assert.Contains(t, out.ConciseVersion, "[glucose](https://en.wikipedia.org/wiki/glucose)")

	require.Len(t, out.KeyConceptsWithVideos, 2)
	first := out.KeyConceptsWithVideos[0]
	assert.Equal(t, "Photosynthesis process", first.Concept)
	assert.Equal(t, "The way a plant turns light into sugar.", first.Definition)
	assert.Len(t, first.Videos, 2)
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/photosynthesis_process"}, first.EncyclopediaLinks)
	assert.ElementsMatch(t, []string{"photosynthesis process", "chlorophyll function"}, videos.queries)

	require.Len(t, out.GeneratedQuizzes, 5)
	for _, set := range out.GeneratedQuizzes {
		assert.Len(t, set, 10)
	}

	assert.Equal(t, narrator.url, out.NarrationURL)
	assert.Equal(t, 1, narrator.calls)
	assert.NotContains(t, narrator.text, "```")

	assert.Equal(t, 2, text.count("agriculture field"), "definitions use the detected field")
	assert.Equal(t, 1, text.count(markerTerms))
	assert.Equal(t, 0, text.count(markerClassify))
}

func TestGenerate_AllServicesFail(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		return "", errors.New("provider down")
	}}
	narrator := &fakeNarrator{url: "unused"}

	p := New(testConfig(), Deps{
		Text:     text,
		Search:   &fakeSearch{err: errors.New("search down")},
		Videos:   &fakeVideos{},
		Narrator: narrator,
	}, logger.NewNop())

	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})

	assert.True(t, out.Degraded)
	assert.Equal(t, ErrGeneration.Error(), out.FallbackReason)
	assert.Equal(t, photosynthesisRaw, out.DetailedVersion)
	assert.Equal(t, photosynthesisRaw, out.ConciseVersion)
	assert.NotNil(t, out.KeyConceptsWithVideos)
	assert.Empty(t, out.KeyConceptsWithVideos)
	assert.Empty(t, out.GeneratedQuizzes)
	assert.Empty(t, out.NarrationURL)
	assert.Zero(t, narrator.calls)
}

func TestGenerate_OneVersionFails(t *testing.T) {
	happy := happyText(t)
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, markerConcise) {
			return "", errors.New("concise failed")
		}
		return happy.respond(ctx, req)
	}}

	p := New(testConfig(), Deps{Text: text, Search: &fakeSearch{results: searchResults()}}, logger.NewNop())
	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})

	assert.False(t, out.Degraded)
	assert.Equal(t, photosynthesisRaw, out.ConciseVersion, "a failed version stays raw and unenriched")
	assert.Contains(t, out.DetailedVersion, furtherInfoHeading)
}

func TestGenerate_KeywordLinkOverride(t *testing.T) {
	zero := 0
	p := New(testConfig(), Deps{Text: happyText(t)}, logger.NewNop())

	out := p.Generate(context.Background(), Input{
		Title:            "Photosynthesis",
		RawContent:       photosynthesisRaw,
		KeywordLinkLimit: &zero,
	})

	assert.NotContains(t, out.DetailedVersion, "wikipedia.org")
	assert.Contains(t, out.DetailedVersion, "**light energy**")
}

func TestGenerate_Timeout(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond

	p := New(cfg, Deps{Text: text}, logger.NewNop())

	started := time.Now()
	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.True(t, out.Degraded)
	assert.Equal(t, ErrTimeout.Error(), out.FallbackReason)
	assert.Equal(t, photosynthesisRaw, out.DetailedVersion)
	assert.Equal(t, photosynthesisRaw, out.ConciseVersion)
	assert.Empty(t, out.KeyConceptsWithVideos)
}

func TestGenerate_CallerCancellation(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	p := New(testConfig(), Deps{Text: text}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	out := p.Generate(ctx, Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})
	assert.True(t, out.Degraded)
	assert.Equal(t, context.Canceled.Error(), out.FallbackReason)
}

func TestGenerate_PanicFallsBack(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		panic("boom")
	}}
	p := New(testConfig(), Deps{Text: text}, logger.NewNop())

	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})
	assert.True(t, out.Degraded)
	assert.Contains(t, out.FallbackReason, "boom")
	assert.Equal(t, photosynthesisRaw, out.DetailedVersion)
}

func TestGenerate_NarrationFailureIsIgnored(t *testing.T) {
	narrator := &fakeNarrator{err: errors.New("speech down")}
	p := New(testConfig(), Deps{Text: happyText(t), Narrator: narrator}, logger.NewNop())

	out := p.Generate(context.Background(), Input{Title: "Photosynthesis", RawContent: photosynthesisRaw})
	assert.False(t, out.Degraded)
	assert.Empty(t, out.NarrationURL)
	assert.Equal(t, 1, narrator.calls)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()

	assert.Equal(t, def.Timeout, cfg.Timeout)
	assert.Equal(t, def.QuizCalls, cfg.QuizCalls)
	assert.Equal(t, def.Retry, cfg.Retry)
	assert.Equal(t, def.MaxConcepts, cfg.MaxConcepts)
	assert.NotEmpty(t, cfg.FieldRules)
	assert.Zero(t, cfg.KeywordLinkLimit, "zero disables linking")
	assert.Zero(t, cfg.QuizCallDelay)
}
