// Package pipeline turns the raw content of a learning module into an enhanced
// artifact: generated long and short versions, web references, linked key terms,
// repaired diagrams, key concepts with videos and quiz sets.
//
// Every stage has a fallback. Generate never fails; in the worst case it returns
// the raw content unchanged.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/services/diagram"
	"github.com/sahilchouksey/module-enhancer/utils"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTimeout is the reason recorded when a run exceeds Config.Timeout
	ErrTimeout = errors.New("enhancement timed out")
	// ErrParse marks a structured answer that could not be decoded
	ErrParse = errors.New("unparseable model output")
	// ErrGeneration is the reason recorded when no version could be generated
	ErrGeneration = errors.New("text generation failed for both versions")
)

// Config tunes the pipeline. Zero values are replaced by DefaultConfig values in New.
type Config struct {
	Timeout time.Duration

	KeywordLinkLimit int
	KeywordLinkDelay time.Duration

	QuizCalls         int
	QuestionsPerQuiz  int
	MinValidQuestions int
	QuizCallDelay     time.Duration
	Retry             adapters.RetryConfig

	MaxVideoTerms    int
	MaxConcepts      int
	VideosPerConcept int
	MaxSnippets      int

	FieldRules []FieldRule
}

func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Minute,
		KeywordLinkLimit:  3,
		KeywordLinkDelay:  500 * time.Millisecond,
		QuizCalls:         5,
		QuestionsPerQuiz:  10,
		MinValidQuestions: 5,
		QuizCallDelay:     2 * time.Second,
		Retry:             adapters.DefaultRetryConfig(),
		MaxVideoTerms:     3,
		MaxConcepts:       2,
		VideosPerConcept:  3,
		MaxSnippets:       3,
		FieldRules:        DefaultFieldRules,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.QuizCalls <= 0 {
		c.QuizCalls = def.QuizCalls
	}
	if c.QuestionsPerQuiz <= 0 {
		c.QuestionsPerQuiz = def.QuestionsPerQuiz
	}
	if c.MinValidQuestions <= 0 {
		c.MinValidQuestions = def.MinValidQuestions
	}
	if c.Retry.MaxRetries == 0 && c.Retry.BaseDelay == 0 {
		c.Retry = def.Retry
	}
	if c.MaxVideoTerms <= 0 {
		c.MaxVideoTerms = def.MaxVideoTerms
	}
	if c.MaxConcepts <= 0 {
		c.MaxConcepts = def.MaxConcepts
	}
	if c.VideosPerConcept <= 0 {
		c.VideosPerConcept = def.VideosPerConcept
	}
	if c.MaxSnippets <= 0 {
		c.MaxSnippets = def.MaxSnippets
	}
	if len(c.FieldRules) == 0 {
		c.FieldRules = def.FieldRules
	}
	return c
}

// Deps are the external services a pipeline talks to. Search and Narrator may be nil.
type Deps struct {
	Text     adapters.TextGenerator
	Search   adapters.WebSearcher
	Videos   adapters.VideoSearcher
	Narrator Narrator
}

// Input describes one module to enhance
type Input struct {
	Title               string
	RawContent          string
	SubjectContext      string
	InstructionOverride string
	SubjectName         string
	ProfessionName      string
	ModuleNumber        int
	// KeywordLinkLimit overrides Config.KeywordLinkLimit when set
	KeywordLinkLimit *int
}

type Pipeline struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

func New(cfg Config, deps Deps, log *logger.Logger) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults(), deps: deps, log: log}
}

// Generate runs every stage against a deadline of Config.Timeout. When the deadline
// passes first, or a stage panics, the raw-content fallback is returned and the
// abandoned run's results are discarded.
func (p *Pipeline) Generate(ctx context.Context, in Input) model.EnhancedContent {
	log := p.log.With("run_id", uuid.NewString(), "title", in.Title)
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	done := make(chan model.EnhancedContent, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Enhancement run panicked", "panic", r)
				done <- model.FallbackContent(in.RawContent, fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- p.run(ctx, in, log)
	}()

	select {
	case out := <-done:
		log.Info("Enhancement run finished", "duration", time.Since(started), "degraded", out.Degraded)
		return out
	case <-ctx.Done():
		reason := ErrTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ctx.Err()
		}
		log.Warn("Enhancement run abandoned", "duration", time.Since(started), "reason", reason)
		return model.FallbackContent(in.RawContent, reason.Error())
	}
}

func (p *Pipeline) run(ctx context.Context, in Input, log *logger.Logger) model.EnhancedContent {
	// Stages 1 and 2 are independent generations from the raw content
	detailed, detailedOK := p.generateVersion(ctx, log, "detailed", adapters.TextRequest{
		System:      writerSystemPrompt,
		Prompt:      detailedPrompt(in),
		MaxTokens:   4096,
		Temperature: 0.7,
	}, in.RawContent)
	concise, conciseOK := p.generateVersion(ctx, log, "concise", adapters.TextRequest{
		System:      writerSystemPrompt,
		Prompt:      concisePrompt(in),
		MaxTokens:   800,
		Temperature: 0.5,
	}, in.RawContent)

	// Stage 3
	field := DetectField(p.cfg.FieldRules, in.Title, in.RawContent, in.SubjectContext)
	log.Debug("Detected field", "field", field)

	// Stages 4 and 5 only touch generated versions; a fallback version stays raw
	linkLimit := p.cfg.KeywordLinkLimit
	if in.KeywordLinkLimit != nil {
		linkLimit = *in.KeywordLinkLimit
	}
	if detailedOK {
		var refs []reference
		detailed, refs = p.enrich(ctx, log, detailed, in.Title, field)
		detailed = p.linkKeywords(ctx, detailed, refs, linkLimit)
	}
	if conciseOK {
		var refs []reference
		concise, refs = p.enrich(ctx, log, concise, in.Title, field)
		concise = p.linkKeywords(ctx, concise, refs, linkLimit)
	}

	// Stage 6 works on snapshots so the subtasks share nothing
	quizSource := in.RawContent
	if detailedOK {
		quizSource = detailed
	}
	quizSnippet := utils.TruncateRunes(quizSource, quizSnippetRunes)
	termSource := quizSnippet

	normDetailed, normConcise := detailed, concise
	var (
		terms   []string
		quizzes []model.QuizSet
		g       errgroup.Group
	)
	g.Go(func() error {
		terms = p.videoTerms(ctx, log, in.Title, termSource, in.RawContent, field)
		return nil
	})
	g.Go(func() error {
		if detailedOK {
			normDetailed = diagram.Normalize(detailed)
		}
		if conciseOK {
			normConcise = diagram.Normalize(concise)
		}
		return nil
	})
	g.Go(func() error {
		quizzes = p.generateQuizzes(ctx, log, in.Title, quizSnippet)
		return nil
	})
	_ = g.Wait()

	// Stage 7
	concepts := p.resolveConcepts(ctx, log, terms, field)

	out := model.EnhancedContent{
		ConciseVersion:        normConcise,
		DetailedVersion:       normDetailed,
		KeyConceptsWithVideos: concepts,
		GeneratedQuizzes:      quizzes,
	}

	if !detailedOK && !conciseOK {
		out.Degraded = true
		out.FallbackReason = ErrGeneration.Error()
		return out
	}

	if p.deps.Narrator != nil {
		url, err := p.deps.Narrator.Narrate(ctx, in.Title, normConcise)
		if err != nil {
			log.Warn("Narration skipped", "error", err)
		} else {
			out.NarrationURL = url
		}
	}

	return out
}

// generateVersion returns the generated text, or fallback and false when the call fails
func (p *Pipeline) generateVersion(ctx context.Context, log *logger.Logger, name string, req adapters.TextRequest, fallback string) (string, bool) {
	if p.deps.Text == nil {
		return fallback, false
	}

	started := time.Now()
	out, err := p.deps.Text.Generate(ctx, req)
	if err == nil && strings.TrimSpace(out) == "" {
		err = adapters.ErrEmptyResponse
	}
	if err != nil {
		log.Warn("Generation failed, keeping raw content", "version", name, "error", err)
		return fallback, false
	}

	log.Debug("Generated version", "version", name, "chars", len(out), "duration", time.Since(started))
	return strings.TrimSpace(out), true
}
