package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/utils"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// generateQuizzes issues QuizCalls independent calls and keeps every set that has at
// least MinValidQuestions valid questions. It never fails; the result may be empty.
func (p *Pipeline) generateQuizzes(ctx context.Context, log *logger.Logger, title, snippet string) []model.QuizSet {
	sets := make([]model.QuizSet, 0, p.cfg.QuizCalls)
	if p.deps.Text == nil || strings.TrimSpace(snippet) == "" {
		return sets
	}
	snippet = utils.TruncateRunes(snippet, quizSnippetRunes)

	for i := 1; i <= p.cfg.QuizCalls; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 1 && p.cfg.QuizCallDelay > 0 {
			sleep(ctx, p.cfg.QuizCallDelay)
		}

		prompt := quizPrompt(title, snippet, i, p.cfg.QuestionsPerQuiz)
		raw, err := adapters.RetryOnRateLimit(ctx, p.cfg.Retry, func(ctx context.Context) (string, error) {
			return p.deps.Text.Generate(ctx, adapters.TextRequest{
				Prompt:      prompt,
				MaxTokens:   4096,
				Temperature: 0.6,
				JSON:        true,
			})
		})
		if err != nil {
			log.Warn("Quiz generation call failed", "set", i, "error", err)
			continue
		}

		set, err := parseQuizSet(raw, p.cfg.QuestionsPerQuiz, p.cfg.MinValidQuestions)
		if err != nil {
			log.Warn("Quiz set rejected", "set", i, "error", err)
			continue
		}
		sets = append(sets, set)
	}

	log.Debug("Quiz generation finished", "accepted_sets", len(sets), "calls", p.cfg.QuizCalls)
	return sets
}

// parseQuizSet decodes {"questions":[...]} or a bare array and keeps the valid questions
func parseQuizSet(raw string, max, min int) (model.QuizSet, error) {
	extracted, err := utils.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var questions []model.QuizQuestion
	if strings.HasPrefix(strings.TrimSpace(extracted), "[") {
		if err := json.Unmarshal([]byte(extracted), &questions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	} else {
		var wrapped struct {
			Questions []model.QuizQuestion `json:"questions"`
			Quiz      []model.QuizQuestion `json:"quiz"`
		}
		if err := json.Unmarshal([]byte(extracted), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		questions = wrapped.Questions
		if len(questions) == 0 {
			questions = wrapped.Quiz
		}
	}

	set := make(model.QuizSet, 0, len(questions))
	for _, q := range questions {
		if !q.Valid() {
			continue
		}
		q.Question = strings.TrimSpace(q.Question)
		q.Explanation = strings.TrimSpace(q.Explanation)
		set = append(set, q)
		if len(set) == max {
			break
		}
	}

	if len(set) < min {
		return nil, fmt.Errorf("only %d valid questions, need %d", len(set), min)
	}
	return set, nil
}
