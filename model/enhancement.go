package model

import "strings"

// VideoResult is a single playable video found for a search phrase
type VideoResult struct {
	Title       string `json:"title"`
	VideoID     string `json:"videoId"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// KeyConcept is a concept extracted from module content together with supporting media
type KeyConcept struct {
	Concept           string        `json:"concept"`
	Definition        string        `json:"definition"`
	Videos            []VideoResult `json:"videos"`
	EncyclopediaLinks []string      `json:"encyclopediaLinks,omitempty"`
}

// QuizQuestion is a multiple-choice question with exactly four options
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Valid reports whether the question can be shown to a learner as-is
func (q QuizQuestion) Valid() bool {
	if strings.TrimSpace(q.Question) == "" || len(q.Options) != 4 {
		return false
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return false
		}
	}
	return q.CorrectAnswer >= 0 && q.CorrectAnswer <= 3
}

// QuizSet is one group of questions generated in a single call
type QuizSet []QuizQuestion

// EnhancedContent is the artifact produced by one enhancement run.
// ConciseVersion and DetailedVersion are never empty; on failure they hold the raw input.
type EnhancedContent struct {
	ConciseVersion        string       `json:"conciseVersion"`
	DetailedVersion       string       `json:"detailedVersion"`
	KeyConceptsWithVideos []KeyConcept `json:"keyConceptsWithVideos"`
	GeneratedQuizzes      []QuizSet    `json:"generatedQuizzes,omitempty"`
	NarrationURL          string       `json:"narrationUrl,omitempty"`

	// Degraded is set when the result is the raw-content fallback
	Degraded       bool   `json:"degraded,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// FallbackContent builds the degraded artifact that keeps the original content
func FallbackContent(rawContent, reason string) EnhancedContent {
	return EnhancedContent{
		ConciseVersion:        rawContent,
		DetailedVersion:       rawContent,
		KeyConceptsWithVideos: []KeyConcept{},
		Degraded:              true,
		FallbackReason:        reason,
	}
}
