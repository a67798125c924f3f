package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/services/digitalocean"
	"github.com/sahilchouksey/module-enhancer/utils"
)

const maxNarrationRunes = 4000

// Narrator produces a hosted audio reading of a module and returns its URL
type Narrator interface {
	Narrate(ctx context.Context, title, markdown string) (string, error)
}

// Uploader stores a public object and returns its URL
type Uploader interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// SpeechNarrator synthesizes speech and uploads it to object storage
type SpeechNarrator struct {
	speech   adapters.SpeechSynthesizer
	uploader Uploader
}

func NewSpeechNarrator(speech adapters.SpeechSynthesizer, uploader Uploader) *SpeechNarrator {
	return &SpeechNarrator{speech: speech, uploader: uploader}
}

func (n *SpeechNarrator) Narrate(ctx context.Context, title, markdown string) (string, error) {
	text := NarrationText(markdown)
	if text == "" {
		return "", fmt.Errorf("nothing to narrate for %q", title)
	}

	audio, err := n.speech.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	key := digitalocean.GenerateKey("narration", slugify(title), audio.Extension)
	url, err := n.uploader.UploadBytes(ctx, key, audio.Data, audio.ContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload narration: %w", err)
	}
	return url, nil
}

// NarrationText strips markdown that should not be read aloud
func NarrationText(markdown string) string {
	// Drop the appended references
	if i := strings.Index(markdown, furtherInfoHeading); i >= 0 {
		markdown = markdown[:i]
	}
	source := []byte(markdown)
	text := plainText(parseMarkdown(source), source)
	return utils.TruncateRunes(utils.CollapseWhitespace(text), maxNarrationRunes)
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "module"
	}
	return slug
}
