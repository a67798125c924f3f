package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderSpeech = "speech"

	defaultSpeechBaseURL = "https://api.openai.com"
	defaultSpeechModel   = "tts-1"
	defaultSpeechVoice   = "alloy"
)

// SpeechConfig configures an OpenAI-compatible /v1/audio/speech endpoint
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Timeout time.Duration
}

// HTTPSpeechSynthesizer posts text to an OpenAI-compatible speech endpoint and returns mp3 audio
type HTTPSpeechSynthesizer struct {
	cfg        SpeechConfig
	httpClient *http.Client
}

func NewSpeechSynthesizer(cfg SpeechConfig) *HTTPSpeechSynthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSpeechBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultSpeechVoice
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultSpeechTimeout
	}
	return &HTTPSpeechSynthesizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPSpeechSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, &ServiceError{Provider: ProviderSpeech, Cause: errors.New("no text to synthesize")}
	}

	body, err := json.Marshal(map[string]string{
		"model":           s.cfg.Model,
		"voice":           s.cfg.Voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return Audio{}, newServiceError(ProviderSpeech, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, newServiceError(ProviderSpeech, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Audio{}, newServiceError(ProviderSpeech, 0, fmt.Errorf("speech request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, newServiceError(ProviderSpeech, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Audio{}, newServiceError(ProviderSpeech, resp.StatusCode, fmt.Errorf("speech API returned %q", truncateBody(data)))
	}
	if len(data) == 0 {
		return Audio{}, newServiceError(ProviderSpeech, resp.StatusCode, ErrEmptyResponse)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return Audio{Data: data, ContentType: contentType, Extension: ".mp3"}, nil
}
