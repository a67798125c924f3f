package app

import (
	"context"
	"fmt"

	"github.com/sahilchouksey/module-enhancer/config"
	"github.com/sahilchouksey/module-enhancer/database"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/services/digitalocean"
	"github.com/sahilchouksey/module-enhancer/services/pipeline"
	"github.com/sahilchouksey/module-enhancer/utils/cache"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// Rough per-call spend recorded in the cost ledger
var textCostPerCall = map[string]float64{
	adapters.ProviderDigitalOcean: 0.002,
	adapters.ProviderGemini:       0.001,
	adapters.ProviderClaude:       0.006,
}

// BuildPipeline wires the content pipeline from configuration. Missing credentials
// disable the matching stage instead of failing, since every stage has a fallback.
// ledger may be nil.
func BuildPipeline(ctx context.Context, env *config.EnviornmentVariable, ledger database.CostLedger, log *logger.Logger) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	cfg := pipeline.DefaultConfig()
	cfg.Timeout = env.PIPELINE_TIMEOUT
	cfg.KeywordLinkLimit = env.KEYWORD_LINK_LIMIT
	cfg.KeywordLinkDelay = env.KEYWORD_LINK_DELAY
	cfg.QuizCallDelay = env.QUIZ_CALL_DELAY
	if env.FIELD_RULES_FILE != "" {
		rules, err := pipeline.LoadFieldRules(env.FIELD_RULES_FILE)
		if err != nil {
			return nil, cleanup, err
		}
		cfg.FieldRules = rules
	}

	var deps pipeline.Deps

	text, err := buildTextGenerator(ctx, env)
	if err != nil {
		log.Warn("Text generation disabled, modules will be published unenhanced", "provider", env.LLM_PROVIDER, "error", err)
	} else {
		deps.Text = text
		if ledger != nil {
			deps.Text = adapters.NewMeteredTextGenerator(text, ledger, env.LLM_PROVIDER, textCostPerCall[env.LLM_PROVIDER], log)
		}
	}

	search := adapters.NewWebSearcher(adapters.WebSearchConfig{
		TavilyKey: env.TAVILY_API_KEY,
		ExaKey:    env.EXA_API_KEY,
	})
	if search.Enabled() {
		deps.Search = search
	} else {
		log.Info("Web enrichment disabled: no search provider key")
	}

	if env.YOUTUBE_API_KEY != "" {
		videos, closeStore, err := buildVideoSearcher(ctx, env, log)
		if err != nil {
			return nil, cleanup, err
		}
		if closeStore != nil {
			closers = append(closers, closeStore)
		}
		deps.Videos = videos
	} else {
		log.Info("Video discovery disabled: YOUTUBE_API_KEY not set")
	}

	if env.NARRATION_ENABLED {
		narrator, err := buildNarrator(env)
		if err != nil {
			log.Warn("Narration disabled", "error", err)
		} else {
			deps.Narrator = narrator
		}
	}

	return pipeline.New(cfg, deps, log), cleanup, nil
}

func buildTextGenerator(ctx context.Context, env *config.EnviornmentVariable) (adapters.TextGenerator, error) {
	cfg := adapters.TextGeneratorConfig{
		Provider: env.LLM_PROVIDER,
		Model:    env.LLM_MODEL,
	}
	switch env.LLM_PROVIDER {
	case adapters.ProviderGemini:
		cfg.APIKey = env.GEMINI_API_KEY
	case adapters.ProviderClaude:
		cfg.APIKey = env.CLAUDE_API_KEY
	default:
		cfg.APIKey = env.MODEL_ACCESS_KEY
	}
	return adapters.NewTextGenerator(ctx, cfg)
}

func buildVideoSearcher(ctx context.Context, env *config.EnviornmentVariable, log *logger.Logger) (adapters.VideoSearcher, func(), error) {
	upstream, err := adapters.NewYouTubeSearcher(ctx, adapters.YouTubeConfig{APIKey: env.YOUTUBE_API_KEY})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	var store adapters.VideoStore = adapters.NewMemoryVideoStore()
	var closeStore func()
	if env.VIDEO_CACHE_BACKEND == "redis" {
		redisCache, err := cache.NewRedisCache(env.REDIS_URL, "enhancer:")
		if err != nil {
			log.Warn("Redis unavailable, caching videos in memory", "error", err)
		} else {
			store = adapters.NewRedisVideoStore(redisCache)
			closeStore = func() { _ = redisCache.Close() }
		}
	}

	limiter := digitalocean.NewMinIntervalLimiter(env.VIDEO_MIN_INTERVAL)
	return adapters.NewCachedVideoSearcher(upstream, store, limiter, log), closeStore, nil
}

func buildNarrator(env *config.EnviornmentVariable) (pipeline.Narrator, error) {
	if env.SPEECH_API_KEY == "" {
		return nil, fmt.Errorf("SPEECH_API_KEY not set")
	}
	spacesCfg := digitalocean.SpacesConfig{
		AccessKey: env.DO_SPACES_KEY,
		SecretKey: env.DO_SPACES_SECRET,
		Bucket:    env.DO_SPACES_BUCKET,
		Region:    env.DO_SPACES_REGION,
		Endpoint:  env.DO_SPACES_ENDPOINT,
		CDNURL:    env.DO_SPACES_CDN_URL,
	}
	if !spacesCfg.IsConfigured() {
		return nil, fmt.Errorf("DO_SPACES_KEY, DO_SPACES_SECRET, DO_SPACES_BUCKET and DO_SPACES_REGION must be set")
	}
	spaces, err := digitalocean.NewSpacesClient(spacesCfg)
	if err != nil {
		return nil, err
	}

	speech := adapters.NewSpeechSynthesizer(adapters.SpeechConfig{
		APIKey:  env.SPEECH_API_KEY,
		BaseURL: env.SPEECH_BASE_URL,
	})
	return pipeline.NewSpeechNarrator(speech, spaces), nil
}
