package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		// A missing .env is fine outside of local development
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	GO_ENV   string
	LOG_FILE string
	PORT     int `validate:"gt=0,lte=65535"`

	// HTTP
	CORS_ALLOWED_ORIGINS string
	RATE_LIMIT_REQUESTS  int `validate:"gte=0"`

	// Database
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string

	// Redis (optional video cache backend)
	REDIS_URL           string
	VIDEO_CACHE_BACKEND string `validate:"oneof=memory redis"`

	// Text generation
	LLM_PROVIDER     string `validate:"oneof=digitalocean gemini claude"`
	LLM_MODEL        string
	MODEL_ACCESS_KEY string
	GEMINI_API_KEY   string
	CLAUDE_API_KEY   string

	// Search providers
	TAVILY_API_KEY  string
	EXA_API_KEY     string
	YOUTUBE_API_KEY string

	// Speech synthesis + Spaces upload for narration
	NARRATION_ENABLED  bool
	SPEECH_API_KEY     string
	SPEECH_BASE_URL    string
	DO_SPACES_KEY      string
	DO_SPACES_SECRET   string
	DO_SPACES_BUCKET   string
	DO_SPACES_REGION   string
	DO_SPACES_ENDPOINT string
	DO_SPACES_CDN_URL  string

	// Queue
	QUEUE_SNAPSHOT_PATH string        `validate:"required"`
	QUEUE_TICK_INTERVAL time.Duration `validate:"gt=0"`
	QUEUE_SOFT_LIMIT    int           `validate:"gte=0"`

	// Pipeline
	PIPELINE_TIMEOUT   time.Duration `validate:"gt=0"`
	KEYWORD_LINK_LIMIT int           `validate:"gte=0"`
	KEYWORD_LINK_DELAY time.Duration `validate:"gte=0"`
	QUIZ_CALL_DELAY    time.Duration `validate:"gte=0"`
	VIDEO_MIN_INTERVAL time.Duration `validate:"gte=0"`
	FIELD_RULES_FILE   string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		LOG_FILE:     os.Getenv("LOG_FILE"),
		PORT:         port,
		// HTTP
		CORS_ALLOWED_ORIGINS: os.Getenv("CORS_ALLOWED_ORIGINS"),
		RATE_LIMIT_REQUESTS:  getInt("RATE_LIMIT_REQUESTS", 60),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  getOrDefault("DB_SSL_MODE", "disable"),
		// Redis
		REDIS_URL:           os.Getenv("REDIS_URL"),
		VIDEO_CACHE_BACKEND: getOrDefault("VIDEO_CACHE_BACKEND", "memory"),
		// LLM
		LLM_PROVIDER:     getOrDefault("LLM_PROVIDER", "digitalocean"),
		LLM_MODEL:        os.Getenv("LLM_MODEL"),
		MODEL_ACCESS_KEY: os.Getenv("MODEL_ACCESS_KEY"),
		GEMINI_API_KEY:   os.Getenv("GEMINI_API_KEY"),
		CLAUDE_API_KEY:   os.Getenv("CLAUDE_API_KEY"),
		// Search
		TAVILY_API_KEY:  os.Getenv("TAVILY_API_KEY"),
		EXA_API_KEY:     os.Getenv("EXA_API_KEY"),
		YOUTUBE_API_KEY: os.Getenv("YOUTUBE_API_KEY"),
		// Narration
		NARRATION_ENABLED:  getBool("NARRATION_ENABLED", false),
		SPEECH_API_KEY:     os.Getenv("SPEECH_API_KEY"),
		SPEECH_BASE_URL:    os.Getenv("SPEECH_BASE_URL"),
		DO_SPACES_KEY:      os.Getenv("DO_SPACES_KEY"),
		DO_SPACES_SECRET:   os.Getenv("DO_SPACES_SECRET"),
		DO_SPACES_BUCKET:   os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:   os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT: os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_CDN_URL:  os.Getenv("DO_SPACES_CDN_URL"),
		// Queue
		QUEUE_SNAPSHOT_PATH: getOrDefault("QUEUE_SNAPSHOT_PATH", "data/enhancement_queue.json"),
		QUEUE_TICK_INTERVAL: getDuration("QUEUE_TICK_INTERVAL", 2*time.Second),
		QUEUE_SOFT_LIMIT:    getInt("QUEUE_SOFT_LIMIT", 25),
		// Pipeline
		PIPELINE_TIMEOUT:   getDuration("PIPELINE_TIMEOUT", 5*time.Minute),
		KEYWORD_LINK_LIMIT: getInt("KEYWORD_LINK_LIMIT", 3),
		KEYWORD_LINK_DELAY: getDuration("KEYWORD_LINK_DELAY", 500*time.Millisecond),
		QUIZ_CALL_DELAY:    getDuration("QUIZ_CALL_DELAY", 2*time.Second),
		VIDEO_MIN_INTERVAL: getDuration("VIDEO_MIN_INTERVAL", time.Second),
		FIELD_RULES_FILE:   os.Getenv("FIELD_RULES_FILE"),
	}

	if err := validator.New().Struct(envVariables); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return envVariables, nil
}

// IsProduction reports whether GO_ENV selects production mode
func (e *EnviornmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
