package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	BotDebug      bool

	TriviaBaseURL       string
	TriviaHTTPTimeout   time.Duration
	TriviaQuestionsFile string // offline provider, empty means OpenTDB

	FetchDelay time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system env")
	}

	cfg := &Config{
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotDebug:            getEnvBool("BOT_DEBUG", false),
		TriviaBaseURL:       strings.TrimSuffix(getEnv("TRIVIA_BASE_URL", "https://opentdb.com"), "/"),
		TriviaHTTPTimeout:   getEnvDuration("TRIVIA_HTTP_TIMEOUT", 10*time.Second),
		TriviaQuestionsFile: getEnv("TRIVIA_QUESTIONS_FILE", ""),
		FetchDelay:          getEnvDuration("QUIZ_FETCH_DELAY", 500*time.Millisecond),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}

	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
