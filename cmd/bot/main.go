package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PoluyanbIch/quizwhiz/internal/config"
	"github.com/PoluyanbIch/quizwhiz/internal/logger"
	"github.com/PoluyanbIch/quizwhiz/internal/service"
	"github.com/PoluyanbIch/quizwhiz/internal/telegram"
	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg := logger.Init(cfg.LogLevel, cfg.LogFormat)

	provider, err := newProvider(cfg, lg)
	if err != nil {
		lg.Error("failed to set up trivia provider", "error", err)
		os.Exit(1)
	}

	leaderboardService := service.NewMemoryLeaderboardService()

	bot, err := telegram.NewBot(cfg.TelegramToken, provider, leaderboardService, telegram.Options{
		Debug:      cfg.BotDebug,
		FetchDelay: cfg.FetchDelay,
		Logger:     lg,
	})
	if err != nil {
		lg.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info("🤖 Bot is starting...")
	bot.Start(ctx)
	lg.Info("bot stopped")
}

// newProvider uses the offline question file when one is configured and
// OpenTDB otherwise.
func newProvider(cfg *config.Config, lg *slog.Logger) (trivia.Provider, error) {
	if cfg.TriviaQuestionsFile != "" {
		p, err := trivia.LoadFile(cfg.TriviaQuestionsFile)
		if err != nil {
			return nil, err
		}
		lg.Info("using offline question file", "path", cfg.TriviaQuestionsFile)
		return p, nil
	}
	return trivia.NewClient(cfg.TriviaBaseURL, cfg.TriviaHTTPTimeout, lg), nil
}
