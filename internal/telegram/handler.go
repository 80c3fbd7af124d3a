package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PoluyanbIch/quizwhiz/internal/service"
	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of *tgbotapi.BotAPI used to talk to chats.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api                *tgbotapi.BotAPI
	sender             Sender
	provider           trivia.Provider
	leaderboardService service.LeaderboardService
	logger             *slog.Logger
	fetchDelay         time.Duration

	mu           sync.Mutex
	setups       map[int64]trivia.Filter
	quizSessions map[int64]*chatSession
	categories   []trivia.Category
}

// chatSession binds a quiz to the chat and player it was started from.
type chatSession struct {
	session *service.QuizSession
	player  service.Player
}

type Options struct {
	Debug      bool
	FetchDelay time.Duration
	Logger     *slog.Logger
}

func NewBot(token string, provider trivia.Provider, leaderboardService service.LeaderboardService, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = opts.Debug

	b := newBot(api, provider, leaderboardService, opts)
	b.api = api
	return b, nil
}

func newBot(sender Sender, provider trivia.Provider, leaderboardService service.LeaderboardService, opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		sender:             sender,
		provider:           provider,
		leaderboardService: leaderboardService,
		logger:             logger,
		fetchDelay:         opts.FetchDelay,
		setups:             make(map[int64]trivia.Filter),
		quizSessions:       make(map[int64]*chatSession),
	}
}

// Start processes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("authorised on account", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.closeAll()
			return
		case update, ok := <-updates:
			if !ok {
				b.closeAll()
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for chatID, cs := range b.quizSessions {
		cs.session.Close()
		delete(b.quizSessions, chatID)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		chatID := update.Message.Chat.ID
		switch update.Message.Command() {
		case "start", "menu":
			b.leaveQuiz(chatID)
			b.sendMainMenu(chatID)
		case "quiz":
			b.startQuiz(ctx, chatID, update.Message.From)
		case "info":
			b.handleInfo(chatID)
		default:
			b.sendMessage(chatID, "Unknown command. Use /start to open the menu.")
		}
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	callbackConfig := tgbotapi.NewCallback(callback.ID, "")
	if _, err := b.sender.Request(callbackConfig); err != nil {
		b.logger.Warn("error answering callback", "error", err)
	}

	switch {
	case data == cbMenu:
		b.leaveQuiz(chatID)
		b.sendMainMenu(chatID)
	case data == cbStartQuiz:
		b.startQuiz(ctx, chatID, callback.From)
	case data == cbPickCategory:
		b.sendCategoryPicker(ctx, chatID)
	case data == cbPickDifficulty:
		b.sendDifficultyPicker(chatID)
	case strings.HasPrefix(data, prefixCategory):
		b.handleCategoryChoice(chatID, strings.TrimPrefix(data, prefixCategory))
	case strings.HasPrefix(data, prefixDifficulty):
		b.handleDifficultyChoice(chatID, strings.TrimPrefix(data, prefixDifficulty))
	case strings.HasPrefix(data, prefixAnswer):
		b.handleQuizAnswer(chatID, messageID, strings.TrimPrefix(data, prefixAnswer))
	case strings.HasPrefix(data, prefixNext):
		b.handleNext(chatID, strings.TrimPrefix(data, prefixNext))
	case data == cbRetry:
		b.retryQuiz(ctx, chatID)
	case data == cbExitQuiz:
		b.exitQuiz(chatID)
	case data == cbLeaderboard:
		b.handleLeaderboard(chatID)
	case data == cbInfo:
		b.handleInfo(chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Use /start to open the menu.")
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sender.Send(c); err != nil {
		b.logger.Error("error sending message", "error", err)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) filterFor(chatID int64) trivia.Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setups[chatID]
}

// loadCategories fetches the category list once. A failure leaves the list
// empty so only "Any Category" is offered; the next picker attempt retries.
func (b *Bot) loadCategories(ctx context.Context) []trivia.Category {
	b.mu.Lock()
	cached := b.categories
	b.mu.Unlock()
	if cached != nil {
		return cached
	}

	categories, err := b.provider.Categories(ctx)
	if err != nil {
		b.logger.Error("error fetching categories", "error", err)
		return nil
	}

	b.mu.Lock()
	b.categories = categories
	b.mu.Unlock()
	return categories
}

// categoryLabel only consults the cached list; the provider is queried when
// the picker is opened.
func (b *Bot) categoryLabel(id int) string {
	if id == 0 {
		return "Any Category"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return "Category #" + strconv.Itoa(id)
}

func (b *Bot) sendMainMenu(chatID int64) {
	filter := b.filterFor(chatID)

	msg := tgbotapi.NewMessage(chatID,
		"🧠 <b>Quiz-Whiz</b>\n\n"+
			"Test your knowledge across multiple categories. "+
			"Answer 10 questions and challenge yourself to get the highest score!")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard(b.categoryLabel(filter.Category), difficultyLabels[filter.Difficulty])
	b.send(msg)
}

func (b *Bot) sendCategoryPicker(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "📚 Choose a category:")
	msg.ReplyMarkup = categoryKeyboard(b.loadCategories(ctx))
	b.send(msg)
}

func (b *Bot) sendDifficultyPicker(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "⚙️ Choose a difficulty:")
	msg.ReplyMarkup = difficultyKeyboard()
	b.send(msg)
}

func (b *Bot) handleCategoryChoice(chatID int64, value string) {
	id, err := strconv.Atoi(value)
	if err != nil || id < 0 {
		return
	}
	b.mu.Lock()
	filter := b.setups[chatID]
	filter.Category = id
	b.setups[chatID] = filter
	b.mu.Unlock()

	b.sendMainMenu(chatID)
}

func (b *Bot) handleDifficultyChoice(chatID int64, value string) {
	d := trivia.Difficulty(value)
	if value == "any" {
		d = trivia.DifficultyAny
	}
	if !d.Valid() {
		return
	}
	b.mu.Lock()
	filter := b.setups[chatID]
	filter.Difficulty = d
	b.setups[chatID] = filter
	b.mu.Unlock()

	b.sendMainMenu(chatID)
}

func (b *Bot) handleLeaderboard(chatID int64) {
	top := b.leaderboardService.GetTop(10)

	if len(top) == 0 {
		msg := tgbotapi.NewMessage(chatID, "🏆 <b>Leaderboard</b>\n\nNo results yet. Be the first! 🎯")
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = resultKeyboard()
		b.send(msg)
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Top 10 players</b>\n\n")

	for i, entry := range top {
		username := entry.FirstName
		if entry.Username != "" {
			username = "@" + entry.Username
		}

		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}

		fmt.Fprintf(&sb, "%s %d. %s - %d%% (%d/%d)\n   📅 %s\n\n",
			medal, i+1, html.EscapeString(username), entry.Percentage, entry.Score, entry.Total, entry.Date)
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = resultKeyboard()
	b.send(msg)
}

func (b *Bot) handleInfo(chatID int64) {
	text := "Quiz-Whiz asks 10 multiple-choice questions from the Open Trivia Database.\n" +
		"Pick a category and difficulty in the menu, then press Start Quiz."

	infoMsg := tgbotapi.NewMessage(chatID, text)
	infoMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📂 Open Trivia DB", "https://opentdb.com"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back", cbMenu),
		),
	)
	b.send(infoMsg)
}
