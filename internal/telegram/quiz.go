package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PoluyanbIch/quizwhiz/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func playerFrom(user *tgbotapi.User) service.Player {
	if user == nil {
		return service.Player{}
	}
	return service.Player{UserID: user.ID, Username: user.UserName, FirstName: user.FirstName}
}

func (b *Bot) currentSession(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quizSessions[chatID]
}

// dropSession removes cs from the chat if it is still the live one.
func (b *Bot) dropSession(chatID int64, cs *chatSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quizSessions[chatID] == cs {
		delete(b.quizSessions, chatID)
	}
	cs.session.Close()
}

func (b *Bot) startQuiz(ctx context.Context, chatID int64, user *tgbotapi.User) {
	filter := b.filterFor(chatID)

	cs := &chatSession{player: playerFrom(user)}
	cs.session = service.NewQuizSession(filter, b.provider,
		service.WithFetchDelay(b.fetchDelay),
		service.WithLogger(b.logger.With("chat_id", chatID)),
		service.WithOnChange(func(s *service.QuizSession) { b.onSessionChange(chatID, cs) }),
	)

	b.mu.Lock()
	if prev, ok := b.quizSessions[chatID]; ok {
		prev.session.Close()
	}
	b.quizSessions[chatID] = cs
	b.mu.Unlock()

	b.sendMessage(chatID, "⏳ Loading quiz...")
	cs.session.Initialize(ctx)
}

func (b *Bot) retryQuiz(ctx context.Context, chatID int64) {
	cs := b.currentSession(chatID)
	if cs == nil {
		b.sendSessionError(chatID, service.ErrMissingSessionInput)
		return
	}
	if cs.session.Retry(ctx) {
		b.sendMessage(chatID, "⏳ Loading quiz...")
	}
}

// onSessionChange runs on the fetch goroutine once questions arrive or the
// fetch fails.
func (b *Bot) onSessionChange(chatID int64, cs *chatSession) {
	if b.currentSession(chatID) != cs {
		return
	}

	snap := cs.session.Snapshot()
	switch snap.Phase {
	case service.PhaseActive:
		b.sendQuestion(chatID, snap)
	case service.PhaseError:
		b.sendSessionError(chatID, snap.Err)
	}
}

func questionText(snap service.Snapshot) string {
	text := fmt.Sprintf("❓ <b>Question %d of %d</b>\n\n%s",
		snap.Index+1, snap.Total, safeHTML(snap.Question.Text))
	if !snap.Answered {
		return text
	}

	var correct string
	for _, opt := range snap.Options {
		if opt.State == service.OptionCorrect {
			correct = opt.Text
			break
		}
	}
	if snap.Selected == snap.Question.CorrectAnswer {
		return text + "\n\n✅ <b>Correct!</b> 🎉"
	}
	return text + "\n\n❌ <b>Wrong!</b>\nCorrect answer: " + safeHTML(correct)
}

func (b *Bot) sendQuestion(chatID int64, snap service.Snapshot) {
	if snap.Question == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, questionText(snap))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = questionKeyboard(snap)
	b.send(msg)
}

func parseAnswerData(data string) (questionIndex, optionIndex int, ok bool) {
	parts := strings.Split(data, "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	q, err1 := strconv.Atoi(parts[0])
	o, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || q < 0 || o < 0 {
		return 0, 0, false
	}
	return q, o, true
}

func (b *Bot) handleQuizAnswer(chatID int64, messageID int, data string) {
	questionIndex, optionIndex, ok := parseAnswerData(data)
	if !ok {
		return
	}

	cs := b.currentSession(chatID)
	if cs == nil {
		b.sendSessionError(chatID, service.ErrMissingSessionInput)
		return
	}

	snap := cs.session.Snapshot()
	if snap.Phase != service.PhaseActive || snap.Index != questionIndex || optionIndex >= len(snap.Options) {
		// stale button from an earlier question
		return
	}

	if _, accepted := cs.session.SelectOption(snap.Options[optionIndex].Text); !accepted {
		return
	}

	snap = cs.session.Snapshot()
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, questionText(snap), questionKeyboard(snap))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.sender.Request(edit); err != nil {
		b.logger.Error("error editing question", "error", err)
	}
}

func (b *Bot) handleNext(chatID int64, data string) {
	questionIndex, err := strconv.Atoi(data)
	if err != nil {
		return
	}

	cs := b.currentSession(chatID)
	if cs == nil {
		b.sendSessionError(chatID, service.ErrMissingSessionInput)
		return
	}
	if cs.session.Snapshot().Index != questionIndex {
		return
	}

	result, done, err := cs.session.Advance()
	switch {
	case errors.Is(err, service.ErrNoAnswer), errors.Is(err, service.ErrNotActive):
		return
	case err != nil:
		b.logger.Error("error advancing quiz", "error", err)
		return
	case done:
		b.finishQuiz(chatID, cs, result)
	default:
		b.sendQuestion(chatID, cs.session.Snapshot())
	}
}

// leaveQuiz tears down the chat's quiz when the user navigates back to setup.
func (b *Bot) leaveQuiz(chatID int64) {
	if cs := b.currentSession(chatID); cs != nil {
		b.dropSession(chatID, cs)
	}
}

func (b *Bot) exitQuiz(chatID int64) {
	if cs := b.currentSession(chatID); cs != nil {
		b.dropSession(chatID, cs)
		b.sendMessage(chatID, "🚪 Quiz aborted. Your result was not saved.")
	}
	b.sendMainMenu(chatID)
}

// finishQuiz shows the result screen. The finished session stays attached to
// the chat in the Done phase so late taps on its buttons are ignored; it is
// replaced on the next start or dropped on return to the menu.
func (b *Bot) finishQuiz(chatID int64, cs *chatSession, result service.Result) {
	cs.session.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 <b>Quiz Completed!</b>\n\n"+
		"📊 Your Score: %d / %d\n"+
		"📈 Accuracy: %d%%\n\n%s",
		result.Score, result.Total, result.Percentage(), result.Feedback())

	if cs.player.UserID != 0 && b.leaderboardService.AddEntry(cs.player, result) {
		if position, _ := b.leaderboardService.GetUserPosition(cs.player.UserID); position != -1 {
			fmt.Fprintf(&sb, "\n\n🏅 <b>New personal best!</b> You are #%d on the leaderboard.", position)
		}
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = resultKeyboard()
	b.send(msg)
}

func (b *Bot) sendSessionError(chatID int64, e *service.Error) {
	if e == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+e.Message())
	msg.ReplyMarkup = errorKeyboard(e)
	b.send(msg)
}
