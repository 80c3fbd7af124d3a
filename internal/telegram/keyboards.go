package telegram

import (
	"fmt"
	"html"
	"strconv"

	"github.com/PoluyanbIch/quizwhiz/internal/service"
	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbMenu           = "back_to_menu"
	cbStartQuiz      = "start_quiz"
	cbPickCategory   = "pick_category"
	cbPickDifficulty = "pick_difficulty"
	cbLeaderboard    = "leaderboard"
	cbInfo           = "info"
	cbExitQuiz       = "exit_quiz"
	cbRetry          = "retry"

	prefixCategory   = "cat_"
	prefixDifficulty = "diff_"
	prefixAnswer     = "quiz_"
	prefixNext       = "next_"
)

var difficultyLabels = map[trivia.Difficulty]string{
	trivia.DifficultyAny:    "Any Difficulty",
	trivia.DifficultyEasy:   "Easy",
	trivia.DifficultyMedium: "Medium",
	trivia.DifficultyHard:   "Hard",
}

func mainMenuKeyboard(categoryLabel, difficultyLabel string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start Quiz", cbStartQuiz),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 "+categoryLabel, cbPickCategory),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ "+difficultyLabel, cbPickDifficulty),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏆 Leaderboard", cbLeaderboard),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Info", cbInfo),
		),
	)
}

func categoryKeyboard(categories []trivia.Category) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Any Category", prefixCategory+"0"),
		),
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, c := range categories {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Name, prefixCategory+strconv.Itoa(c.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Back", cbMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func difficultyKeyboard() tgbotapi.InlineKeyboardMarkup {
	button := func(d trivia.Difficulty) tgbotapi.InlineKeyboardButton {
		value := string(d)
		if d == trivia.DifficultyAny {
			value = "any"
		}
		return tgbotapi.NewInlineKeyboardButtonData(difficultyLabels[d], prefixDifficulty+value)
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(trivia.DifficultyAny)),
		tgbotapi.NewInlineKeyboardRow(
			button(trivia.DifficultyEasy),
			button(trivia.DifficultyMedium),
			button(trivia.DifficultyHard),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back", cbMenu),
		),
	)
}

// questionKeyboard renders one button per option. Once an answer is locked
// the buttons are highlighted and a Next/Finish button appears.
func questionKeyboard(snap service.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, opt := range snap.Options {
		label := plainText(opt.Text)
		switch opt.State {
		case service.OptionCorrect:
			label = "✅ " + label
		case service.OptionIncorrect:
			label = "❌ " + label
		}
		callbackData := fmt.Sprintf("%s%d_%d", prefixAnswer, snap.Index, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData),
		))
	}

	if snap.Answered {
		label := "Next ➡️"
		if snap.Index+1 == snap.Total {
			label = "🏁 Finish"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefixNext+strconv.Itoa(snap.Index)),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🚪 Exit Quiz", cbExitQuiz),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func errorKeyboard(e *service.Error) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if e.Recovery == service.RecoveryRetry {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", cbRetry))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbMenu))
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func resultKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Restart Quiz", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbMenu),
		),
	)
}

// Provider text arrives HTML-escaped. It is decoded for plain-text button
// labels and re-escaped for HTML messages so no provider markup is rendered.
func plainText(s string) string {
	return html.UnescapeString(s)
}

func safeHTML(s string) string {
	return html.EscapeString(html.UnescapeString(s))
}
