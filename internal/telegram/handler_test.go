package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PoluyanbIch/quizwhiz/internal/service"
	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, r := range f.requests {
		if e, ok := r.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

// waitFor polls until a message containing substr has been sent.
func (f *fakeSender) waitFor(t *testing.T, substr string) tgbotapi.MessageConfig {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range f.messages() {
			if strings.Contains(m.Text, substr) {
				return m
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no message containing %q was sent", substr)
	return tgbotapi.MessageConfig{}
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

type fakeProvider struct {
	mu            sync.Mutex
	categories    []trivia.Category
	categoriesErr error
	questions     []trivia.Question
	questionsErr  error
	filters       []trivia.Filter
	categoryCalls int
}

func (p *fakeProvider) Categories(ctx context.Context) ([]trivia.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.categoryCalls++
	return p.categories, p.categoriesErr
}

func (p *fakeProvider) Questions(ctx context.Context, filter trivia.Filter, amount int) ([]trivia.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, filter)
	return p.questions, p.questionsErr
}

func testQuestions(n int) []trivia.Question {
	qs := make([]trivia.Question, n)
	for i := range qs {
		qs[i] = trivia.Question{
			Text:             fmt.Sprintf("What is &quot;%d&quot;?", i+1),
			CorrectAnswer:    fmt.Sprintf("right-%d", i),
			IncorrectAnswers: []string{"wrong-a", "wrong-b", "wrong-c"},
		}
	}
	return qs
}

func newTestBot(provider *fakeProvider) (*Bot, *fakeSender, *service.MemoryLeaderboardService) {
	sender := &fakeSender{}
	lb := service.NewMemoryLeaderboardService()
	b := newBot(sender, provider, lb, Options{FetchDelay: 0})
	return b, sender, lb
}

const testChat int64 = 42

func commandUpdate(chatID int64, command string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/" + command,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "tester"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
	}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID, UserName: "tester", FirstName: "Test"},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func keyboardOf(t *testing.T, msg tgbotapi.MessageConfig) tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("message %q has no inline keyboard", msg.Text)
	}
	return kb
}

func hasButton(kb tgbotapi.InlineKeyboardMarkup, data string) bool {
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == data {
				return true
			}
		}
	}
	return false
}

func TestStartShowsMainMenu(t *testing.T) {
	b, sender, _ := newTestBot(&fakeProvider{})
	b.handleUpdate(context.Background(), commandUpdate(testChat, "start"))

	msg := sender.waitFor(t, "Quiz-Whiz")
	kb := keyboardOf(t, msg)
	for _, data := range []string{cbStartQuiz, cbPickCategory, cbPickDifficulty, cbLeaderboard} {
		if !hasButton(kb, data) {
			t.Errorf("main menu is missing %q", data)
		}
	}
}

func TestFullQuizAllCorrect(t *testing.T) {
	provider := &fakeProvider{questions: testQuestions(10)}
	b, sender, lb := newTestBot(provider)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	sender.waitFor(t, "Loading quiz")

	for i := 0; i < 10; i++ {
		msg := sender.waitFor(t, fmt.Sprintf("Question %d of 10", i+1))
		if !strings.Contains(msg.Text, `What is &#34;`) {
			t.Errorf("question text should be re-escaped for HTML, got %q", msg.Text)
		}

		snap := b.currentSession(testChat).session.Snapshot()
		correctIdx := -1
		for j, opt := range snap.Options {
			if opt.Text == snap.Question.CorrectAnswer {
				correctIdx = j
			}
		}
		b.handleUpdate(ctx, callbackUpdate(testChat, fmt.Sprintf("%s%d_%d", prefixAnswer, i, correctIdx)))
		b.handleUpdate(ctx, callbackUpdate(testChat, fmt.Sprintf("%s%d", prefixNext, i)))
	}

	result := sender.waitFor(t, "Quiz Completed")
	if !strings.Contains(result.Text, "10 / 10") || !strings.Contains(result.Text, "100%") {
		t.Errorf("unexpected result message %q", result.Text)
	}
	if cs := b.currentSession(testChat); cs == nil || cs.session.Phase() != service.PhaseDone {
		t.Error("finished session should stay attached in the done phase")
	}
	if pos, entry := lb.GetUserPosition(testChat); pos != 1 || entry.Score != 10 {
		t.Errorf("expected leaderboard entry 10/10 at #1, got %d %+v", pos, entry)
	}
	if len(sender.edits()) != 10 {
		t.Errorf("expected one highlight edit per answer, got %d", len(sender.edits()))
	}
}

func TestAnswerHighlightsAndIgnoresSecondClick(t *testing.T) {
	provider := &fakeProvider{questions: testQuestions(10)}
	b, sender, _ := newTestBot(provider)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	sender.waitFor(t, "Question 1 of 10")

	snap := b.currentSession(testChat).session.Snapshot()
	wrongIdx := -1
	for j, opt := range snap.Options {
		if opt.Text != snap.Question.CorrectAnswer {
			wrongIdx = j
			break
		}
	}

	b.handleUpdate(ctx, callbackUpdate(testChat, fmt.Sprintf("%s0_%d", prefixAnswer, wrongIdx)))
	b.handleUpdate(ctx, callbackUpdate(testChat, fmt.Sprintf("%s0_%d", prefixAnswer, (wrongIdx+1)%4)))

	edits := sender.edits()
	if len(edits) != 1 {
		t.Fatalf("expected a single edit, got %d", len(edits))
	}
	if !strings.Contains(edits[0].Text, "Wrong!") || !strings.Contains(edits[0].Text, "right-0") {
		t.Errorf("unexpected verdict %q", edits[0].Text)
	}
	if !hasButton(*edits[0].ReplyMarkup, prefixNext+"0") {
		t.Error("expected a Next button after answering")
	}
	if score := b.currentSession(testChat).session.Snapshot().Score; score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}
}

func TestRateLimitedOffersRetry(t *testing.T) {
	provider := &fakeProvider{questionsErr: trivia.ErrRateLimited}
	b, sender, _ := newTestBot(provider)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	msg := sender.waitFor(t, "Too many requests")
	if !hasButton(keyboardOf(t, msg), cbRetry) {
		t.Fatal("rate limit error should offer retry")
	}

	provider.mu.Lock()
	provider.questionsErr = nil
	provider.questions = testQuestions(10)
	provider.mu.Unlock()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbRetry))
	sender.waitFor(t, "Question 1 of 10")

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.filters) != 2 || provider.filters[0] != provider.filters[1] {
		t.Errorf("retry should repeat the same request, got %+v", provider.filters)
	}
}

func TestEmptyBatchReturnsToSetup(t *testing.T) {
	b, sender, _ := newTestBot(&fakeProvider{questions: []trivia.Question{}})

	b.handleUpdate(context.Background(), callbackUpdate(testChat, cbStartQuiz))
	msg := sender.waitFor(t, "No questions found")
	kb := keyboardOf(t, msg)
	if hasButton(kb, cbRetry) || !hasButton(kb, cbMenu) {
		t.Error("empty batch should only offer a return to the menu")
	}
}

func TestAnswerWithoutSession(t *testing.T) {
	b, sender, _ := newTestBot(&fakeProvider{})

	b.handleUpdate(context.Background(), callbackUpdate(testChat, prefixNext+"3"))
	msg := sender.waitFor(t, "Quiz options not found")
	if !hasButton(keyboardOf(t, msg), cbMenu) {
		t.Error("missing session should offer the menu")
	}
}

func TestSetupChoicesReachProvider(t *testing.T) {
	provider := &fakeProvider{
		categories: []trivia.Category{{ID: 9, Name: "General Knowledge"}, {ID: 21, Name: "Sports"}},
		questions:  testQuestions(10),
	}
	b, sender, _ := newTestBot(provider)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbPickCategory))
	picker := sender.waitFor(t, "Choose a category")
	if !hasButton(keyboardOf(t, picker), prefixCategory+"21") {
		t.Fatal("category picker should list provider categories")
	}

	b.handleUpdate(ctx, callbackUpdate(testChat, prefixCategory+"21"))
	b.handleUpdate(ctx, callbackUpdate(testChat, prefixDifficulty+"hard"))
	b.handleUpdate(ctx, callbackUpdate(testChat, prefixDifficulty+"extreme"))

	if got := b.filterFor(testChat); got != (trivia.Filter{Category: 21, Difficulty: trivia.DifficultyHard}) {
		t.Fatalf("unexpected filter %+v", got)
	}

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	sender.waitFor(t, "Question 1 of 10")

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.filters[0] != (trivia.Filter{Category: 21, Difficulty: trivia.DifficultyHard}) {
		t.Errorf("provider got filter %+v", provider.filters[0])
	}
}

func TestCategoryFailureDegrades(t *testing.T) {
	b, sender, _ := newTestBot(&fakeProvider{categoriesErr: trivia.ErrNetwork})

	b.handleUpdate(context.Background(), callbackUpdate(testChat, cbPickCategory))
	kb := keyboardOf(t, sender.waitFor(t, "Choose a category"))
	if len(kb.InlineKeyboard) != 2 || !hasButton(kb, prefixCategory+"0") {
		t.Errorf("expected only Any Category and Back, got %d rows", len(kb.InlineKeyboard))
	}
}

func TestMenuTearsDownQuiz(t *testing.T) {
	b, sender, _ := newTestBot(&fakeProvider{questions: testQuestions(10)})
	b.fetchDelay = time.Hour
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	cs := b.currentSession(testChat)
	if cs == nil {
		t.Fatal("expected a live session")
	}

	sender.reset()
	b.handleUpdate(ctx, callbackUpdate(testChat, cbMenu))
	sender.waitFor(t, "Quiz-Whiz")

	if b.currentSession(testChat) != nil {
		t.Error("menu should discard the quiz")
	}
	if cs.session.Initialize(ctx) {
		t.Error("discarded session must not start another fetch")
	}
}

func TestSafeHTML(t *testing.T) {
	testCases := map[string]string{
		"Who wrote &quot;Hamlet&quot;?": "Who wrote &#34;Hamlet&#34;?",
		"<script>alert(1)</script>":     "&lt;script&gt;alert(1)&lt;/script&gt;",
		"Tom &amp; Jerry":               "Tom &amp; Jerry",
	}
	for in, want := range testCases {
		if got := safeHTML(in); got != want {
			t.Errorf("safeHTML(%q) = %q, want %q", in, got, want)
		}
	}
	if got := plainText("Tom &amp; Jerry"); got != "Tom & Jerry" {
		t.Errorf("plainText decoded to %q", got)
	}
}

func TestSecondFinishTapIgnored(t *testing.T) {
	b, sender, lb := newTestBot(&fakeProvider{questions: testQuestions(1)})
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	sender.waitFor(t, "Question 1 of 1")

	b.handleUpdate(ctx, callbackUpdate(testChat, prefixAnswer+"0_0"))
	b.handleUpdate(ctx, callbackUpdate(testChat, prefixNext+"0"))
	sender.waitFor(t, "Quiz Completed")

	sender.reset()
	b.handleUpdate(ctx, callbackUpdate(testChat, prefixNext+"0"))
	b.handleUpdate(ctx, callbackUpdate(testChat, prefixAnswer+"0_1"))

	if msgs := sender.messages(); len(msgs) != 0 {
		t.Errorf("late taps on a finished quiz should be ignored, got %q", msgs[0].Text)
	}
	if top := lb.GetTop(10); len(top) != 1 {
		t.Errorf("expected a single leaderboard entry, got %d", len(top))
	}

	b.handleUpdate(ctx, callbackUpdate(testChat, cbStartQuiz))
	sender.waitFor(t, "Question 1 of 1")
}

func TestMenuDoesNotFetchCategories(t *testing.T) {
	provider := &fakeProvider{
		categories:    []trivia.Category{{ID: 21, Name: "Sports"}},
		categoriesErr: trivia.ErrNetwork,
	}
	b, sender, _ := newTestBot(provider)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(testChat, prefixCategory+"21"))
	b.handleUpdate(ctx, commandUpdate(testChat, "start"))
	b.handleUpdate(ctx, commandUpdate(testChat, "menu"))

	provider.mu.Lock()
	calls := provider.categoryCalls
	provider.mu.Unlock()
	if calls != 0 {
		t.Fatalf("menu renders should not query the provider, got %d calls", calls)
	}
	if !hasButtonText(keyboardOf(t, sender.waitFor(t, "Quiz-Whiz")), "📚 Category #21") {
		t.Error("uncached category should fall back to its id")
	}

	provider.mu.Lock()
	provider.categoriesErr = nil
	provider.mu.Unlock()
	b.handleUpdate(ctx, callbackUpdate(testChat, cbPickCategory))
	sender.reset()
	b.handleUpdate(ctx, commandUpdate(testChat, "start"))
	if !hasButtonText(keyboardOf(t, sender.waitFor(t, "Quiz-Whiz")), "📚 Sports") {
		t.Error("cached category name should be shown once the picker loaded it")
	}
}

func hasButtonText(kb tgbotapi.InlineKeyboardMarkup, text string) bool {
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.Text == text {
				return true
			}
		}
	}
	return false
}
