package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-pdf-library-bot/internal/memstore"
	"github.com/tbourn/go-pdf-library-bot/internal/search"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

const (
	adminID   int64 = 1
	userID    int64 = 100
	chatID    int64 = 100
	storageID int64 = -1001
	logID     int64 = -1002
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sent struct {
	ChatID int64
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type edit struct {
	ChatID, MessageID int64
	Text              string
	Markup            *telegram.InlineKeyboardMarkup
}

type answer struct {
	ID, Text  string
	ShowAlert bool
}

type document struct {
	ChatID       int64
	URL, Caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	messages  []sent
	edits     []edit
	answers   []answer
	documents []document
	photos    []document
	failChat  map[int64]error
	docErr    error
	photoErr  error
	panicOn   string
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	if f.panicOn != "" && text == f.panicOn {
		panic("messenger exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failChat[chatID]; err != nil {
		return nil, err
	}
	f.messages = append(f.messages, sent{ChatID: chatID, Text: text, Markup: markup})
	return &telegram.Message{MessageID: int64(len(f.messages)), Chat: &telegram.Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, id, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{ID: id, Text: text, ShowAlert: showAlert})
	return nil
}

func (f *fakeMessenger) SendDocument(_ context.Context, chatID int64, url, caption string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil && chatID != storageID {
		return nil, f.docErr
	}
	f.documents = append(f.documents, document{ChatID: chatID, URL: url, Caption: caption})
	return &telegram.Message{MessageID: 1, Chat: &telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, url, caption string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr != nil {
		return nil, f.photoErr
	}
	f.photos = append(f.photos, document{ChatID: chatID, URL: url, Caption: caption})
	return &telegram.Message{MessageID: 1, Chat: &telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) textsTo(chat int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.ChatID == chat {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeMessenger) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

func (f *fakeMessenger) lastAnswer() answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[len(f.answers)-1]
}

type fakeSearch struct {
	res     *search.Results
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, q string, _ int) (*search.Results, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

var errSend = errors.New("send failed")

type harness struct {
	bot   *Bot
	msgr  *fakeMessenger
	srch  *fakeSearch
	store *memstore.Store
	clock *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memstore.New()
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	msgr := &fakeMessenger{}
	srch := &fakeSearch{res: &search.Results{
		Global: []search.Result{
			{Title: "Go Programming", URL: "https://a.example/go.pdf"},
			{Title: "Concurrency in Go", URL: "https://b.example/cc.pdf"},
		},
		Archive: []search.Result{
			{Title: "Archived Go", URL: "https://archive.org/go.pdf"},
		},
	}}

	priv := services.NewPrivilegeResolver(st, []int64{adminID})
	quota := services.NewQuotaTracker(st, 2, 2*time.Hour)
	quota.Now = clk.Now
	gate := services.NewCooldownGate(st, 60*time.Second)
	gate.Now = clk.Now
	cache := services.NewResultCache(st, 6*time.Hour)
	cache.Now = clk.Now

	b := &Bot{
		Messenger:  msgr,
		Search:     srch,
		Users:      st,
		Stats:      st,
		Privileges: priv,
		Quota:      quota,
		Cooldown:   gate,
		Cache:      cache,
		Pages:      &services.Paginator{Cache: cache},
		Admin: &services.AdminService{
			Users: st, Results: st, Usage: st, Privileges: priv,
			Limit: 2, Window: 2 * time.Hour, Now: clk.Now,
		},
		Settings: Settings{
			NumResults:    10,
			StorageChatID: storageID,
			LogChatID:     logID,
			DeveloperURL:  "https://t.me/dev",
			DonateText:    "Please donate.",
		},
		Now: clk.Now,
	}
	return &harness{bot: b, msgr: msgr, srch: srch, store: st, clock: clk}
}

var nextUpdateID int64

func (h *harness) text(t *testing.T, from int64, text string) {
	t.Helper()
	h.textReply(t, from, text, nil)
}

func (h *harness) textReply(t *testing.T, from int64, text string, reply *telegram.Message) {
	t.Helper()
	nextUpdateID++
	u := &telegram.Update{UpdateID: nextUpdateID, Message: &telegram.Message{
		MessageID:      nextUpdateID,
		From:           &telegram.User{ID: from, FirstName: "Tester"},
		Chat:           &telegram.Chat{ID: from, Type: "private"},
		Text:           text,
		ReplyToMessage: reply,
	}}
	if err := h.bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatalf("HandleUpdate(%q): %v", text, err)
	}
}

func (h *harness) click(t *testing.T, from int64, data string) {
	t.Helper()
	nextUpdateID++
	u := &telegram.Update{UpdateID: nextUpdateID, CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    &telegram.User{ID: from, FirstName: "Tester"},
		Message: &telegram.Message{MessageID: 9, Chat: &telegram.Chat{ID: from}},
		Data:    data,
	}}
	if err := h.bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatalf("HandleUpdate(callback %q): %v", data, err)
	}
}
