package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pdf-library-bot/internal/memstore"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

type recordingBot struct {
	mu   sync.Mutex
	seen []int64
	err  error
}

func (b *recordingBot) HandleUpdate(ctx context.Context, u *telegram.Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	b.seen = append(b.seen, u.UpdateID)
	return b.err
}

type brokenLog struct{}

func (brokenLog) MarkUpdate(context.Context, int64, time.Time) (bool, error) {
	return false, errors.New("db down")
}

func (brokenLog) PurgeUpdatesBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func newWebhookRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.Webhook)
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	return r
}

func postUpdate(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const searchUpdate = `{"update_id":42,"message":{"message_id":7,"from":{"id":100,"first_name":"Ann"},"chat":{"id":100,"type":"private"},"text":"golang"}}`

func TestWebhook_DispatchesAndDedupsRedelivery(t *testing.T) {
	bot := &recordingBot{}
	r := newWebhookRouter(New(bot, memstore.New()))

	for i := 0; i < 2; i++ {
		if w := postUpdate(r, searchUpdate); w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status=%d body=%s", i, w.Code, w.Body.String())
		}
	}
	if len(bot.seen) != 1 || bot.seen[0] != 42 {
		t.Fatalf("want exactly one dispatch of update 42, got %v", bot.seen)
	}
}

func TestWebhook_HandlerErrorStill200(t *testing.T) {
	bot := &recordingBot{err: errors.New("telegram unreachable")}
	r := newWebhookRouter(New(bot, nil))

	if w := postUpdate(r, searchUpdate); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if len(bot.seen) != 1 {
		t.Fatalf("expected dispatch, got %v", bot.seen)
	}
}

func TestWebhook_UpdateLogFailureStillProcesses(t *testing.T) {
	bot := &recordingBot{}
	r := newWebhookRouter(New(bot, brokenLog{}))

	if w := postUpdate(r, searchUpdate); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if len(bot.seen) != 1 {
		t.Fatalf("expected dispatch despite update log error, got %v", bot.seen)
	}
}

func TestWebhook_BadJSON(t *testing.T) {
	bot := &recordingBot{}
	r := newWebhookRouter(New(bot, memstore.New()))

	w := postUpdate(r, `{"update_id":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrCodeBadRequest) {
		t.Fatalf("body=%s", w.Body.String())
	}
	if len(bot.seen) != 0 {
		t.Fatalf("bad payload must not dispatch")
	}
}

func TestIndexAndHealth(t *testing.T) {
	r := newWebhookRouter(New(&recordingBot{}, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Body.String() != "Bot is running!" {
		t.Fatalf("index: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %q", w.Code, w.Body.String())
	}
}
