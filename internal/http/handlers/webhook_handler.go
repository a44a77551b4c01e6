package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pdf-library-bot/internal/http/middleware"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

// Handler serves the bot's HTTP endpoints.
type Handler struct {
	Bot     telegram.UpdateHandler
	Updates services.UpdateLog // optional redelivery dedup
	Now     func() time.Time
}

// New returns a Handler dispatching webhook updates to bot. updates may be
// nil, in which case every delivery is processed.
func New(bot telegram.UpdateHandler, updates services.UpdateLog) *Handler {
	return &Handler{Bot: bot, Updates: updates, Now: time.Now}
}

// Webhook accepts one Telegram update per request.
//
// The update is handled before the response is written. Anything that goes
// wrong after decoding is logged and still answered with 200: Telegram
// retries non-2xx deliveries, and a retry would repeat user-visible side
// effects such as quota consumption.
func (h *Handler) Webhook(c *gin.Context) {
	var upd telegram.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}

	lg := middleware.LoggerFrom(c).With().Int64("update_id", upd.UpdateID).Logger()

	if h.Updates != nil && upd.UpdateID > 0 {
		first, err := h.Updates.MarkUpdate(c.Request.Context(), upd.UpdateID, h.Now().UTC())
		switch {
		case err != nil:
			lg.Warn().Err(err).Msg("update log unavailable; processing anyway")
		case !first:
			lg.Debug().Msg("duplicate update ignored")
			ok(c, http.StatusOK, gin.H{"ok": true, "duplicate": true})
			return
		}
	}

	// Replies must go out even if Telegram drops the connection first.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.Bot.HandleUpdate(ctx, &upd); err != nil {
		lg.Error().Err(err).Msg("update handling failed")
	}
	ok(c, http.StatusOK, gin.H{"ok": true})
}

// Index is the liveness banner.
func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Bot is running!")
}

// Health reports process health for probes.
func (h *Handler) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
