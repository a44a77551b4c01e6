// Package bot routes Telegram updates to the search, delivery and admin
// flows and turns service errors into chat replies.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-pdf-library-bot/internal/search"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

// Messenger is the outbound half of the Bot API used by the dispatcher.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error
	SendDocument(ctx context.Context, chatID int64, documentURL, caption string) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) (*telegram.Message, error)
}

// Settings carries the presentation and side-channel options.
type Settings struct {
	NumResults    int
	StorageChatID int64 // 0 disables the storage copy
	LogChatID     int64 // 0 disables the audit line
	DeveloperURL  string
	DonateText    string

	// DonatePhotoURL, when set, is sent as a photo (QR code) captioned
	// with DonateText.
	DonatePhotoURL string
}

// Bot is the update dispatcher.
type Bot struct {
	Messenger  Messenger
	Search     search.Client
	Users      services.UserStore
	Stats      services.StatsStore
	Privileges *services.PrivilegeResolver
	Quota      *services.QuotaTracker
	Cooldown   *services.CooldownGate
	Cache      *services.ResultCache
	Pages      *services.Paginator
	Admin      *services.AdminService
	Settings   Settings
	Now        func() time.Time
}

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// HandleUpdate processes one update. A panic inside a handler is recovered,
// logged and returned as an error so one bad update never stops the bot.
func (b *Bot) HandleUpdate(ctx context.Context, u *telegram.Update) (err error) {
	tr := otel.Tracer("bot/Dispatcher")
	ctx, span := tr.Start(ctx, "HandleUpdate", trace.WithAttributes(attribute.Int64("update.id", u.UpdateID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int64("update_id", u.UpdateID).
				Str("panic", fmt.Sprintf("%v", r)).
				Bytes("stack", debug.Stack()).
				Msg("panic while handling update")
			err = fmt.Errorf("panic handling update %d: %v", u.UpdateID, r)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		return b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil && u.Message.Text != "":
		if cmd, args, ok := u.Message.Command(); ok {
			return b.handleCommand(ctx, u.Message, cmd, args)
		}
		return b.handleSearch(ctx, u.Message)
	}
	return nil
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	_, err := b.Messenger.SendMessage(ctx, chatID, text, nil)
	return err
}

func (b *Bot) remember(ctx context.Context, user *telegram.User) {
	if err := b.Users.RegisterUser(ctx, user.ID, user.DisplayName()); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("register user failed")
	}
}

// keyboard converts rendered buttons to Bot API markup; nil for no rows.
func keyboard(rows [][]services.Button) *telegram.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]telegram.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]telegram.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			r = append(r, telegram.InlineKeyboardButton{Text: btn.Text, CallbackData: btn.Data, URL: btn.URL})
		}
		out = append(out, r)
	}
	return telegram.NewInlineKeyboard(out...)
}

func (b *Bot) welcomeKeyboard() *telegram.InlineKeyboardMarkup {
	rows := [][]services.Button{{{Text: donateLabel, Data: services.ActionDonate}}}
	if b.Settings.DeveloperURL != "" {
		rows = append(rows, []services.Button{{Text: developerLabel, URL: b.Settings.DeveloperURL}})
	}
	return keyboard(rows)
}
