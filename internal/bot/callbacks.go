package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
	"github.com/tbourn/go-pdf-library-bot/internal/search"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

func (b *Bot) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From != nil {
		b.remember(ctx, cq.From)
	}
	action, arg := services.ParseCallback(cq.Data)

	switch action {
	case services.ActionPDF:
		if arg != "" && cq.From != nil && cq.Message != nil {
			return b.deliver(ctx, cq, arg)
		}
	case services.ActionNext, services.ActionPrev:
		query := search.NormalizeQuery(arg)
		if query != "" {
			pageNo := services.PageGlobal
			if action == services.ActionNext {
				pageNo = services.PageArchive
			}
			return b.turnPage(ctx, cq, query, pageNo)
		}
	case services.ActionDonate:
		return b.donate(ctx, cq)
	}

	log.Warn().Str("data", cq.Data).Msg("unknown callback data")
	return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgUnknownAction, false)
}

func (b *Bot) donate(ctx context.Context, cq *telegram.CallbackQuery) error {
	if err := b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgDonateThanks, false); err != nil {
		return err
	}
	if cq.Message == nil {
		return nil
	}
	chatID := cq.Message.ChatID()
	if u := b.Settings.DonatePhotoURL; u != "" {
		_, err := b.Messenger.SendPhoto(ctx, chatID, u, b.Settings.DonateText)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send donation photo failed")
	}
	if b.Settings.DonateText == "" {
		return nil
	}
	if err := b.reply(ctx, chatID, b.Settings.DonateText); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send donation info failed")
	}
	return nil
}

// deliver runs the cooldown gate, resolves the fingerprint and sends the
// document, then copies it to the storage chat and writes the audit line.
func (b *Bot) deliver(ctx context.Context, cq *telegram.CallbackQuery, fingerprint string) error {
	user := cq.From
	chatID := cq.Message.ChatID()

	if err := b.Cooldown.TryAcquire(ctx, user.ID); err != nil {
		var ce *services.CooldownActiveError
		if errors.As(err, &ce) {
			return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, cooldownText(ce.Seconds()), true)
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("cooldown check failed")
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgPDFSendFailed, false)
	}

	entry, err := b.Cache.Take(ctx, chatID, fingerprint)
	if err != nil {
		if !errors.Is(err, services.ErrCacheMiss) {
			log.Error().Err(err).Int64("chat_id", chatID).Str("fingerprint", fingerprint).Msg("cache lookup failed")
		}
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgPDFMissing, false)
	}

	text := caption(entry.Title, entry.URL)
	if _, err := b.Messenger.SendDocument(ctx, chatID, entry.URL, text); err != nil {
		log.Error().Err(err).
			Int64("chat_id", chatID).
			Str("fingerprint", fingerprint).
			Str("url", entry.URL).
			Msg("send document failed")
		answer := msgPDFSendFailed
		if s := telegram.GetRetryAfter(err); s > 0 {
			answer = floodText(s)
		}
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, answer, false)
	}
	if err := b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgPDFSent, false); err != nil {
		log.Warn().Err(err).Msg("answer callback failed")
	}

	if err := b.Stats.RecordDelivery(ctx, domain.Delivery{
		UserID:    user.ID,
		ChatID:    chatID,
		URL:       entry.URL,
		CreatedAt: b.now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("record delivery failed")
	}

	if id := b.Settings.StorageChatID; id != 0 {
		if _, err := b.Messenger.SendDocument(ctx, id, entry.URL, text); err != nil {
			log.Warn().Err(err).Int64("chat_id", id).Msg("storage copy failed")
		}
	}
	if id := b.Settings.LogChatID; id != 0 {
		line := auditLine(strings.TrimSpace(user.FirstName), user.ID, entry.URL)
		if err := b.reply(ctx, id, line); err != nil {
			log.Warn().Err(err).Int64("chat_id", id).Msg("audit log message failed")
		}
	}
	return nil
}
