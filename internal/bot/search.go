package bot

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-pdf-library-bot/internal/search"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

func (b *Bot) handleSearch(ctx context.Context, m *telegram.Message) error {
	user := m.From
	chatID := m.ChatID()
	b.remember(ctx, user)

	query := search.NormalizeQuery(m.Text)
	if query == "" {
		return b.reply(ctx, chatID, msgEmptyQuery)
	}

	tier, err := b.Privileges.Resolve(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("resolve tier failed")
		return b.reply(ctx, chatID, msgSearchFailed)
	}

	if tier.Unlimited() {
		if err := b.reply(ctx, chatID, msgSuperUser); err != nil {
			return err
		}
	}
	if err := b.Quota.CheckAndConsume(ctx, user.ID, tier); err != nil {
		var qe *services.QuotaExceededError
		if errors.As(err, &qe) {
			log.Info().Int64("user_id", user.ID).Dur("retry_after", qe.RetryAfter).Msg("search quota exceeded")
			return b.reply(ctx, chatID, quotaText(qe.RetryAfter))
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("quota check failed")
		return b.reply(ctx, chatID, msgSearchFailed)
	}

	if err := b.reply(ctx, chatID, msgSearching); err != nil {
		return err
	}

	res, err := b.Search.Search(ctx, query, b.Settings.NumResults)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Str("query", query).Msg("search failed")
		return b.reply(ctx, chatID, msgSearchFailed)
	}
	if res.Empty() {
		return b.reply(ctx, chatID, msgNoResults)
	}

	page, err := b.Pages.Render(ctx, chatID, query, res, services.PageGlobal)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("render page failed")
		return b.reply(ctx, chatID, msgSearchFailed)
	}
	_, err = b.Messenger.SendMessage(ctx, chatID, page.Text, keyboard(page.Rows))
	return err
}

// turnPage re-runs query and edits the results message in place.
func (b *Bot) turnPage(ctx context.Context, cq *telegram.CallbackQuery, query string, pageNo int) error {
	if cq.Message == nil {
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgUnknownAction, false)
	}
	chatID := cq.Message.ChatID()

	res, err := b.Search.Search(ctx, query, b.Settings.NumResults)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Str("query", query).Msg("page search failed")
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgSearchFailed, false)
	}
	page, err := b.Pages.Render(ctx, chatID, query, res, pageNo)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("render page failed")
		return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, msgSearchFailed, false)
	}
	if err := b.Messenger.EditMessageText(ctx, chatID, cq.Message.MessageID, page.Text, keyboard(page.Rows)); err != nil {
		if !telegram.IsMessageNotModified(err) {
			return err
		}
	}
	return b.Messenger.AnswerCallbackQuery(ctx, cq.ID, "", false)
}
