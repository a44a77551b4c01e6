package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
	"github.com/tbourn/go-pdf-library-bot/internal/utils"
)

func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message, cmd, args string) error {
	b.remember(ctx, m.From)

	switch cmd {
	case "start":
		return b.start(ctx, m)
	case "help":
		return b.reply(ctx, m.ChatID(), fmt.Sprintf(helpText, b.Quota.Limit, formatWindow(b.Quota.Window)))
	case "addsuperuser":
		return b.addSuperUser(ctx, m, args)
	case "removesuperuser":
		return b.removeSuperUser(ctx, m, args)
	case "listsuperusers":
		return b.listSuperUsers(ctx, m)
	case "broadcast":
		return b.broadcast(ctx, m, args)
	case "stats":
		return b.stats(ctx, m)
	}
	return nil
}

func (b *Bot) start(ctx context.Context, m *telegram.Message) error {
	tier, err := b.Privileges.Resolve(ctx, m.From.ID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", m.From.ID).Msg("resolve tier failed")
	}
	name := m.From.DisplayName()
	if tier.Unlimited() {
		if u, err := b.Users.GetUser(ctx, m.From.ID); err == nil && u.IsSuperUser && u.DisplayName != "" {
			name = u.DisplayName
		}
	}
	_, err = b.Messenger.SendMessage(ctx, m.ChatID(), welcomeText(tier, name), b.welcomeKeyboard())
	return err
}

// target resolves the user an admin command acts on: the author of the
// replied-to message, or "<id> [name]" in the arguments.
func target(m *telegram.Message, args string) (id int64, name string, ok bool) {
	if r := m.ReplyToMessage; r != nil && r.From != nil {
		name = r.From.Username
		if name == "" {
			name = r.From.DisplayName()
		}
		return r.From.ID, name, true
	}
	first, rest := utils.SplitFirst(args)
	id, err := utils.ParseID(first)
	if err != nil {
		return 0, "", false
	}
	return id, rest, true
}

func (b *Bot) addSuperUser(ctx context.Context, m *telegram.Message, args string) error {
	chatID := m.ChatID()
	if !b.Privileges.IsAdmin(m.From.ID) {
		return b.denied(ctx, m)
	}
	id, name, ok := target(m, args)
	if !ok {
		return b.reply(ctx, chatID, msgPromoteUsage)
	}
	label := name
	if label == "" {
		label = fmt.Sprint(id)
	}

	err := b.Admin.AddSuperUser(ctx, m.From.ID, id, name)
	switch {
	case err == nil:
		return b.reply(ctx, chatID, fmt.Sprintf("✅ User %s has been added as a super user.", label))
	case errors.Is(err, services.ErrAlreadySuperUser):
		return b.reply(ctx, chatID, fmt.Sprintf("User %s is already a super user.", label))
	case errors.Is(err, services.ErrUnauthorized):
		return b.denied(ctx, m)
	case errors.Is(err, services.ErrInvalidUser):
		return b.reply(ctx, chatID, msgPromoteUsage)
	}
	log.Error().Err(err).Int64("user_id", id).Msg("add super user failed")
	return b.reply(ctx, chatID, msgSearchFailed)
}

func (b *Bot) removeSuperUser(ctx context.Context, m *telegram.Message, args string) error {
	chatID := m.ChatID()
	if !b.Privileges.IsAdmin(m.From.ID) {
		return b.denied(ctx, m)
	}
	id, _, ok := target(m, args)
	if !ok {
		return b.reply(ctx, chatID, msgDemoteUsage)
	}

	err := b.Admin.RemoveSuperUser(ctx, m.From.ID, id)
	switch {
	case err == nil:
		return b.reply(ctx, chatID, fmt.Sprintf("✅ User %d is no longer a super user.", id))
	case errors.Is(err, services.ErrNotSuperUser):
		return b.reply(ctx, chatID, fmt.Sprintf("User %d is not a super user.", id))
	case errors.Is(err, services.ErrUnauthorized):
		return b.denied(ctx, m)
	}
	log.Error().Err(err).Int64("user_id", id).Msg("remove super user failed")
	return b.reply(ctx, chatID, msgSearchFailed)
}

func (b *Bot) listSuperUsers(ctx context.Context, m *telegram.Message) error {
	users, err := b.Admin.ListSuperUsers(ctx, m.From.ID)
	if errors.Is(err, services.ErrUnauthorized) {
		return b.denied(ctx, m)
	}
	if err != nil {
		log.Error().Err(err).Msg("list super users failed")
		return b.reply(ctx, m.ChatID(), msgSearchFailed)
	}
	return b.reply(ctx, m.ChatID(), superUserList(users))
}

func (b *Bot) broadcast(ctx context.Context, m *telegram.Message, text string) error {
	send := func(ctx context.Context, userID int64, text string) error {
		_, err := b.Messenger.SendMessage(ctx, userID, text, nil)
		return err
	}
	rep, err := b.Admin.Broadcast(ctx, m.From.ID, text, send)
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return b.denied(ctx, m)
	case errors.Is(err, services.ErrEmptyBroadcast):
		return b.reply(ctx, m.ChatID(), msgEmptyBroadcast)
	case err != nil:
		log.Error().Err(err).Int("delivered", rep.Delivered).Msg("broadcast aborted")
		return b.reply(ctx, m.ChatID(), msgSearchFailed)
	}
	log.Info().Int("delivered", rep.Delivered).Int("failed", rep.Failed).Msg("broadcast finished")
	return b.reply(ctx, m.ChatID(), fmt.Sprintf("Broadcast completed with %d failures.", rep.Failed))
}

func (b *Bot) stats(ctx context.Context, m *telegram.Message) error {
	s, err := b.Admin.Stats(ctx, m.From.ID)
	if errors.Is(err, services.ErrUnauthorized) {
		return b.denied(ctx, m)
	}
	if err != nil {
		log.Error().Err(err).Msg("stats failed")
		return b.reply(ctx, m.ChatID(), msgSearchFailed)
	}
	return b.reply(ctx, m.ChatID(), statsText(s))
}

func (b *Bot) denied(ctx context.Context, m *telegram.Message) error {
	log.Info().Int64("user_id", m.From.ID).Str("text", m.Text).Msg("admin command refused")
	return b.reply(ctx, m.ChatID(), msgUnauthorized)
}
