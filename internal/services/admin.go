// Package services – AdminService
//
// AdminService implements the administrative commands: super-user
// membership, broadcast to every known user, and usage statistics. Every
// operation first checks that the acting user is an admin and returns
// ErrUnauthorized, with no state change, otherwise.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// SendFunc delivers one broadcast message to a user.
type SendFunc func(ctx context.Context, userID int64, text string) error

// BroadcastReport summarizes a broadcast run.
type BroadcastReport struct {
	Delivered int
	Failed    int
}

// AdminService coordinates admin-only operations.
type AdminService struct {
	Users      UserStore
	Results    ResultStore
	Usage      StatsStore
	Privileges *PrivilegeResolver

	// Quota settings used to classify users as rate-limited in Stats.
	Limit  int
	Window time.Duration
	Now    func() time.Time

	mu sync.Mutex
}

func (a *AdminService) authorize(actor int64) error {
	if a.Privileges == nil || !a.Privileges.IsAdmin(actor) {
		return ErrUnauthorized
	}
	return nil
}

func (a *AdminService) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// AddSuperUser promotes userID.
func (a *AdminService) AddSuperUser(ctx context.Context, actor, userID int64, name string) error {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "AddSuperUser",
		trace.WithAttributes(
			attribute.Int64("actor.id", actor),
			attribute.Int64("user.id", userID),
		),
	)
	defer span.End()

	if err := a.authorize(actor); err != nil {
		return err
	}
	if userID <= 0 {
		return ErrInvalidUser
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperUser {
		return ErrAlreadySuperUser
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = u.DisplayName
	}
	if err := a.Users.SetSuperUser(ctx, userID, name, true); err != nil {
		return err
	}
	log.Info().Int64("actor_id", actor).Int64("user_id", userID).Str("name", name).Msg("super user added")
	return nil
}

// RemoveSuperUser demotes userID.
func (a *AdminService) RemoveSuperUser(ctx context.Context, actor, userID int64) error {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "RemoveSuperUser",
		trace.WithAttributes(
			attribute.Int64("actor.id", actor),
			attribute.Int64("user.id", userID),
		),
	)
	defer span.End()

	if err := a.authorize(actor); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsSuperUser {
		return ErrNotSuperUser
	}
	if err := a.Users.SetSuperUser(ctx, userID, u.DisplayName, false); err != nil {
		return err
	}
	log.Info().Int64("actor_id", actor).Int64("user_id", userID).Msg("super user removed")
	return nil
}

// ListSuperUsers returns all super users ordered by id.
func (a *AdminService) ListSuperUsers(ctx context.Context, actor int64) ([]domain.User, error) {
	if err := a.authorize(actor); err != nil {
		return nil, err
	}
	return a.Users.ListSuperUsers(ctx)
}

// Broadcast sends text to every known user. Individual send failures are
// counted, not returned.
func (a *AdminService) Broadcast(ctx context.Context, actor int64, text string, send SendFunc) (BroadcastReport, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "Broadcast", trace.WithAttributes(attribute.Int64("actor.id", actor)))
	defer span.End()

	var rep BroadcastReport
	if err := a.authorize(actor); err != nil {
		return rep, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return rep, ErrEmptyBroadcast
	}

	ids, err := a.Users.ListUserIDs(ctx)
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := send(ctx, id, text); err != nil {
			rep.Failed++
			log.Warn().Err(err).Int64("user_id", id).Msg("broadcast send failed")
			continue
		}
		rep.Delivered++
	}
	span.SetAttributes(
		attribute.Int("broadcast.delivered", rep.Delivered),
		attribute.Int("broadcast.failed", rep.Failed),
	)
	return rep, nil
}

// Stats returns a usage snapshot.
func (a *AdminService) Stats(ctx context.Context, actor int64) (*UsageStats, error) {
	if err := a.authorize(actor); err != nil {
		return nil, err
	}
	now := a.now().UTC()

	total, supers, err := a.Usage.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	limit, window := a.Limit, a.Window
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if window <= 0 {
		window = defaultSearchWindow
	}
	limited, searches, err := a.Usage.QuotaUsage(ctx, now.Add(-window), limit)
	if err != nil {
		return nil, err
	}
	pending, err := a.Results.CountResults(ctx)
	if err != nil {
		return nil, err
	}
	delivered, err := a.Usage.CountDeliveriesSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return &UsageStats{
		KnownUsers:       total,
		SuperUsers:       supers,
		RateLimited:      limited,
		ActiveSearches:   searches,
		PendingResults:   pending,
		DeliveriesLast24: delivered,
	}, nil
}
