package services

import (
	"context"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// PrivilegeResolver maps a user id to its tier. Admins come from static
// configuration; super-user membership is read from the store.
type PrivilegeResolver struct {
	Store  UserStore
	admins map[int64]struct{}
}

// NewPrivilegeResolver builds a resolver with the given admin ids.
func NewPrivilegeResolver(store UserStore, adminIDs []int64) *PrivilegeResolver {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &PrivilegeResolver{Store: store, admins: admins}
}

// IsAdmin reports static admin membership.
func (p *PrivilegeResolver) IsAdmin(userID int64) bool {
	_, ok := p.admins[userID]
	return ok
}

// Resolve returns admin, super or regular, in that order of precedence.
func (p *PrivilegeResolver) Resolve(ctx context.Context, userID int64) (domain.Tier, error) {
	if p.IsAdmin(userID) {
		return domain.TierAdmin, nil
	}
	u, err := p.Store.GetUser(ctx, userID)
	if err != nil {
		return domain.TierRegular, err
	}
	if u.IsSuperUser {
		return domain.TierSuper, nil
	}
	return domain.TierRegular, nil
}

// SeedSuperUsers marks the configured ids as super users, keeping any
// existing display name when the configured one is empty.
func SeedSuperUsers(ctx context.Context, store UserStore, users map[int64]string) error {
	for id, name := range users {
		if name == "" {
			if u, err := store.GetUser(ctx, id); err == nil {
				name = u.DisplayName
			}
		}
		if err := store.SetSuperUser(ctx, id, name, true); err != nil {
			return err
		}
	}
	return nil
}
