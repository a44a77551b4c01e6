package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultCooldown = 60 * time.Second

// CooldownGate rejects delivery requests that arrive less than Window after
// the user's previous accepted one. It applies to every tier.
type CooldownGate struct {
	Store  UserStore
	Window time.Duration
	Now    func() time.Time

	locks *KeyLock
}

// NewCooldownGate builds a gate; a non-positive window defaults to 60s.
func NewCooldownGate(store UserStore, window time.Duration) *CooldownGate {
	if window <= 0 {
		window = defaultCooldown
	}
	return &CooldownGate{Store: store, Window: window, Now: time.Now, locks: NewKeyLock()}
}

// TryAcquire records the request and returns nil, or returns a
// *CooldownActiveError without touching the stored timestamp.
func (g *CooldownGate) TryAcquire(ctx context.Context, userID int64) error {
	tr := otel.Tracer("services/CooldownGate")
	ctx, span := tr.Start(ctx, "TryAcquire", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	unlock := g.locks.Lock(userID)
	defer unlock()

	u, err := g.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	now := g.Now()
	if last := u.LastPDFRequest; last != nil {
		if elapsed := now.Sub(*last); elapsed < g.Window {
			deliveriesTotal.WithLabelValues("cooldown").Inc()
			return &CooldownActiveError{Remaining: g.Window - elapsed}
		}
	}
	return g.Store.TouchCooldown(ctx, userID, now)
}
