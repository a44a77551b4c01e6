// Package services defines the business logic for search quotas, delivery
// cooldowns, privilege resolution, the result cache, pagination and admin
// operations. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing chat messages is performed by the bot
// dispatcher, not here.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss is returned by ResultCache.Take when no live entry exists
	// for the (chat, fingerprint) pair: it was never stored, was already
	// delivered, or has expired.
	ErrCacheMiss = errors.New("cached result not found")

	// ErrEmptyQuery is returned when a search query is blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrUnauthorized is returned when a non-admin invokes an admin operation.
	ErrUnauthorized = errors.New("not authorized")

	// ErrAlreadySuperUser is returned when promoting a user who is already a
	// super user.
	ErrAlreadySuperUser = errors.New("user is already a super user")

	// ErrNotSuperUser is returned when demoting a user who is not a super user.
	ErrNotSuperUser = errors.New("user is not a super user")

	// ErrEmptyBroadcast is returned when a broadcast carries no text.
	ErrEmptyBroadcast = errors.New("broadcast message is empty")

	// ErrInvalidUser is returned for non-positive user ids.
	ErrInvalidUser = errors.New("invalid user id")
)

// QuotaExceededError is returned when a regular user has used up the search
// quota for the current window. RetryAfter is the time until the window
// resets.
type QuotaExceededError struct {
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("search quota exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// CooldownActiveError is returned when a delivery is requested before the
// cooldown since the previous one has elapsed.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("delivery cooldown active, %ds remaining", e.Seconds())
}

// Seconds returns the remaining cooldown rounded up to whole seconds.
func (e *CooldownActiveError) Seconds() int {
	s := int(e.Remaining / time.Second)
	if e.Remaining%time.Second != 0 {
		s++
	}
	return s
}
