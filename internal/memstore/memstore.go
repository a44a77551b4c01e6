// Package memstore is an in-process implementation of the bot's state
// stores. All state lives in maps guarded by one mutex and is lost on
// restart; it backs STORE_DRIVER=memory and service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

type resultKey struct {
	chatID      int64
	fingerprint string
}

// Store holds users, cached results, processed updates and deliveries.
// The zero value is not usable; call New.
type Store struct {
	mu         sync.Mutex
	users      map[int64]domain.User
	results    map[resultKey]domain.CachedResult
	updates    map[int64]time.Time
	deliveries []domain.Delivery
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[int64]domain.User),
		results: make(map[resultKey]domain.CachedResult),
		updates: make(map[int64]time.Time),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u domain.User) *domain.User {
	u.LastSearchTime = copyTime(u.LastSearchTime)
	u.LastPDFRequest = copyTime(u.LastPDFRequest)
	return &u
}

// upsertLocked returns the stored user for id, creating zero state. Callers hold mu.
func (s *Store) upsertLocked(id int64) domain.User {
	u, ok := s.users[id]
	if !ok {
		now := time.Now().UTC()
		u = domain.User{UserID: id, CreatedAt: now, UpdatedAt: now}
	}
	return u
}

// ---- users ----

func (s *Store) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return cloneUser(u), nil
	}
	return &domain.User{UserID: userID}, nil
}

func (s *Store) RegisterUser(_ context.Context, userID int64, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upsertLocked(userID)
	if u.DisplayName == "" {
		u.DisplayName = displayName
	}
	s.users[userID] = u
	return nil
}

func (s *Store) UpdateQuota(_ context.Context, userID int64, count int, lastSearch *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upsertLocked(userID)
	u.SearchCount = count
	u.LastSearchTime = copyTime(lastSearch)
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *Store) TouchCooldown(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upsertLocked(userID)
	u.LastPDFRequest = &at
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *Store) SetSuperUser(_ context.Context, userID int64, displayName string, super bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upsertLocked(userID)
	u.IsSuperUser = super
	if displayName != "" {
		u.DisplayName = displayName
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *Store) ListSuperUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.IsSuperUser {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- results ----

func (s *Store) PutResult(_ context.Context, r domain.CachedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resultKey{r.ChatID, r.Fingerprint}] = r
	return nil
}

func (s *Store) TakeResult(_ context.Context, chatID int64, fingerprint string) (domain.CachedResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := resultKey{chatID, fingerprint}
	r, ok := s.results[k]
	if ok {
		delete(s.results, k)
	}
	return r, ok, nil
}

func (s *Store) DeleteResultsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.results {
		if r.CreatedAt.Before(cutoff) {
			delete(s.results, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountResults(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.results)), nil
}

// ---- processed updates ----

func (s *Store) MarkUpdate(_ context.Context, updateID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.updates[updateID]; ok {
		return false, nil
	}
	s.updates[updateID] = at
	return true, nil
}

func (s *Store) PurgeUpdatesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, at := range s.updates {
		if at.Before(cutoff) {
			delete(s.updates, id)
			n++
		}
	}
	return n, nil
}

// ---- stats ----

func (s *Store) RecordDelivery(_ context.Context, d domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.ID = uint(len(s.deliveries) + 1)
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *Store) CountUsers(_ context.Context) (total, super int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		total++
		if u.IsSuperUser {
			super++
		}
	}
	return total, super, nil
}

func (s *Store) QuotaUsage(_ context.Context, since time.Time, limit int) (limited, searches int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.LastSearchTime == nil || !u.LastSearchTime.After(since) {
			continue
		}
		searches += int64(u.SearchCount)
		if u.SearchCount >= limit {
			limited++
		}
	}
	return limited, searches, nil
}

func (s *Store) CountDeliveriesSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.deliveries {
		if !d.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
