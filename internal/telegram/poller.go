package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultPollTimeout  = 30
	defaultPollWorkers  = 4
	defaultErrorBackoff = 5 * time.Second
)

// OffsetStore persists the polling offset across restarts.
type OffsetStore interface {
	GetOffset(ctx context.Context) (int64, error)
	SaveOffset(ctx context.Context, offset int64) error
}

// UpdateHandler processes one update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *Update) error
}

// UpdateSource is the part of Client the poller needs.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
	DeleteWebhook(ctx context.Context) error
}

// Poller receives updates with getUpdates and hands them to a handler.
//
// Each batch is split across Workers goroutines by sender id, so updates
// from one user are handled in order while different users run
// concurrently. The offset advances only after the whole batch finished.
type Poller struct {
	Source       UpdateSource
	Handler      UpdateHandler
	Offsets      OffsetStore // nil keeps the offset in memory only
	Timeout      int
	Workers      int
	ErrorBackoff time.Duration

	lastUpdateID int64
	watermark    int64
}

// NewPoller builds a poller with default timeout and worker count.
func NewPoller(src UpdateSource, h UpdateHandler, offsets OffsetStore) *Poller {
	return &Poller{
		Source:       src,
		Handler:      h,
		Offsets:      offsets,
		Timeout:      defaultPollTimeout,
		Workers:      defaultPollWorkers,
		ErrorBackoff: defaultErrorBackoff,
	}
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	if p.Workers <= 0 {
		p.Workers = defaultPollWorkers
	}
	if p.Offsets != nil {
		saved, err := p.Offsets.GetOffset(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load polling offset, starting from 0")
		} else if saved > 0 {
			p.lastUpdateID, p.watermark = saved, saved
			log.Info().Int64("offset", saved).Msg("loaded polling offset")
		}
	}

	if err := p.Source.DeleteWebhook(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to delete webhook before polling")
	}
	log.Info().Int("timeout", p.Timeout).Int("workers", p.Workers).Msg("telegram polling started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("telegram polling stopped")
			return nil
		}
		p.poll(ctx)
	}
}

func (p *Poller) poll(ctx context.Context) {
	offset := int64(0)
	if p.lastUpdateID > 0 {
		offset = p.lastUpdateID + 1
	}
	updates, err := p.Source.GetUpdates(ctx, offset, p.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("failed to get updates")
		select {
		case <-ctx.Done():
		case <-time.After(p.ErrorBackoff):
		}
		return
	}
	if len(updates) == 0 {
		return
	}

	var maxID int64
	buckets := make([][]Update, p.Workers)
	for _, u := range updates {
		if u.UpdateID > maxID {
			maxID = u.UpdateID
		}
		// Already handled before a restart.
		if u.UpdateID <= p.watermark {
			continue
		}
		idx := p.affinity(&u)
		buckets[idx] = append(buckets[idx], u)
	}

	var wg sync.WaitGroup
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		go func(worker int, batch []Update) {
			defer wg.Done()
			p.processBatch(ctx, worker, batch)
		}(i, bucket)
	}
	wg.Wait()

	if maxID > p.lastUpdateID {
		p.lastUpdateID = maxID
	}
	if maxID > p.watermark {
		p.watermark = maxID
	}

	if p.Offsets != nil && p.lastUpdateID > 0 {
		// The poll context may already be cancelled during shutdown.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Offsets.SaveOffset(saveCtx, p.lastUpdateID); err != nil {
			log.Warn().Err(err).Msg("failed to save polling offset")
		}
	}
}

func (p *Poller) processBatch(ctx context.Context, worker int, updates []Update) {
	for i := range updates {
		if ctx.Err() != nil {
			return
		}
		func(u *Update) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Int("worker", worker).
						Int64("update_id", u.UpdateID).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("panic recovered in update handler")
				}
			}()
			if err := p.Handler.HandleUpdate(ctx, u); err != nil {
				log.Error().Err(err).
					Int("worker", worker).
					Int64("update_id", u.UpdateID).
					Msg("failed to handle update")
			}
		}(&updates[i])
	}
}

// affinity maps an update to a worker by sender id, falling back to the
// update id for sender-less updates.
func (p *Poller) affinity(u *Update) int {
	key := u.UpdateID
	if s := u.Sender(); s != nil {
		key = s.ID
	}
	idx := int(key % int64(p.Workers))
	if idx < 0 {
		idx += p.Workers
	}
	return idx
}
