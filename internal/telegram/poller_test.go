package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
	cancel  context.CancelFunc
	fail    int
}

func (f *fakeSource) GetUpdates(ctx context.Context, offset int64, _ int) ([]Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("boom")
	}
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) DeleteWebhook(context.Context) error { return nil }

type recordingHandler struct {
	mu     sync.Mutex
	seen   []int64
	byUser map[int64][]int64
	panics map[int64]bool
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u *Update) error {
	if h.panics[u.UpdateID] {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, u.UpdateID)
	if h.byUser == nil {
		h.byUser = map[int64][]int64{}
	}
	if s := u.Sender(); s != nil {
		h.byUser[s.ID] = append(h.byUser[s.ID], u.UpdateID)
	}
	return nil
}

type memOffsets struct {
	mu     sync.Mutex
	offset int64
}

func (m *memOffsets) GetOffset(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset, nil
}

func (m *memOffsets) SaveOffset(_ context.Context, o int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = o
	return nil
}

func msgUpdate(id, user int64) Update {
	return Update{UpdateID: id, Message: &Message{From: &User{ID: user}, Chat: &Chat{ID: user}, Text: "q"}}
}

func runPoller(t *testing.T, p *Poller, src *fakeSource) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	src.cancel = cancel
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("poller did not stop")
	}
}

func TestPoller_ProcessesBatchAndAdvancesOffset(t *testing.T) {
	src := &fakeSource{batches: [][]Update{
		{msgUpdate(1, 10), msgUpdate(2, 11), msgUpdate(3, 10)},
		{msgUpdate(4, 12)},
	}}
	h := &recordingHandler{}
	offsets := &memOffsets{}
	p := NewPoller(src, h, offsets)
	p.Workers = 2

	runPoller(t, p, src)

	if len(h.seen) != 4 {
		t.Fatalf("handled %v, want 4 updates", h.seen)
	}
	if got := h.byUser[10]; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("per-user order broken: %v", got)
	}
	want := []int64{0, 4, 5}
	if len(src.offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", src.offsets, want)
	}
	for i := range want {
		if src.offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", src.offsets, want)
		}
	}
	if offsets.offset != 4 {
		t.Fatalf("saved offset = %d, want 4", offsets.offset)
	}
}

func TestPoller_ResumesFromSavedOffsetAndSkipsSeen(t *testing.T) {
	src := &fakeSource{batches: [][]Update{
		{msgUpdate(4, 1), msgUpdate(5, 1), msgUpdate(6, 1)},
	}}
	h := &recordingHandler{}
	p := NewPoller(src, h, &memOffsets{offset: 5})

	runPoller(t, p, src)

	if src.offsets[0] != 6 {
		t.Fatalf("first offset = %d, want 6", src.offsets[0])
	}
	if len(h.seen) != 1 || h.seen[0] != 6 {
		t.Fatalf("handled %v, want only 6", h.seen)
	}
}

func TestPoller_RecoversFromPanics(t *testing.T) {
	src := &fakeSource{batches: [][]Update{{msgUpdate(1, 1), msgUpdate(2, 1)}}}
	h := &recordingHandler{panics: map[int64]bool{1: true}}
	p := NewPoller(src, h, nil)

	runPoller(t, p, src)

	if len(h.seen) != 1 || h.seen[0] != 2 {
		t.Fatalf("handled %v, want [2]", h.seen)
	}
}

func TestPoller_BacksOffOnError(t *testing.T) {
	src := &fakeSource{fail: 1, batches: [][]Update{{msgUpdate(1, 1)}}}
	h := &recordingHandler{}
	p := NewPoller(src, h, nil)
	p.ErrorBackoff = 10 * time.Millisecond

	runPoller(t, p, src)

	if len(h.seen) != 1 {
		t.Fatalf("handled %v after retry", h.seen)
	}
}

func TestPoller_AffinityNonNegative(t *testing.T) {
	p := &Poller{Workers: 3}
	for _, id := range []int64{-7, -1, 0, 1, 5} {
		u := msgUpdate(1, id)
		if idx := p.affinity(&u); idx < 0 || idx >= 3 {
			t.Fatalf("affinity(%d) = %d", id, idx)
		}
	}
	noSender := Update{UpdateID: 8}
	if idx := p.affinity(&noSender); idx != 2 {
		t.Fatalf("sender-less affinity = %d, want 2", idx)
	}
}
