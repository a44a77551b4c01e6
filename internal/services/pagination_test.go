package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tbourn/go-pdf-library-bot/internal/memstore"
	"github.com/tbourn/go-pdf-library-bot/internal/search"
)

func newPaginator() (*Paginator, *ResultCache) {
	c := NewResultCache(memstore.New(), 0)
	return &Paginator{Cache: c}, c
}

func sampleResults() *search.Results {
	return &search.Results{
		Global: []search.Result{
			{Title: "Global One", URL: "https://g/1.pdf"},
			{Title: "Global Two", URL: "https://g/2.pdf"},
		},
		Archive: []search.Result{
			{Title: "Archive One", URL: "https://archive.org/1.pdf"},
		},
	}
}

func TestRender_Page0_WithNext(t *testing.T) {
	p, cache := newPaginator()
	ctx := context.Background()

	page, err := p.Render(ctx, 10, "physics", sampleResults(), 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if page.Number != 0 || !strings.Contains(page.Text, "Global PDF Results") || !strings.Contains(page.Text, "Search query: physics") {
		t.Fatalf("unexpected header: %q", page.Text)
	}
	if len(page.Rows) != 3 {
		t.Fatalf("rows = %d; want 2 results + nav", len(page.Rows))
	}
	first := page.Rows[0][0]
	if first.Text != "📚 Global One" || first.Data != "pdf:"+Fingerprint("https://g/1.pdf") {
		t.Fatalf("unexpected result button: %+v", first)
	}
	nav := page.Rows[2]
	if len(nav) != 1 || nav[0].Data != "next_page:physics" || nav[0].Text != nextLabel {
		t.Fatalf("unexpected nav row: %+v", nav)
	}

	// Every listed result is retrievable.
	if r, err := cache.Take(ctx, 10, Fingerprint("https://g/2.pdf")); err != nil || r.Title != "Global Two" {
		t.Fatalf("result not registered: %+v, %v", r, err)
	}
	// Archive results are not registered by page 0.
	if _, err := cache.Take(ctx, 10, Fingerprint("https://archive.org/1.pdf")); err == nil {
		t.Fatalf("archive result should not be cached by page 0")
	}
}

func TestRender_Page0_NoArchiveOmitsNav(t *testing.T) {
	p, _ := newPaginator()
	res := sampleResults()
	res.Archive = nil

	page, err := p.Render(context.Background(), 10, "q", res, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(page.Rows) != 2 {
		t.Fatalf("rows = %d; want results only", len(page.Rows))
	}
	for _, row := range page.Rows {
		for _, b := range row {
			if strings.HasPrefix(b.Data, ActionNext) {
				t.Fatalf("next control must be absent")
			}
		}
	}
}

func TestRender_Page1_HasPrev(t *testing.T) {
	p, _ := newPaginator()
	page, err := p.Render(context.Background(), 10, "physics", sampleResults(), 1)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if page.Number != 1 || !strings.Contains(page.Text, "Internet Archive PDF Results") {
		t.Fatalf("unexpected header: %q", page.Text)
	}
	if len(page.Rows) != 2 || page.Rows[0][0].Text != "📚 Archive One" {
		t.Fatalf("unexpected rows: %+v", page.Rows)
	}
	if nav := page.Rows[1]; nav[0].Data != "prev_page:physics" || nav[0].Text != prevLabel {
		t.Fatalf("unexpected nav: %+v", nav)
	}
}

func TestRender_UnknownPageFallsBackToGlobal(t *testing.T) {
	p, _ := newPaginator()
	page, _ := p.Render(context.Background(), 1, "q", sampleResults(), 7)
	if page.Number != 0 {
		t.Fatalf("page = %d; want 0", page.Number)
	}
}

func TestPageHeader_CapsLongQuery(t *testing.T) {
	long := strings.Repeat("ж", 4096)
	h := PageHeader(PageGlobal, long)
	if utf8.RuneCountInString(h) > 512 {
		t.Fatalf("header has %d runes; query must be capped", utf8.RuneCountInString(h))
	}
	if !strings.HasSuffix(h, strings.Repeat("ж", maxHeaderQueryRunes-3)+"...") {
		t.Fatalf("capped query should end with an ellipsis: %q", h[len(h)-16:])
	}

	short := PageHeader(PageArchive, "physics")
	if !strings.HasSuffix(short, "Search query: physics") || !strings.Contains(short, "Internet Archive") {
		t.Fatalf("short query must be echoed unchanged: %q", short)
	}
}

func TestTruncateTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := TruncateTitle(long)
	if got != strings.Repeat("a", 47)+"..." {
		t.Fatalf("TruncateTitle(60) = %q", got)
	}
	short := strings.Repeat("b", 40)
	if TruncateTitle(short) != short {
		t.Fatalf("40-char title must be unchanged")
	}
	exact := strings.Repeat("c", 50)
	if TruncateTitle(exact) != exact {
		t.Fatalf("50-char title must be unchanged")
	}
	uni := strings.Repeat("é", 51)
	if utf8.RuneCountInString(TruncateTitle(uni)) != 50 {
		t.Fatalf("truncation must count runes")
	}
}

func TestNavPayload_FitsTelegramLimit(t *testing.T) {
	q := strings.Repeat("ж", 40) // 80 bytes
	got := NavPayload(ActionNext, q)
	if len(got) > MaxCallbackBytes {
		t.Fatalf("payload %d bytes exceeds limit", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("payload cut inside a rune: %q", got)
	}
	if !strings.HasPrefix(got, "next_page:ж") {
		t.Fatalf("unexpected payload: %q", got)
	}
	if NavPayload(ActionPrev, "short") != "prev_page:short" {
		t.Fatalf("short query must be kept intact")
	}
}

func TestParseCallback(t *testing.T) {
	cases := []struct{ in, action, arg string }{
		{"pdf:abc", ActionPDF, "abc"},
		{"next_page:a:b", ActionNext, "a:b"},
		{"donate", ActionDonate, ""},
	}
	for _, tc := range cases {
		a, arg := ParseCallback(tc.in)
		if a != tc.action || arg != tc.arg {
			t.Fatalf("ParseCallback(%q) = %q, %q", tc.in, a, arg)
		}
	}
}
