// Package services – Paginator
//
// Paginator renders the two-page result view: page 0 lists global results,
// page 1 lists Internet Archive results. Each result becomes one button
// whose payload is a cache fingerprint; navigation buttons carry the query
// so a page turn can re-run the search.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-pdf-library-bot/internal/search"
)

// Callback payload actions.
const (
	ActionPDF    = "pdf"
	ActionNext   = "next_page"
	ActionPrev   = "prev_page"
	ActionDonate = "donate"
)

const (
	// MaxCallbackBytes is Telegram's limit for callback_data.
	MaxCallbackBytes = 64

	maxTitleRunes       = 50
	truncatedTitleRunes = 47

	// maxHeaderQueryRunes bounds the query echoed in the page header so the
	// message stays far below Telegram's 4096-character text limit.
	maxHeaderQueryRunes = 256

	resultPrefix = "📚 "
	nextLabel    = "➡️ Next Page (Archive.org)"
	prevLabel    = "⬅️ Previous Page (Global)"

	PageGlobal  = 0
	PageArchive = 1
)

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Page is a rendered result page ready for the chat transport.
type Page struct {
	Number int
	Text   string
	Rows   [][]Button
}

// Paginator renders result pages and registers results in the cache.
type Paginator struct {
	Cache *ResultCache
}

// Render builds page (0 = global, 1 = archive; anything else is treated as 0)
// for chatID. Every listed result is stored in the cache under its
// fingerprint before the page is returned.
func (p *Paginator) Render(ctx context.Context, chatID int64, query string, res *search.Results, page int) (*Page, error) {
	tr := otel.Tracer("services/Paginator")
	ctx, span := tr.Start(ctx, "Render",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if page != PageArchive {
		page = PageGlobal
	}
	if res == nil {
		res = &search.Results{}
	}

	items := res.Global
	if page == PageArchive {
		items = res.Archive
	}

	rows := make([][]Button, 0, len(items)+1)
	for _, r := range items {
		fp, err := p.Cache.Put(ctx, chatID, r.URL, r.Title)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []Button{{
			Text: resultPrefix + TruncateTitle(r.Title),
			Data: ActionPDF + ":" + fp,
		}})
	}

	var nav []Button
	switch {
	case page == PageGlobal && len(res.Archive) > 0:
		nav = append(nav, Button{Text: nextLabel, Data: NavPayload(ActionNext, query)})
	case page == PageArchive:
		nav = append(nav, Button{Text: prevLabel, Data: NavPayload(ActionPrev, query)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return &Page{Number: page, Text: PageHeader(page, query), Rows: rows}, nil
}

// PageHeader returns the message text shown above the buttons.
func PageHeader(page int, query string) string {
	title := "🌐 Global PDF Results"
	if page == PageArchive {
		title = "🏛️ Internet Archive PDF Results"
	}
	if r := []rune(query); len(r) > maxHeaderQueryRunes {
		query = string(r[:maxHeaderQueryRunes-3]) + "..."
	}
	return "📚 " + title + " 📚\n\n🔍 Search query: " + query
}

// TruncateTitle shortens titles longer than 50 runes to 47 runes plus "...".
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	r := []rune(title)
	return string(r[:truncatedTitleRunes]) + "..."
}

// NavPayload builds "<action>:<query>", trimming the query on a rune
// boundary so the payload fits in MaxCallbackBytes.
func NavPayload(action, query string) string {
	prefix := action + ":"
	room := MaxCallbackBytes - len(prefix)
	if len(query) <= room {
		return prefix + query
	}
	cut := room
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return prefix + strings.TrimSpace(query[:cut])
}

// ParseCallback splits a payload into action and argument.
func ParseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}
