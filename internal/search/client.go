// Package search provides clients for the external PDF search service.
//
// Two backends implement Client:
//
//   - APIClient posts the query to a JSON search API that returns global and
//     Internet Archive results in one response.
//   - ScrapeClient runs two HTML web searches (any site, and archive.org
//     only) restricted to PDF files and extracts result links with goquery.
//
// Both retry transient failures (transport errors, 429, 5xx) with
// exponential backoff and jitter, then report ErrUpstream.
package search

import (
	"context"
	"errors"
)

// ErrUpstream is returned when the search backend fails or answers with a
// malformed body.
var ErrUpstream = errors.New("search backend unavailable")

// Result is one search hit.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Results groups hits by source, each in backend order.
type Results struct {
	Global  []Result `json:"global_results"`
	Archive []Result `json:"archive_results"`
}

// Empty reports whether neither list has hits.
func (r *Results) Empty() bool {
	return r == nil || (len(r.Global) == 0 && len(r.Archive) == 0)
}

// Client queries a search backend.
type Client interface {
	Search(ctx context.Context, query string, numResults int) (*Results, error)
}
