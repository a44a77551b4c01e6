package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ScrapeClient runs two web searches per query, one across all sites and one
// limited to archive.org, both restricted to PDF files.
type ScrapeClient struct {
	BaseURL   string // e.g. https://www.google.com/search
	HTTP      *http.Client
	UserAgent string
	Retries   int
	Backoff   time.Duration
}

// NewScrapeClient returns a scraper with a browser user agent.
func NewScrapeClient(baseURL string, timeout time.Duration, retries int, backoff time.Duration) *ScrapeClient {
	return &ScrapeClient{
		BaseURL:   baseURL,
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: defaultUserAgent,
		Retries:   retries,
		Backoff:   backoff,
	}
}

// Search implements Client. The two lists are fetched concurrently. When only
// one of them fails, the other is returned with the failed list empty.
func (c *ScrapeClient) Search(ctx context.Context, query string, numResults int) (*Results, error) {
	var (
		out                  Results
		globalErr, archiveErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Global, globalErr = c.fetch(gctx, "filetype:pdf "+query, numResults)
		return nil
	})
	g.Go(func() error {
		out.Archive, archiveErr = c.fetch(gctx, "site:archive.org filetype:pdf "+query, numResults)
		return nil
	})
	_ = g.Wait()

	switch {
	case globalErr != nil && archiveErr != nil:
		return nil, globalErr
	case globalErr != nil:
		log.Warn().Err(globalErr).Msg("global search failed, returning archive results only")
	case archiveErr != nil:
		log.Warn().Err(archiveErr).Msg("archive search failed, returning global results only")
	}
	return &out, nil
}

func (c *ScrapeClient) fetch(ctx context.Context, q string, numResults int) ([]Result, error) {
	u := c.BaseURL + "?q=" + url.QueryEscape(q)
	var results []Result
	err := withRetry(ctx, c.Retries, c.Backoff, "scrape", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.UserAgent)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retryable(err)
			}
			return err
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("parse html: %w", err)
		}
		results = ParseResults(doc, numResults)
		return nil
	})
	return results, err
}

// ParseResults extracts up to limit hits from a result page: each div.g
// block contributes its first link and its h3 heading.
func ParseResults(doc *goquery.Document, limit int) []Result {
	var out []Result
	doc.Find("div.g").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a[href]").First()
		heading := s.Find("h3").First()
		if link.Length() == 0 || heading.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")
		target := unwrapRedirect(href)
		title := strings.TrimSpace(heading.Text())
		if target == "" || title == "" {
			return true
		}
		out = append(out, Result{Title: title, URL: target})
		return limit <= 0 || len(out) < limit
	})
	return out
}

// unwrapRedirect turns "/url?q=https://x/a.pdf&sa=U" into "https://x/a.pdf".
func unwrapRedirect(href string) string {
	href = strings.SplitN(href, "&", 2)[0]
	if i := strings.LastIndex(href, "?q="); i >= 0 {
		href = href[i+len("?q="):]
	}
	if dec, err := url.QueryUnescape(href); err == nil {
		href = dec
	}
	return strings.TrimSpace(href)
}
