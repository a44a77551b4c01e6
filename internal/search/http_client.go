package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// APIClient calls a JSON search API:
//
//	POST {URL} {"query": "...", "num_results": 10}
//	-> {"global_results": [{"title","url"}], "archive_results": [...]}
type APIClient struct {
	URL     string
	HTTP    *http.Client
	Retries int
	Backoff time.Duration
}

type apiRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

// NewAPIClient returns a client with the given per-request timeout.
func NewAPIClient(url string, timeout time.Duration, retries int, backoff time.Duration) *APIClient {
	return &APIClient{
		URL:     url,
		HTTP:    &http.Client{Timeout: timeout},
		Retries: retries,
		Backoff: backoff,
	}
}

// Search implements Client.
func (c *APIClient) Search(ctx context.Context, query string, numResults int) (*Results, error) {
	tr := otel.Tracer("search/APIClient")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("search.query", query),
			attribute.Int("search.num_results", numResults),
		),
	)
	defer span.End()

	body, err := json.Marshal(apiRequest{Query: query, NumResults: numResults})
	if err != nil {
		return nil, err
	}

	var out Results
	err = withRetry(ctx, c.Retries, c.Backoff, "api", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retryable(err)
			}
			return err
		}

		res, err := decodeResults(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		out = *res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("search.global", len(out.Global)),
		attribute.Int("search.archive", len(out.Archive)),
	)
	return &out, nil
}

// decodeResults reads exactly one JSON object. A null document, trailing
// data, and entries without a title or url are rejected.
func decodeResults(r io.Reader) (*Results, error) {
	dec := json.NewDecoder(r)
	var res *Results
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("null document")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after document")
	}
	for _, list := range [][]Result{res.Global, res.Archive} {
		for i, it := range list {
			if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.URL) == "" {
				return nil, fmt.Errorf("result %d: empty title or url", i)
			}
		}
	}
	return res, nil
}
