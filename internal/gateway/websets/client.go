// Package websets is the HTTP client for a Websets-style search provider:
// a webset is created per search, then polled for status and paged items.
package websets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scout/internal/gateway"
)

const (
	DefaultBaseURL  = "https://api.exa.ai"
	defaultPageSize = 100
	// upper bound on item pages per fetch, so a provider that keeps
	// returning hasMore cannot pin a reconcile forever
	maxPages = 100
	// bytes of an error body kept for the error message
	maxErrorBody = 2048

	apiKeyHeader = "x-api-key"
	contentType  = "application/json"
	basePath     = "/websets/v0/websets"
)

// Client implements gateway.Gateway against the Websets API. It performs a
// single attempt per call; retries belong to gateway.Resilient.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	pageSize   int
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New constructs a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Submit(ctx context.Context, spec gateway.JobSpec) (gateway.JobRef, error) {
	body := createWebsetRequest{
		Search: searchParams{
			Query:  spec.Query,
			Count:  spec.Count,
			Entity: entityParam{Type: spec.EntityKind},
		},
		ExternalID: spec.SearchID,
		Metadata:   map[string]string{"search_id": spec.SearchID},
	}
	for _, criterion := range spec.AllCriteria() {
		body.Search.Criteria = append(body.Search.Criteria, criterionParam{Description: criterion})
	}
	for _, e := range spec.Enrichments {
		body.Enrichments = append(body.Enrichments, enrichmentParam{Description: e, Format: "text"})
	}

	var created webset
	if err := c.do(ctx, "submit", http.MethodPost, basePath, nil, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", gateway.NewError(gateway.CategoryBadData, "submit", "response carries no webset id", nil)
	}
	return gateway.JobRef(created.ID), nil
}

// Fetch reads the webset for status and progress, then pages through all of
// its items.
func (c *Client) Fetch(ctx context.Context, ref gateway.JobRef) (*gateway.FetchResult, error) {
	path := basePath + "/" + url.PathEscape(ref.String())

	var w webset
	if err := c.do(ctx, "fetch", http.MethodGet, path, nil, nil, &w); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(w.Enrichments))
	for _, e := range w.Enrichments {
		names[e.ID] = e.Description
	}

	result := &gateway.FetchResult{
		Status:   statusOf(&w),
		Progress: progressOf(&w),
		Items:    []gateway.Item{},
	}
	if result.Status == gateway.StatusErrored {
		result.Message = fmt.Sprintf("webset %s ended with status %s", w.ID, w.Status)
	}

	cursor := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		var items itemsPage
		if err := c.do(ctx, "fetch", http.MethodGet, path+"/items", query, nil, &items); err != nil {
			return nil, err
		}
		for _, raw := range items.Data {
			result.Items = append(result.Items, toItem(raw, names))
		}
		if !items.HasMore || items.NextCursor == nil || *items.NextCursor == "" {
			break
		}
		cursor = *items.NextCursor
	}
	return result, nil
}

func (c *Client) Cancel(ctx context.Context, ref gateway.JobRef) error {
	path := basePath + "/" + url.PathEscape(ref.String()) + "/cancel"
	return c.do(ctx, "cancel", http.MethodPost, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return gateway.NewError(gateway.CategoryRejected, op, "encode request", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return gateway.NewError(gateway.CategoryRejected, op, "build request", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", contentType)
	if in != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return gateway.NewError(gateway.CategoryTimeout, op, "request timed out", err)
		}
		return gateway.NewError(gateway.CategoryUnavailable, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return gateway.NewError(gateway.CategoryBadData, op, "decode response", err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := http.StatusText(resp.StatusCode)
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil {
		if apiErr.Message != "" {
			message = apiErr.Message
		} else if apiErr.Error != "" {
			message = apiErr.Error
		}
	}

	var category gateway.Category
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		category = gateway.CategoryRateLimited
	case resp.StatusCode == http.StatusRequestTimeout:
		category = gateway.CategoryTimeout
	case resp.StatusCode >= 500:
		category = gateway.CategoryUnavailable
	default:
		category = gateway.CategoryRejected
	}
	err := gateway.NewError(category, op, message, nil)
	err.StatusCode = resp.StatusCode
	return err
}
