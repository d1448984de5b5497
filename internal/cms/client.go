// Package cms retrieves homepage collections from the Contentful delivery and preview APIs.
package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"homepage-aggregator/internal/content"
)

var ErrUpstream = errors.New("cms upstream error")

// Query mirrors the Contentful entries query the fetcher needs.
type Query struct {
	ContentType string
	Limit       int
	Include     int // link resolution depth
}

// Entry is one published (or draft, in preview) item.
type Entry struct {
	Sys    content.Node
	Fields content.Node
}

type endpoint struct {
	base  string
	token string
}

type ClientConfig struct {
	SpaceID       string
	Environment   string
	DeliveryHost  string
	DeliveryToken string
	PreviewHost   string
	PreviewToken  string
	Timeout       time.Duration
}

// Client talks to the Contentful REST API. Safe for concurrent use.
type Client struct {
	http     *http.Client
	space    string
	env      string
	delivery endpoint
	preview  endpoint
}

func NewClient(cfg ClientConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:     hc,
		space:    cfg.SpaceID,
		env:      cfg.Environment,
		delivery: endpoint{base: baseURL(cfg.DeliveryHost), token: cfg.DeliveryToken},
		preview:  endpoint{base: baseURL(cfg.PreviewHost), token: cfg.PreviewToken},
	}
}

// baseURL accepts a bare host (production) or a full origin (tests, proxies).
func baseURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + host
}

type rawItem struct {
	Sys    content.Node `json:"sys"`
	Fields content.Node `json:"fields"`
}

type entriesResponse struct {
	Items    []rawItem `json:"items"`
	Includes struct {
		Entry []rawItem `json:"Entry"`
		Asset []rawItem `json:"Asset"`
	} `json:"includes"`
}

// Entries returns the items of one content type in CMS order, links resolved up to q.Include levels.
func (c *Client) Entries(ctx context.Context, preview bool, q Query) ([]Entry, error) {
	ep := c.delivery
	if preview {
		ep = c.preview
	}

	v := url.Values{}
	v.Set("content_type", q.ContentType)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("include", strconv.Itoa(q.Include))
	u := fmt.Sprintf("%s/spaces/%s/environments/%s/entries?%s",
		ep.base, url.PathEscape(c.space), url.PathEscape(c.env), v.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ep.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get entries %s: %w", q.ContentType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: get entries %s: status %d", ErrUpstream, q.ContentType, resp.StatusCode)
	}

	var body entriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode entries %s: %w", q.ContentType, err)
	}

	r := newResolver(body)
	out := make([]Entry, 0, len(body.Items))
	for _, it := range body.Items {
		out = append(out, Entry{
			Sys:    it.Sys,
			Fields: r.fields(it.Fields, q.Include),
		})
	}
	return out, nil
}
