// Package target requests personalization decisions from the Adobe Target delivery API.
package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/observability"
)

var ErrUpstream = errors.New("target upstream error")

const (
	fallbackURL  = "https://example.com"
	fallbackHost = "server"
	breakerName  = "target-delivery"
)

// Request carries everything a decision depends on.
type Request struct {
	VisitorID            string
	SessionID            string
	PageURL              string
	AllowPersonalization bool
}

type Config struct {
	Host          string // bare host or full origin
	ClientCode    string
	PropertyToken string
	Timeout       time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	base    string
	client  string
	token   string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[*DeliveryResponse]
}

func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		http:    hc,
		base:    strings.TrimRight(base, "/"),
		client:  cfg.ClientCode,
		token:   cfg.PropertyToken,
		timeout: cfg.Timeout,
		cb:      newBreaker(),
	}
}

func newBreaker() *gobreaker.CircuitBreaker[*DeliveryResponse] {
	observability.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[*DeliveryResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A caller hanging up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			observability.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Decide returns the normalized offer and the analytics correlation token.
// Without personalization consent no request is made. Failures degrade to (nil, "").
func (c *Client) Decide(ctx context.Context, req Request) (content.Offer, string) {
	if !req.AllowPersonalization {
		observability.Personalized.WithLabelValues("skipped").Inc()
		return nil, ""
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (*DeliveryResponse, error) {
		return c.deliver(ctx, req)
	})
	observability.UpstreamLatency.WithLabelValues(observability.UpstreamTarget).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamRequests.WithLabelValues(observability.UpstreamTarget, "error").Inc()
		observability.Personalized.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("target delivery failed")
		return nil, ""
	}
	observability.UpstreamRequests.WithLabelValues(observability.UpstreamTarget, "ok").Inc()

	offer := Offer(resp)
	if offer == nil {
		observability.Personalized.WithLabelValues("no_offer").Inc()
	} else {
		observability.Personalized.WithLabelValues("offer").Inc()
	}
	return offer, Token(resp)
}

func (c *Client) deliver(ctx context.Context, req Request) (*DeliveryResponse, error) {
	body, err := json.Marshal(c.payload(req))
	if err != nil {
		return nil, fmt.Errorf("encode delivery request: %w", err)
	}

	q := url.Values{}
	q.Set("client", c.client)
	q.Set("sessionId", req.SessionID)
	q.Set("at_property", c.token)
	u := c.base + "/rest/v1/delivery?" + q.Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build delivery request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("post delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out DeliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode delivery response: %w", err)
	}
	return &out, nil
}

func (c *Client) payload(req Request) deliveryRequest {
	pageURL, host := fallbackURL, fallbackHost
	if u, err := url.Parse(req.PageURL); err == nil && u.Scheme != "" && u.Host != "" {
		pageURL, host = u.String(), u.Host
	}
	return deliveryRequest{
		ID:       visitorID{MarketingCloudVisitorID: req.VisitorID},
		Property: property{Token: c.token},
		Context: deliveryContext{
			Channel: "web",
			Browser: browser{Host: host},
			Address: address{URL: pageURL},
			Screen:  screen{Width: 1200, Height: 1400},
		},
		Prefetch: &requestedPhase{},
		Execute:  &requestedPhase{},
	}
}
