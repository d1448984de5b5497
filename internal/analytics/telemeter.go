// Package analytics sends the correlation hit that ties a personalization
// decision to the visitor's analytics session.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/observability"
)

var ErrUpstream = errors.New("analytics upstream error")

// Telemeter dispatches hits on detached goroutines. Outcomes only reach the log.
type Telemeter struct {
	http     *http.Client
	endpoint string
	timeout  time.Duration
	wg       sync.WaitGroup
}

// New returns a telemeter; an empty endpoint disables it.
func New(endpoint string, timeout time.Duration, hc *http.Client) *Telemeter {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Telemeter{http: hc, endpoint: endpoint, timeout: timeout}
}

// Track starts a hit for token and visitorID when allowed and returns immediately.
// It reports whether a hit was dispatched. Cancelling ctx does not cancel the hit.
func (t *Telemeter) Track(ctx context.Context, token, visitorID string, allowAnalytics bool) bool {
	if !allowAnalytics || token == "" || t.endpoint == "" {
		return false
	}

	hitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("analytics hit panicked")
			}
		}()

		start := time.Now()
		err := t.send(hitCtx, token, visitorID)
		observability.UpstreamLatency.WithLabelValues(observability.UpstreamAnalytics).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.UpstreamRequests.WithLabelValues(observability.UpstreamAnalytics, "error").Inc()
			log.Warn().Err(err).Msg("analytics hit failed")
			return
		}
		observability.UpstreamRequests.WithLabelValues(observability.UpstreamAnalytics, "ok").Inc()
	}()
	return true
}

// Wait blocks until in-flight hits finish or ctx is done.
func (t *Telemeter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telemeter) send(ctx context.Context, token, visitorID string) error {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("pe", "tnt")
	q.Set("tnta", token)
	q.Set("mid", visitorID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build hit: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send hit: %w", err)
	}
	defer resp.Body.Close()
	// pixel or JSON, the body is irrelevant
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}
