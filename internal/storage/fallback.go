package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/cache"
	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/observability"
)

// SectionStore persists section payloads; *Store implements it.
type SectionStore interface {
	LoadSections(ctx context.Context) ([]SectionRow, error)
	SaveSection(ctx context.Context, name string, payload []byte) error
}

// Fallback serves last-known-good sections from an in-memory snapshot of the store.
type Fallback struct {
	store SectionStore
	snap  cache.Snapshot[map[string][]byte]
	mu    sync.Mutex // serializes snapshot writers; readers never lock
}

func NewFallback(store SectionStore) *Fallback {
	return &Fallback{store: store}
}

// Refresh reloads the snapshot from the store.
func (f *Fallback) Refresh(ctx context.Context) error {
	rows, err := f.store.LoadSections(ctx)
	if err != nil {
		observability.UpstreamRequests.WithLabelValues(observability.UpstreamPostgres, "error").Inc()
		return err
	}
	next := make(map[string][]byte, len(rows))
	for _, r := range rows {
		// JSONB reorders keys; re-encode so Save compares like with like.
		var nodes []content.Node
		if err := json.Unmarshal(r.Payload, &nodes); err != nil {
			log.Warn().Err(err).Str("collection", r.Name).Msg("skip undecodable fallback section")
			continue
		}
		raw, err := json.Marshal(nodes)
		if err != nil {
			continue
		}
		next[r.Name] = raw
	}
	f.mu.Lock()
	f.snap.Store(next)
	f.mu.Unlock()
	log.Debug().Int("sections", len(next)).Msg("fallback snapshot refreshed")
	return nil
}

// Section decodes a fresh copy of the stored section.
func (f *Fallback) Section(name string) ([]content.Node, bool) {
	m, ok := f.snap.Load()
	if !ok {
		return nil, false
	}
	raw, ok := m[name]
	if !ok {
		return nil, false
	}
	var nodes []content.Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		log.Warn().Err(err).Str("collection", name).Msg("decode fallback section")
		return nil, false
	}
	return nodes, true
}

// Save writes the section when it differs from the snapshot. Unchanged content costs no round trip.
func (f *Fallback) Save(ctx context.Context, name string, nodes []content.Node) error {
	raw, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode section %s: %w", name, err)
	}
	if cur, _ := f.snap.Load(); bytes.Equal(cur[name], raw) {
		return nil
	}
	if err := f.store.SaveSection(ctx, name, raw); err != nil {
		observability.UpstreamRequests.WithLabelValues(observability.UpstreamPostgres, "error").Inc()
		return err
	}
	observability.UpstreamRequests.WithLabelValues(observability.UpstreamPostgres, "ok").Inc()

	f.mu.Lock()
	defer f.mu.Unlock()
	cur, _ := f.snap.Load()
	next := make(map[string][]byte, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[name] = raw
	f.snap.Store(next)
	return nil
}
