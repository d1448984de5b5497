package cms

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/observability"
)

// Collection is one named homepage section backed by a content type.
type Collection struct {
	Section     string
	ContentType string
	Limit       int
	Include     int
	Many        bool // ordered sequence instead of a single item
}

// Collections are the sections the homepage is assembled from.
var Collections = []Collection{
	{Section: content.SectionHero, ContentType: "hero_vod", Limit: 1, Include: 3},
	{Section: content.SectionIcons, ContentType: "icon_vod", Limit: 4, Include: 3, Many: true},
	{Section: content.SectionStrip, ContentType: "strip_vod", Limit: 1, Include: 3},
	{Section: content.SectionFooter, ContentType: "footer_vod", Limit: 1, Include: 3},
	{Section: content.SectionDataLayer, ContentType: "dataLayerVod", Limit: 1, Include: 1},
}

type EntriesSource interface {
	Entries(ctx context.Context, preview bool, q Query) ([]Entry, error)
}

// Fallback keeps the last published copy of each section.
type Fallback interface {
	Section(name string) ([]content.Node, bool)
	Save(ctx context.Context, name string, nodes []content.Node) error
}

// DefaultSaveTimeout bounds one detached last-known-good write.
const DefaultSaveTimeout = 3 * time.Second

type Fetcher struct {
	src         EntriesSource
	fallback    Fallback
	collections []Collection
	saveTimeout time.Duration

	mu     sync.Mutex
	saving map[string]bool // sections with a write in flight
	wg     sync.WaitGroup
}

// NewFetcher builds a fetcher over the default collections. fallback may be nil.
func NewFetcher(src EntriesSource, fallback Fallback) *Fetcher {
	return &Fetcher{
		src:         src,
		fallback:    fallback,
		collections: Collections,
		saveTimeout: DefaultSaveTimeout,
		saving:      map[string]bool{},
	}
}

// Fetch retrieves every collection concurrently. A failing collection yields an
// empty section (or its last-known-good copy) and never affects the others.
// The only error returned is the context's, when it cut a collection short.
func (f *Fetcher) Fetch(ctx context.Context, preview bool) (content.Homepage, error) {
	results := make([][]content.Node, len(f.collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, col := range f.collections {
		g.Go(func() error {
			var err error
			results[i], err = f.fetchOne(gctx, preview, col)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return content.Homepage{}, err
	}

	var page content.Homepage
	for i, col := range f.collections {
		assign(&page, col, results[i])
	}
	return page, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, preview bool, col Collection) ([]content.Node, error) {
	start := time.Now()
	entries, err := f.src.Entries(ctx, preview, Query{ContentType: col.ContentType, Limit: col.Limit, Include: col.Include})
	observability.UpstreamLatency.WithLabelValues(observability.UpstreamCMS).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.UpstreamRequests.WithLabelValues(observability.UpstreamCMS, "error").Inc()
		log.Warn().Err(err).Str("collection", col.Section).Bool("preview", preview).Msg("cms fetch failed")
		return f.lastKnownGood(preview, col), nil
	}
	observability.UpstreamRequests.WithLabelValues(observability.UpstreamCMS, "ok").Inc()

	nodes := make([]content.Node, 0, len(entries))
	for _, e := range entries {
		if e.Fields != nil {
			nodes = append(nodes, e.Fields)
		}
	}
	if !preview && f.fallback != nil && len(nodes) > 0 {
		f.save(ctx, col.Section, nodes)
	}
	return nodes, nil
}

// save writes the section off the request path. At most one write per section
// is in flight; newer content arriving meanwhile is picked up by the next fetch.
func (f *Fetcher) save(ctx context.Context, section string, nodes []content.Node) {
	f.mu.Lock()
	if f.saving[section] {
		f.mu.Unlock()
		return
	}
	f.saving[section] = true
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			delete(f.saving, section)
			f.mu.Unlock()
		}()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.saveTimeout)
		defer cancel()
		if err := f.fallback.Save(sctx, section, nodes); err != nil {
			log.Warn().Err(err).Str("collection", section).Msg("save last-known-good section")
		}
	}()
}

// Wait blocks until pending last-known-good writes finish or ctx is done.
func (f *Fetcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drafts are never served from, or written to, the fallback.
func (f *Fetcher) lastKnownGood(preview bool, col Collection) []content.Node {
	if preview || f.fallback == nil {
		return nil
	}
	nodes, ok := f.fallback.Section(col.Section)
	if !ok {
		return nil
	}
	observability.FallbackServed.WithLabelValues(col.Section).Inc()
	log.Info().Str("collection", col.Section).Msg("serving last-known-good section")
	return nodes
}

func assign(page *content.Homepage, col Collection, nodes []content.Node) {
	if col.Many {
		if nodes == nil {
			nodes = []content.Node{}
		}
		page.Icons = nodes
		return
	}
	var first content.Node
	if len(nodes) > 0 {
		first = nodes[0]
	}
	switch col.Section {
	case content.SectionHero:
		page.Hero = first
	case content.SectionStrip:
		page.Strip = first
	case content.SectionFooter:
		page.Footer = first
	case content.SectionDataLayer:
		page.DataLayer = first
	}
}
