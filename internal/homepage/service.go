// Package homepage assembles the personalized homepage for one request.
package homepage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"homepage-aggregator/internal/consent"
	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/target"
)

type ContentSource interface {
	Fetch(ctx context.Context, preview bool) (content.Homepage, error)
}

type Personalizer interface {
	Decide(ctx context.Context, req target.Request) (content.Offer, string)
}

type Tracker interface {
	Track(ctx context.Context, token, visitorID string, allowAnalytics bool) bool
}

// Request is everything the caller already resolved from the HTTP request.
type Request struct {
	Preview   bool
	PageURL   string
	SessionID string
	VisitorID string
	Consent   consent.State
}

type Service struct {
	content          ContentSource
	personalizer     Personalizer
	merger           *content.Merger
	tracker          Tracker
	defaultVisitorID string
}

func NewService(src ContentSource, p Personalizer, m *content.Merger, t Tracker, defaultVisitorID string) *Service {
	return &Service{
		content:          src,
		personalizer:     p,
		merger:           m,
		tracker:          t,
		defaultVisitorID: defaultVisitorID,
	}
}

// Build fetches content and the personalization decision concurrently, merges
// them, and starts the analytics hit without waiting for it. Upstream failures
// degrade inside the collaborators; a returned error is an internal fault.
func (s *Service) Build(ctx context.Context, req Request) (content.Homepage, error) {
	if req.SessionID == "" {
		req.SessionID = "sess-" + uuid.NewString()
	}
	if req.VisitorID == "" {
		req.VisitorID = s.defaultVisitorID
	}

	var (
		page  content.Homepage
		offer content.Offer
		token string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.content.Fetch(gctx, req.Preview)
		if err != nil {
			return fmt.Errorf("fetch content: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		offer, token = s.personalizer.Decide(gctx, target.Request{
			VisitorID:            req.VisitorID,
			SessionID:            req.SessionID,
			PageURL:              req.PageURL,
			AllowPersonalization: req.Consent.AllowPersonalization,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return content.Homepage{}, err
	}

	merged := s.merger.Merge(page, offer)
	log.Debug().
		Str("session_id", req.SessionID).
		Bool("preview", req.Preview).
		Int("offer_keys", len(offer)).
		Bool("token", token != "").
		Msg("homepage assembled")

	if s.tracker != nil {
		s.tracker.Track(ctx, token, req.VisitorID, req.Consent.AllowAnalytics)
	}
	return merged, nil
}
