package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/consent"
	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/homepage"
	"homepage-aggregator/internal/observability"
)

const (
	HeaderSessionID = "X-Session-Id"
	HeaderVisitorID = "X-Mcvid"

	failureMessage = "Failed to load homepage"
)

type Builder interface {
	Build(ctx context.Context, req homepage.Request) (content.Homepage, error)
}

type HomepageHandler struct {
	Svc Builder
}

func NewHomepageHandler(svc Builder) *HomepageHandler {
	return &HomepageHandler{Svc: svc}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeFailure(w http.ResponseWriter) {
	body, _ := json.Marshal(errorBody{Error: failureMessage})
	writeJSON(w, http.StatusInternalServerError, body)
}

func (h *HomepageHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := homepage.Request{
		Preview:   q.Get("preview") == "true",
		PageURL:   q.Get("url"),
		SessionID: r.Header.Get(HeaderSessionID),
		VisitorID: r.Header.Get(HeaderVisitorID),
		Consent:   consent.FromRequest(r),
	}

	page, err := h.Svc.Build(r.Context(), req)
	if err != nil {
		observability.RequestErrors.WithLabelValues("build").Inc()
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("homepage build failed")
		writeFailure(w)
		return
	}

	// encode before writing the status so a failure can still become a 500
	body, err := json.Marshal(page)
	if err != nil {
		observability.RequestErrors.WithLabelValues("encode").Inc()
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("homepage encode failed")
		writeFailure(w)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, body)
}

// Recoverer turns panics into the generic failure body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			observability.RequestErrors.WithLabelValues("panic").Inc()
			log.Error().Interface("panic", rvr).Str("request_id", middleware.GetReqID(r.Context())).Msg("handler panicked")
			writeFailure(w)
		}()
		next.ServeHTTP(w, r)
	})
}
