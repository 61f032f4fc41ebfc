package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/logger"
)

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	all, err := s.loader.activeDeals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, s.engine.Apply(all, deals.ParseParams(r.URL.Query())))
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, deals.FromProduct(*product, s.opts.AffiliateRef))
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := s.store.UniqueBrands(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, brands)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, deals.FilterTags)
}

// handleDailySync runs a sync for the scheduler, or for anyone in development
func (s *Server) handleDailySync(w http.ResponseWriter, r *http.Request) {
	fromCron := r.UserAgent() == s.opts.CronUserAgent
	if r.Method != http.MethodGet || !(fromCron || s.opts.Development) {
		writeErrorStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	log := logger.ForServer().WithContext(r.Context())
	summary, err := s.syncer.RunOnce(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("daily sync failed")
		writeErrorStatus(w, http.StatusInternalServerError, "sync_failed", "Failed to run sync job")
		return
	}
	writeSuccess(w, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logger.ForServer().WithContext(r.Context()).Warn().Err(err).Msg("health check failed")
		writeErrorStatus(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-Agent: *\nAllow: /\nDisallow: /api/\nDisallow: /database\n\nSitemap: %s/sitemap.xml\n",
		strings.TrimSuffix(s.opts.SiteURL, "/"))
}
