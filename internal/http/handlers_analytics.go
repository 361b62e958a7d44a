package http

import (
	"errors"
	"net/http"
	"strings"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	summary, err := s.deps.Insights.Summary(r.Context(), u.ID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Summary failed", log.FieldUserID, u.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleInsights serves the report for ?profile=full|brief, defaulting to
// the configured profile.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	profile := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("profile")))

	report, err := s.deps.Insights.Insights(r.Context(), u.ID, profile)
	switch {
	case errors.Is(err, services.ErrUnknownProfile):
		writeError(w, http.StatusBadRequest, "Unknown insights profile, expected full or brief")
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Insights failed",
			log.FieldUserID, u.ID,
			log.FieldProfile, profile,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestInsights(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	latest, err := s.deps.Insights.Latest(r.Context(), u.ID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "No insights snapshot available yet")
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Latest insights failed", log.FieldUserID, u.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}
