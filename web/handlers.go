package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudmeter/cloudmeter/app"
	"github.com/cloudmeter/cloudmeter/domain/usage"
	"github.com/cloudmeter/cloudmeter/pkg/render"
)

// timeFormats are accepted for the from/until query parameters.
var timeFormats = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// GetReport generates a usage report.
//
//	GET /v1/reports?user=<id>&from=<ts>&until=<ts>[&projects=a,b][&format=json|csv]
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' timestamp")
		return
	}
	until, err := parseTime(q.Get("until"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'until' timestamp")
		return
	}

	req := app.ReportRequest{
		Start:  from,
		End:    until,
		UserID: q.Get("user"),
	}
	if projects := q.Get("projects"); projects != "" {
		req.Projects = strings.Split(projects, ",")
	}

	rep, err := h.reports.Report(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usage.ErrBadRecord):
			h.logger.Error().Err(err).Msg("report failed on record anomaly")
			writeError(w, http.StatusInternalServerError, "record integrity violation")
		case errors.Is(err, app.ErrDegradedMetrics):
			h.logger.Error().Err(err).Msg("report failed on degraded metrics")
			writeError(w, http.StatusBadGateway, "object-storage metrics unavailable")
		default:
			h.logger.Error().Err(err).Msg("report failed")
			writeError(w, http.StatusInternalServerError, "report generation failed")
		}
		return
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := render.CSV(w, rep); err != nil {
			h.logger.Error().Err(err).Msg("write csv report")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}

// Refresh rebuilds the identity snapshot used by subsequent runs.
//
//	POST /v1/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Refresh(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("snapshot refresh failed")
		writeError(w, http.StatusInternalServerError, "snapshot refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// GetUserRoles returns the user's per-project role sets.
//
//	GET /v1/users/{userID}/roles
func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roles, err := h.reports.UserRoles(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("list user roles failed")
		writeError(w, http.StatusInternalServerError, "list user roles failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "roles": roles})
}

// GetUserAttributes returns the opaque attribute document for a user.
//
//	GET /v1/users/{userID}/attributes
func (h *Handler) GetUserAttributes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	attrs, err := h.reports.UserAttributes(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("get user attributes failed")
		writeError(w, http.StatusInternalServerError, "get user attributes failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "attributes": attrs})
}

func parseTime(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeFormats {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
