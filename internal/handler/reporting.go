package handler

import (
	"net/http"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/service"
)

// ReportingHandler serves the alert history report.
type ReportingHandler struct {
	svc *service.ReportingService
	now func() time.Time
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(svc *service.ReportingService) *ReportingHandler {
	return &ReportingHandler{svc: svc, now: time.Now}
}

// GetAlerts handles GET /v1/alerts?from=&to=. The range defaults to the
// last 24 hours; bounds accept any ISO 8601 timestamp.
func (h *ReportingHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	to := h.now()
	from := to.Add(-24 * time.Hour)

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
		to = t
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	report, err := h.svc.AlertReport(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}
