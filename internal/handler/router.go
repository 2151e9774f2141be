package handler

import (
	"log/slog"
	"net/http"
)

// NewRouter mounts the HTTP API. reporting may be nil when no alert log is
// configured, in which case /v1/alerts is not served.
func NewRouter(health *HealthHandler, reporting *ReportingHandler, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/v1/metrics", health.Metrics)
	if reporting != nil {
		mux.HandleFunc("/v1/alerts", reporting.GetAlerts)
	}

	var h http.Handler = mux
	h = Logging(log)(h)
	h = Recovery(log)(h)
	h = RequestID(h)
	return h
}
