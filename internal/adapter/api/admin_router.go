package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api/handler"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api/middleware"
)

// NewAdminRouter creates and configures the HTTP router for admin operations.
// Note: This router uses path patterns (e.g., "/{logHash}/") available in Go 1.22+.
func NewAdminRouter(
	queue handler.QueueAdmin,
	incidents handler.IncidentAdmin,
	errorLogs handler.ErrorLogAdmin,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(queue, incidents, errorLogs, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Queue
	mux.HandleFunc("GET /admin/queues", adminHandler.GetQueueStats)
	mux.HandleFunc("GET /admin/dlq", adminHandler.PeekDeadLetters)
	mux.HandleFunc("POST /admin/dlq/replay", adminHandler.ReplayDeadLetters)

	// Incidents
	mux.HandleFunc("GET /admin/incidents/{logHash}", adminHandler.GetIncident)
	mux.HandleFunc("POST /admin/incidents/{logHash}/status", adminHandler.UpdateIncidentStatus)
	mux.HandleFunc("GET /admin/drafts/{logHash}", adminHandler.GetDraft)

	// Event-log records
	mux.HandleFunc("GET /admin/errorlogs/{logHash}", adminHandler.GetErrorLog)
	mux.HandleFunc("POST /admin/errorlogs/{logHash}/ack", adminHandler.AcknowledgeErrorLog)
	mux.HandleFunc("POST /admin/errorlogs/{logHash}/resolve", adminHandler.ResolveErrorLog)

	return middleware.Logging(logger)(mux)
}
