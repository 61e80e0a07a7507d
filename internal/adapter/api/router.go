package api

import (
	"log/slog"
	"net/http"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api/handler"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api/middleware"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/config"
	"github.com/SoyunJu/LogCollector-sub000/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the ingest service.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	ingestUseCase usecase.EventIngester,
	m *metrics.PipelineMetrics,
) http.Handler {
	mux := http.NewServeMux()

	ingestHandler := handler.NewIngestHandler(ingestUseCase, logger, cfg.MaxEventSize, m)

	// Routes
	mux.Handle("POST /ingest", ingestHandler)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
