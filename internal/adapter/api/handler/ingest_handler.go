package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/usecase"
)

var errDecode = errors.New("decode failed")

// IngestHandler handles HTTP requests for error-event ingestion.
type IngestHandler struct {
	useCase      usecase.EventIngester
	logger       *slog.Logger
	metrics      *metrics.PipelineMetrics
	maxEventSize int64
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(uc usecase.EventIngester, logger *slog.Logger, maxEventSize int64, m *metrics.PipelineMetrics) *IngestHandler {
	return &IngestHandler{
		useCase:      uc,
		logger:       logger,
		metrics:      m,
		maxEventSize: maxEventSize,
	}
}

type ndjsonResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// ServeHTTP accepts one JSON event or an NDJSON stream of events.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	switch enc := r.Header.Get("Content-Encoding"); enc {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			h.metrics.Ingest("error_parse")
			http.Error(w, "Bad Request: invalid gzip body", http.StatusBadRequest)
			return
		}
		defer gz.Close()
		r.Body = gz
	default:
		h.metrics.Ingest("error_media_type")
		http.Error(w, "Unsupported Content-Encoding: "+enc, http.StatusUnsupportedMediaType)
		return
	}

	// Enforce max body size on the decoded stream
	r.Body = http.MaxBytesReader(w, r.Body, h.maxEventSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		h.handleSingleJSON(w, r)
	case "application/x-ndjson":
		h.handleNDJSON(w, r)
	default:
		h.metrics.Ingest("error_media_type")
		http.Error(w, "Unsupported Media Type: "+mediaType, http.StatusUnsupportedMediaType)
	}
}

func (h *IngestHandler) handleSingleJSON(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeReadError(w, err)
		return
	}
	var event domain.ErrorEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.metrics.Ingest("error_parse")
		http.Error(w, "Bad Request: Failed to decode JSON", http.StatusBadRequest)
		return
	}

	if err := h.ingest(r.Context(), &event); err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleNDJSON decodes every line before ingesting any, so a malformed stream
// is rejected as a whole. Invalid events are counted and skipped; the request
// fails with 400 only when nothing was accepted.
func (h *IngestHandler) handleNDJSON(w http.ResponseWriter, r *http.Request) {
	events, err := h.decodeLines(r.Body)
	if err != nil {
		if errors.Is(err, errDecode) {
			h.metrics.Ingest("error_parse")
			http.Error(w, "Bad Request: Failed to decode NDJSON line", http.StatusBadRequest)
			return
		}
		h.writeReadError(w, err)
		return
	}

	var res ndjsonResult
	for i := range events {
		if err := h.ingest(r.Context(), &events[i]); err != nil {
			if !errors.Is(err, domain.ErrInvalidEvent) {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			res.Rejected++
			continue
		}
		res.Accepted++
	}

	status := http.StatusAccepted
	if res.Accepted == 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func (h *IngestHandler) decodeLines(body io.Reader) ([]domain.ErrorEvent, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), int(h.maxEventSize)+1)

	var events []domain.ErrorEvent
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var event domain.ErrorEvent
		if err := json.Unmarshal(b, &event); err != nil {
			h.logger.Warn("failed to unmarshal ndjson line", "error", err, "line", line)
			return nil, fmt.Errorf("%w: line %d", errDecode, line)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (h *IngestHandler) ingest(ctx context.Context, event *domain.ErrorEvent) error {
	err := h.useCase.Ingest(ctx, event)
	switch {
	case err == nil:
		h.metrics.Ingest("accepted")
	case errors.Is(err, domain.ErrInvalidEvent):
		h.metrics.Ingest("invalid")
		h.logger.Debug("rejected invalid event", "error", err, "service_name", event.ServiceName)
	default:
		h.metrics.Ingest("error")
		h.logger.Error("failed to ingest event", "error", err, "event_id", event.EventID)
	}
	return err
}

func (h *IngestHandler) writeReadError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || errors.Is(err, bufio.ErrTooLong) {
		h.metrics.Ingest("error_size")
		http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
		return
	}
	h.logger.Error("failed to read ingest request", "error", err)
	http.Error(w, "Bad Request", http.StatusBadRequest)
}
