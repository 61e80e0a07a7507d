package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// QueueAdmin is the queue and DLQ surface used by the admin API.
type QueueAdmin interface {
	Stats(ctx context.Context) (domain.QueueStats, error)
	PeekDeadLetters(ctx context.Context, count int64) ([]string, error)
	ReplayDeadLetters(ctx context.Context, count int64) (int64, error)
}

// IncidentAdmin reads incidents and their drafts and changes incident status.
type IncidentAdmin interface {
	Incident(ctx context.Context, logHash string) (*domain.Incident, error)
	Draft(ctx context.Context, logHash string) (*domain.Draft, error)
	UpdateStatus(ctx context.Context, logHash string, status domain.IncidentStatus) (*domain.StatusChange, error)
}

// ErrorLogAdmin acts on event-log records.
type ErrorLogAdmin interface {
	Record(ctx context.Context, logHash string) (*domain.ErrorLogRecord, error)
	Acknowledge(ctx context.Context, logHash, by string) error
	Resolve(ctx context.Context, logHash string) error
}

const defaultDLQCount = 10

// AdminHandler handles HTTP requests for pipeline administration.
type AdminHandler struct {
	queue     QueueAdmin
	incidents IncidentAdmin
	errorLogs ErrorLogAdmin
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(queue QueueAdmin, incidents IncidentAdmin, errorLogs ErrorLogAdmin, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{queue: queue, incidents: incidents, errorLogs: errorLogs, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetQueueStats reports the queue and DLQ depth.
// GET /admin/queues
func (h *AdminHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.respondWithError(w, "failed to get queue stats", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stats)
}

// PeekDeadLetters lists the oldest dead-lettered payloads.
// GET /admin/dlq?count={count}
func (h *AdminHandler) PeekDeadLetters(w http.ResponseWriter, r *http.Request) {
	count := int64(defaultDLQCount)
	if s := r.URL.Query().Get("count"); s != "" {
		var err error
		count, err = strconv.ParseInt(s, 10, 64)
		if err != nil || count <= 0 {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
	}

	payloads, err := h.queue.PeekDeadLetters(r.Context(), count)
	if err != nil {
		h.respondWithError(w, "failed to peek dead letters", err)
		return
	}
	if payloads == nil {
		payloads = []string{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"count": len(payloads), "payloads": payloads})
}

// ReplayDeadLetters moves payloads from the DLQ back onto the queue.
// POST /admin/dlq/replay
func (h *AdminHandler) ReplayDeadLetters(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Count <= 0 {
		http.Error(w, "count must be a positive integer", http.StatusBadRequest)
		return
	}

	replayed, err := h.queue.ReplayDeadLetters(r.Context(), payload.Count)
	if err != nil {
		h.respondWithError(w, "failed to replay dead letters", err)
		return
	}
	h.logger.Info("Dead letters replayed", "count", replayed)
	h.respondWithJSON(w, http.StatusOK, map[string]int64{"replayed": replayed})
}

// GetIncident returns one incident.
// GET /admin/incidents/{logHash}
func (h *AdminHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.Incident(r.Context(), r.PathValue("logHash"))
	if err != nil {
		h.respondWithError(w, "failed to get incident", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, inc)
}

// UpdateIncidentStatus changes an incident's status.
// POST /admin/incidents/{logHash}/status
func (h *AdminHandler) UpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status domain.IncidentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	change, err := h.incidents.UpdateStatus(r.Context(), r.PathValue("logHash"), payload.Status)
	if err != nil {
		h.respondWithError(w, "failed to update incident status", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, change)
}

// GetDraft returns the system draft for an incident.
// GET /admin/drafts/{logHash}
func (h *AdminHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.incidents.Draft(r.Context(), r.PathValue("logHash"))
	if err != nil {
		h.respondWithError(w, "failed to get draft", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, d)
}

// GetErrorLog returns one event-log record.
// GET /admin/errorlogs/{logHash}
func (h *AdminHandler) GetErrorLog(w http.ResponseWriter, r *http.Request) {
	rec, err := h.errorLogs.Record(r.Context(), r.PathValue("logHash"))
	if err != nil {
		h.respondWithError(w, "failed to get error log", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, rec)
}

// AcknowledgeErrorLog silences notifications for a record.
// POST /admin/errorlogs/{logHash}/ack
func (h *AdminHandler) AcknowledgeErrorLog(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		By string `json:"by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.By == "" {
		http.Error(w, "by cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.errorLogs.Acknowledge(r.Context(), r.PathValue("logHash"), payload.By); err != nil {
		h.respondWithError(w, "failed to acknowledge error log", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveErrorLog marks a record resolved.
// POST /admin/errorlogs/{logHash}/resolve
func (h *AdminHandler) ResolveErrorLog(w http.ResponseWriter, r *http.Request) {
	if err := h.errorLogs.Resolve(r.Context(), r.PathValue("logHash")); err != nil {
		h.respondWithError(w, "failed to resolve error log", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
