package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// UnknownHost is recorded when an event arrives without a host name.
const UnknownHost = "UNKNOWN_HOST"

// ErrorEvent is one error occurrence as submitted by an application. It is the
// payload carried on the ingestion queue and is never mutated once accepted.
type ErrorEvent struct {
	EventID     string    `json:"event_id"`
	ServiceName string    `json:"service_name" validate:"notblank,max=255"`
	HostName    string    `json:"host_name,omitempty" validate:"max=255"`
	IP          string    `json:"ip,omitempty" validate:"omitempty,ip"`
	LogLevel    string    `json:"log_level,omitempty" validate:"max=32"`
	Message     string    `json:"message" validate:"notblank,min=10"`
	StackTrace  string    `json:"stack_trace,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

var eventValidate *validator.Validate

func init() {
	eventValidate = validator.New()
	_ = eventValidate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks the submitter supplied fields. The returned error wraps
// ErrInvalidEvent.
func (e ErrorEvent) Validate() error {
	if err := eventValidate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// Host returns the reporting host, substituting UnknownHost for blanks.
func (e ErrorEvent) Host() string {
	if h := strings.TrimSpace(e.HostName); h != "" {
		return h
	}
	return UnknownHost
}

// EncodeEvent serializes an event for the queue.
func EncodeEvent(e ErrorEvent) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error event: %w", err)
	}
	return b, nil
}

// DecodeEvent parses a queue payload. Payloads that are not JSON objects or that
// lack a service name are reported as undecodable.
func DecodeEvent(payload []byte) (ErrorEvent, error) {
	var e ErrorEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return ErrorEvent{}, fmt.Errorf("failed to unmarshal error event: %w", err)
	}
	if strings.TrimSpace(e.ServiceName) == "" {
		return ErrorEvent{}, fmt.Errorf("%w: missing service_name", ErrInvalidEvent)
	}
	return e, nil
}
