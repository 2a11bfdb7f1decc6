package domain

import (
	"encoding/json"
	"time"
)

// EventTypeHTTPRequest is emitted once per served HTTP request.
const EventTypeHTTPRequest = "http_request"

// Event is a best-effort telemetry record. It is serialized as JSON onto Kafka and read back by the worker.
type Event struct {
	ID        string          `json:"id"`
	RequestID string          `json:"requestId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HTTPRequestMetadata is the Metadata shape for http_request events.
type HTTPRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	Lang       string `json:"lang,omitempty"`
}
