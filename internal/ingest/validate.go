package ingest

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BatchRequest is a submitted event batch. batch_id is chosen by the
// agent and makes the submission idempotent. An empty events list is a
// valid batch; it consumes the batch id and accepts zero events.
type BatchRequest struct {
	AgentID string       `json:"agent_id" validate:"required"`
	BatchID string       `json:"batch_id" validate:"required"`
	Events  []EventInput `json:"events" validate:"required,dive"`
}

// EventInput is one event as submitted on the wire. ts must be RFC3339;
// every other field is free-form text supplied by the agent. Addresses
// and severities are not constrained here, collectors disagree on both.
type EventInput struct {
	TS        string                 `json:"ts" validate:"required"`
	Host      string                 `json:"host,omitempty"`
	App       string                 `json:"app,omitempty"`
	EventType string                 `json:"event_type,omitempty"`
	SrcIP     string                 `json:"src_ip,omitempty"`
	DstIP     string                 `json:"dst_ip,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Severity  string                 `json:"severity,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// validateBatch checks the whole batch before anything is persisted.
// One malformed event rejects the entire batch; partial acceptance
// would break batch-level idempotency.
func validateBatch(req *BatchRequest, maxEvents int) ([]time.Time, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	if maxEvents > 0 && len(req.Events) > maxEvents {
		return nil, fmt.Errorf("%w: batch has %d events, limit is %d", ErrInvalidBatch, len(req.Events), maxEvents)
	}

	timestamps := make([]time.Time, len(req.Events))
	for i, ev := range req.Events {
		ts, err := time.Parse(time.RFC3339, ev.TS)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d has invalid ts %q", ErrInvalidBatch, i, ev.TS)
		}
		timestamps[i] = ts.UTC()
	}
	return timestamps, nil
}
