package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"telemetry-service/internal/client"
	"telemetry-service/internal/models"
)

// KafkaSink publishes incident payloads to the notifications topic.
// Messages are keyed by tenant so one tenant's alerts stay ordered.
type KafkaSink struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaSink(producer *client.KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
	}
}

func (s *KafkaSink) Channel() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, payload models.IncidentPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode incident payload: %w", err)
	}

	headers := map[string]string{
		"kind":     payload.Kind,
		"severity": payload.Severity,
	}
	return s.producer.ProduceMessage(ctx, s.topic, []byte(payload.TenantID), value, headers)
}
