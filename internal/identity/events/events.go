// Package events publishes anchor lifecycle notifications to Kafka so
// downstream consumers (dashboards, notification fan-out) can react without
// polling the registry.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"yatri/internal/ledger"
	"yatri/internal/platform/kafka/producer"
	"yatri/pkg/domain"
)

// AnchorEvent is the wire shape published for every submission outcome.
type AnchorEvent struct {
	SubjectID  string       `json:"subject_id"`
	TripID     string       `json:"trip_id"`
	DID        string       `json:"did"`
	AnchorHash string       `json:"anchor_hash"`
	Version    int64        `json:"version"`
	TxRef      ledger.TxRef `json:"tx_ref"`
	Anchored   bool         `json:"anchored"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Emitter publishes anchor events. A nil Emitter or one built without a
// producer is a no-op, so wiring stays unconditional in callers.
type Emitter struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

func NewEmitter(p *producer.Producer, topic string, logger *slog.Logger) *Emitter {
	return &Emitter{producer: p, topic: topic, logger: logger}
}

// Emit publishes one anchor event keyed by subject so consumers see each
// subject's events in order. Publish failures are logged, never returned:
// event delivery must not fail a submission.
func (e *Emitter) Emit(ctx context.Context, event AnchorEvent) {
	if e == nil || e.producer == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("encode anchor event", "error", err, "subject", event.SubjectID)
		return
	}

	msg := &producer.Message{
		Topic: e.topic,
		Key:   []byte(event.SubjectID),
		Value: value,
		Headers: map[string]string{
			"content-type": "application/json",
		},
	}
	if err := e.producer.Produce(ctx, msg); err != nil {
		e.logger.Error("publish anchor event", "error", err, "subject", event.SubjectID, "topic", e.topic)
	}
}

// EventFor builds an AnchorEvent from submission results.
func EventFor(subject domain.SubjectID, trip domain.TripID, did domain.DID, hash string, version int64, txRef ledger.TxRef, anchored bool) AnchorEvent {
	return AnchorEvent{
		SubjectID:  subject.String(),
		TripID:     trip.String(),
		DID:        did.String(),
		AnchorHash: hash,
		Version:    version,
		TxRef:      txRef,
		Anchored:   anchored,
	}
}
