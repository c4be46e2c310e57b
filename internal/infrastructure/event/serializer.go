package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event: routing metadata next to the
// full event body.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Serialize wraps evt in an Envelope and encodes it as JSON
func Serialize(evt shared.DomainEvent) ([]byte, error) {
	env, err := NewEnvelope(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// NewEnvelope builds the Envelope for evt
func NewEnvelope(evt shared.DomainEvent) (*Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", evt.EventType(), err)
	}
	return &Envelope{
		ID:            evt.EventID(),
		Type:          evt.EventType(),
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		TenantID:      evt.TenantID(),
		OccurredAt:    evt.OccurredAt().UTC(),
		Payload:       payload,
	}, nil
}

// Decode unmarshals the payload into target
func (e *Envelope) Decode(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}
