// Package events publishes issuance domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proofbridge/internal/issuance/models"
	"proofbridge/internal/platform/kafka/producer"
	"proofbridge/pkg/platform/tracer"
)

// TypeCredentialIssued is emitted once per newly issued credential.
const TypeCredentialIssued = "credential.issued"

// Producer is the Kafka producer port.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// CredentialIssued is the event payload. The holder is hashed.
type CredentialIssued struct {
	Type           string    `json:"type"`
	CredentialID   string    `json:"credential_id"`
	CredentialType string    `json:"credential_type"`
	SessionID      string    `json:"session_id"`
	HolderHash     string    `json:"holder_hash"`
	Revocable      bool      `json:"revocable"`
	RevocationID   string    `json:"revocation_id,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}

// Publisher encodes domain events and hands them to the producer.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

// CredentialIssued publishes a credential.issued event keyed by session id so
// a session's events stay ordered within one partition.
func (p *Publisher) CredentialIssued(ctx context.Context, record models.IssuedCredentialRecord) error {
	event := CredentialIssued{
		Type:           TypeCredentialIssued,
		CredentialID:   record.ID.String(),
		CredentialType: string(record.Type),
		SessionID:      record.SessionID.String(),
		HolderHash:     tracer.HashHolder(record.Holder),
		Revocable:      record.IsRevocable,
		RevocationID:   record.RevocationID,
		IssuedAt:       record.IssuedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", TypeCredentialIssued, err)
	}
	err = p.producer.Produce(ctx, &producer.Message{
		Topic:   p.topic,
		Key:     []byte(event.SessionID),
		Value:   value,
		Headers: map[string]string{"event_type": TypeCredentialIssued},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", TypeCredentialIssued, err)
	}
	return nil
}
