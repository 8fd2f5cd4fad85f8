package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"recruit-comms/internal/calls"
)

const writeTimeout = 5 * time.Second

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CallEvent is the JSON value written for each call event. Messages are keyed
// by call id so a call's events stay ordered within a partition.
type CallEvent struct {
	EventID        string          `json:"eventId"`
	Type           string          `json:"type"`
	CallID         string          `json:"callId"`
	ExternalCallID string          `json:"externalCallId,omitempty"`
	OrganizationID string          `json:"organizationId,omitempty"`
	Status         calls.Status    `json:"status"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// KafkaPublisher implements calls.EventPublisher.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher returns nil when brokers or topic are empty; publishing is then disabled.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return NewPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
}

func NewPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishCallEvent(ctx context.Context, c calls.Call, e calls.Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	value, err := json.Marshal(CallEvent{
		EventID:        e.ID,
		Type:           e.Type,
		CallID:         c.ID,
		ExternalCallID: c.ExternalID,
		OrganizationID: c.OrganizationID,
		Status:         c.Status,
		Payload:        e.Payload,
		OccurredAt:     e.CreatedAt,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(c.ID),
		Value: value,
		Time:  e.CreatedAt,
	})
}

// Close flushes pending messages. Safe on a nil publisher.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
