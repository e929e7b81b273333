package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// SourceService identifies this service in event envelopes.
const SourceService = "screeningstar-case-core"

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope wraps a notify.Event.
func NewEventEnvelope(ev notify.Event) (*EventEnvelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       ev.ID,
		EventType:     ev.Type,
		Source:        SourceService,
		Timestamp:     ev.OccurredAt,
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, target)
}

// ToMessage keys the record by case id so one case's events stay ordered.
func (e *EventEnvelope) ToMessage(topic string, caseID int64) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(caseID, 10)),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

type publisher interface {
	Publish(ctx context.Context, msgs ...*Message) error
}

// NotificationPublisher implements notify.Dispatcher on a Kafka topic.
type NotificationPublisher struct {
	producer publisher
	topic    string
}

var _ notify.Dispatcher = (*NotificationPublisher)(nil)

func NewNotificationPublisher(p *Producer, topic string) *NotificationPublisher {
	return &NotificationPublisher{producer: p, topic: topic}
}

func (n *NotificationPublisher) Dispatch(ctx context.Context, events ...notify.Event) error {
	msgs := make([]*Message, 0, len(events))
	for _, ev := range events {
		env, err := NewEventEnvelope(ev)
		if err != nil {
			return err
		}
		msg, err := env.ToMessage(n.topic, ev.CaseID)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return n.producer.Publish(ctx, msgs...)
}
