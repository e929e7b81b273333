package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	apperrors "github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, logging.NewNopLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}))
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		captured = append(captured, msgs...)
		return nil
	}}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{
		Topic:   "screeningstar.notification.send",
		Key:     []byte("7"),
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{"event_type": "case.completed"},
	})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "7", string(captured[0].Key))
	assert.False(t, captured[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, &Message{Value: []byte("x")}))
	assert.Error(t, p.Publish(ctx, &Message{Topic: "t"}))
	big := make([]byte, 2*1024*1024)
	assert.Error(t, p.Publish(ctx, &Message{Topic: "t", Value: big}))
	assert.NoError(t, p.Publish(ctx))
}

func TestPublish_WriteFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return errors.New("broker down")
	}})

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMessageQueue, apperrors.GetCode(err))
	assert.Equal(t, int64(1), p.Failed())
}

func TestHealthCheck(t *testing.T) {
	fail := true
	p := newTestProducer(&mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		if fail {
			return errors.New("broker down")
		}
		return nil
	}})
	ctx := context.Background()
	msg := &Message{Topic: "t", Value: []byte("x")}

	assert.NoError(t, p.HealthCheck(ctx))

	_ = p.Publish(ctx, msg)
	assert.ErrorIs(t, p.HealthCheck(ctx), ErrPublishFailing)

	fail = false
	require.NoError(t, p.Publish(ctx, msg))
	require.NoError(t, p.Publish(ctx, msg))
	assert.NoError(t, p.HealthCheck(ctx))

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.HealthCheck(ctx), ErrProducerClosed)
}

func TestClose_Idempotent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")}), ErrProducerClosed)
}

func TestNotificationPublisher_Dispatch(t *testing.T) {
	var captured []kafka.Message
	p := newTestProducer(&mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		captured = append(captured, msgs...)
		return nil
	}})
	pub := NewNotificationPublisher(p, "screeningstar.notification.send")

	ev := notify.NewEvent(notify.EventTATBreached, 42, 2, 3, map[string]interface{}{"days_out_of_tat": 4})
	require.NoError(t, pub.Dispatch(context.Background(), ev))
	require.Len(t, captured, 1)

	msg := captured[0]
	assert.Equal(t, "screeningstar.notification.send", msg.Topic)
	assert.Equal(t, "42", string(msg.Key))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, notify.EventTATBreached, env.EventType)
	assert.Equal(t, SourceService, env.Source)

	var decoded notify.Event
	require.NoError(t, env.DecodePayload(&decoded))
	assert.Equal(t, int64(42), decoded.CaseID)
	assert.EqualValues(t, 4, decoded.Data["days_out_of_tat"])
}
