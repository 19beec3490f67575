package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	publishedAt := createdAt.Add(time.Second)

	var sent *sarama.ProducerMessage
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	publisher := NewOutboxPublisher(newProducer(mockProducer), "")
	publisher.now = func() time.Time { return publishedAt }
	assert.Equal(t, TopicOrderEvents, publisher.Topic())

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "10248",
		EventType:     domain.EventOrderUpdated,
		Payload:       []byte(`{"order_id":10248,"version":2}`),
		CreatedAt:     createdAt,
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
	require.NotNil(t, sent)

	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "10248", string(key))
	assert.Equal(t, domain.EventOrderUpdated, headerValue(sent, HeaderEventType))
	assert.Equal(t, domain.AggregateTypeOrder, headerValue(sent, HeaderAggregateType))
	assert.Equal(t, "outbox-1", headerValue(sent, HeaderOutboxID))

	value, err := sent.Value.Encode()
	require.NoError(t, err)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(value, &envelope))
	assert.Equal(t, "outbox-1", envelope.ID)
	assert.JSONEq(t, `{"order_id":10248,"version":2}`, string(envelope.Payload))
	assert.True(t, envelope.OccurredAt.Equal(createdAt))
	assert.True(t, envelope.PublishedAt.Equal(publishedAt))
}

func TestOutboxPublisher_KeyFallsBackToID(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "outbox-2" {
			return errors.New("expected outbox id as key, got " + string(key))
		}
		if msg.Topic != TopicDeadLetterQueue {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})

	publisher := NewOutboxPublisher(newProducer(mockProducer), TopicDeadLetterQueue)
	require.NoError(t, publisher.Publish(domain.OutboxMessage{ID: "outbox-2"}))
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(newProducer(mockProducer), TopicOrderEvents)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-3",
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "10249",
		EventType:     domain.EventOrderRemoved,
		Payload:       []byte(`{}`),
	})
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	require.Error(t, publisher.Publish(domain.OutboxMessage{ID: "outbox-4"}))
}

func TestNewEnvelope_EmptyPayloadIsNull(t *testing.T) {
	t.Parallel()

	envelope := NewEnvelope(domain.OutboxMessage{ID: "e"}, time.Now())
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"payload":null`)
}
