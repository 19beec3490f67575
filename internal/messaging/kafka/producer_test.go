package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerValue(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "10248" {
			return errors.New("unexpected key " + string(key))
		}
		if headerValue(msg, HeaderEventType) != "order.created" {
			return errors.New("event type header is missing")
		}
		return nil
	})

	producer := newProducer(mockProducer)
	err := producer.PublishEvent(TopicOrderEvents, "10248", map[string]int{"order_id": 10248}, map[string]string{
		HeaderEventType: "order.created",
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishEventError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := newProducer(mockProducer)
	err := producer.PublishEvent(TopicOrderEvents, "10248", map[string]int{"order_id": 10248}, nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishEventMarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := newProducer(mockProducer)
	err := producer.PublishEvent(TopicOrderEvents, "k", map[string]any{"bad": make(chan int)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
	require.NoError(t, mockProducer.Close())
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	require.Error(t, err)
}

func TestEnvelopeJSON(t *testing.T) {
	raw, err := json.Marshal(Envelope{ID: "x", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "x", decoded["id"])
	assert.Equal(t, map[string]any{"a": float64(1)}, decoded["payload"])
}
