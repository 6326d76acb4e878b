package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishOrderCancelledKeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	publisher := NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()})

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderCancelled, Timestamp: time.Now()},
		OrderID:   42,
		Reason:    "expire",
	}
	require.NoError(t, publisher.PublishOrderCancelled(context.Background(), event))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "order-42", string(w.messages[0].Key))

	var decoded models.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, int64(42), decoded.OrderID)
	assert.Equal(t, models.EventTypeOrderCancelled, decoded.EventType)
}

func TestPublishEventWrapsWriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, logger: zap.NewNop()}

	err := p.PublishEvent(context.Background(), "order-1", map[string]int{"a": 1})
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessageRoutesCancelled(t *testing.T) {
	h := NewEventHandler()

	var got *models.OrderCancelledEvent
	h.OnOrderCancelled(func(_ context.Context, e *models.OrderCancelledEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-9", EventType: models.EventTypeOrderCancelled},
		OrderID:   7,
		Reason:    "deny",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "deny", got.Reason)
}

func TestHandleMessageSkipsOtherTypes(t *testing.T) {
	h := NewEventHandler()
	called := false
	h.OnOrderCancelled(func(context.Context, *models.OrderCancelledEvent) error {
		called = true
		return nil
	})

	payload := []byte(`{"event_id":"e","event_type":"ORDER_PAID","order_id":1}`)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	assert.False(t, called)

	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}
