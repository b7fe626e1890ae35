package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"grocery-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishUsesOrderKey(t *testing.T) {
	w := &recordingWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w))

	event := &models.OrderPlacedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderPlaced, time.Now()),
		OrderID:    17,
		CustomerID: 3,
		TotalCost:  decimal.RequireFromString("44"),
	}
	require.NoError(t, ep.PublishOrderPlaced(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-17", string(w.msgs[0].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.True(t, decoded.TotalCost.Equal(decimal.RequireFromString("44")))
}

func TestPublishReportsWriterFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	ep := NewEventPublisher(NewProducerWithWriter(w))

	err := ep.PublishOrderClaimed(context.Background(), &models.OrderClaimedEvent{OrderID: 1, CarrierID: 2})
	assert.Error(t, err)
}

func TestHandleMessageRoutesByType(t *testing.T) {
	h := NewEventHandler()

	var completed *models.OrderCompletedEvent
	h.OnOrderCompleted(func(_ context.Context, e *models.OrderCompletedEvent) error {
		completed = e
		return nil
	})

	payload, err := json.Marshal(&models.OrderCompletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCompleted, time.Now()),
		OrderID:   9,
		CarrierID: 4,
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, completed)
	assert.Equal(t, int64(9), completed.OrderID)

	other, err := json.Marshal(&models.OrderClaimedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderClaimed, time.Now()),
		OrderID:   10,
	})
	require.NoError(t, err)
	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: other}))

	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")}))
}
