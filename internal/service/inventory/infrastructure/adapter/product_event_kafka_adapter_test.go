package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"buyone/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
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

func TestPublishProductEventKeyedByProduct(t *testing.T) {
	w := &recordingWriter{}
	pub := NewProductEventKafkaAdapter(w)

	event := domain.ProductEvent{
		Type:       domain.EventProductCreated,
		ProductID:  "p-1",
		Name:       "Mug",
		Quantity:   3,
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.PublishProductEvent(context.Background(), event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "p-1", string(w.msgs[0].Key))

	var got domain.ProductEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, event, got)
}

func TestPublishProductEventPropagatesWriterError(t *testing.T) {
	pub := NewProductEventKafkaAdapter(&recordingWriter{err: errors.New("leader not available")})
	assert.Error(t, pub.PublishProductEvent(context.Background(), domain.ProductEvent{ProductID: "p-1"}))
	assert.NoError(t, NoopEventPublisher{}.PublishProductEvent(context.Background(), domain.ProductEvent{}))
}
