package adapter

import (
	"context"
	"encoding/json"

	"buyone/internal/pkg/logger"
	"buyone/internal/pkg/mq"
	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"

	"github.com/pkg/errors"
)

// ProductEventKafkaAdapter 实现了 port.EventPublisher，以商品 ID 为 key 写入 product-events。
type ProductEventKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewProductEventKafkaAdapter(writer mq.MessageWriter) *ProductEventKafkaAdapter {
	return &ProductEventKafkaAdapter{writer: writer}
}

var _ port.EventPublisher = (*ProductEventKafkaAdapter)(nil)

func (a *ProductEventKafkaAdapter) PublishProductEvent(ctx context.Context, event domain.ProductEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal product event")
	}
	// mq.ProduceMessage 会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(event.ProductID), eventBytes)
}

// NoopEventPublisher 在未启用 Kafka 时使用，只打日志。
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishProductEvent(ctx context.Context, event domain.ProductEvent) error {
	logger.Ctx(ctx).Debug().
		Str("event_type", string(event.Type)).
		Str("product_id", event.ProductID).
		Msg("Kafka disabled, product event dropped")
	return nil
}
