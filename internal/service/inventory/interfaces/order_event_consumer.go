package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/pkg/mq"
	"buyone/internal/service/inventory/application"
	"buyone/internal/service/inventory/domain"

	"github.com/segmentio/kafka-go"
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderStatusConsumerAdapter 监听订单状态事件：CONFIRMED 提交预占，CANCELLED 释放预占。
type OrderStatusConsumerAdapter struct {
	reader MessageReader
	engine *application.ReservationService
}

func NewOrderStatusConsumerAdapter(reader MessageReader, engine *application.ReservationService) *OrderStatusConsumerAdapter {
	return &OrderStatusConsumerAdapter{reader: reader, engine: engine}
}

// Run 阻塞消费直到 ctx 取消。处理失败只记日志，offset 在处理后提交。
func (a *OrderStatusConsumerAdapter) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Msg("✅ Order status consumer started")
	defer func() {
		if err := a.reader.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to close kafka reader")
		}
		logger.Ctx(ctx).Info().Msg("🛑 Order status consumer stopped")
	}()

	for {
		// 使用FetchMessage而不是ReadMessage，以便手动控制提交
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		a.processMessage(msgCtx, msg)

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit message")
		}
	}
}

func (a *OrderStatusConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) {
	var event domain.OrderStatusChanged
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal order status event, skipping")
		return
	}

	log := logger.Ctx(ctx).With().Str("order_number", event.OrderNumber).Str("status", string(event.Status)).Logger()
	switch event.Status {
	case domain.OrderStatusConfirmed:
		n, err := a.engine.CommitReservations(ctx, event.OrderNumber)
		if err != nil {
			log.Error().Err(err).Msg("Failed to commit reservations")
			return
		}
		log.Info().Int64("committed", n).Msg("Order confirmed, reservations committed")
	case domain.OrderStatusCancelled:
		n, err := a.engine.ReleaseOrder(ctx, event.OrderNumber)
		if err != nil {
			log.Error().Err(err).Msg("Failed to release reservations")
			return
		}
		log.Info().Int64("released", n).Msg("Order cancelled, reservations released")
	default:
		log.Debug().Msg("Ignoring order status")
	}
}
