package application

import (
	"context"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/checkout/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentLines = 4

var ErrInvalidOrder = errors.New("order needs a number and at least one positive line")

// OrderLine 是订单中的一行
type OrderLine struct {
	ProductID string
	Quantity  int64
}

// CheckoutService 驱动订单侧的库存协作：下单预占，支付成功提交，取消释放。
type CheckoutService struct {
	inventory port.InventoryService
	tracer    trace.Tracer
}

func NewCheckoutService(inventory port.InventoryService) *CheckoutService {
	return &CheckoutService{inventory: inventory, tracer: otel.Tracer("checkout")}
}

// PlaceOrder 并发预占每一行。任一行失败时释放该订单已有的预占，返回的错误指明失败的行。
// 被取消的请求如果已在库存侧生效，留下的预占由过期回收兜底。
func (s *CheckoutService) PlaceOrder(ctx context.Context, orderNumber string, lines []OrderLine) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.Int("order.lines", len(lines)))

	if orderNumber == "" || len(lines) == 0 {
		return nil, ErrInvalidOrder
	}
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidOrder, "line %q x%d", line.ProductID, line.Quantity)
		}
	}

	ids := make([]string, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLines)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			id, err := s.inventory.Reserve(gctx, orderNumber, port.ReservationLine{ProductID: line.ProductID, Quantity: line.Quantity})
			if err != nil {
				return errors.Wrapf(err, "reserve %s x%d", line.ProductID, line.Quantity)
			}
			ids[i] = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory reservation failed")

		// 补偿：释放已经成功的行
		if _, relErr := s.inventory.ReleaseOrder(context.WithoutCancel(ctx), orderNumber); relErr != nil {
			logger.Ctx(ctx).Error().Err(relErr).Str("order_number", orderNumber).
				Msg("Compensation failed, holds will be reclaimed on expiry")
		}
		return nil, err
	}

	span.AddEvent("All lines reserved")
	return ids, nil
}

// ConfirmPayment 在支付成功后提交预占。
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderNumber string) error {
	ctx, span := s.tracer.Start(ctx, "checkout.ConfirmPayment")
	defer span.End()

	n, err := s.inventory.Commit(ctx, orderNumber)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "commit reservations of %s", orderNumber)
	}
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("committed", n).Msg("Payment confirmed")
	return nil
}

// Cancel 释放订单的全部预占。
func (s *CheckoutService) Cancel(ctx context.Context, orderNumber string) error {
	ctx, span := s.tracer.Start(ctx, "checkout.Cancel")
	defer span.End()

	n, err := s.inventory.ReleaseOrder(ctx, orderNumber)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "release reservations of %s", orderNumber)
	}
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("released", n).Msg("Order cancelled")
	return nil
}
