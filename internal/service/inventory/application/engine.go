package application

import (
	"context"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationService 是预占引擎：reserve / release / commit。
// 每个预占单元的状态机为 NONE -> RESERVED -> {COMMITTED | RELEASED}。
type ReservationService struct {
	ledger    domain.StockLedger
	store     domain.ReservationStore
	admission port.AdmissionPolicy
	tracer    trace.Tracer
	metrics   *Metrics
	now       func() time.Time
}

type Option func(*ReservationService)

func WithAdmissionPolicy(p port.AdmissionPolicy) Option {
	return func(s *ReservationService) { s.admission = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *ReservationService) { s.tracer = t }
}

func WithMetrics(m *Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

// WithClock 替换时间来源，测试中用来推进租约。
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

func NewReservationService(ledger domain.StockLedger, store domain.ReservationStore, opts ...Option) *ReservationService {
	s := &ReservationService{
		ledger: ledger,
		store:  store,
		tracer: otel.Tracer("inventory"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = unregisteredMetrics()
	}
	return s
}

// Reserve 扣减台账并写入一条预占记录。失败时不留下任何部分状态。
func (s *ReservationService) Reserve(ctx context.Context, productID string, quantity int64, orderNumber string) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "service.Reserve")
	defer span.End()
	defer s.observe("reserve", time.Now())

	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int64("reservation.quantity", quantity),
		attribute.String("order.number", orderNumber),
	)

	// 1. 参数校验，数量非法时不触碰任何存储
	res, err := domain.NewReservation(productID, quantity, orderNumber, s.now())
	if err != nil {
		s.metrics.Reservations.WithLabelValues("invalid").Inc()
		span.RecordError(err)
		return nil, err
	}

	// 2. 准入策略
	if s.admission != nil {
		ok, err := s.admission.Admit(ctx, port.AdmissionRequest{ProductID: productID, Quantity: quantity, OrderNumber: orderNumber})
		if err != nil {
			s.metrics.Reservations.WithLabelValues("error").Inc()
			failSpan(span, err)
			return nil, errors.Wrap(err, "evaluate admission policy")
		}
		if !ok {
			s.metrics.Reservations.WithLabelValues("rejected").Inc()
			span.RecordError(domain.ErrReservationRejected)
			return nil, domain.ErrReservationRejected
		}
	}

	// 3. 条件扣减
	remaining, err := s.ledger.Decrease(ctx, productID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			s.metrics.Reservations.WithLabelValues("out_of_stock").Inc()
		case errors.Is(err, domain.ErrProductNotFound):
			s.metrics.Reservations.WithLabelValues("not_found").Inc()
		default:
			s.metrics.Reservations.WithLabelValues("error").Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	// 4. 写入预占记录，失败则把刚扣的库存加回去
	res.CreatedAt = s.now().UTC()
	if err := s.store.Create(ctx, res); err != nil {
		s.metrics.Reservations.WithLabelValues("error").Inc()
		failSpan(span, err)
		if _, cerr := s.ledger.Increase(context.WithoutCancel(ctx), productID, quantity); cerr != nil {
			logger.Ctx(ctx).Error().Err(cerr).
				Str("product_id", productID).
				Int64("quantity", quantity).
				Msg("🚨 CRITICAL: failed to compensate ledger after reservation write failure")
		}
		return nil, err
	}

	s.metrics.Reservations.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("reservation.id", res.ID), attribute.Int64("stock.remaining", remaining))
	logger.Ctx(ctx).Info().
		Str("reservation_id", res.ID).
		Str("product_id", productID).
		Int64("quantity", quantity).
		Str("order_number", orderNumber).
		Int64("remaining", remaining).
		Msg("Stock reserved")
	return res, nil
}

// Release 是唯一的回收路径：先以预占 ID 幂等地归还库存，再删除记录。
// 记录不存在说明已被释放、过期回收或提交，直接返回 false，不会再加库存。
func (s *ReservationService) Release(ctx context.Context, reservationID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "service.Release")
	defer span.End()
	defer s.observe("release", time.Now())
	span.SetAttributes(attribute.String("reservation.id", reservationID))

	res, err := s.store.FindByID(ctx, reservationID)
	if errors.Is(err, domain.ErrReservationNotFound) {
		s.metrics.Releases.WithLabelValues("noop").Inc()
		span.AddEvent("reservation already gone")
		return false, nil
	}
	if err != nil {
		s.metrics.Releases.WithLabelValues("error").Inc()
		failSpan(span, err)
		return false, err
	}

	_, removed, err := s.reclaim(ctx, res)
	if err != nil {
		s.metrics.Releases.WithLabelValues("error").Inc()
		failSpan(span, err)
		return false, err
	}
	if removed {
		s.metrics.Releases.WithLabelValues("released").Inc()
	} else {
		s.metrics.Releases.WithLabelValues("noop").Inc()
	}
	return removed, nil
}

// reclaim 对一条已读出的记录执行 credit-then-delete。
func (s *ReservationService) reclaim(ctx context.Context, res *domain.Reservation) (credited, removed bool, err error) {
	credited, err = s.ledger.CreditOnce(ctx, res.ProductID, res.Quantity, res.ID)
	if err != nil {
		return false, false, errors.Wrapf(err, "credit reservation %s", res.ID)
	}
	if !credited {
		// 上次回收在删除前中断，这次只补做删除
		logger.Ctx(ctx).Warn().Str("reservation_id", res.ID).Msg("Credit already applied, completing record deletion")
	}

	removed, err = s.store.DeleteByID(ctx, res.ID)
	if err != nil {
		return credited, false, errors.Wrapf(err, "delete reservation %s", res.ID)
	}

	logger.Ctx(ctx).Info().
		Str("reservation_id", res.ID).
		Str("product_id", res.ProductID).
		Int64("quantity", res.Quantity).
		Str("order_number", res.OrderNumber).
		Bool("credited", credited).
		Bool("removed", removed).
		Msg("Reservation released")
	return credited, removed, nil
}

// ReleaseStock 把 release(productId, quantity) 绑定到订单号：按创建时间依次释放该订单在该商品上的预占，
// 累计数量不超过 quantity。记录不拆分。返回实际归还的数量，没有可释放的记录时返回 0。
func (s *ReservationService) ReleaseStock(ctx context.Context, productID string, quantity int64, orderNumber string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReleaseStock")
	defer span.End()
	defer s.observe("release_stock", time.Now())

	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int64("reservation.quantity", quantity),
		attribute.String("order.number", orderNumber),
	)

	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if productID == "" || orderNumber == "" {
		return 0, domain.ErrInvalidArgument
	}

	holds, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}

	var released int64
	for _, h := range holds {
		if h.ProductID != productID || released+h.Quantity > quantity {
			continue
		}
		credited, _, err := s.reclaim(ctx, h)
		if err != nil {
			failSpan(span, err)
			return released, err
		}
		if credited {
			released += h.Quantity
		}
	}
	span.SetAttributes(attribute.Int64("stock.released", released))
	return released, nil
}

// ReleaseOrder 是取消订单的路径：释放该订单的全部预占。单条失败不会中断其余记录。
func (s *ReservationService) ReleaseOrder(ctx context.Context, orderNumber string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReleaseOrder")
	defer span.End()
	defer s.observe("release_order", time.Now())
	span.SetAttributes(attribute.String("order.number", orderNumber))

	if orderNumber == "" {
		return 0, domain.ErrInvalidArgument
	}

	holds, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}

	var released int64
	var firstErr error
	for _, h := range holds {
		credited, _, err := s.reclaim(ctx, h)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("reservation_id", h.ID).Msg("Failed to release reservation of cancelled order")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if credited {
			released += h.Quantity
		}
	}
	if firstErr != nil {
		failSpan(span, firstErr)
	}
	return released, firstErr
}

// CommitReservations 在支付成功后把订单的预占转为永久扣减：只删除记录，不触碰台账。
// 重复调用返回 0。
func (s *ReservationService) CommitReservations(ctx context.Context, orderNumber string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.CommitReservations")
	defer span.End()
	defer s.observe("commit", time.Now())
	span.SetAttributes(attribute.String("order.number", orderNumber))

	if orderNumber == "" {
		return 0, domain.ErrInvalidArgument
	}

	n, err := s.store.DeleteByOrderNumber(ctx, orderNumber)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}

	s.metrics.Commits.Inc()
	s.metrics.CommittedHolds.Add(float64(n))
	span.SetAttributes(attribute.Int64("reservations.committed", n))
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("committed", n).Msg("Reservations committed")
	return n, nil
}

// Stock 读取当前可用库存。
func (s *ReservationService) Stock(ctx context.Context, productID string) (int64, error) {
	return s.ledger.Get(ctx, productID)
}

func (s *ReservationService) observe(op string, start time.Time) {
	s.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
