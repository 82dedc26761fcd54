package application

import (
	"context"
	"strings"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogService 是商品目录对台账的写路径：创建时初始化库存，更新时直接重设基线。
type CatalogService struct {
	ledger    domain.StockLedger
	publisher port.EventPublisher
	tracer    trace.Tracer
	now       func() time.Time
}

func NewCatalogService(ledger domain.StockLedger, publisher port.EventPublisher) *CatalogService {
	return &CatalogService{
		ledger:    ledger,
		publisher: publisher,
		tracer:    otel.Tracer("catalog"),
		now:       time.Now,
	}
}

// CreateProduct 初始化库存并发布 ProductCreated。
func (s *CatalogService) CreateProduct(ctx context.Context, req CreateProductRequest) error {
	ctx, span := s.tracer.Start(ctx, "service.CreateProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int64("stock.quantity", req.Quantity))

	if strings.TrimSpace(req.ProductID) == "" {
		return domain.ErrInvalidArgument
	}
	if req.Quantity < 0 {
		return domain.ErrInvalidQuantity
	}

	if err := s.ledger.Seed(ctx, req.ProductID, req.Quantity); err != nil {
		span.RecordError(err)
		return err
	}

	s.publish(ctx, domain.ProductEvent{
		Type:       domain.EventProductCreated,
		ProductID:  req.ProductID,
		SellerID:   req.SellerID,
		Name:       req.Name,
		Price:      req.Price,
		Quantity:   req.Quantity,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// AdjustStock 把可用库存重设为 quantity。仍有效的预占不受影响，新的数量就是新的基线。
func (s *CatalogService) AdjustStock(ctx context.Context, productID string, quantity int64) error {
	ctx, span := s.tracer.Start(ctx, "service.AdjustStock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int64("stock.quantity", quantity))

	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.ledger.Set(ctx, productID, quantity); err != nil {
		span.RecordError(err)
		return err
	}

	s.publish(ctx, domain.ProductEvent{
		Type:       domain.EventProductStockAdjusted,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *CatalogService) GetStock(ctx context.Context, productID string) (int64, error) {
	return s.ledger.Get(ctx, productID)
}

// 事件发布失败不回滚台账，只记录日志。
func (s *CatalogService) publish(ctx context.Context, event domain.ProductEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("product_id", event.ProductID).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish product event")
	}
}
