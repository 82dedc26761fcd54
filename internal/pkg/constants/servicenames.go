// internal/pkg/constants/servicenames.go
package constants

// 服务名，用于 Nacos 注册与发现
const (
	ProductService = "product-service"
	OrderService   = "order-service"
)

// product-service 对外暴露的 HTTP 路径
const (
	InventoryReservePath      = "/products/stock/reserve"
	InventoryReleasePath      = "/products/stock/release"
	InventoryCommitPath       = "/products/stock/commit/"
	InventoryReleaseOrderPath = "/products/stock/release-order/"
)

// Kafka topic 默认值
const (
	ProductEventsTopic     = "product-events"
	OrderStatusEventsTopic = "order-status-events"
)
