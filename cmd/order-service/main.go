// cmd/order-service/main.go
package main

import (
	"buyone/internal/pkg/bootstrap"
	"buyone/internal/pkg/constants"
	"buyone/internal/pkg/httpclient"
	"buyone/internal/pkg/logger"
	"buyone/internal/service/checkout/adapter"
	"buyone/internal/service/checkout/application"
	"buyone/internal/service/checkout/interfaces"

	"go.opentelemetry.io/otel"
)

// main 函数是订单侧的"组装根"：下单时预占库存，支付成功提交，取消时释放。
func main() {
	cfg := bootstrap.Init()
	logger.Init(constants.OrderService, cfg.App.LogLevel, cfg.App.LogPretty)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.OrderService,
		Port:        cfg.Checkout.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			client := httpclient.NewClient(otel.Tracer(constants.OrderService))
			if appCtx.Nacos != nil {
				client.Resolver = appCtx.Nacos
			}
			if cfg.Checkout.InventoryURL == "" && client.Resolver == nil {
				logger.Logger().Fatal().Msg("checkout.inventoryUrl is empty and nacos is disabled")
			}

			inventory := adapter.NewInventoryHTTPAdapter(client, cfg.Checkout.InventoryURL)
			svc := application.NewCheckoutService(inventory)
			interfaces.NewCheckoutHandler(svc, cfg.Checkout.Timeout).RegisterRoutes(appCtx.Mux)
		},
	})
}
