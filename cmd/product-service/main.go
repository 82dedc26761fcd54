// cmd/product-service/main.go
package main

import (
	"context"
	"time"

	"buyone/internal/pkg/bootstrap"
	"buyone/internal/pkg/logger"
	"buyone/internal/pkg/mq"
	"buyone/internal/pkg/redis"
	"buyone/internal/pkg/zookeeper"
	"buyone/internal/service/inventory/application"
	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"
	"buyone/internal/service/inventory/infrastructure"
	"buyone/internal/service/inventory/infrastructure/adapter"
	"buyone/internal/service/inventory/infrastructure/memory"
	"buyone/internal/service/inventory/interfaces"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

// creditRetention 是幂等归还记录的保留倍数，远大于一次释放可能的重试窗口。
const creditRetention = 7

// main 函数是应用的"组装根" (Composition Root)
func main() {
	cfg := bootstrap.Init()
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogPretty)
	log := logger.Logger()

	var (
		workers    []bootstrap.Worker
		onShutdown []func(ctx context.Context) error
		db         *gorm.DB
	)
	fatal := func(err error, msg string) {
		for i := len(onShutdown) - 1; i >= 0; i-- {
			_ = onShutdown[i](context.Background())
		}
		log.Fatal().Err(err).Msg(msg)
	}

	openDB := func() *gorm.DB {
		if db != nil {
			return db
		}
		var err error
		if db, err = infrastructure.OpenMySQL(cfg.Infra.MySQL); err != nil {
			fatal(err, "failed to connect to mysql")
		}
		onShutdown = append(onShutdown, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		return db
	}

	// 1. 库存账本
	var ledger domain.StockLedger
	switch cfg.Inventory.LedgerBackend {
	case "mysql":
		gormLedger := infrastructure.NewGormStockLedger(openDB())
		ledger = gormLedger
		workers = append(workers, pruneCreditsWorker(gormLedger, cfg.Inventory.Lease))
	case "redis":
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			fatal(err, "failed to initialize redis client")
		}
		onShutdown = append(onShutdown, func(context.Context) error { return redisClient.Close() })
		if ledger, err = adapter.NewStockRedisAdapter(redisClient, cfg.Inventory.Lease); err != nil {
			fatal(err, "failed to load stock scripts")
		}
	default:
		log.Warn().Msg("Using in-memory stock ledger, data is lost on restart")
		ledger = memory.NewStockLedger()
	}

	// 2. 预占记录
	var store domain.ReservationStore
	if cfg.Inventory.StoreBackend == "mysql" {
		store = infrastructure.NewGormReservationStore(openDB())
	} else {
		log.Warn().Msg("Using in-memory reservation store, data is lost on restart")
		store = memory.NewReservationStore()
	}

	// 3. 引擎
	opts := []application.Option{
		application.WithTracer(otel.Tracer(cfg.App.Name)),
		application.WithMetrics(application.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if cfg.Inventory.AdmissionRule != "" {
		policy, err := adapter.NewCELAdmissionAdapter(cfg.Inventory.AdmissionRule)
		if err != nil {
			fatal(err, "invalid admission rule")
		}
		opts = append(opts, application.WithAdmissionPolicy(policy))
	}
	engine := application.NewReservationService(ledger, store, opts...)

	// 4. 商品事件与订单状态消费
	var publisher port.EventPublisher = adapter.NoopEventPublisher{}
	if cfg.Infra.Kafka.Enabled {
		brokers := cfg.Infra.Kafka.BrokerList()
		writer := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.ProductEventsTopic)
		onShutdown = append(onShutdown, func(context.Context) error { return writer.Close() })
		publisher = adapter.NewProductEventKafkaAdapter(writer)

		reader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.OrderStatusTopic, cfg.Infra.Kafka.ConsumerGroup)
		workers = append(workers, interfaces.NewOrderStatusConsumerAdapter(reader, engine).Run)
	}
	catalog := application.NewCatalogService(ledger, publisher)

	// 5. 过期回收，多实例部署时用 ZooKeeper 选出执行者
	var locker port.Locker
	if cfg.Infra.Zookeeper.Enabled {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.ServerList(), cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			fatal(err, "failed to connect to zookeeper")
		}
		onShutdown = append(onShutdown, func(context.Context) error { conn.Close(); return nil })
		locker = adapter.NewZookeeperLockAdapter(conn)
	}
	reconciler := application.NewExpiryReconciler(engine, store, locker, application.ReconcilerConfig{
		Interval:  cfg.Inventory.ReconcileInterval,
		Lease:     cfg.Inventory.Lease,
		BatchSize: cfg.Inventory.ReconcileBatch,
	})
	workers = append(workers, reconciler.Run)

	handler := interfaces.NewInventoryHandler(engine, catalog, cfg.Inventory.Lease)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.Name,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Workers:    workers,
		OnShutdown: onShutdown,
	})
}

// pruneCreditsWorker 定期清理过期的幂等归还记录。
func pruneCreditsWorker(ledger *infrastructure.GormStockLedger, lease time.Duration) bootstrap.Worker {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(lease)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				n, err := ledger.PruneCredits(ctx, time.Now().UTC().Add(-creditRetention*lease))
				if err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("failed to prune stock credits")
					continue
				}
				if n > 0 {
					logger.Ctx(ctx).Info().Int64("pruned", n).Msg("Pruned stock credits")
				}
			}
		}
	}
}
