package application

import (
	"context"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"

	"go.opentelemetry.io/otel/attribute"
)

const reconcilerLockName = "reservation-reconciler"

// ReconcilerConfig 控制回收周期。零值字段使用默认值。
type ReconcilerConfig struct {
	Interval  time.Duration
	Lease     time.Duration
	BatchSize int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 60 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c
}

// CycleResult 是一次回收的统计。
type CycleResult struct {
	Scanned  int
	Released int
	Skipped  int // 记录在扫描后已被提交或释放
	Failed   int
	// LockHeld 为 true 表示其他副本持有锁，本轮未执行。
	LockHeld bool
}

// ExpiryReconciler 周期性地回收租约到期的预占。它只调用 ReservationService.Release，
// 与显式释放共用同一条回收路径。
type ExpiryReconciler struct {
	engine *ReservationService
	store  domain.ReservationStore
	locker port.Locker
	cfg    ReconcilerConfig
}

// NewExpiryReconciler 创建回收器。locker 可为 nil（单副本部署）。
func NewExpiryReconciler(engine *ReservationService, store domain.ReservationStore, locker port.Locker, cfg ReconcilerConfig) *ExpiryReconciler {
	return &ExpiryReconciler{
		engine: engine,
		store:  store,
		locker: locker,
		cfg:    cfg.withDefaults(),
	}
}

// Run 立即执行一轮，之后按 Interval 轮询，直到 ctx 取消。
func (r *ExpiryReconciler) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().
		Dur("interval", r.cfg.Interval).
		Dur("lease", r.cfg.Lease).
		Int("batch", r.cfg.BatchSize).
		Msg("✅ Reservation expiry reconciler started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.RunCycle(ctx)
	for {
		select {
		case <-ticker.C:
			r.RunCycle(ctx)
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("Reservation expiry reconciler stopped")
			return ctx.Err()
		}
	}
}

// RunCycle 执行一轮回收。单条记录失败只记日志并计数，不中断本轮，也不向调用方返回错误。
func (r *ExpiryReconciler) RunCycle(ctx context.Context) CycleResult {
	ctx, span := r.engine.tracer.Start(ctx, "reconciler.RunCycle")
	defer span.End()
	start := time.Now()
	defer func() { r.engine.metrics.ReconcileTime.Observe(time.Since(start).Seconds()) }()

	var result CycleResult

	if r.locker != nil {
		unlock, acquired, err := r.locker.TryLock(ctx, reconcilerLockName)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Reconciler failed to acquire leadership lock, skipping cycle")
			r.engine.metrics.ReconcileCycles.WithLabelValues("lock_error").Inc()
			failSpan(span, err)
			return result
		}
		if !acquired {
			result.LockHeld = true
			r.engine.metrics.ReconcileCycles.WithLabelValues("not_leader").Inc()
			span.AddEvent("lock held by another replica")
			return result
		}
		defer unlock()
	}

	failed := make(map[string]struct{})
	for {
		if ctx.Err() != nil {
			break
		}
		// 本轮失败的记录仍会被查到，放宽 limit 以越过它们
		limit := r.cfg.BatchSize + len(failed)
		batch, err := r.store.FindExpired(ctx, r.engine.now(), r.cfg.Lease, limit)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Reconciler failed to query expired reservations")
			r.engine.metrics.ReconcileCycles.WithLabelValues("query_error").Inc()
			failSpan(span, err)
			return result
		}

		progressed := false
		for _, res := range batch {
			if _, seen := failed[res.ID]; seen {
				continue
			}
			result.Scanned++
			removed, err := r.engine.Release(ctx, res.ID)
			switch {
			case err != nil:
				result.Failed++
				failed[res.ID] = struct{}{}
				r.engine.metrics.ReconcileItems.WithLabelValues("failed").Inc()
				logger.Ctx(ctx).Error().Err(err).
					Str("reservation_id", res.ID).
					Str("product_id", res.ProductID).
					Msg("Failed to reclaim expired reservation, will retry next cycle")
			case removed:
				result.Released++
				progressed = true
				r.engine.metrics.ReconcileItems.WithLabelValues("released").Inc()
			default:
				result.Skipped++
				progressed = true
				r.engine.metrics.ReconcileItems.WithLabelValues("skipped").Inc()
			}
		}

		if len(batch) < limit || !progressed {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("reconcile.scanned", result.Scanned),
		attribute.Int("reconcile.released", result.Released),
		attribute.Int("reconcile.failed", result.Failed),
	)
	r.engine.metrics.ReconcileCycles.WithLabelValues("ok").Inc()
	if result.Scanned > 0 {
		logger.Ctx(ctx).Info().
			Int("scanned", result.Scanned).
			Int("released", result.Released).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Reconciler cycle finished")
	}
	return result
}
