// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/pkg/nacos"
	"buyone/internal/pkg/tracing"
	"buyone/internal/pkg/utils"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client // 未启用 Nacos 时为 nil
}

// Worker 是随服务一起启动的后台任务，ctx 取消时应尽快返回。
type Worker func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	Workers          []Worker
	// OnShutdown 在 HTTP 服务关闭之后按注册的逆序执行。
	OnShutdown []func(ctx context.Context) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, info); err != nil {
		logger.Logger().Error().Err(err).Str("service", info.ServiceName).Msg("service exited with error")
		os.Exit(1)
	}
}

// Run 启动 HTTP 服务与后台任务，阻塞到 ctx 取消或任一任务失败，然后按顺序关停。
func Run(ctx context.Context, info AppInfo) error {
	cfg := GetCurrentConfig()
	log := logger.Logger()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "init tracer provider")
	}

	// 2. Nacos（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(info.Port))
	if err != nil {
		return errors.Wrapf(err, "listen on :%d", info.Port)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	// 4. 服务注册放在监听成功之后
	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			_ = listener.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Str("addr", listener.Addr().String()).Msg("🚀 HTTP server listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	for _, w := range info.Workers {
		w := w
		g.Go(func() error {
			if err := w(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// 5. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// a. 从 Nacos 注销服务
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			namingClient.Close()
		}

		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		} else {
			log.Info().Msg("HTTP server shut down.")
		}

		// c. 业务资源（后进先出）
		for i := len(info.OnShutdown) - 1; i >= 0; i-- {
			if err := info.OnShutdown[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error running shutdown hook")
			}
		}

		// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down.")
	return err
}
