// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zhangzw218/EShop/internal/pkg/config"
	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/nacos"
	"github.com/zhangzw218/EShop/internal/pkg/tracing"
	"github.com/zhangzw218/EShop/internal/pkg/utils"
)

// AppCtx 传给各服务的路由注册回调
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// Runner 是跟随服务生命周期的后台组件：kafka 消费者、outbox 中继等
// Run 阻塞执行直到 ctx 取消，返回非 nil 错误会放倒整个服务
type Runner func(ctx context.Context) error

// AppInfo 描述一个微服务的启动参数
type AppInfo struct {
	ServiceName string
	Config      *config.Config

	// RegisterHandlers 注册服务自己的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// Runners 与 HTTP 服务器一起被 errgroup 监督
	Runners []Runner
	// OnShutdown 在所有组件停止后执行收尾清理（关连接池等）
	OnShutdown func(ctx context.Context)
}

// StartService 封装所有微服务共同的启动和优雅关停流程
// 收到 SIGINT/SIGTERM 后：注销 nacos -> 停 HTTP -> 等 runner 退出 -> 刷 trace
func StartService(info AppInfo) {
	cfg := info.Config

	logger.Init(info.ServiceName, cfg.Service.LogLevel)
	log := logger.L()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	namingClient, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := utils.GetOutboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get outbound ip")
	}

	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, cfg.Service.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, *log)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Int("port", cfg.Service.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	for _, runner := range info.Runners {
		runner := runner
		group.Go(func() error {
			return runner(groupCtx)
		})
	}

	// 阻塞到退出信号或某个组件失败
	<-groupCtx.Done()
	log.Info().Msgf("shutting down %s", info.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.Service.Port); err != nil {
		log.Error().Err(err).Msg("failed to deregister from nacos")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("component exited with error")
	}

	if info.OnShutdown != nil {
		info.OnShutdown(shutdownCtx)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down tracer provider")
	}

	log.Info().Msgf("%s gracefully shut down", info.ServiceName)
}
