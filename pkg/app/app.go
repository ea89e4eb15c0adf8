// Package app 提供应用程序的初始化和配置功能.
//
// 启动顺序固定：配置 → 追踪/监控 → 存储层级 → 主存储建表 → 旧版迁移 →
// 三层恢复装载工作列表 → 应急工作者 → 控制台路由.顺序不可调换：
// 迁移必须在恢复之前完成，否则工作列表会装进尚未搬迁的旧数据.
package app

import (
	contextPkg "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/emergency"
	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
	"github.com/JSB847123/simple-business-database/pkg/internal/jobs"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/recovery"
	"github.com/JSB847123/simple-business-database/pkg/internal/router"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/syncapi"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
	"github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/metrics"
	"github.com/JSB847123/simple-business-database/pkg/middleware"
	"github.com/JSB847123/simple-business-database/pkg/scheduler"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

type App struct {
	Engine *gin.Engine
	config *configs.AppConfig

	manager *storage.Manager
	comps   *context.Components
	cancel  contextPkg.CancelFunc
}

func NewApp(configPath string) *App {
	ctx, cancel := contextPkg.WithCancel(contextPkg.Background())
	engine := gin.New()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	// 初始化追踪
	config := configs.GetConfig()
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	// 主存储失败不退出：恢复与诊断端点恰恰要在层级损坏时可用，
	// 记录先留在内存与旧版/应急层级，/health/db 会如实上报
	manager, err := storage.Init(ctx)
	if err != nil {
		log.Logger().Error().Err(err).Msg("primary storage unavailable, running degraded")
	}

	ctx = context.WithStorageManager(ctx, manager)

	comps := buildComponents(ctx, manager, config)
	ctx = context.WithComponents(ctx, comps)

	startScheduler(ctx, comps, config)

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.CORSMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.GzipMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.ComponentsMiddleware(comps),
	)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	router.RegisterAppRoutes(engine)

	return &App{
		Engine:  engine,
		config:  config,
		manager: manager,
		comps:   comps,
		cancel:  cancel,
	}
}

// buildComponents 装配应用级组件并完成启动期数据流.
// 层级缺失时降级运行：对应操作返回 ErrStorageUnavailable，控制台映射 503.
func buildComponents(ctx contextPkg.Context, manager *storage.Manager, config *configs.AppConfig) *context.Components {
	// 接口变量只在客户端真实存在时赋值，避免携带 nil 指针的非 nil 接口
	var legacyKV kvc.KVStore
	if lc := manager.GetLegacyKV(); lc != nil {
		legacyKV = lc
	}

	var pub message.Publisher
	if mq := manager.GetMQClient(); mq != nil {
		pub = mq.Publisher()
	}

	st := store.New(manager.GetDBClient(), config.Writer.QuotaBytes)
	if err := st.Open(ctx); err != nil {
		log.Logger().Error().Err(err).Msg("primary store not opened, records held in memory until it recovers")
	}

	// 旧版迁移在恢复之前同步执行.失败不挡启动：旧数据原样保留，
	// 恢复阶段仍会从旧版层级读出记录
	migrator := migrate.New(st, legacyKV, migrate.WithPublisher(pub))
	if _, err := migrator.Run(ctx); err != nil {
		log.Logger().Warn().Err(err).Msg("legacy migration incomplete, legacy tier left untouched")
	}

	rec := recovery.New(st, legacyKV, manager.GetEmergencyKV(), config.Writer.LegacySnapshotKey)

	w := writer.New(st, legacyKV, pub, &config.Writer)
	w.Hydrate(rec.RecoverAll(ctx))

	if config.Emergency.Enabled && manager.GetEmergencyKV() != nil && manager.GetMQClient() != nil {
		worker := emergency.NewWorker(manager.GetEmergencyKV(), manager.GetMQClient().Subscriber(), config.Emergency.HistoryKeep)
		if err := worker.Start(ctx); err != nil {
			log.Logger().Warn().Err(err).Msg("emergency snapshot worker not started")
		}
	}

	handles, err := handlecache.New(st, handlecache.DefaultBaseDir())
	if err != nil {
		fmt.Printf("Error initializing handle cache: %v\n", err)
		os.Exit(1)
	}

	var syncClient *syncapi.Client
	if config.Sync.Enabled {
		syncClient = syncapi.NewClient(&config.Sync)
	}

	return &context.Components{
		Store:    st,
		Writer:   w,
		Migrator: migrator,
		Recovery: rec,
		Handles:  handles,
		Sync:     syncClient,
	}
}

// startScheduler 创建调度器并注册定时任务.
// 调度器属于锦上添花的组件，创建失败只告警，控制台端点返回 503.
func startScheduler(ctx contextPkg.Context, comps *context.Components, config *configs.AppConfig) {
	sched, err := scheduler.NewScheduler()
	if err != nil {
		log.Logger().Warn().Err(err).Msg("scheduler unavailable, background jobs disabled")

		return
	}

	comps.Scheduler = sched

	if err := jobs.Register(ctx, sched, config); err != nil {
		log.Logger().Warn().Err(err).Msg("background job registration incomplete")
	}

	sched.Start()
}

// Run 启动控制台服务器并阻塞到退出信号.
// 收到 SIGINT/SIGTERM 后先排空 HTTP 请求，再做最终落盘.
func (a *App) Run() error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Logger().Info().Str("addr", addr).Str("version", configs.AppVersion).Msg("console server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.shutdown()

		return err
	case sig := <-quit:
		log.Logger().Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := contextPkg.WithTimeout(contextPkg.Background(), a.config.Server.GetTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger().Warn().Err(err).Msg("http server shutdown incomplete")
	}

	a.shutdown()

	return nil
}

// shutdown 做最终落盘并释放资源.
// 最终 Flush 同步写主库，这是退出时唯一必须成功的持久化；
// 应急快照走消息队列，属于尽力而为，不等待消费完成.
func (a *App) shutdown() {
	flushCtx, cancel := contextPkg.WithTimeout(contextPkg.Background(), a.config.Server.GetTimeoutDuration())
	defer cancel()

	if a.comps.Scheduler != nil {
		if err := a.comps.Scheduler.Stop(); err != nil {
			log.Logger().Warn().Err(err).Msg("scheduler stop failed")
		}
	}

	if res := a.comps.Writer.Flush(flushCtx); res.Error != "" {
		log.Logger().Error().Str("error", res.Error).Bool("saved", res.Saved).Msg("final flush incomplete")
	}

	a.comps.Handles.RevokeAll()

	a.cancel()

	if err := tracing.ShutdownTracer(flushCtx); err != nil {
		log.Logger().Warn().Err(err).Msg("tracer shutdown failed")
	}

	if err := a.manager.Close(); err != nil {
		log.Logger().Warn().Err(err).Msg("storage close failed")
	}

	log.Logger().Info().Msg("console server stopped")
}
