package app

import (
	"comic_english_backend/internal/config"
	"comic_english_backend/internal/controller"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/configwatcher"
	"comic_english_backend/pkg/database"
	"comic_english_backend/pkg/logger"
	"comic_english_backend/pkg/monitoring"
	"comic_english_backend/pkg/security"
	"comic_english_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config      *config.Config
	ConfigPath  string
	Router      *gin.Engine
	DB          *gorm.DB
	Redis       *redis.Client
	RateLimiter *security.IPRateLimiter

	services        *services
	configCallbacks []configwatcher.ConfigReloader
	tracer          *sdktrace.TracerProvider
	scheduler       *cron.Cron
	stopWatcher     context.CancelFunc
}

type repositories struct {
	user     *repository.UserRepository
	module   *repository.ModuleRepository
	progress *repository.ProgressRepository
}

type services struct {
	auth       *service.AuthService
	user       *service.UserService
	storage    *service.StorageService
	module     *service.ModuleService
	progress   *service.ProgressService
	report     *service.ReportService
	generation *service.GenerationService
	hub        *service.GenerationHub
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	content    *controller.ContentController
	progress   *controller.ProgressController
	report     *controller.ReportController
	generation *controller.GenerationController
	health     *controller.HealthController
}

// RegisterConfigCallback 配置文件热加载后回调
func (a *App) RegisterConfigCallback(callback configwatcher.ConfigReloader) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		module:   repository.NewModuleRepository(db),
		progress: repository.NewProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, repos.progress, cfg)
	s.module = service.NewModuleService(repos.module)

	cache := service.NewLeaderboardCache(rdb, time.Duration(cfg.Redis.LeaderboardTTLSeconds)*time.Second)
	s.progress = service.NewProgressService(repos.progress, repos.module, repos.user, cache, cfg.Scoring.PointsPerCorrect)

	s.user = service.NewUserService(repos.user, repos.progress)
	s.user.OnProgressChanged = s.progress.InvalidateLeaderboard
	s.module.OnProgressChanged = s.progress.InvalidateLeaderboard

	s.report = service.NewReportService(repos.progress, repos.module, repos.user)

	s.hub = service.NewGenerationHub(rdb)
	go s.hub.Run()

	s.generation = service.NewGenerationService(
		service.NewAIService(cfg.AI),
		service.NewComfyUIService(cfg.ComfyUI),
		service.NewTTSService(cfg.TTS),
		s.storage,
		s.hub,
		s.module,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		user:       controller.NewUserController(s.user, s.module),
		content:    controller.NewContentController(s.module),
		progress:   controller.NewProgressController(s.progress),
		report:     controller.NewReportController(s.report),
		generation: controller.NewGenerationController(s.generation, s.hub),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.RateLimiter = security.NewIPRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.RateLimiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerReloaders 热加载只覆盖日志级别、限流和计分，其余配置需要重启
func (a *App) registerReloaders() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetMode(cfg.Server.Mode)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.RateLimiter.Update(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.progress.SetPointsPerCorrect(cfg.Scoring.PointsPerCorrect)
	})
}

func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatcher = cancel

	go func() {
		configFile := filepath.Join(a.ConfigPath, "config.yaml")
		if err := configwatcher.WatchConfig(ctx, configFile, a.configCallbacks...); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()

	if a.Config.Scheduler.Enabled {
		scheduler, err := s.progress.StartLeaderboardWarmup(a.Config.Scheduler.LeaderboardSpec)
		if err != nil {
			logger.Log.Error("Failed to schedule leaderboard warm-up", zap.Error(err))
		}
		a.scheduler = scheduler
	}
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		DB:         db,
	}
	// 仅迁移模式下不初始化其他组件
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	util.RegisterValidators()

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("comic-english-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.registerReloaders()
	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.stopWatcher != nil {
		a.stopWatcher()
	}
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	// 关闭 WebSocket 连接
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
