package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"phonebay/internal/config"
	"phonebay/internal/controller"
	"phonebay/internal/logger"
	"phonebay/internal/middleware"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/internal/router"
	"phonebay/internal/service"
	"phonebay/internal/task"
	"phonebay/pkg/cache"
	"phonebay/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 配置 & 日志
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	log, undo := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer undo()
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 数据库
	db, partitions, err := initDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	// 3. 依赖
	deps, err := initDependencies(cfg, db)
	if err != nil {
		return err
	}

	// 4. 定时任务（始终注册，便于后台手动触发）
	tasks, err := initTasks(cfg, deps, partitions)
	if err != nil {
		return err
	}
	deps.Controllers.Admin = controller.NewAdminController(deps.Services.Settings, deps.Services.DataFix, tasks)
	if cfg.Tasks.Enabled {
		tasks.Start()
		defer tasks.Stop()
	}

	// 5. 路由
	r := router.NewEngine(log)
	opts := router.Options{
		Limiter:    middleware.NewIPRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		MediaRoute: cfg.HTTP.MediaRoute,
	}
	if cfg.Storage.Provider == "local" {
		opts.MediaRoot = filepath.Clean(cfg.Storage.BasePath)
	}
	router.InitRoutes(r, deps.Controllers, opts)

	// 6. 启动服务
	return serve(ctx, cfg, r, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	UoW         *repository.UnitOfWork
	Cache       cache.Cache
	Services    *Services
	Controllers *router.Controllers
}

// Services 服务集合
type Services struct {
	Auth         *service.AuthService
	Settings     *service.SettingsService
	SMS          *service.SMSService
	Notification *service.NotificationService
	Shipping     *service.ShippingService
	EMI          *service.EMIService
	Vendor       *service.VendorService
	Order        *service.OrderService
	Cart         *service.CartService
	Wishlist     *service.WishlistService
	Product      *service.ProductService
	Category     *service.CategoryService
	Brand        *service.BrandService
	Payment      *service.PaymentService
	DataFix      *service.DataFixService
}

// ==================== 初始化函数 ====================

// initDatabase 连接数据库；开启 auto_migrate 时建分区表并迁移其余表
func initDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, *database.PartitionManager, error) {
	db, err := database.InitDB(database.Options{
		DSN:             cfg.Database.DSN(),
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          logger.NewGormLogger(log.Named("gorm"), cfg.Database.LogLevel, cfg.Database.SlowThreshold),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := middleware.RegisterAuditCallbacks(db); err != nil {
		return nil, nil, fmt.Errorf("注册审计回调失败: %w", err)
	}

	initializer, err := database.NewInitializer(db, database.InitOptions{
		NonPartitionedModels: model.NonPartitionedModels(),
		FutureMonths:         cfg.Tasks.PartitionAheadMons,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := initializer.Initialize(ctx); err != nil {
			return nil, nil, err
		}
	}
	return db, initializer.Manager(), nil
}

// initCache Redis 可用时使用 Redis，否则退化为进程内缓存
func initCache(ctx context.Context, cfg config.RedisConfig) cache.Cache {
	if !cfg.Enabled {
		return cache.NewMemory(cfg.TTL)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("Redis 不可用，使用进程内缓存", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return cache.NewMemory(cfg.TTL)
	}
	return cache.NewRedis(client, cfg.Prefix, cfg.TTL)
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB) (*Dependencies, error) {
	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
		Issuer:          cfg.JWT.Issuer,
	})
	if err := middleware.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("注册校验器失败: %w", err)
	}

	// -------- Repo 层 --------
	uow := repository.NewUnitOfWork(db)
	c := initCache(context.Background(), cfg.Redis)

	// -------- 基础服务 --------
	sms, err := service.NewSMSService(uow.SMS, cfg.SMS)
	if err != nil {
		return nil, fmt.Errorf("短信服务初始化失败: %w", err)
	}
	storage, err := service.NewStorageProvider(cfg.Storage, cfg.HTTP.MediaRoute)
	if err != nil {
		return nil, fmt.Errorf("存储服务初始化失败: %w", err)
	}

	// -------- 业务服务 --------
	svc := &Services{SMS: sms}
	svc.Settings = service.NewSettingsService(uow.Settings, c)
	svc.Auth = service.NewAuthService(uow.Users, c, sms)
	svc.Notification = service.NewNotificationService(uow.Notifications, uow.Users, sms, svc.Settings)
	svc.Shipping = service.NewShippingService(uow.Shipping, svc.Settings, c)
	svc.EMI = service.NewEMIService(uow, svc.Settings, svc.Notification)
	svc.Vendor = service.NewVendorService(uow, svc.Settings, svc.Notification)
	svc.Order, err = service.NewOrderService(uow, svc.Settings, svc.Shipping, svc.EMI, svc.Notification)
	if err != nil {
		return nil, err
	}
	svc.Cart = service.NewCartService(uow)
	svc.Wishlist = service.NewWishlistService(uow, svc.Cart)
	svc.Product = service.NewProductService(uow, svc.Vendor, storage)
	svc.Category = service.NewCategoryService(uow.Categories)
	svc.Brand = service.NewBrandService(uow.Brands)
	svc.Payment = service.NewPaymentService(uow, service.NewSSLCommerzClient(cfg.SSLCommerz), svc.Notification)
	svc.DataFix = service.NewDataFixService(uow, svc.EMI)

	// -------- Controller 层 --------
	return &Dependencies{
		DB:          db,
		UoW:         uow,
		Cache:       c,
		Services:    svc,
		Controllers: initControllers(db, svc),
	}, nil
}

// initControllers Admin 控制器依赖任务管理器，在 initTasks 之后补上
func initControllers(db *gorm.DB, svc *Services) *router.Controllers {
	return &router.Controllers{
		Auth:         controller.NewAuthController(svc.Auth),
		Product:      controller.NewProductController(svc.Product),
		Catalog:      controller.NewCatalogController(svc.Category, svc.Brand),
		Cart:         controller.NewCartController(svc.Cart),
		Wishlist:     controller.NewWishlistController(svc.Wishlist),
		Order:        controller.NewOrderController(svc.Order),
		EMI:          controller.NewEMIController(svc.EMI),
		Vendor:       controller.NewVendorController(svc.Vendor),
		Shipping:     controller.NewShippingController(svc.Shipping),
		Payment:      controller.NewPaymentController(svc.Payment),
		Notification: controller.NewNotificationController(svc.Notification),
		SMS:          controller.NewSMSController(svc.SMS),
		Health:       controller.NewHealthController(db),
	}
}

// initTasks 注册定时任务
func initTasks(cfg *config.Config, deps *Dependencies, partitions *database.PartitionManager) (*task.TaskManager, error) {
	tc := cfg.Tasks
	tm := task.NewTaskManager(tc.Concurrency)
	emi := task.NewEMITask(deps.Services.EMI, deps.Services.Notification, tc.EMIReminderDays, tc.Concurrency)

	jobs := []task.Job{
		emi.ReminderJob(tc.EMIReminderSpec),
		emi.OverdueJob(tc.EMIOverdueSpec),
		task.SMSRetryJob(tc.SMSRetrySpec, deps.Services.SMS, tc.SMSRetryMax),
		task.OrderExpiryJob(tc.OrderExpirySpec, deps.Services.Order, tc.OrderExpiryWindow),
		task.PartitionJob(tc.PartitionSpec, partitions, tc.PartitionAheadMons),
	}
	for _, job := range jobs {
		if err := tm.Register(job); err != nil {
			return nil, err
		}
	}
	return tm, nil
}

// ==================== 服务启动 ====================

// serve 启动 HTTP 服务，收到退出信号后优雅关闭
func serve(ctx context.Context, cfg *config.Config, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("服务启动", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务强制关闭: %w", err)
		}
		log.Info("服务已退出")
		return nil
	})
	return g.Wait()
}
