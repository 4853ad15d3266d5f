package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"plantshop-backend/internal/config"
	infraCache "plantshop-backend/internal/infrastructure/cache"
	"plantshop-backend/internal/infrastructure/database"
	"plantshop-backend/pkg/cache"
	pkgDatabase "plantshop-backend/pkg/database"
	"plantshop-backend/pkg/jwt"
	"plantshop-backend/pkg/metrics"

	cartHandler "plantshop-backend/internal/domains/cart/handler"
	cartRepo "plantshop-backend/internal/domains/cart/repository"
	cartService "plantshop-backend/internal/domains/cart/service"
	catalogRepo "plantshop-backend/internal/domains/catalog/repository"
	couponHandler "plantshop-backend/internal/domains/coupon/handler"
	couponJob "plantshop-backend/internal/domains/coupon/job"
	couponRepo "plantshop-backend/internal/domains/coupon/repository"
	couponService "plantshop-backend/internal/domains/coupon/service"
	orderRepo "plantshop-backend/internal/domains/order/repository"
)

// Container holds every long lived dependency of the api and the worker.
type Container struct {
	// Infrastructure
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics

	// Repositories
	CouponRepo  couponRepo.CouponRepository
	CartRepo    cartRepo.CartRepository
	ProductRepo catalogRepo.ProductRepository
	OrderRepo   orderRepo.OrderRepository

	// Services
	Checker       *couponService.EligibilityChecker
	CartService   cartService.ServiceInterface
	CouponService couponService.ServiceInterface

	// Handlers
	CartHandler         *cartHandler.CartHandler
	CouponPublicHandler *couponHandler.PublicHandler
	CouponAdminHandler  *couponHandler.AdminHandler

	// Jobs
	DeactivateExpiredHandler *couponJob.DeactivateExpiredHandler

	couponMetrics *metrics.CouponMetrics
	transactor    pkgDatabase.Transactor
}

// NewContainer builds the dependency graph in order:
// config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Info().Msg("[CONTAINER] Initializing")

	c := &Container{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	if err := c.initInfrastructure(); err != nil {
		c.Cleanup()
		return nil, err
	}

	c.initRepositories()
	c.initServices()
	c.initHandlers()

	log.Info().Str("environment", cfg.App.Environment).Msg("[CONTAINER] Ready")
	return c, nil
}

func (c *Container) initInfrastructure() error {
	cfg := c.Config

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if cfg.App.AutoMigrate {
		if err := database.Migrate(ctx, db.Pool, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisCache := infraCache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Connect(ctx); err != nil {
		// the pricing engine works without redis; only the stats cache is lost
		log.Warn().Err(err).Msg("[CONTAINER] Redis connection failed (non-critical)")
	}
	c.Cache = redisCache

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.HTTPMetrics = metrics.NewHTTPMetrics(c.Registry)
	c.couponMetrics = metrics.NewCouponMetrics(c.Registry)

	return nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.CouponRepo = couponRepo.NewPostgresRepository(pool)
	c.CartRepo = cartRepo.NewPostgresRepository(pool)
	c.ProductRepo = catalogRepo.NewPostgresRepository(pool)
	c.OrderRepo = orderRepo.NewPostgresRepository(pool)
	c.transactor = pkgDatabase.NewPoolTransactor(pool)
}

// initServices builds the cart first: the coupon preview reads carts through it.
func (c *Container) initServices() {
	c.Checker = couponService.NewEligibilityChecker(couponService.NewDiscountCalculator())

	c.CartService = cartService.NewCartService(
		c.CartRepo,
		c.CouponRepo,
		c.ProductRepo,
		c.OrderRepo,
		c.Checker,
		c.transactor,
		c.Cache,
		c.couponMetrics,
	)

	c.CouponService = couponService.NewCouponService(
		c.CouponRepo,
		c.ProductRepo,
		c.OrderRepo,
		c.CartService,
		c.transactor,
		c.Cache,
		c.couponMetrics,
		c.Checker,
		c.Config.Cache.CouponStatsTTL,
	)
}

func (c *Container) initHandlers() {
	c.CartHandler = cartHandler.NewCartHandler(c.CartService)
	c.CouponPublicHandler = couponHandler.NewPublicHandler(c.CouponService)
	c.CouponAdminHandler = couponHandler.NewAdminHandler(c.CouponService)
	c.DeactivateExpiredHandler = couponJob.NewDeactivateExpiredHandler(c.CouponService)
}

// Cleanup releases every connection and reports all close failures together.
func (c *Container) Cleanup() error {
	var err error

	if c.AsynqClient != nil {
		err = multierr.Append(err, c.AsynqClient.Close())
	}
	if rc, ok := c.Cache.(*infraCache.RedisCache); ok && rc != nil {
		err = multierr.Append(err, rc.Close())
	}
	if c.DB != nil {
		err = multierr.Append(err, c.DB.Close())
	}

	if err != nil {
		log.Error().Err(err).Msg("[CONTAINER] Cleanup finished with errors")
		return err
	}
	log.Info().Msg("[CONTAINER] Cleanup completed")
	return nil
}
