package provider

import (
	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/gateway"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/repository"
	"github.com/bazaar-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	QueueClient     *queue.Client
	GatewayRegistry *gateway.Registry

	// Repositories
	UserRepo           repository.UserRepository
	AddressRepo        repository.AddressRepository
	ProductRepo        repository.ProductRepository
	ProductVariantRepo repository.ProductVariantRepository
	CartRepo           repository.CartRepository
	CouponRepo         repository.CouponRepository
	CouponUsageRepo    repository.CouponUsageRepository
	OrderRepo          repository.OrderRepository
	PaymentRepo        repository.PaymentRepository

	// Services
	CartService        *service.CartService
	CouponService      *service.CouponService
	CheckoutService    *service.CheckoutService
	OrderService       *service.OrderService
	OrderStatusService *service.OrderStatusService
	PaymentService     *service.PaymentService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.ProductVariantRepo = repository.NewProductVariantRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.CouponUsageRepo = repository.NewCouponUsageRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices() {
	registry, err := gateway.NewRegistry(&c.Config.Gateways)
	if err != nil {
		logger.Errorw("provider_init_gateway_registry_failed", "error", err)
		panic(err)
	}
	c.GatewayRegistry = registry

	c.CartService = service.NewCartService(c.CartRepo, c.ProductRepo, c.ProductVariantRepo)
	c.CouponService = service.NewCouponService(c.CouponRepo, c.CouponUsageRepo, c.Config.Checkout.CouponTTLSeconds)
	c.CheckoutService = service.NewCheckoutService(
		c.Config,
		c.CartRepo,
		c.ProductRepo,
		c.ProductVariantRepo,
		c.AddressRepo,
		c.OrderRepo,
		c.CouponUsageRepo,
		c.CouponService,
		c.QueueClient,
	)
	c.OrderService = service.NewOrderService(c.OrderRepo)
	c.OrderStatusService = service.NewOrderStatusService(c.OrderRepo, c.ProductRepo, c.ProductVariantRepo)
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.PaymentRepo, c.GatewayRegistry)
}
