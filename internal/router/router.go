package router

import (
	"github.com/bazaar-next/internal/config"
	publichandlers "github.com/bazaar-next/internal/http/handlers/public"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 购物车接口：登录用户或带会话键的游客
		cart := apiV1.Group("")
		cart.Use(OptionalUserJWTMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			cart.GET("/cart", publicHandler.GetCart)
			cart.POST("/cart/items", publicHandler.AddCartItem)
			cart.PUT("/cart/items/:id", publicHandler.UpdateCartItem)
			cart.DELETE("/cart/items/:id", publicHandler.DeleteCartItem)
			cart.DELETE("/cart", publicHandler.ClearCart)
			cart.POST("/cart/coupon", publicHandler.ApplyCoupon)
			cart.DELETE("/cart/coupon", publicHandler.RemoveCoupon)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.POST("/checkout/preview", publicHandler.PreviewCheckout)
			user.POST("/checkout", publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.GET("/orders/by-order-no/:order_no", publicHandler.GetOrderByOrderNo)
			user.GET("/orders/:id/history", publicHandler.GetOrderHistory)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/payments", publicHandler.CreatePayment)
			user.GET("/orders/:id/payments", publicHandler.ListOrderPayments)
			user.GET("/payments/:id/transactions", publicHandler.GetPaymentTransactions)
			user.POST("/payments/:id/refund", publicHandler.RefundPayment)
		}

		// 网关异步通知（无需鉴权，靠签名校验）
		apiV1.POST("/payments/webhook/:gateway", publicHandler.PaymentWebhook)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
