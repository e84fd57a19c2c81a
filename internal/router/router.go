package router

import (
	"time"

	"phonebay/internal/controller"
	"phonebay/internal/logger"
	"phonebay/internal/middleware"
	"phonebay/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	initiateCooldown = 10 * time.Second
	triggerCooldown  = 30 * time.Second
)

// Controllers 全部控制器
type Controllers struct {
	Auth         *controller.AuthController
	Product      *controller.ProductController
	Catalog      *controller.CatalogController
	Cart         *controller.CartController
	Wishlist     *controller.WishlistController
	Order        *controller.OrderController
	EMI          *controller.EMIController
	Vendor       *controller.VendorController
	Shipping     *controller.ShippingController
	Payment      *controller.PaymentController
	Notification *controller.NotificationController
	SMS          *controller.SMSController
	Admin        *controller.AdminController
	Health       *controller.HealthController
}

// Options 路由选项
type Options struct {
	// Limiter 为空时不限流
	Limiter *middleware.IPRateLimiter
	// MediaRoute / MediaRoot 本地存储时的静态文件目录
	MediaRoute string
	MediaRoot  string
}

// NewEngine 创建带日志、request id 与 panic 恢复的 gin 引擎
func NewEngine(l *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(l), logger.Recovery(l))
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl *Controllers, opts Options) {
	// 1. 健康检查 / 静态文件
	r.GET("/healthz", ctl.Health.Healthz)
	if opts.MediaRoute != "" && opts.MediaRoot != "" {
		r.Static(opts.MediaRoute, opts.MediaRoot)
	}

	// 2. API 路由组
	api := r.Group("/api")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter))
	}

	authed := []gin.HandlerFunc{middleware.JWTAuth(), middleware.AuditContext()}
	admin := chain(authed, middleware.RequireRole(model.RoleAdmin))
	seller := chain(authed, middleware.RequireRole(model.RoleAdmin, model.RoleVendor))

	// auth 鉴权组
	auth := api.Group("/auth")
	{
		// POST /api/auth/register
		auth.POST("/register", ctl.Auth.Register)
		auth.POST("/login", ctl.Auth.Login)
		auth.POST("/refresh", ctl.Auth.Refresh)
		// 同一手机号 60 秒冷却在 service 内处理
		auth.POST("/otp/request", ctl.Auth.RequestOTP)
		auth.POST("/otp/verify", ctl.Auth.VerifyOTP)
		auth.GET("/me", chain(authed, ctl.Auth.Me)...)
	}

	// product 商品
	products := api.Group("/products")
	{
		products.GET("", middleware.OptionalAuth(), ctl.Product.List)
		products.GET("/:id", middleware.OptionalAuth(), ctl.Product.Get)
		products.GET("/slug/:slug", middleware.OptionalAuth(), ctl.Product.GetBySlug)

		manage := products.Group("", seller...)
		manage.POST("", ctl.Product.Create)
		manage.PUT("/:id", ctl.Product.Update)
		manage.DELETE("/:id", ctl.Product.Delete)
		manage.POST("/:id/images", ctl.Product.UploadImage)
		manage.PATCH("/:id/stock", ctl.Product.AdjustStock)
	}

	// 分类 / 品牌
	categories := api.Group("/categories")
	{
		categories.GET("", middleware.OptionalAuth(), ctl.Catalog.ListCategories)

		manage := categories.Group("", admin...)
		manage.POST("", ctl.Catalog.CreateCategory)
		manage.PUT("/:id", ctl.Catalog.UpdateCategory)
		manage.DELETE("/:id", ctl.Catalog.DeleteCategory)
	}
	brands := api.Group("/brands")
	{
		brands.GET("", ctl.Catalog.ListBrands)

		manage := brands.Group("", admin...)
		manage.POST("", ctl.Catalog.CreateBrand)
		manage.PUT("/:id", ctl.Catalog.UpdateBrand)
		manage.DELETE("/:id", ctl.Catalog.DeleteBrand)
	}

	// cart 购物车
	cart := api.Group("/cart", authed...)
	{
		cart.GET("", ctl.Cart.Get)
		cart.DELETE("", ctl.Cart.Clear)
		cart.POST("/items", ctl.Cart.AddItem)
		cart.PUT("/items/:id", ctl.Cart.UpdateItem)
		cart.DELETE("/items/:id", ctl.Cart.RemoveItem)
	}

	// wishlist 收藏
	wishlist := api.Group("/wishlist", authed...)
	{
		wishlist.GET("", ctl.Wishlist.List)
		wishlist.POST("", ctl.Wishlist.Add)
		wishlist.DELETE("/:product_id", ctl.Wishlist.Remove)
		wishlist.POST("/:product_id/move-to-cart", ctl.Wishlist.MoveToCart)
	}

	// orders 订单
	orders := api.Group("/orders", authed...)
	{
		orders.POST("/checkout", ctl.Order.Checkout)
		orders.GET("", ctl.Order.List)
		orders.GET("/:id", ctl.Order.Get)
		orders.POST("/:id/cancel", ctl.Order.Cancel)
	}

	// emi 分期
	emi := api.Group("/emi")
	{
		emi.GET("/plans", ctl.EMI.ListPlans)
		emi.POST("/quote", ctl.EMI.Quote)

		apps := emi.Group("/applications", authed...)
		apps.POST("", ctl.EMI.Apply)
		apps.GET("", ctl.EMI.ListApplications)
		apps.GET("/:id", ctl.EMI.GetApplication)
	}

	// vendors 商家
	vendors := api.Group("/vendors", authed...)
	{
		vendors.POST("/apply", ctl.Vendor.Apply)
		vendors.GET("/me", ctl.Vendor.Me)
		vendors.PUT("/me", ctl.Vendor.UpdateMe)
		vendors.GET("/me/dashboard", ctl.Vendor.Dashboard)
	}

	// shipping 运费
	shipping := api.Group("/shipping")
	{
		shipping.GET("/quote", ctl.Shipping.Quote)
		shipping.GET("/methods", ctl.Shipping.Methods)
	}

	// payments 支付
	payments := api.Group("/payments")
	{
		payments.POST("/initiate/:order_id", chain(authed,
			middleware.Cooldown("payment-initiate", "order_id", initiateCooldown),
			ctl.Payment.Initiate)...)
		payments.GET("/orders/:order_id", chain(authed, ctl.Payment.ListByOrder)...)

		// 网关回调，不鉴权，由 service 向网关验证
		ssl := payments.Group("/sslcommerz")
		ssl.POST("/ipn", ctl.Payment.IPN)
		ssl.POST("/success", ctl.Payment.Success)
		ssl.POST("/fail", ctl.Payment.Fail)
		ssl.POST("/cancel", ctl.Payment.Cancel)
	}

	// notifications 站内通知
	notifications := api.Group("/notifications", authed...)
	{
		notifications.GET("", ctl.Notification.List)
		notifications.GET("/unread-count", ctl.Notification.UnreadCount)
		notifications.POST("/read-all", ctl.Notification.MarkAllRead)
		notifications.POST("/:id/read", ctl.Notification.MarkRead)
	}

	registerAdmin(api.Group("/admin", admin...), ctl)
}

// chain 复制后追加，避免共享底层数组
func chain(base []gin.HandlerFunc, h ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(base)+len(h))
	return append(append(out, base...), h...)
}

func registerAdmin(g *gin.RouterGroup, ctl *Controllers) {
	// 订单
	g.GET("/orders", ctl.Order.AdminList)
	g.GET("/orders/stats", ctl.Order.Stats)
	g.PATCH("/orders/:id/status", ctl.Order.UpdateStatus)

	// 分期
	g.GET("/emi/plans", ctl.EMI.AdminListPlans)
	g.POST("/emi/plans", ctl.EMI.CreatePlan)
	g.PUT("/emi/plans/:id", ctl.EMI.UpdatePlan)
	g.DELETE("/emi/plans/:id", ctl.EMI.DeletePlan)
	g.GET("/emi/applications", ctl.EMI.AdminListApplications)
	g.POST("/emi/applications/:id/approve", ctl.EMI.Approve)
	g.POST("/emi/applications/:id/reject", ctl.EMI.Reject)
	g.POST("/emi/applications/:id/installments/:n/pay", ctl.EMI.PayInstallment)

	// 商家
	g.GET("/vendors", ctl.Vendor.List)
	g.GET("/vendors/:id", ctl.Vendor.Get)
	g.POST("/vendors/:id/approve", ctl.Vendor.Approve)
	g.POST("/vendors/:id/suspend", ctl.Vendor.Suspend)

	// 配送
	g.GET("/shipping/zones", ctl.Shipping.ListZones)
	g.POST("/shipping/zones", ctl.Shipping.CreateZone)
	g.PUT("/shipping/zones/:id", ctl.Shipping.UpdateZone)
	g.DELETE("/shipping/zones/:id", ctl.Shipping.DeleteZone)
	g.GET("/shipping/methods", ctl.Shipping.ListMethods)
	g.POST("/shipping/methods", ctl.Shipping.CreateMethod)
	g.PUT("/shipping/methods/:id", ctl.Shipping.UpdateMethod)
	g.DELETE("/shipping/methods/:id", ctl.Shipping.DeleteMethod)
	g.GET("/shipping/rates", ctl.Shipping.ListRates)
	g.POST("/shipping/rates", ctl.Shipping.UpsertRate)
	g.DELETE("/shipping/rates/:id", ctl.Shipping.DeleteRate)

	// 短信
	g.GET("/sms/templates", ctl.SMS.ListTemplates)
	g.POST("/sms/templates", ctl.SMS.CreateTemplate)
	g.PUT("/sms/templates/:id", ctl.SMS.UpdateTemplate)
	g.DELETE("/sms/templates/:id", ctl.SMS.DeleteTemplate)
	g.GET("/sms/logs", ctl.SMS.ListLogs)
	g.POST("/sms/send", ctl.SMS.Send)
	g.POST("/sms/bulk", ctl.SMS.Bulk)

	// 设置 / 数据修复 / 任务
	g.GET("/settings", ctl.Admin.GetSettings)
	g.PUT("/settings", ctl.Admin.UpdateSettings)
	g.GET("/datafix", ctl.Admin.ListFixes)
	g.POST("/datafix/:name", ctl.Admin.RunFix)
	g.GET("/tasks", ctl.Admin.ListTasks)
	g.POST("/tasks/:name/trigger",
		middleware.Cooldown("task-trigger", "name", triggerCooldown),
		ctl.Admin.TriggerTask)
}
