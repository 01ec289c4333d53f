package handler

import (
	"ewallet/internal/config"
	"ewallet/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(svc *service.Services, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	registerValidation()

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware(cfg.Server.CORSOrigins))

	h := NewHandler(svc)

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(cfg.Auth.JWTSecret))
	{
		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.POST("/transfer", h.Transfer)
			wallet.GET("/fees", h.PreviewFee)
			wallet.GET("/transactions", h.ListTransactions)
		}

		api.GET("/packages", h.ListPackages)
		api.GET("/packages/:id", h.GetPackage)

		cart := api.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.DELETE("", h.ClearCart)
			cart.POST("/items", h.AddCartItem)
			cart.PUT("/items/:package_id", h.UpdateCartItem)
			cart.DELETE("/items/:package_id", h.RemoveCartItem)
		}

		api.POST("/checkout", h.Checkout)
		api.GET("/notifications", h.ListNotifications)

		orders := api.Group("/orders")
		{
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/cancel", h.CancelOrder)
		}

		admin := api.Group("/admin", AdminOnly())
		{
			admin.POST("/transactions/bulk-approval", h.BulkApproval)
			admin.POST("/transactions/:id/approve", h.ApproveTransaction)
			admin.POST("/transactions/:id/reject", h.RejectTransaction)
			admin.GET("/wallet-management", h.WalletManagement)
			admin.POST("/wallets/:user_id/freeze", h.FreezeWallet)
			admin.POST("/wallets/:user_id/unfreeze", h.UnfreezeWallet)
			admin.POST("/wallets/:user_id/commission", h.CreditCommission)
			admin.GET("/settings", h.ListSettings)
			admin.PUT("/settings", h.UpdateSettings)
			admin.PUT("/orders/:id/status", h.UpdateOrderStatus)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
