package router

import (
	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/config"
	"github.com/coldbrew/cps/internal/handler"
	"github.com/coldbrew/cps/internal/logic"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, resolver *chain.Resolver, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	reader := logic.ResolverReader(resolver)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "coldbrew-payment-service",
			"chains":  resolver.HealthStatus(c.Request.Context()),
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 账单相关路由
		invoiceHandler := handler.NewInvoiceHandler(
			logic.NewInvoiceLogic(db),
			logic.NewSettlementLogic(db, reader),
		)
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", invoiceHandler.CreateInvoice)
			invoices.GET("", invoiceHandler.ListInvoices)
			invoices.GET("/:slug", invoiceHandler.GetInvoice)
			invoices.PUT("/:slug", invoiceHandler.UpdateInvoice)
			invoices.POST("/:slug/register", invoiceHandler.RegisterInvoice)
			invoices.POST("/:slug/paylink", invoiceHandler.AttachPaylink)
			invoices.POST("/:slug/settle", invoiceHandler.SettleInvoice)
			invoices.POST("/:slug/archive", invoiceHandler.ArchiveInvoice)
		}

		// 收款链接相关路由
		paylinkHandler := handler.NewPaylinkHandler(
			logic.NewPaylinkLogic(db, reader, cfg.Scan.LookbackBlocks),
		)
		paylinks := v1.Group("/paylinks")
		{
			paylinks.POST("", paylinkHandler.CreatePaylink)
			paylinks.GET("", paylinkHandler.ListPaylinks)
			paylinks.GET("/:handle", paylinkHandler.GetPaylink)
			paylinks.POST("/:handle/sync", paylinkHandler.SyncPaylink)
			paylinks.PUT("/id/:id", paylinkHandler.UpdatePaylink)
			paylinks.POST("/id/:id/archive", paylinkHandler.ArchivePaylink)
			paylinks.GET("/id/:id/payments", paylinkHandler.ListPayments)
		}

		// 分账方案相关路由
		payoutHandler := handler.NewPayoutHandler(logic.NewPayoutLogic(db))
		payouts := v1.Group("/payouts")
		{
			payouts.POST("", payoutHandler.CreateSchedule)
			payouts.GET("", payoutHandler.ListSchedules)
			payouts.PUT("/:id", payoutHandler.UpdateSchedule)
			payouts.DELETE("/:id", payoutHandler.DeleteSchedule)
			payouts.GET("/:id/executions", payoutHandler.ListExecutions)
			payouts.POST("/:id/executions", payoutHandler.RecordExecution)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
