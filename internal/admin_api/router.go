package admin_api

import (
	"log/slog"

	"github.com/custodial-tipbot/internal/admin_api/handler"
	"github.com/custodial-tipbot/internal/admin_api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures the read-only operator routes
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transactionHandler *handler.TransactionHandler,
	commandHandler *handler.CommandHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/accounts/:identity", accountHandler.GetByIdentity)
		v1.GET("/channels", accountHandler.ListChannels)
		v1.GET("/pending", transactionHandler.Pending)

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", transactionHandler.List)
			transactions.GET("/pending", transactionHandler.Pending)
			transactions.GET("/:id", transactionHandler.GetByID)
		}

		commands := v1.Group("/commands")
		{
			commands.GET("", commandHandler.List)
			commands.GET("/:id", commandHandler.GetByID)
		}
	}

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
