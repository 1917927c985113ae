package http

import (
	"github.com/gin-gonic/gin"

	"github.com/courseledger/walletgate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, paymentService *service.PaymentService) *gin.Engine {
	router := gin.Default()

	handlers := NewHandlers(authService, paymentService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/logout", AuthMiddleware(authService), handlers.Logout)
	}

	// Payment routes
	tx := router.Group("/transactions")
	{
		tx.POST("/build", handlers.Build)
		tx.POST("/send", handlers.Send)
	}

	router.GET("/balances", handlers.Balances)

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
