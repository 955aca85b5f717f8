package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"ecostay/internal/infra/config"
	"ecostay/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	ListMine(c *gin.Context)
	Confirm(c *gin.Context)
	Activate(c *gin.Context)
	Complete(c *gin.Context)
	Cancel(c *gin.Context)
	Quote(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
}

type WalletHTTP interface {
	Balance(c *gin.Context)
	Transactions(c *gin.Context)
	Verify(c *gin.Context)
	CashIn(c *gin.Context)
	Payout(c *gin.Context)
	Statement(c *gin.Context)
}

type PaymentsHTTP interface {
	CreateOrder(c *gin.Context)
	CaptureOrder(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Wallet       WalletHTTP
	Payments     PaymentsHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", userHeader, idempotencyHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(PrincipalMiddleware)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/confirm", h.Booking.Confirm)
		api.POST("/bookings/:id/activate", h.Booking.Activate)
		api.POST("/bookings/:id/complete", h.Booking.Complete)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/listings/:id/quote", h.Booking.Quote)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Availability != nil {
		api.GET("/listings/:id/availability", h.Availability.Calendar)
		api.POST("/listings/:id/blocked-dates", h.Availability.Block)
		api.DELETE("/listings/:id/blocked-dates", h.Availability.Unblock)
	}
	if h.Wallet != nil {
		walletGroup := api.Group("/wallet")
		walletGroup.GET("", h.Wallet.Balance)
		walletGroup.GET("/transactions", h.Wallet.Transactions)
		walletGroup.GET("/verify", h.Wallet.Verify)
		walletGroup.POST("/cash-in", h.Wallet.CashIn)
		walletGroup.POST("/payouts", h.Wallet.Payout)
		walletGroup.POST("/statement", h.Wallet.Statement)
	}
	if h.Payments != nil {
		api.POST("/payments/orders", h.Payments.CreateOrder)
		api.POST("/payments/orders/:id/capture", h.Payments.CaptureOrder)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
