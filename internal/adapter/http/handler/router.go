package handler

import (
	"personal-ledger/internal/adapter/http/middleware"
	redisStore "personal-ledger/internal/adapter/storage/redis"
	"personal-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	AccountSvc     ports.AccountService
	CardSvc        ports.CardService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Currency       string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep, pings every storage backend)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/refresh", jwtAuth, rl("auth_refresh"), authHandler.Refresh)
	}

	// --- JWT-authenticated routes ---
	accountHandler := NewAccountHandler(deps.AccountSvc, deps.Currency)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	cardHandler := NewCardHandler(deps.CardSvc)

	api := v1.Group("", jwtAuth)
	{
		api.GET("/me", rl("read"), accountHandler.GetProfile)
		api.PUT("/me", rl("read"), accountHandler.UpdateProfile)
		api.GET("/balance", rl("read"), accountHandler.GetBalance)

		api.POST("/transfers", rl("transfers"), ledgerHandler.Transfer)
		api.POST("/recharges", rl("recharges"), ledgerHandler.Recharge)
		api.GET("/recharges/:reference", rl("read"), accountHandler.GetRechargeReceipt)

		api.GET("/transactions", rl("read"), accountHandler.ListTransactions)
		api.GET("/transactions/stats", rl("read"), accountHandler.GetStats)

		api.GET("/cards", rl("read"), cardHandler.List)
		api.PUT("/cards/:id/default", rl("cards"), cardHandler.SetDefault)
		api.DELETE("/cards/:id", rl("cards"), cardHandler.Delete)
	}

	return r
}
