package handler

import (
	"time"

	"splatchain-ledger/internal/adapter/http/middleware"
	"splatchain-ledger/internal/adapter/metrics"
	redisStore "splatchain-ledger/internal/adapter/storage/redis"
	"splatchain-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger           ports.LedgerService
	Reloader         Reloader
	AuditSvc         ports.AuditService    // nil = reloads are not audited
	AuditRepo        ports.AuditRepository // nil = history endpoint disabled
	TokenSvc         ports.TokenService
	BlockChecker     ports.BlockChecker
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	IdempotencyCache ports.IdempotencyCache     // nil = idempotency keys ignored
	Metrics          *metrics.Prometheus        // nil = no /metrics
	HealthCheckers   []ports.HealthChecker
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()
	noop := func(c *gin.Context) { c.Next() }

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return noop
		}
		rule, ok := rules[group]
		if !ok {
			return noop
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	idem := gin.HandlerFunc(noop)
	if deps.IdempotencyCache != nil {
		idem = middleware.Idempotency(deps.IdempotencyCache, idempotencyTTL, deps.Logger)
	}

	v1 := r.Group("/api/v1",
		middleware.ActorAuth(deps.TokenSvc),
		middleware.BlockGate(deps.BlockChecker, deps.Logger),
	)

	walletHandler := NewWalletHandler(deps.Ledger)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("", rl(middleware.GroupRead), walletHandler.List)
		wallets.POST("", rl(middleware.GroupMutate), idem, walletHandler.Create)
		wallets.GET("/:id", rl(middleware.GroupRead), walletHandler.Get)
		wallets.PATCH("/:id", rl(middleware.GroupMutate), idem, walletHandler.Edit)
		wallets.DELETE("/:id", rl(middleware.GroupMutate), idem, walletHandler.Delete)
		wallets.POST("/:id/inject", rl(middleware.GroupMutate), idem, walletHandler.Inject)
		wallets.POST("/:id/burn", rl(middleware.GroupMutate), idem, walletHandler.Burn)

		if deps.AuditRepo != nil {
			historyHandler := NewHistoryHandler(deps.Ledger, deps.AuditRepo)
			wallets.GET("/:id/history", rl(middleware.GroupRead), historyHandler.List)
		}
	}
	v1.POST("/transfers", rl(middleware.GroupMutate), idem, walletHandler.Transfer)

	adminHandler := NewAdminHandler(deps.Reloader, deps.Ledger, deps.AuditSvc)
	v1.GET("/stats", rl(middleware.GroupRead), adminHandler.Stats)
	v1.POST("/admin/reload", rl(middleware.GroupAdmin), adminHandler.Reload)

	return r
}
