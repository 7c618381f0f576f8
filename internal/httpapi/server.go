// Package httpapi exposes the service over HTTP+JSON with gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/Fi44er/tradecycle/config"
	"github.com/Fi44er/tradecycle/internal/metrics"
	"github.com/Fi44er/tradecycle/internal/service"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	engine  *gin.Engine
	service *service.Service
	config  *config.Config
	logger  *utils.Logger
	metrics *metrics.Metrics
	limiter *RateLimiter
}

func NewServer(svc *service.Service, cfg *config.Config, logger *utils.Logger, m *metrics.Metrics) *Server {
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:  gin.New(),
		service: svc,
		config:  cfg,
		logger:  logger,
		metrics: m,
		limiter: NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// HTTPServer returns an *http.Server for addr with the router mounted.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) routes() {
	r := s.engine
	r.MaxMultipartMemory = s.config.MaxUploadBytes
	r.Use(s.recovery(), s.requestLogger(), s.instrument(), s.cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")

	public := api.Group("", s.limiter.Middleware())
	public.POST("/auth/register", s.register)
	public.POST("/auth/login", s.login)
	public.GET("/plans", s.listPlans)
	public.GET("/billing/addresses", s.billingAddresses)

	authed := api.Group("", s.authenticate(), s.limiter.Middleware())
	authed.GET("/auth/me", s.me)
	authed.GET("/subscriptions/active", s.activeSubscription)
	authed.POST("/cycles/start", s.startCycle)
	authed.GET("/cycles/my-cycles", s.myCycles)
	authed.POST("/billing/manual/submit", s.submitPayment)
	authed.GET("/billing/manual/my-payments", s.myPayments)
	authed.GET("/history/my", s.myHistory)
	authed.POST("/withdrawals/request", s.requestWithdrawal)
	authed.GET("/withdrawals/my-requests", s.myWithdrawals)

	admin := authed.Group("/admin", s.requireAdmin())
	admin.GET("/manual-payments", s.adminListPayments)
	admin.GET("/manual-payments/:id/screenshot", s.adminPaymentScreenshot)
	admin.POST("/manual-payments/:id/approve", s.adminApprovePayment)
	admin.POST("/manual-payments/:id/reject", s.adminRejectPayment)
	admin.GET("/withdrawals", s.adminListWithdrawals)
	admin.POST("/withdrawals/:id/approve", s.adminApproveWithdrawal)
	admin.POST("/withdrawals/:id/reject", s.adminRejectWithdrawal)
	admin.GET("/users", s.adminListUsers)
	admin.POST("/users/add-funds", s.adminAddFunds)
	admin.POST("/users/add-profit", s.adminAddProfit)
	admin.POST("/users/:id/disable", s.adminSetDisabled(true))
	admin.POST("/users/:id/enable", s.adminSetDisabled(false))
	admin.GET("/plans", s.adminListPlans)
	admin.POST("/plans", s.adminCreatePlan)
	admin.PUT("/plans/:id", s.adminUpdatePlan)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "route not found", "kind": "NOT_FOUND"})
	})
}

func (s *Server) cors() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Total-Count", "X-Page", "X-Page-Size"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	origins := s.config.AllowedOrigins()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
