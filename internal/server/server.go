package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/creditgate/internal/account/domain"
	campaigndomain "github.com/smallbiznis/creditgate/internal/campaign/domain"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	obslogger "github.com/smallbiznis/creditgate/internal/observability/logger"
	obstracing "github.com/smallbiznis/creditgate/internal/observability/tracing"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/creditgate/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	log          *zap.Logger
	store        creditdomain.Store
	gate         creditdomain.Gate
	accountSvc   accountdomain.Service
	campaignSvc  campaigndomain.Service
	recurringSvc recurringdomain.Service
	limiter      *ratelimit.ConsumeLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Log          *zap.Logger
	Store        creditdomain.Store
	Gate         creditdomain.Gate
	AccountSvc   accountdomain.Service
	CampaignSvc  campaigndomain.Service
	RecurringSvc recurringdomain.Service
	Limiter      *ratelimit.ConsumeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		log:          p.Log.Named("http.handler"),
		store:        p.Store,
		gate:         p.Gate,
		accountSvc:   p.AccountSvc,
		campaignSvc:  p.CampaignSvc,
		recurringSvc: p.RecurringSvc,
		limiter:      p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Accounts --------
	api.PUT("/accounts/:id", s.UpsertAccount)

	// -------- Credits --------
	api.GET("/accounts/:id/credits", s.GetCredits)
	api.POST("/accounts/:id/credits/add", s.AddCredits)
	api.POST("/accounts/:id/credits/consume", s.ConsumeRateLimit(), s.ConsumeCredits)
	api.PUT("/accounts/:id/credits/auto-top-up", s.SetAutoTopUp)

	// -------- Campaigns --------
	api.PUT("/campaigns/:id", s.UpsertCampaign)
	api.POST("/campaigns/:id/recurring-charges", s.ChargeCampaign)
	api.GET("/campaigns/:id/recurring-charges/:period", s.GetRecurringCharge)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
