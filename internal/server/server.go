package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/authbridge/internal/bridge"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/observability"
	obslogger "github.com/smallbiznis/authbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/authbridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/authbridge/internal/observability/tracing"
	"github.com/smallbiznis/authbridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obsCfg.Debug()))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(httpMetrics.Gatherer(), promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Guard   *bridge.Guard
	Limiter *ratelimit.LoginLimiter `optional:"true"`
	Log     *zap.Logger
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	guard   *bridge.Guard
	limiter *ratelimit.LoginLimiter
	log     *zap.Logger
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:  p.Gin,
		cfg:     p.Cfg,
		guard:   p.Guard,
		limiter: p.Limiter,
		log:     p.Log.Named("http"),
	}
}

func (s *Server) RegisterRoutes() {
	r := s.engine.Group("/")
	r.Use(s.guard.Middleware())

	r.POST("/login/password", s.LoginPassword)
	r.POST("/logout", s.Logout)

	authed := r.Group("/", s.guard.RequireAuth())
	authed.GET("/me", s.Me)
	authed.GET("/session", s.Session)
}
