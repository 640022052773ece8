package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/app"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
)

// Opener opens an App for one request. network is the request's override
// and may be empty.
type Opener func(network string) (*app.App, error)

// Server is the HTTP front end.
type Server struct {
	settings Settings
	open     Opener
	log      *zap.Logger
	errs     *errs.Handler
	metrics  *metrics
	engine   *gin.Engine
	started  time.Time
	version  string
}

// New builds a server. open is called once per request.
func New(settings Settings, open Opener, version string, log *zap.Logger) *Server {
	log = logging.OrNop(log).Named("api")
	s := &Server{
		settings: settings,
		open:     open,
		log:      log,
		errs:     errs.NewHandler(log),
		metrics:  newMetrics(),
		started:  time.Now(),
		version:  version,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		requestLogger(s.log),
		recovery(s.errs),
		corsMiddleware(s.settings.AllowOrigins),
		s.metrics.middleware(),
	)

	r.GET("/health", s.health)
	r.GET("/metrics", s.metrics.handler())

	v := r.Group("/api")
	if s.settings.RateLimit > 0 {
		v.Use(rateLimit(s.settings.RateLimit, max(1, s.settings.RateBurst)))
	}
	v.POST("/publish", s.publish)
	v.POST("/install", s.install)
	v.POST("/search", s.searchPost)
	v.GET("/search", s.searchGet)
	v.POST("/endorse", s.endorse)
	v.POST("/tip", s.tip)
	v.POST("/wallet", s.wallet)
	v.GET("/wallet/status", s.walletStatus)
	v.POST("/storage", s.storage)
	v.GET("/storage/status", s.storageStatus)
	v.POST("/init", s.initialize)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response{Error: "no such endpoint: " + c.Request.Method + " " + c.Request.URL.Path})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.KindNetwork, err, "serving on %s", srv.Addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.ShutdownTimeout)
	defer cancel()
	s.log.Info("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(errs.KindInternal, err, "shutting down")
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, response{Success: true, Data: gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}})
}
