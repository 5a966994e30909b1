// Package api serves cypherify over an HTTP JSON interface: automatic
// classification, keyed transforms, password and PIN estimates, analysis
// history and the optional teacher.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cypherify/internal/classifier"
	"cypherify/internal/config"
	"cypherify/internal/health"
	"cypherify/internal/logging"
	"cypherify/internal/metrics"
	"cypherify/internal/password"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
)

// bodyOverhead is the JSON envelope allowed on top of the input limit.
const bodyOverhead = 16 << 10

// Deps are the components the server routes to. Store may be nil, which
// disables history; every other field is required except Logger and
// Metrics.
type Deps struct {
	Classifier *classifier.Classifier
	Estimator  *password.Estimator
	Store      *store.Store
	Teacher    *teacher.Client
	Health     *health.Checker
	Metrics    *metrics.CypherifyMetrics
	Logger     *logging.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	logger  *logging.Logger
	router  *gin.Engine
	httpSrv *http.Server
}

// New builds the router. Call Run to serve it.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Classifier == nil || deps.Estimator == nil || deps.Teacher == nil {
		return nil, errors.New("api: classifier, estimator and teacher are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCypherifyMetrics(nil)
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.WithComponent("api"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.trace(), s.accessLog(), s.limitBody())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", gin.WrapH(s.deps.Health.HealthHandler()))
	r.GET("/health/live", gin.WrapH(s.deps.Health.LivenessHandler()))
	r.GET("/health/ready", gin.WrapH(s.deps.Health.ReadinessHandler()))
	r.GET("/metrics", s.metricsHandler())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/families", s.families)
		v1.GET("/schema", s.schema)
		v1.POST("/classify", s.classify)
		v1.POST("/transform", s.transform)
		v1.POST("/password", s.password)
		v1.POST("/pin", s.pin)

		history := v1.Group("/history")
		{
			history.GET("", s.listHistory)
			history.GET("/stats", s.historyStats)
			history.GET("/:id", s.getHistory)
			history.DELETE("/:id", s.deleteHistory)
		}

		t := v1.Group("/teacher")
		{
			t.GET("/status", s.teacherStatus)
			t.POST("/ask", s.ask)
			t.POST("/hint", s.hint)
			t.POST("/review", s.review)
		}
	}
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"X-Request-ID", "X-History-ID"}
	cfg.AllowOrigins = nil
	cfg.AllowAllOrigins = false
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			continue
		}
		cfg.AllowOrigins = append(cfg.AllowOrigins, o)
	}
	if !cfg.AllowAllOrigins && len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	if cfg.AllowAllOrigins {
		cfg.AllowOrigins = nil
	}
	return cfg
}

func (s *Server) metricsHandler() gin.HandlerFunc {
	h := s.deps.Metrics.Registry().HTTPHandler()
	return func(c *gin.Context) {
		s.deps.Metrics.UpdateUptime()
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.deps.Health.SetReady(true)

	select {
	case err := <-errCh:
		s.deps.Health.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	s.deps.Health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}
