package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"brokerboard/config"
	"brokerboard/internal/metrics"
	"brokerboard/logger"
	"brokerboard/models"
)

const (
	defaultCacheTTL     = 60 * time.Second
	defaultEventHistory = 200
)

// Engine is the read and admin surface of the leaderboard engine.
type Engine interface {
	AggregatedBrokerStats(brokerID string, period models.Period) *models.AggregatedStat
	DailyStatsForBroker(brokerID string, period models.Period) []models.DailyStat
	Leaderboard(period models.Period) []models.AggregatedStat
	CacheStatus() models.CacheStatus
	RefreshBrokerIDs(ctx context.Context)
	InvalidateTokenCacheForBroker(brokerID string)
}

// Server exposes the engine over HTTP.
type Server struct {
	cfg            config.ServerConfig
	metricsEnabled bool
	engine         Engine
	cache          ResponseCache
	events         *eventStore
	eventHandler   metrics.MetricHandlerID
	problems       *problemLog
	log            *logger.Log
	httpServer     *http.Server
}

// NewServer returns nil when the server is disabled. A nil cache selects the
// in-process MemoryCache.
func NewServer(cfg config.ServerConfig, metricsEnabled bool, eng Engine, cache ResponseCache, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if eng == nil {
		return nil, errors.New("server requires an engine")
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.ResponseCacheTTL <= 0 {
		cfg.ResponseCacheTTL = defaultCacheTTL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	events := newEventStore(defaultEventHistory)
	problems := newProblemLog(defaultEventHistory)
	log.AddHook(problems)

	return &Server{
		cfg:            cfg,
		metricsEnabled: metricsEnabled,
		engine:         eng,
		cache:          cache,
		events:         events,
		eventHandler:   metrics.RegisterMetricHandler(events.handle),
		problems:       problems,
		log:            log,
	}, nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.eventHandler)
	s.problems.close()
}

func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.observe())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	api.GET("/leaderboard", s.cached(s.leaderboard))
	api.GET("/brokers/:id/stats", s.cached(s.brokerStats))
	api.GET("/brokers/:id/daily", s.cached(s.brokerDaily))
	api.GET("/status", s.status)
	api.GET("/metrics/recent", s.recentMetrics)
	api.GET("/logs/recent", s.recentProblems)
	api.POST("/brokers/refresh", s.refresh)
	api.DELETE("/brokers/:id/token", s.invalidateToken)

	return router, nil
}

// observe counts requests per route and logs them at debug.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTPRequest(route, c.Request.Method, status)
		s.log.WithComponent("server").WithFields(logger.Fields{
			"route":       route,
			"method":      c.Request.Method,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
	}
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
