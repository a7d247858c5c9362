package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brokerboard/logger"
	"brokerboard/models"
)

const defaultPeriod = models.Period30d

type handlerFunc func(c *gin.Context) (int, interface{})

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// cached serves 200 responses of h from the response cache keyed by request URI.
// Other statuses are returned as-is and not stored.
func (s *Server) cached(h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.Request.URL.RequestURI()
		log := s.log.WithComponent("server").WithFields(logger.Fields{"key": key})

		if body, ok, err := s.cache.Get(ctx, key); err != nil {
			log.WithError(err).Warn("response cache read failed")
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}

		status, payload := h(c)
		if status != http.StatusOK {
			c.JSON(status, payload)
			return
		}
		body, err := json.Marshal(payload)
		if err != nil {
			log.WithError(err).Error("failed to encode response")
			c.JSON(http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		if err := s.cache.Set(ctx, key, body, s.cfg.ResponseCacheTTL); err != nil {
			log.WithError(err).Warn("response cache write failed")
		}
		c.Header("X-Cache", "MISS")
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

func periodParam(c *gin.Context) (models.Period, bool) {
	raw := c.Query("period")
	if raw == "" {
		return defaultPeriod, true
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return "", false
	}
	return p, true
}

func (s *Server) leaderboard(c *gin.Context) (int, interface{}) {
	period, ok := periodParam(c)
	if !ok {
		return http.StatusBadRequest, errorBody("invalid period")
	}
	return http.StatusOK, gin.H{
		"period":  period,
		"brokers": s.engine.Leaderboard(period),
	}
}

func (s *Server) brokerStats(c *gin.Context) (int, interface{}) {
	period, ok := periodParam(c)
	if !ok {
		return http.StatusBadRequest, errorBody("invalid period")
	}
	agg := s.engine.AggregatedBrokerStats(c.Param("id"), period)
	if agg == nil {
		return http.StatusNotFound, errorBody("no stats for broker")
	}
	return http.StatusOK, agg
}

func (s *Server) brokerDaily(c *gin.Context) (int, interface{}) {
	period, ok := periodParam(c)
	if !ok {
		return http.StatusBadRequest, errorBody("invalid period")
	}
	stats := s.engine.DailyStatsForBroker(c.Param("id"), period)
	if stats == nil {
		return http.StatusNotFound, errorBody("no stats for broker")
	}
	return http.StatusOK, gin.H{
		"brokerId": c.Param("id"),
		"period":   period,
		"stats":    stats,
	}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.CacheStatus())
}

func (s *Server) recentMetrics(c *gin.Context) {
	events := s.events.snapshot()
	payload := make([]gin.H, 0, len(events))
	for _, m := range events {
		payload = append(payload, gin.H{
			"timestamp": m.Timestamp.Format(time.RFC3339Nano),
			"component": m.Component,
			"name":      m.Name,
			"value":     m.Value,
			"type":      m.Type,
			"fields":    m.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"metrics": payload})
}

// recentProblems lists retained warnings and errors; ?broker= filters by broker id.
func (s *Server) recentProblems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.problems.snapshot(c.Query("broker"))})
}

func (s *Server) refresh(c *gin.Context) {
	s.engine.RefreshBrokerIDs(c.Request.Context())
	s.clearCache(c)
	c.JSON(http.StatusOK, s.engine.CacheStatus())
}

func (s *Server) invalidateToken(c *gin.Context) {
	s.engine.InvalidateTokenCacheForBroker(c.Param("id"))
	s.clearCache(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) clearCache(c *gin.Context) {
	if err := s.cache.Clear(c.Request.Context()); err != nil {
		s.log.WithComponent("server").WithError(err).Warn("failed to clear response cache")
	}
}
