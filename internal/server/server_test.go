package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerboard/config"
	"brokerboard/internal/metrics"
	"brokerboard/logger"
	"brokerboard/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeEngine struct {
	mu          sync.Mutex
	stats       map[string]*models.AggregatedStat
	daily       map[string][]models.DailyStat
	board       []models.AggregatedStat
	statsCalls  int
	refreshes   int
	invalidated []string
}

func (f *fakeEngine) AggregatedBrokerStats(id string, _ models.Period) *models.AggregatedStat {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return f.stats[id]
}

func (f *fakeEngine) DailyStatsForBroker(id string, _ models.Period) []models.DailyStat {
	return f.daily[id]
}

func (f *fakeEngine) Leaderboard(models.Period) []models.AggregatedStat {
	return f.board
}

func (f *fakeEngine) CacheStatus() models.CacheStatus {
	return models.CacheStatus{TotalBrokers: 3, CachedBrokers: 2, CurrentBrokerIndex: 1}
}

func (f *fakeEngine) RefreshBrokerIDs(context.Context) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

func (f *fakeEngine) InvalidateTokenCacheForBroker(id string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, id)
	f.mu.Unlock()
}

func newTestServer(t *testing.T, eng *fakeEngine) (*Server, http.Handler) {
	t.Helper()
	srv, err := NewServer(config.ServerConfig{Enabled: true, Address: ":0", ResponseCacheTTL: time.Minute}, true, eng, nil, logger.Logger())
	require.NoError(t, err)
	require.NotNil(t, srv)
	t.Cleanup(srv.cleanup)
	router, err := srv.buildRouter()
	require.NoError(t, err)
	return srv, router
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                           "0.0.0.0:8080",
		"  :9090  ":                  "0.0.0.0:9090",
		"localhost":                  "localhost:8080",
		"[::1]:443":                  "[::1]:443",
		"::1":                        "[::1]:8080",
		"*:8080":                     "0.0.0.0:8080",
		"http://10.0.0.5:8080":       "10.0.0.5:8080",
		"https://10.0.0.5":           "10.0.0.5:8080",
		"http://:7070":               "0.0.0.0:7070",
		"https://board.example.com/": "board.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerDisabled(t *testing.T) {
	srv, err := NewServer(config.ServerConfig{Enabled: false}, false, &fakeEngine{}, nil, logger.Logger())
	require.NoError(t, err)
	assert.Nil(t, srv)
	assert.Equal(t, "", srv.Address())
}

func TestBrokerStatsRoute(t *testing.T) {
	eng := &fakeEngine{stats: map[string]*models.AggregatedStat{
		"woofi_pro": {BrokerID: "woofi_pro", TotalVolume: 60},
	}}
	_, h := newTestServer(t, eng)

	rec := do(h, http.MethodGet, "/api/brokers/woofi_pro/stats?period=weekly")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var agg models.AggregatedStat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, 60.0, agg.TotalVolume)

	rec = do(h, http.MethodGet, "/api/brokers/woofi_pro/stats?period=weekly")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, eng.statsCalls)
}

func TestBrokerStatsNotFoundIsNotCached(t *testing.T) {
	eng := &fakeEngine{}
	_, h := newTestServer(t, eng)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/brokers/unknown/stats").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/brokers/unknown/stats").Code)
	assert.Equal(t, 2, eng.statsCalls)
}

func TestInvalidPeriod(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{})

	for _, target := range []string{
		"/api/leaderboard?period=monthly",
		"/api/brokers/a/stats?period=1y",
		"/api/brokers/a/daily?period=hourly",
	} {
		assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, target).Code, target)
	}
}

func TestMissingPeriodDefaults(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{})

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/brokers/a/daily?period=").Code)
}

func TestDailyRoute(t *testing.T) {
	eng := &fakeEngine{daily: map[string][]models.DailyStat{
		"brk1": {{BrokerID: "brk1", Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), PerpVolume: 30}},
	}}
	_, h := newTestServer(t, eng)

	rec := do(h, http.MethodGet, "/api/brokers/brk1/daily?period=daily")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"2024-03-09"`)
	assert.Contains(t, rec.Body.String(), `"period":"daily"`)
}

func TestLeaderboardRoute(t *testing.T) {
	eng := &fakeEngine{board: []models.AggregatedStat{{BrokerID: "b", TotalVolume: 50}, {BrokerID: "a", TotalVolume: 5}}}
	_, h := newTestServer(t, eng)

	rec := do(h, http.MethodGet, "/api/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Period  string                  `json:"period"`
		Brokers []models.AggregatedStat `json:"brokers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "30d", body.Period)
	require.Len(t, body.Brokers, 2)
	assert.Equal(t, "b", body.Brokers[0].BrokerID)
}

func TestAdminRoutesClearCache(t *testing.T) {
	eng := &fakeEngine{stats: map[string]*models.AggregatedStat{"brk1": {BrokerID: "brk1"}}}
	_, h := newTestServer(t, eng)

	do(h, http.MethodGet, "/api/brokers/brk1/stats")
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/api/brokers/brk1/token").Code)
	assert.Equal(t, []string{"brk1"}, eng.invalidated)

	rec := do(h, http.MethodGet, "/api/brokers/brk1/stats")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = do(h, http.MethodPost, "/api/brokers/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.refreshes)
}

func TestStatusHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{})

	rec := do(h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.CacheStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.TotalBrokers)
	assert.Equal(t, 1, status.CurrentBrokerIndex)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz").Code)

	rec = do(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brokerboard_http_requests_total")
}

func TestRecentMetricsRoute(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{})
	metrics.EmitMetric("engine", "stats_fetch_ms", 12, "gauge", logger.Fields{"broker_id": "brk1"})

	rec := do(h, http.MethodGet, "/api/metrics/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stats_fetch_ms")
}

func TestRecentProblemsRoute(t *testing.T) {
	log := logger.Logger()
	srv, err := NewServer(config.ServerConfig{Enabled: true}, false, &fakeEngine{}, nil, log)
	require.NoError(t, err)
	t.Cleanup(srv.cleanup)
	h, err := srv.buildRouter()
	require.NoError(t, err)

	log.SetOutput(io.Discard)
	log.WithComponent("engine").WithFields(logger.Fields{"broker_id": "brk1"}).Warn("failed to fetch broker stats")
	log.WithComponent("engine").WithFields(logger.Fields{"broker_id": "brk2"}).Warn("failed to fetch broker stats")
	log.WithComponent("engine").Info("engine started")

	rec := do(h, http.MethodGet, "/api/logs/recent?broker=brk1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs []logRecord `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "brk1", body.Logs[0].BrokerID)
	assert.Equal(t, "engine", body.Logs[0].Component)
	assert.Equal(t, "warning", body.Logs[0].Level)
}
