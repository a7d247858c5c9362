package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"brokerboard/config"
	"brokerboard/internal/cache"
	"brokerboard/internal/metrics"
	"brokerboard/internal/registry"
	"brokerboard/logger"
	"brokerboard/models"
)

// BrokerStore supplies broker ids and per-broker metadata.
type BrokerStore interface {
	registry.Source
	BrokerName(ctx context.Context, brokerID string) (string, error)
	TokenConfig(ctx context.Context, brokerID string) (models.TokenConfig, error)
}

type StatsFetcher interface {
	FetchDailyStats(ctx context.Context, brokerID string, start, end time.Time) ([]models.LeaderboardDailyRow, error)
}

type TokenFetcher interface {
	FetchToken(ctx context.Context, chain, address string) (models.TokenInfo, error)
}

// SnapshotSink receives a copy of every successfully fetched snapshot. Publish
// must not block.
type SnapshotSink interface {
	Publish(snapshot models.BrokerSnapshot) bool
}

// Engine polls one broker per tick in round-robin order and serves windowed
// aggregations from memory.
type Engine struct {
	store    BrokerStore
	stats    StatsFetcher
	tokens   TokenFetcher
	sink     SnapshotSink
	registry *registry.Registry
	statsC   *cache.StatsCache
	tokenC   *cache.TokenCache

	pollInterval    time.Duration
	refreshInterval time.Duration
	windowDays      int
	now             func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log
}

// New builds an engine from cfg. sink may be nil.
func New(cfg config.EngineConfig, store BrokerStore, stats StatsFetcher, tokens TokenFetcher, sink SnapshotSink) *Engine {
	return &Engine{
		store:           store,
		stats:           stats,
		tokens:          tokens,
		sink:            sink,
		registry:        registry.New(),
		statsC:          cache.NewStatsCache(),
		tokenC:          cache.NewTokenCache(),
		pollInterval:    cfg.PollInterval,
		refreshInterval: cfg.RegistryRefreshInterval,
		windowDays:      cfg.StatsWindowDays,
		now:             time.Now,
		log:             logger.GetLogger(),
	}
}

// Start loads the registry and starts the poll and refresh loops. A failed
// initial load is logged; the poll loop retries it on the next tick.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	log := e.log.WithComponent("engine").WithFields(logger.Fields{"operation": "start"})

	e.RefreshBrokerIDs(e.ctx)

	e.wg.Add(2)
	go e.loop(e.pollInterval, e.tick)
	go e.loop(e.refreshInterval, e.RefreshBrokerIDs)

	log.WithFields(logger.Fields{
		"brokers":          e.registry.Len(),
		"poll_interval":    e.pollInterval.String(),
		"refresh_interval": e.refreshInterval.String(),
	}).Info("engine started")
	return nil
}

// Stop cancels both loops and waits for in-flight fetches. It is safe to call
// more than once and before Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	e.log.WithComponent("engine").Info("stopping engine")
	cancel()
	e.wg.Wait()
	e.log.WithComponent("engine").Info("engine stopped")
}

func (e *Engine) loop(interval time.Duration, fn func(context.Context)) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			fn(e.ctx)
		}
	}
}

// RefreshBrokerIDs reloads the registry from the store.
func (e *Engine) RefreshBrokerIDs(ctx context.Context) {
	changed, err := e.registry.Reload(ctx, e.store)
	if err != nil {
		return
	}
	if changed {
		metrics.SetCacheGauges(e.registry.Len(), e.statsC.Len())
	}
}

// tick polls the broker at the cursor. The cursor is advanced before the fetch
// goroutine starts so a slow or failing broker never stalls rotation.
func (e *Engine) tick(ctx context.Context) {
	brokerID, ok := e.registry.Next()
	if !ok {
		e.log.WithComponent("engine").Debug("registry empty, reloading")
		e.RefreshBrokerIDs(ctx)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollBroker(ctx, brokerID)
	}()
}

// pollBroker runs the stats fetch and, when it succeeds, the token fetch.
func (e *Engine) pollBroker(ctx context.Context, brokerID string) {
	if e.fetchStats(ctx, brokerID) {
		e.fetchToken(ctx, brokerID)
	}
}

func (e *Engine) fetchStats(ctx context.Context, brokerID string) bool {
	log := e.log.WithComponent("engine").WithFields(logger.Fields{"broker_id": brokerID, "operation": "fetch_stats"})

	end := e.today()
	start := end.AddDate(0, 0, -e.windowDays)

	begin := time.Now()
	rows, err := e.stats.FetchDailyStats(ctx, brokerID, start, end)
	duration := time.Since(begin)
	if err != nil {
		e.recordStats(false, duration, brokerID)
		log.WithError(err).Warn("failed to fetch broker stats, serving cached snapshot")
		return false
	}

	name := brokerID
	if n, err := e.store.BrokerName(ctx, brokerID); err != nil {
		log.WithError(err).Warn("failed to resolve broker name")
	} else if n != "" {
		name = n
	}

	snapshot := make([]models.DailyStat, 0, len(rows))
	for _, row := range rows {
		stat, err := row.ToDailyStat(brokerID, name)
		if err != nil {
			e.recordStats(false, duration, brokerID)
			log.WithError(err).Warn("malformed stats row, serving cached snapshot")
			return false
		}
		snapshot = append(snapshot, stat)
	}

	e.statsC.Replace(brokerID, snapshot)
	e.recordStats(true, duration, brokerID)
	metrics.SetCacheGauges(e.registry.Len(), e.statsC.Len())
	log.WithFields(logger.Fields{"records": len(snapshot), "duration_ms": duration.Milliseconds()}).Debug("broker stats cached")

	if e.sink != nil {
		ok := e.sink.Publish(models.BrokerSnapshot{
			ID:         uuid.NewString(),
			BrokerID:   brokerID,
			BrokerName: name,
			Stats:      snapshot,
			FetchedAt:  e.now().UTC(),
		})
		if !ok {
			log.Warn("snapshot queue full, dropping snapshot")
		}
	}
	return true
}

func (e *Engine) recordStats(ok bool, d time.Duration, brokerID string) {
	logger.IncrementStatsFetch(ok)
	metrics.ObserveStatsFetch(ok, d)
	metrics.EmitMetric("engine", "stats_fetch_ms", d.Milliseconds(), "gauge", logger.Fields{"broker_id": brokerID})
}

func (e *Engine) fetchToken(ctx context.Context, brokerID string) {
	log := e.log.WithComponent("engine").WithFields(logger.Fields{"broker_id": brokerID, "operation": "fetch_token"})

	tc, err := e.store.TokenConfig(ctx, brokerID)
	if err != nil {
		log.WithError(err).Warn("failed to load token config")
		return
	}
	if !tc.Complete() {
		return
	}

	info, err := e.tokens.FetchToken(ctx, tc.Chain, tc.Address)
	if err != nil {
		logger.IncrementTokenFetch(false)
		metrics.ObserveTokenFetch(false)
		log.WithError(err).WithFields(logger.Fields{"chain": tc.Chain, "address": tc.Address}).Warn("failed to fetch token info")
		return
	}
	info.BrokerID = brokerID
	if info.LastUpdated.IsZero() {
		info.LastUpdated = e.now().UTC()
	}
	e.tokenC.Upsert(info)
	logger.IncrementTokenFetch(true)
	metrics.ObserveTokenFetch(true)
}

// InvalidateTokenCacheForBroker drops the cached token of brokerID.
func (e *Engine) InvalidateTokenCacheForBroker(brokerID string) {
	if e.tokenC.InvalidateBroker(brokerID) {
		e.log.WithComponent("engine").WithFields(logger.Fields{"broker_id": brokerID}).Info("token cache invalidated")
	}
}

func (e *Engine) CacheStatus() models.CacheStatus {
	return models.CacheStatus{
		TotalBrokers:       e.registry.Len(),
		CachedBrokers:      e.statsC.Len(),
		CurrentBrokerIndex: e.registry.Cursor(),
		LastUpdate:         e.now().UTC(),
	}
}

// ReportFields feeds the runtime report.
func (e *Engine) ReportFields() logger.Fields {
	s := e.CacheStatus()
	return logger.Fields{
		"total_brokers":  s.TotalBrokers,
		"cached_brokers": s.CachedBrokers,
		"cursor":         s.CurrentBrokerIndex,
		"cached_tokens":  e.tokenC.Len(),
	}
}

func (e *Engine) today() time.Time {
	return e.now().UTC().Truncate(24 * time.Hour)
}
