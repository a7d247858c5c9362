package orderly

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brokerboard/config"
	"brokerboard/logger"
	"brokerboard/models"
	"brokerboard/reader"
)

// ErrMalformedPayload is returned when the envelope is unsuccessful or has no rows.
var ErrMalformedPayload = errors.New("malformed leaderboard payload")

const dailyPath = "/v1/broker/leaderboard/daily"

// Client fetches per-broker daily leaderboard statistics.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

func NewClient(cfg config.OrderlyConfig) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: reader.NewHTTPClient(cfg.ConnectionPool, cfg.Timeout, cfg.UserAgent),
		limiter:    reader.NewLimiter(cfg.RateLimit),
		log:        logger.GetLogger(),
	}
	c.log.WithComponent("orderly_reader").WithFields(logger.Fields{
		"base_url":           c.baseURL,
		"max_idle_conns":     cfg.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.ConnectionPool.MaxConnsPerHost,
		"timeout":            cfg.Timeout,
	}).Info("orderly reader initialized")
	return c
}

// FetchDailyStats returns the rows for brokerID between start and end (inclusive
// calendar days), aggregated by date and sorted by descending perp volume.
func (c *Client) FetchDailyStats(ctx context.Context, brokerID string, start, end time.Time) ([]models.LeaderboardDailyRow, error) {
	q := url.Values{}
	q.Set("start_date", start.UTC().Format(models.DateLayout))
	q.Set("end_date", end.UTC().Format(models.DateLayout))
	q.Set("broker_id", brokerID)
	q.Set("sort", "descending_perp_volume")
	q.Set("aggregateBy", "date")

	begin := time.Now()
	var resp models.LeaderboardDailyResp
	if err := reader.GetJSON(ctx, c.httpClient, c.limiter, c.baseURL+dailyPath+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil || resp.Data.Rows == nil {
		return nil, fmt.Errorf("%w: success=%t", ErrMalformedPayload, resp.Success)
	}

	logger.LogPerformanceEntry(c.log.WithComponent("orderly_reader"), "orderly_reader", "fetch_daily_stats", time.Since(begin), logger.Fields{
		"broker_id": brokerID,
		"rows":      len(resp.Data.Rows),
	})
	return resp.Data.Rows, nil
}
