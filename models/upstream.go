package models

import (
	"fmt"
	"time"
)

// LeaderboardDailyResp is the envelope returned by the broker leaderboard daily endpoint.
type LeaderboardDailyResp struct {
	Success   bool                  `json:"success"`
	Data      *LeaderboardDailyData `json:"data"`
	Timestamp int64                 `json:"timestamp"`
}

type LeaderboardDailyData struct {
	Rows []LeaderboardDailyRow `json:"rows"`
	Meta LeaderboardMeta       `json:"meta"`
}

// LeaderboardDailyRow is one day of broker activity as reported upstream.
type LeaderboardDailyRow struct {
	Date            string  `json:"date"`
	PerpVolume      float64 `json:"perp_volume"`
	PerpTakerVolume float64 `json:"perp_taker_volume"`
	PerpMakerVolume float64 `json:"perp_maker_volume"`
	RealizedPnl     float64 `json:"realized_pnl"`
	BrokerFee       float64 `json:"broker_fee"`
	TotalFee        float64 `json:"total_fee"`
}

type LeaderboardMeta struct {
	Total          int `json:"total"`
	RecordsPerPage int `json:"records_per_page"`
	CurrentPage    int `json:"current_page"`
}

// GeckoTokenResp is the subset of the GeckoTerminal token response in use.
// Numeric attributes arrive as decimal strings and may be null.
type GeckoTokenResp struct {
	Data struct {
		Attributes GeckoTokenAttributes `json:"attributes"`
	} `json:"data"`
}

type GeckoTokenAttributes struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	PriceUSD     *string `json:"price_usd"`
	MarketCapUSD *string `json:"market_cap_usd"`
	ImageURL     string  `json:"image_url"`
}

// ToDailyStat normalizes the row for brokerID. The date must be YYYY-MM-DD.
func (r LeaderboardDailyRow) ToDailyStat(brokerID, brokerName string) (DailyStat, error) {
	date, err := time.ParseInLocation(DateLayout, r.Date, time.UTC)
	if err != nil {
		return DailyStat{}, fmt.Errorf("invalid row date %q: %w", r.Date, err)
	}
	return DailyStat{
		BrokerID:        brokerID,
		BrokerName:      brokerName,
		Date:            date,
		PerpVolume:      r.PerpVolume,
		PerpTakerVolume: r.PerpTakerVolume,
		PerpMakerVolume: r.PerpMakerVolume,
		RealizedPnl:     r.RealizedPnl,
		BrokerFee:       r.BrokerFee,
		TotalFee:        r.TotalFee,
	}, nil
}
