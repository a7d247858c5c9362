package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-day layout used by the upstream API and in JSON output.
const DateLayout = "2006-01-02"

// DailyStat is one broker's trading activity for one UTC calendar day.
type DailyStat struct {
	BrokerID        string    `json:"brokerId"`
	BrokerName      string    `json:"brokerName"`
	Date            time.Time `json:"date"`
	PerpVolume      float64   `json:"perpVolume"`
	PerpTakerVolume float64   `json:"perpTakerVolume"`
	PerpMakerVolume float64   `json:"perpMakerVolume"`
	RealizedPnl     float64   `json:"realizedPnl"`
	BrokerFee       float64   `json:"brokerFee"`
	TotalFee        float64   `json:"totalFee"`
}

// MarshalJSON renders Date without a time component.
func (s DailyStat) MarshalJSON() ([]byte, error) {
	type alias DailyStat
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{
		alias: alias(s),
		Date:  s.Date.UTC().Format(DateLayout),
	})
}

// AggregatedStat is a windowed summary computed on read. LastUpdated is the
// time of computation, not of the underlying data.
type AggregatedStat struct {
	BrokerID       string        `json:"brokerId"`
	BrokerName     string        `json:"brokerName"`
	TotalVolume    float64       `json:"totalVolume"`
	TotalPnl       float64       `json:"totalPnl"`
	TotalBrokerFee float64       `json:"totalBrokerFee"`
	TotalFee       float64       `json:"totalFee"`
	LastUpdated    time.Time     `json:"lastUpdated"`
	Token          *TokenSummary `json:"token,omitempty"`
}

// CacheStatus reports engine state for operational visibility.
type CacheStatus struct {
	TotalBrokers       int       `json:"totalBrokers"`
	CachedBrokers      int       `json:"cachedBrokers"`
	CurrentBrokerIndex int       `json:"currentBrokerIndex"`
	LastUpdate         time.Time `json:"lastUpdate"`
}

// BrokerSnapshot is emitted after every successful stats fetch.
type BrokerSnapshot struct {
	ID         string      `json:"id"`
	BrokerID   string      `json:"brokerId"`
	BrokerName string      `json:"brokerName"`
	Stats      []DailyStat `json:"stats"`
	FetchedAt  time.Time   `json:"fetchedAt"`
}
