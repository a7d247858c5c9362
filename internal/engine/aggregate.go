package engine

import (
	"sort"
	"time"

	"brokerboard/models"
)

// windowStart is the first calendar day (UTC) included for period.
func (e *Engine) windowStart(period models.Period) (time.Time, bool) {
	days := period.Days()
	if days == 0 {
		return time.Time{}, false
	}
	return e.today().AddDate(0, 0, -(days - 1)), true
}

// inWindow returns the cached records of brokerID inside the period window.
// The result is a fresh slice.
func (e *Engine) inWindow(brokerID string, period models.Period) []models.DailyStat {
	snapshot, ok := e.statsC.Get(brokerID)
	if !ok || len(snapshot) == 0 {
		return nil
	}
	start, ok := e.windowStart(period)
	if !ok {
		return nil
	}

	var out []models.DailyStat
	for _, s := range snapshot {
		if !s.Date.Before(start) {
			out = append(out, s)
		}
	}
	return out
}

// AggregatedBrokerStats sums the records of brokerID within period. It returns
// nil when nothing is cached for the broker or nothing falls in the window.
func (e *Engine) AggregatedBrokerStats(brokerID string, period models.Period) *models.AggregatedStat {
	records := e.inWindow(brokerID, period)
	if len(records) == 0 {
		return nil
	}

	agg := &models.AggregatedStat{
		BrokerID:    brokerID,
		BrokerName:  records[0].BrokerName,
		LastUpdated: e.now().UTC(),
	}
	for _, r := range records {
		agg.TotalVolume += r.PerpVolume
		agg.TotalPnl += r.RealizedPnl
		agg.TotalBrokerFee += r.BrokerFee
		agg.TotalFee += r.TotalFee
	}
	if tok, ok := e.tokenC.ForBroker(brokerID); ok {
		agg.Token = tok.Summary()
	}
	return agg
}

// DailyStatsForBroker returns the records of brokerID within period, most
// recent first, or nil under the same conditions as AggregatedBrokerStats.
func (e *Engine) DailyStatsForBroker(brokerID string, period models.Period) []models.DailyStat {
	records := e.inWindow(brokerID, period)
	if len(records) == 0 {
		return nil
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
	return records
}

// Leaderboard aggregates every cached broker over period, highest volume first.
func (e *Engine) Leaderboard(period models.Period) []models.AggregatedStat {
	ids := e.statsC.BrokerIDs()
	out := make([]models.AggregatedStat, 0, len(ids))
	for _, id := range ids {
		if agg := e.AggregatedBrokerStats(id, period); agg != nil {
			out = append(out, *agg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalVolume != out[j].TotalVolume {
			return out[i].TotalVolume > out[j].TotalVolume
		}
		return out[i].BrokerID < out[j].BrokerID
	})
	return out
}
