package models

import (
	"fmt"
	"strings"
)

// Period selects a trailing aggregation window.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	Period30d    Period = "30d"
	Period90d    Period = "90d"
)

var periodDays = map[Period]int{
	PeriodDaily:  1,
	PeriodWeekly: 7,
	Period30d:    29,
	Period90d:    89,
}

// ParsePeriod accepts daily, weekly, 30d and 90d (case-insensitive).
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodDays[p]; !ok {
		return "", fmt.Errorf("invalid period %q", s)
	}
	return p, nil
}

// Days returns the number of calendar days covered by the window, including today.
// Unknown periods report 0.
func (p Period) Days() int {
	return periodDays[p]
}

func (p Period) Valid() bool {
	_, ok := periodDays[p]
	return ok
}
