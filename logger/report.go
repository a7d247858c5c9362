package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	warnCount         int64
	errorCount        int64
	statsFetchOK      int64
	statsFetchFailed  int64
	tokenFetchOK      int64
	tokenFetchFailed  int64
	snapshotPublished int64
)

func recordWarn()  { atomic.AddInt64(&warnCount, 1) }
func recordError() { atomic.AddInt64(&errorCount, 1) }

// IncrementStatsFetch counts one broker stats fetch attempt.
func IncrementStatsFetch(ok bool) {
	if ok {
		atomic.AddInt64(&statsFetchOK, 1)
		return
	}
	atomic.AddInt64(&statsFetchFailed, 1)
}

// IncrementTokenFetch counts one token metadata fetch attempt.
func IncrementTokenFetch(ok bool) {
	if ok {
		atomic.AddInt64(&tokenFetchOK, 1)
		return
	}
	atomic.AddInt64(&tokenFetchFailed, 1)
}

func IncrementSnapshotPublished() {
	atomic.AddInt64(&snapshotPublished, 1)
}

// StatusFunc supplies extra fields (engine cache status) for each report.
type StatusFunc func() Fields

// StartReport logs a runtime report every interval until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration, status StatusFunc) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log, status)
			}
		}
	}()
}

func reportFields() Fields {
	return Fields{
		"warns":               atomic.LoadInt64(&warnCount),
		"errors":              atomic.LoadInt64(&errorCount),
		"stats_fetch_ok":      atomic.LoadInt64(&statsFetchOK),
		"stats_fetch_failed":  atomic.LoadInt64(&statsFetchFailed),
		"token_fetch_ok":      atomic.LoadInt64(&tokenFetchOK),
		"token_fetch_failed":  atomic.LoadInt64(&tokenFetchFailed),
		"snapshots_published": atomic.LoadInt64(&snapshotPublished),
		"goroutines":          runtime.NumGoroutine(),
	}
}

func logReport(ctx context.Context, log *Log, status StatusFunc) {
	fields := reportFields()

	cpuPct := 0.0
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memMB := 0.0
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memMB = float64(vm.Used) / 1024 / 1024
	}
	fields["cpu_percent"] = cpuPct
	fields["memory_mb"] = int64(memMB)

	if status != nil {
		for k, v := range status() {
			fields[k] = v
		}
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	publishMetrics(ctx, []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
		{MetricName: aws.String("StatsFetchOK"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stats_fetch_ok"].(int64)))},
		{MetricName: aws.String("StatsFetchFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stats_fetch_failed"].(int64)))},
		{MetricName: aws.String("TokenFetchOK"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["token_fetch_ok"].(int64)))},
		{MetricName: aws.String("TokenFetchFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["token_fetch_failed"].(int64)))},
	})
}
