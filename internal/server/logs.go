package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	BrokerID  string                 `json:"brokerId,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// problemLog is a logrus hook retaining recent warnings and errors, so failing
// brokers stay visible while stale snapshots are served.
type problemLog struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newProblemLog(limit int) *problemLog {
	if limit <= 0 {
		limit = 200
	}
	p := &problemLog{limit: limit}
	p.enabled.Store(true)
	return p
}

func (p *problemLog) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (p *problemLog) Fire(entry *logrus.Entry) error {
	if !p.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	for k, v := range entry.Data {
		switch k {
		case "component":
			record.Component, _ = v.(string)
			continue
		case "broker_id":
			record.BrokerID, _ = v.(string)
			continue
		}
		if record.Fields == nil {
			record.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			record.Fields[k] = val.Error()
		case fmt.Stringer:
			record.Fields[k] = val.String()
		default:
			record.Fields[k] = val
		}
	}

	p.mu.Lock()
	p.items = append(p.items, record)
	if len(p.items) > p.limit {
		p.items = append([]logRecord(nil), p.items[len(p.items)-p.limit:]...)
	}
	p.mu.Unlock()
	return nil
}

// snapshot returns retained records, optionally only those for brokerID.
func (p *problemLog) snapshot(brokerID string) []logRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]logRecord, 0, len(p.items))
	for _, r := range p.items {
		if brokerID == "" || r.BrokerID == brokerID {
			out = append(out, r)
		}
	}
	return out
}

func (p *problemLog) close() {
	p.enabled.Store(false)
}
