package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"brokerboard/config"
	"brokerboard/internal/metrics"
	"brokerboard/logger"
	"brokerboard/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes broker snapshots to Kafka from a buffered queue.
// Publish never blocks; snapshots are dropped when the queue is full.
type KafkaWriter struct {
	config  config.SnapshotsConfig
	queue   chan models.BrokerSnapshot
	writer  messageWriter
	ctx     context.Context
	done    chan struct{}
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewKafkaWriter(cfg config.SnapshotsConfig) (*KafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	kw := newKafkaWriter(cfg, w)
	kw.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
		"buffer":  cfg.BufferSize,
	}).Debug("kafka writer initialized")
	return kw, nil
}

func newKafkaWriter(cfg config.SnapshotsConfig, w messageWriter) *KafkaWriter {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	return &KafkaWriter{
		config: cfg,
		queue:  make(chan models.BrokerSnapshot, size),
		writer: w,
		done:   make(chan struct{}),
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
}

func (kw *KafkaWriter) Start(ctx context.Context) error {
	kw.mu.Lock()
	if kw.running {
		kw.mu.Unlock()
		return fmt.Errorf("kafka writer already running")
	}
	kw.running = true
	kw.ctx = ctx
	kw.mu.Unlock()

	kw.log.WithComponent("snapshot_writer").Debug("starting kafka writer")

	kw.wg.Add(1)
	go kw.run()

	return nil
}

// Publish queues snapshot and reports whether it was accepted.
func (kw *KafkaWriter) Publish(snapshot models.BrokerSnapshot) bool {
	select {
	case kw.queue <- snapshot:
		return true
	default:
		metrics.ObserveSnapshot(metrics.ResultDropped)
		metrics.EmitMetric("snapshot_writer", "snapshots_dropped", 1, "counter", logger.Fields{"broker_id": snapshot.BrokerID})
		return false
	}
}

func (kw *KafkaWriter) run() {
	defer kw.wg.Done()

	for {
		select {
		case <-kw.ctx.Done():
			return
		case <-kw.done:
			return
		case snapshot := <-kw.queue:
			kw.write(snapshot)
		}
	}
}

func (kw *KafkaWriter) write(snapshot models.BrokerSnapshot) {
	log := kw.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"broker_id":   snapshot.BrokerID,
		"snapshot_id": snapshot.ID,
	})

	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.ObserveSnapshot(metrics.ResultError)
		log.WithError(err).Warn("failed to marshal snapshot")
		return
	}
	msg := kafka.Message{
		Key:   []byte(snapshot.BrokerID),
		Value: data,
		Time:  snapshot.FetchedAt,
	}
	if err := kw.writer.WriteMessages(kw.ctx, msg); err != nil {
		metrics.ObserveSnapshot(metrics.ResultError)
		log.WithError(err).Warn("failed to write snapshot")
		return
	}
	metrics.ObserveSnapshot(metrics.ResultOK)
	logger.IncrementSnapshotPublished()
	log.WithFields(logger.Fields{"records": len(snapshot.Stats)}).Debug("snapshot written to kafka")
}

func (kw *KafkaWriter) Stop() {
	kw.mu.Lock()
	if !kw.running {
		kw.mu.Unlock()
		return
	}
	kw.running = false
	kw.mu.Unlock()

	kw.log.WithComponent("snapshot_writer").Debug("stopping kafka writer")
	close(kw.done)
	kw.wg.Wait()
	if err := kw.writer.Close(); err != nil {
		kw.log.WithComponent("snapshot_writer").WithError(err).Warn("failed to close kafka writer")
	}
	kw.log.WithComponent("snapshot_writer").Debug("kafka writer stopped")
}
