package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrProducerInit marks a producer that could not be built. Fatal at
// startup.
var ErrProducerInit = errors.New("kafka producer initialization failed")

// WriterConfig tunes the tick producer. The defaults absorb the ~09:00 open
// burst; leader acks trade durability for latency, acceptable because the
// upstream feed is itself authoritative.
type WriterConfig struct {
	Broker string
	Topic  string

	Linger           time.Duration // default 100ms
	BatchMaxBytes    int32         // default 256 KiB
	MaxBufferedBytes int           // default 128 MiB
}

func (c *WriterConfig) applyDefaults() {
	if c.Linger == 0 {
		c.Linger = 100 * time.Millisecond
	}
	if c.BatchMaxBytes == 0 {
		c.BatchMaxBytes = 262144
	}
	if c.MaxBufferedBytes == 0 {
		c.MaxBufferedBytes = 128 << 20
	}
}

// Writer publishes tick messages to the downstream topic. Safe for
// concurrent use by the SDK callback goroutine and the supervisor.
type Writer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger

	// Async delivery failures since the last ServiceTick.
	deliveryFailures atomic.Int64
}

// NewWriter builds the producer client. Failures are ErrProducerInit.
func NewWriter(cfg WriterConfig, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Broker),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(cfg.Linger),
		kgo.ProducerBatchMaxBytes(cfg.BatchMaxBytes),
		kgo.MaxBufferedBytes(cfg.MaxBufferedBytes),
		// Leader acks require idempotence off.
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.DisableIdempotentWrite(),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProducerInit, err)
	}

	logger.Info("kafka producer initialized", "broker", cfg.Broker, "topic", cfg.Topic)
	return &Writer{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Produce enqueues one tick message. It never blocks: when the producer
// buffer is full the record is dropped and counted, which the supervisor
// reports on its next iteration. No key, no headers.
func (w *Writer) Produce(value []byte) error {
	w.client.TryProduce(context.Background(), &kgo.Record{Topic: w.topic, Value: value},
		func(_ *kgo.Record, err error) {
			if err != nil {
				w.deliveryFailures.Add(1)
			}
		})
	return nil
}

// ServiceTick reports delivery failures accumulated since the previous
// call. The supervisor invokes it once per monitor iteration.
func (w *Writer) ServiceTick() {
	if n := w.deliveryFailures.Swap(0); n > 0 {
		w.logger.Warn("tick deliveries failed since last check", "count", n)
	}
}

// Buffered returns the number of records not yet delivered.
func (w *Writer) Buffered() int64 {
	return w.client.BufferedProduceRecords()
}

// Flush drains buffered records, bounded by ctx.
func (w *Writer) Flush(ctx context.Context) error {
	return w.client.Flush(ctx)
}

// Close releases the client. Call Flush first on an orderly shutdown.
func (w *Writer) Close() {
	w.client.Close()
}
