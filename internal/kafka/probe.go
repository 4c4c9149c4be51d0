package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/poyuchen/tickbridge/internal/schedule"
)

// ProbeConfig tunes the opening-message probe.
type ProbeConfig struct {
	Broker string
	Topic  string

	RequestTimeout time.Duration // default 10s, metadata and offset lookups
}

func (c *ProbeConfig) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// probeClient is the slice of the admin client the probe needs.
// *kadm.Client satisfies it.
type probeClient interface {
	ListTopics(ctx context.Context, topics ...string) (kadm.TopicDetails, error)
	ListOffsetsAfterMilli(ctx context.Context, millis int64, topics ...string) (kadm.ListedOffsets, error)
	Close()
}

// Probe answers the holiday-vs-outage question: does the downstream topic
// hold any message with a broker timestamp at or after the current session's
// open?
type Probe struct {
	cfg    ProbeConfig
	hours  schedule.Hours
	logger *slog.Logger

	dial func() (probeClient, error)
}

// NewProbe creates a probe against the configured broker.
func NewProbe(cfg ProbeConfig, hours schedule.Hours, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	p := &Probe{cfg: cfg, hours: hours, logger: logger}
	p.dial = p.dialBroker
	return p
}

// dialBroker opens a short-lived client under a throwaway group id.
func (p *Probe) dialBroker() (probeClient, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(p.cfg.Broker),
		kgo.ConsumerGroup("tick-probe-"+uuid.NewString()),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	return kadm.NewClient(client), nil
}

// HasOpeningMessages reports whether any partition of the topic holds a
// message timestamped at or after the current session's open.
//
// The bias is deliberate: any failure returns true ("outage, not holiday")
// so the supervisor keeps reconnecting rather than sleeping through a real
// trading day on a cluster blip. Only a healthy broker positively reporting
// an empty session returns false.
func (p *Probe) HasOpeningMessages(ctx context.Context, now time.Time) bool {
	open := p.hours.SessionOpen(now)
	openMilli := open.UnixMilli()

	client, err := p.dial()
	if err != nil {
		p.logger.Error("probe could not reach broker, assuming outage", "error", err)
		return true
	}
	defer client.Close()

	mctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	topics, err := client.ListTopics(mctx, p.cfg.Topic)
	if err != nil {
		p.logger.Error("probe metadata lookup failed, assuming outage", "error", err)
		return true
	}
	if !topics.Has(p.cfg.Topic) {
		p.logger.Warn("topic does not exist, assuming no session messages", "topic", p.cfg.Topic)
		return false
	}

	octx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	offsets, err := client.ListOffsetsAfterMilli(octx, openMilli, p.cfg.Topic)
	if err != nil {
		p.logger.Error("probe offset lookup failed, assuming outage", "error", err)
		return true
	}

	var found, failed bool
	offsets.Each(func(o kadm.ListedOffset) {
		switch {
		case o.Err != nil:
			failed = true
		case o.Offset >= 0:
			found = true
			p.logger.Debug("found session message",
				"partition", o.Partition,
				"offset", o.Offset,
				"session_open", open,
			)
		}
	})

	if found {
		return true
	}
	if failed {
		p.logger.Warn("partition offset lookup failed, assuming outage")
		return true
	}

	p.logger.Debug("no messages found after session open", "session_open", open)
	return false
}
