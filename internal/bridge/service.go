package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poyuchen/tickbridge/internal/model"
	"github.com/poyuchen/tickbridge/internal/schedule"
)

// Session is the upstream session manager as the supervisor sees it.
type Session interface {
	Subscribed() bool
	ConnectAndSubscribe() error
	Unsubscribe()
	Reconnect(reason string)
	Logout()
}

// TickSink is the downstream producer as the supervisor sees it.
type TickSink interface {
	Produce(value []byte) error
	ServiceTick()
	Flush(ctx context.Context) error
}

// Probe is the holiday-vs-outage discriminator.
type Probe interface {
	HasOpeningMessages(ctx context.Context, now time.Time) bool
}

// Config tunes the supervisor.
type Config struct {
	MonitorInterval   time.Duration // default 10s
	Timeout           time.Duration // default 300s, critical tick silence
	MaxTimeoutRetries int           // default 3

	DrainWait time.Duration // default 2s, post-unsubscribe SDK drain
	FlushWait time.Duration // default 15s, producer flush bound
}

func (c *Config) applyDefaults() {
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 10 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 300 * time.Second
	}
	if c.MaxTimeoutRetries == 0 {
		c.MaxTimeoutRetries = 3
	}
	if c.DrainWait == 0 {
		c.DrainWait = 2 * time.Second
	}
	if c.FlushWait == 0 {
		c.FlushWait = 15 * time.Second
	}
}

// Each slow-tick warning level raises the bar by one minute, preventing
// warning floods during a long stall.
const warnStep = time.Minute

// Service is the supervisor. It exclusively owns the monitoring state;
// HandleTick and HandleSubscriptionConfirmed are the only entry points
// touched by SDK goroutines, and they write nothing but the atomic
// last-tick cell.
type Service struct {
	cfg    Config
	hours  schedule.Hours
	sink   TickSink
	probe  Probe
	logger *slog.Logger

	session Session

	clock func() time.Time // test seam

	// lastTick holds the UnixNano of the most recent tick delivery,
	// subscription confirmation, or trading resumption. Writers race
	// (tick goroutine, event goroutine, supervisor); the CAS loop keeps
	// it monotonic non-decreasing.
	lastTick atomic.Int64

	// mu guards the monitoring state below for the health snapshot; the
	// supervisor goroutine is the only writer.
	mu             sync.Mutex
	holiday        schedule.Date
	timeoutRetries int
	slowWarnLevel  int
	wasTrading     bool
}

// New creates the supervisor. Call SetSession before Run.
func New(cfg Config, hours schedule.Hours, sink TickSink, probe Probe, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Service{
		cfg:    cfg,
		hours:  hours,
		sink:   sink,
		probe:  probe,
		logger: logger,
		clock:  time.Now,
	}
}

// SetSession attaches the upstream session manager. Separate from New
// because the manager's callbacks point back at this service.
func (s *Service) SetSession(session Session) {
	s.session = session
}

// HandleTick is the fast path, invoked from the SDK's callback goroutine.
// Serialize, enqueue, stamp the clock. Any failure drops the tick: losing
// one is preferable to blocking the callback goroutine.
func (s *Service) HandleTick(tick model.Tick) {
	value, err := tick.MarshalWire()
	if err != nil {
		s.logger.Error("tick serialization failed, dropping", "error", err)
		return
	}
	if err := s.sink.Produce(value); err != nil {
		s.logger.Error("tick produce failed, dropping", "error", err)
		return
	}
	s.markTick()
}

// HandleSubscriptionConfirmed resets the tick clock so a fresh subscription
// is not immediately flagged as timed out.
func (s *Service) HandleSubscriptionConfirmed() {
	s.logger.Debug("subscription confirmed, resetting tick timer")
	s.markTick()
}

// markTick advances the last-tick cell, never moving it backwards.
func (s *Service) markTick() {
	now := s.clock().UnixNano()
	for {
		cur := s.lastTick.Load()
		if now <= cur {
			return
		}
		if s.lastTick.CompareAndSwap(cur, now) {
			return
		}
	}
}

// Run executes the monitoring loop until ctx is cancelled. One iteration
// per monitor interval; cancellation wakes the wait and exits.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("bridge service started, initializing session")

	now := s.clock()
	trading := s.hours.IsTradingTime(now, s.holidayDate())
	s.logStatus(trading)
	s.mu.Lock()
	s.wasTrading = trading
	s.mu.Unlock()

	s.markTick()

	if trading {
		if err := s.session.ConnectAndSubscribe(); err != nil {
			s.logger.Error("initial startup failed, monitor will attempt to recover", "error", err)
		}
	}

	s.logger.Info("monitoring loop started", "interval", s.cfg.MonitorInterval)
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitoring loop stopped")
			return
		case <-ticker.C:
			s.iterate(ctx)
		}
	}
}

// iterate is one pass of the supervisor, in strict order: service the
// producer, read the clock, handle the trading-state transition, then
// either tear down (market closed) or ensure the subscription and check
// tick health.
func (s *Service) iterate(ctx context.Context) {
	s.sink.ServiceTick()

	now := s.clock()
	trading := s.hours.IsTradingTime(now, s.holidayDate())

	s.mu.Lock()
	changed := trading != s.wasTrading
	s.wasTrading = trading
	s.mu.Unlock()
	if changed {
		s.logStatus(trading)
	}

	if !trading {
		if s.session.Subscribed() {
			s.logger.Info("market is closed, unsubscribing from ticks")
			s.session.Unsubscribe()
		}
		// Clean slate for the next session.
		s.mu.Lock()
		s.timeoutRetries = 0
		s.slowWarnLevel = 0
		s.mu.Unlock()
		return
	}

	// Back inside trading hours: any recorded holiday is over.
	s.setHoliday(schedule.Date{})

	if !s.session.Subscribed() {
		s.logger.Debug("not subscribed during trading hours, connecting")
		if err := s.session.ConnectAndSubscribe(); err != nil {
			s.logger.Error("connect failed during monitor cycle, will retry", "error", err)
		}
		return
	}

	s.checkTickHealth(ctx, now)
}

// checkTickHealth runs the silence escalation ladder: critical timeout with
// reconnects and the holiday probe, slow-tick warnings, recovery.
func (s *Service) checkTickHealth(ctx context.Context, now time.Time) {
	silence := now.Sub(time.Unix(0, s.lastTick.Load()))
	threshold := s.hours.SlowTickThreshold(now)

	s.mu.Lock()
	retries := s.timeoutRetries
	level := s.slowWarnLevel
	s.mu.Unlock()

	switch {
	case silence > s.cfg.Timeout:
		retries++
		s.mu.Lock()
		s.slowWarnLevel = 0
		s.timeoutRetries = retries
		s.mu.Unlock()

		if retries > s.cfg.MaxTimeoutRetries {
			s.logger.Error("max tick-timeout retries exceeded, checking downstream log",
				"silence", silence.Round(time.Second),
				"retries", retries,
			)
			if !s.probe.HasOpeningMessages(ctx, now) {
				s.logger.Info("no session messages downstream, holiday suspected, entering sleep mode",
					"holiday", schedule.DateOf(now.In(s.hours.Location)),
				)
				s.setHoliday(schedule.DateOf(now.In(s.hours.Location)))
				s.session.Unsubscribe()
				s.mu.Lock()
				s.timeoutRetries = 0
				s.mu.Unlock()
				return
			}
			s.logger.Info("downstream log shows session messages, connection fault confirmed")
		} else {
			s.logger.Error("no new tick, reattempting connection",
				"silence", silence.Round(time.Second),
				"attempt", retries,
				"max", s.cfg.MaxTimeoutRetries,
			)
		}

		s.logger.Error("connection issue suspected, forcing reconnection")
		s.session.Reconnect("tick timeout")

	case silence > threshold+time.Duration(level)*warnStep:
		s.logger.Warn("slow tick flow",
			"silence", silence.Round(time.Second),
			"level", level+1,
		)
		s.mu.Lock()
		s.slowWarnLevel = level + 1
		s.mu.Unlock()

	case silence < threshold && level > 0:
		s.logger.Info("tick flow recovered", "silence", silence.Round(time.Second))
		s.mu.Lock()
		s.slowWarnLevel = 0
		s.mu.Unlock()
	}
}

// Stop drains and releases everything, in order: unsubscribe, wait for
// in-flight SDK events, log out, flush the producer. A flush overrunning
// its bound is logged, not fatal.
func (s *Service) Stop() {
	s.logger.Info("preparing to shut down bridge service")

	s.session.Unsubscribe()
	time.Sleep(s.cfg.DrainWait)
	s.session.Logout()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushWait)
	defer cancel()
	s.logger.Info("flushing producer")
	if err := s.sink.Flush(ctx); err != nil {
		s.logger.Error("producer flush did not complete", "error", err)
	} else {
		s.logger.Info("producer flushed")
	}

	s.logger.Info("bridge service stopped")
}

func (s *Service) holidayDate() schedule.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holiday
}

func (s *Service) setHoliday(d schedule.Date) {
	s.mu.Lock()
	s.holiday = d
	s.mu.Unlock()
}

func (s *Service) logStatus(trading bool) {
	s.logger.Info("market status", "open", trading)
}
