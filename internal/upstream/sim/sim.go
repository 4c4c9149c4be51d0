// Package sim provides a simulated vendor SDK handle for development and
// end-to-end testing. It mimics the real session lifecycle: login populates
// the contract catalogue after a short delay, subscribe is confirmed through
// the quote-event callback, and a subscribed handle emits random-walk ticks
// until unsubscribed or logged out.
package sim

import (
	"errors"
	"math"
	"math/rand"
	"path"
	"sync"
	"time"

	"github.com/poyuchen/tickbridge/internal/model"
	"github.com/poyuchen/tickbridge/internal/upstream"
)

// Config tunes the simulated feed.
type Config struct {
	BasePrice    float64       // starting price, default 22000
	TickInterval time.Duration // default 1s
	CatalogDelay time.Duration // login-to-catalogue latency, default 0
	Location     *time.Location
}

func (c *Config) applyDefaults() {
	if c.BasePrice == 0 {
		c.BasePrice = 22000
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// NewFactory returns an upstream.Factory producing simulated handles.
func NewFactory(cfg Config) upstream.Factory {
	cfg.applyDefaults()
	return func(h upstream.Handlers) upstream.API {
		return &handle{
			cfg:      cfg,
			handlers: h,
			rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
			price:    cfg.BasePrice,
			open:     cfg.BasePrice,
			high:     cfg.BasePrice,
			low:      cfg.BasePrice,
		}
	}
}

type handle struct {
	cfg      Config
	handlers upstream.Handlers
	rng      *rand.Rand

	mu          sync.Mutex
	loggedInAt  time.Time
	subscribed  bool
	stop        chan struct{}
	wg          sync.WaitGroup
	price       float64
	open        float64
	high        float64
	low         float64
	totalVolume int64
	totalAmount float64
}

func (h *handle) Login(apiKey, secretKey string) error {
	if apiKey == "" || secretKey == "" {
		return errors.New("sim: empty credentials")
	}
	h.mu.Lock()
	h.loggedInAt = time.Now()
	h.mu.Unlock()
	return nil
}

func (h *handle) Contract(p string) (upstream.Contract, bool) {
	h.mu.Lock()
	at := h.loggedInAt
	h.mu.Unlock()
	if at.IsZero() || time.Since(at) < h.cfg.CatalogDelay {
		return upstream.Contract{}, false
	}
	return upstream.Contract{Path: p, Code: path.Base(p)}, true
}

func (h *handle) Subscribe(c upstream.Contract) error {
	h.mu.Lock()
	if h.subscribed {
		h.mu.Unlock()
		return nil
	}
	h.subscribed = true
	h.stop = make(chan struct{})
	stop := h.stop
	h.mu.Unlock()

	go h.handlers.OnEvent(200, upstream.EventSubscriptionChanged, "subscribe ok: "+c.Code, "quote event")

	h.wg.Add(1)
	go h.emit(c, stop)
	return nil
}

func (h *handle) Unsubscribe(c upstream.Contract) error {
	h.mu.Lock()
	if !h.subscribed {
		h.mu.Unlock()
		return nil
	}
	h.subscribed = false
	close(h.stop)
	h.mu.Unlock()

	go h.handlers.OnEvent(200, upstream.EventSubscriptionChanged, "unsubscribe ok: "+c.Code, "quote event")
	return nil
}

func (h *handle) Logout() error {
	h.mu.Lock()
	if h.subscribed {
		h.subscribed = false
		close(h.stop)
	}
	h.mu.Unlock()
	h.wg.Wait()
	return nil
}

// emit produces one random-walk tick per interval until stopped.
func (h *handle) emit(c upstream.Contract, stop chan struct{}) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.handlers.OnTick(h.nextTick(c))
		}
	}
}

func (h *handle) nextTick(c upstream.Contract) model.Tick {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.price
	h.price = math.Round(h.price + h.rng.NormFloat64()*5)
	h.high = math.Max(h.high, h.price)
	h.low = math.Min(h.low, h.price)

	volume := int64(h.rng.Intn(10) + 1)
	h.totalVolume += volume
	amount := h.price * float64(volume)
	h.totalAmount += amount

	side := 1
	if h.price < prev {
		side = 2
	}

	return model.Tick{
		Code:            c.Code,
		DateTime:        time.Now().In(h.cfg.Location),
		Open:            h.open,
		UnderlyingPrice: h.price + h.rng.Float64()*10 - 5,
		AvgPrice:        h.totalAmount / float64(h.totalVolume),
		Close:           h.price,
		High:            h.high,
		Low:             h.low,
		Amount:          amount,
		TotalAmount:     h.totalAmount,
		TickType:        side,
		PriceChg:        h.price - h.open,
		PctChg:          (h.price - h.open) / h.open * 100,
		Simtrade:        true,
		Volume:          volume,
		TotalVolume:     h.totalVolume,
	}
}
