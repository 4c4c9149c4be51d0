package upstream

import (
	"errors"
	"time"

	"github.com/poyuchen/tickbridge/internal/model"
)

// EventSubscriptionChanged is the quote-event code the SDK emits when a
// subscribe or unsubscribe request has taken effect.
const EventSubscriptionChanged = 16

// ErrLoginOrFetch marks a failed login or an instrument missing from the
// contract catalogue. The supervisor retries on its next iteration.
var ErrLoginOrFetch = errors.New("upstream login or contract fetch failed")

// Contract identifies the subscribed instrument inside the SDK catalogue.
type Contract struct {
	Path string // catalogue path, e.g. "Futures/TXF/TXFR1"
	Code string // instrument code, e.g. "TXFR1"
}

// Handlers is the capability set an SDK handle calls back into. The SDK
// invokes these from its own goroutines.
type Handlers struct {
	OnTick        func(model.Tick)
	OnEvent       func(respCode, eventCode int, info, event string)
	OnSessionDown func(reason string)
}

// API is the vendor SDK session handle. Every method may be called from the
// manager's goroutine; callbacks arrive on SDK goroutines.
type API interface {
	Login(apiKey, secretKey string) error

	// Contract resolves a catalogue path. The catalogue is populated
	// asynchronously after login; callers poll until it reports ok.
	Contract(path string) (Contract, bool)

	Subscribe(Contract) error
	Unsubscribe(Contract) error
	Logout() error
}

// Factory creates a fresh SDK handle with the given callbacks registered.
type Factory func(Handlers) API

// Config tunes the session manager.
type Config struct {
	APIKey       string
	SecretKey    string
	ContractPath string

	// Contract catalogue polling after login.
	ContractFetchTries int           // default 10
	ContractFetchWait  time.Duration // default 1s

	// Unsubscribe confirmation wait.
	ConfirmWait time.Duration // default 10s
	ConfirmPoll time.Duration // default 100ms
}

func (c *Config) applyDefaults() {
	if c.ContractFetchTries == 0 {
		c.ContractFetchTries = 10
	}
	if c.ContractFetchWait == 0 {
		c.ContractFetchWait = time.Second
	}
	if c.ConfirmWait == 0 {
		c.ConfirmWait = 10 * time.Second
	}
	if c.ConfirmPoll == 0 {
		c.ConfirmPoll = 100 * time.Millisecond
	}
}

type pendingOp int

const (
	opNone pendingOp = iota
	opSubscribe
	opUnsubscribe
)

func (op pendingOp) String() string {
	switch op {
	case opSubscribe:
		return "subscribe"
	case opUnsubscribe:
		return "unsubscribe"
	default:
		return "none"
	}
}
