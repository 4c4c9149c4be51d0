package upstream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poyuchen/tickbridge/internal/model"
)

// Manager owns the SDK handle and its subscription state machine.
type Manager struct {
	cfg     Config
	factory Factory
	logger  *slog.Logger

	onTick       func(model.Tick) // tick fast path, supervisor-provided
	onSubscribed func()           // subscription-confirmed, supervisor-provided

	// mu guards api, contract, subscribed, and pending. It is held only
	// for state mutations, never across SDK calls.
	mu         sync.Mutex
	api        API
	contract   Contract
	subscribed bool
	pending    pendingOp

	// reconnectMu serializes reconnects; acquired with TryLock so a
	// session-down callback arriving mid-reconnect returns immediately
	// instead of deadlocking the SDK goroutine.
	reconnectMu sync.Mutex
}

// NewManager creates a session manager. onTick receives every delivered
// tick; onSubscribed fires when a subscribe request is confirmed.
func NewManager(cfg Config, factory Factory, onTick func(model.Tick), onSubscribed func(), logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Manager{
		cfg:          cfg,
		factory:      factory,
		logger:       logger,
		onTick:       onTick,
		onSubscribed: onSubscribed,
	}
}

// Subscribed reports whether a confirmed tick subscription is live.
func (m *Manager) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

// ConnectAndSubscribe logs in on a fresh handle, waits for the instrument to
// appear in the contract catalogue, and issues a subscribe request. It is
// idempotent while a subscription is live. Failures during login or contract
// fetch return ErrLoginOrFetch; the supervisor retries on its next tick.
func (m *Manager) ConnectAndSubscribe() error {
	m.mu.Lock()
	if m.subscribed {
		m.mu.Unlock()
		m.logger.Info("already subscribed, no action needed")
		return nil
	}
	m.mu.Unlock()

	m.logger.Info("logging in to upstream feed")
	api := m.factory(Handlers{
		OnTick:        m.handleTick,
		OnEvent:       m.handleEvent,
		OnSessionDown: m.handleSessionDown,
	})

	m.mu.Lock()
	m.api = api
	m.contract = Contract{}
	m.mu.Unlock()

	if err := api.Login(m.cfg.APIKey, m.cfg.SecretKey); err != nil {
		return fmt.Errorf("%w: login: %v", ErrLoginOrFetch, err)
	}

	contract, err := m.awaitContract(api)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.contract = contract
	m.mu.Unlock()

	m.logger.Info("login successful, contract ready", "contract", contract.Path)
	m.subscribeTicks()
	return nil
}

// awaitContract polls the catalogue until the instrument shows up.
func (m *Manager) awaitContract(api API) (Contract, error) {
	for i := 1; i <= m.cfg.ContractFetchTries; i++ {
		if c, ok := api.Contract(m.cfg.ContractPath); ok {
			return c, nil
		}
		m.logger.Debug("contract not ready, retrying",
			"contract", m.cfg.ContractPath,
			"attempt", i,
			"max", m.cfg.ContractFetchTries,
		)
		time.Sleep(m.cfg.ContractFetchWait)
	}
	return Contract{}, fmt.Errorf("%w: contract %q not available after %d tries",
		ErrLoginOrFetch, m.cfg.ContractPath, m.cfg.ContractFetchTries)
}

// subscribeTicks issues the subscribe request and marks it pending. A send
// failure is logged and the pending op cleared; the supervisor's health
// check will notice the missing subscription.
func (m *Manager) subscribeTicks() {
	m.mu.Lock()
	api, contract := m.api, m.contract
	m.pending = opSubscribe
	m.mu.Unlock()

	m.logger.Info("sending tick subscription request", "contract", contract.Code)
	if err := api.Subscribe(contract); err != nil {
		m.mu.Lock()
		m.pending = opNone
		m.mu.Unlock()
		m.logger.Error("tick subscription request failed", "error", err)
	}
}

// Unsubscribe tears down a live subscription: it issues the unsubscribe
// request, waits up to ConfirmWait for the confirmation event, and always
// proceeds to Logout so the handle is released.
func (m *Manager) Unsubscribe() {
	m.mu.Lock()
	if !m.subscribed {
		m.mu.Unlock()
		m.logger.Info("not currently subscribed, skipping unsubscription")
		return
	}
	api, contract := m.api, m.contract
	m.pending = opUnsubscribe
	m.mu.Unlock()

	m.logger.Info("sending tick unsubscription request", "contract", contract.Code)
	if err := api.Unsubscribe(contract); err != nil {
		m.mu.Lock()
		m.pending = opNone
		m.mu.Unlock()
		m.logger.Warn("tick unsubscription request failed", "error", err)
	} else if !m.awaitUnsubscribed() {
		m.logger.Warn("unsubscription confirmation timeout, proceeding with caution")
	}

	// The handle is being released either way; the flag must not outlive it.
	m.mu.Lock()
	m.subscribed = false
	m.pending = opNone
	m.mu.Unlock()

	m.Logout()
}

func (m *Manager) awaitUnsubscribed() bool {
	deadline := time.Now().Add(m.cfg.ConfirmWait)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		done := m.pending == opNone && !m.subscribed
		m.mu.Unlock()
		if done {
			return true
		}
		time.Sleep(m.cfg.ConfirmPoll)
	}
	return false
}

// Reconnect rebuilds the session from scratch. Concurrent callers (the
// supervisor and the SDK's session-down callback) are serialized by a
// try-lock: if a reconnect is already running the call returns silently.
func (m *Manager) Reconnect(reason string) {
	if !m.reconnectMu.TryLock() {
		m.logger.Error("reconnection already in progress, skipping", "reason", reason)
		return
	}
	defer m.reconnectMu.Unlock()

	m.logger.Info("starting session reconnection", "reason", reason)

	m.mu.Lock()
	m.subscribed = false
	m.pending = opNone
	m.mu.Unlock()

	m.Logout()

	switch err := m.ConnectAndSubscribe(); {
	case err == nil:
	case errors.Is(err, ErrLoginOrFetch):
		// Swallowed: the supervisor retries on its next iteration.
		m.logger.Debug("session recovery failed, monitor will retry", "error", err)
	default:
		m.logger.Error("unexpected error during reconnect", "error", err)
	}

	m.logger.Debug("reconnection process finished")
}

// Logout releases the SDK handle if present. Best effort; errors are logged.
func (m *Manager) Logout() {
	m.mu.Lock()
	api := m.api
	m.api = nil
	m.mu.Unlock()

	if api == nil {
		return
	}
	if err := api.Logout(); err != nil {
		m.logger.Error("upstream logout failed", "error", err)
		return
	}
	m.logger.Debug("upstream session logged out")
}

// handleTick runs on an SDK goroutine for every delivered tick.
func (m *Manager) handleTick(tick model.Tick) {
	m.onTick(tick)
}

// handleEvent runs on an SDK goroutine for quote lifecycle events. Event
// code 16 confirms whichever subscribe/unsubscribe request is pending.
func (m *Manager) handleEvent(respCode, eventCode int, info, event string) {
	m.logger.Debug("upstream quote event",
		"resp_code", respCode,
		"event_code", eventCode,
		"event", event,
		"info", info,
	)
	if eventCode != EventSubscriptionChanged {
		return
	}

	var confirmed pendingOp
	m.mu.Lock()
	switch m.pending {
	case opSubscribe:
		m.subscribed = true
	case opUnsubscribe:
		m.subscribed = false
	}
	confirmed = m.pending
	m.pending = opNone
	m.mu.Unlock()

	switch confirmed {
	case opSubscribe:
		m.logger.Info("tick subscription confirmed")
		if m.onSubscribed != nil {
			m.onSubscribed()
		}
	case opUnsubscribe:
		m.logger.Info("tick unsubscription confirmed")
	}
}

// handleSessionDown runs on an SDK goroutine when the vendor session drops.
func (m *Manager) handleSessionDown(reason string) {
	m.logger.Error("upstream session down", "reason", reason)
	m.Reconnect("session down: " + reason)
}
