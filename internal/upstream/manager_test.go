package upstream

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poyuchen/tickbridge/internal/model"
)

// fakeAPI is a scriptable SDK handle. Confirmation events are fired through
// the registered handlers, from a separate goroutine, the way the real SDK
// delivers them.
type fakeAPI struct {
	handlers Handlers

	loginErr      error
	loginGate     chan struct{} // if set, Login blocks until closed
	contractAfter int           // Contract calls that report not-ready first
	subscribeErr  error
	autoConfirm   bool // fire event 16 after subscribe/unsubscribe

	mu               sync.Mutex
	contractCalls    int
	subscribeCalls   int
	unsubscribeCalls int
	logoutCalls      int
}

func (f *fakeAPI) Login(apiKey, secretKey string) error {
	if f.loginGate != nil {
		<-f.loginGate
	}
	return f.loginErr
}

func (f *fakeAPI) Contract(path string) (Contract, bool) {
	f.mu.Lock()
	f.contractCalls++
	calls := f.contractCalls
	f.mu.Unlock()
	if calls <= f.contractAfter {
		return Contract{}, false
	}
	return Contract{Path: path, Code: "TXFR1"}, true
}

func (f *fakeAPI) Subscribe(Contract) error {
	f.mu.Lock()
	f.subscribeCalls++
	f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	if f.autoConfirm {
		go f.handlers.OnEvent(200, EventSubscriptionChanged, "subscribe ok", "quote event")
	}
	return nil
}

func (f *fakeAPI) Unsubscribe(Contract) error {
	f.mu.Lock()
	f.unsubscribeCalls++
	f.mu.Unlock()
	if f.autoConfirm {
		go f.handlers.OnEvent(200, EventSubscriptionChanged, "unsubscribe ok", "quote event")
	}
	return nil
}

func (f *fakeAPI) Logout() error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) counts() (subscribe, unsubscribe, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCalls, f.unsubscribeCalls, f.logoutCalls
}

// fakeFactory hands out fakeAPI instances and remembers them.
type fakeFactory struct {
	mu      sync.Mutex
	next    func() *fakeAPI
	handles []*fakeAPI
}

func (ff *fakeFactory) create(h Handlers) API {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	api := ff.next()
	api.handlers = h
	ff.handles = append(ff.handles, api)
	return api
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.handles)
}

func testConfig() Config {
	return Config{
		APIKey:             "k",
		SecretKey:          "s",
		ContractPath:       "Futures/TXF/TXFR1",
		ContractFetchTries: 3,
		ContractFetchWait:  time.Millisecond,
		ConfirmWait:        200 * time.Millisecond,
		ConfirmPoll:        time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectAndSubscribe(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	var confirmed atomic.Int32

	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, func() { confirmed.Add(1) }, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}

	waitFor(t, "subscription confirmation", m.Subscribed)
	if got := confirmed.Load(); got != 1 {
		t.Errorf("onSubscribed fired %d times, want 1", got)
	}
}

// Two consecutive connects with no disconnect yield exactly one live
// subscription and one SDK handle.
func TestConnectAndSubscribeIdempotent(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("first ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("second ConnectAndSubscribe failed: %v", err)
	}

	if got := ff.count(); got != 1 {
		t.Errorf("SDK handles created = %d, want 1", got)
	}
	sub, _, _ := ff.handles[0].counts()
	if sub != 1 {
		t.Errorf("subscribe requests = %d, want 1", sub)
	}
}

func TestConnectLoginFailure(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{loginErr: errors.New("bad credentials")} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	err := m.ConnectAndSubscribe()
	if !errors.Is(err, ErrLoginOrFetch) {
		t.Fatalf("error = %v, want ErrLoginOrFetch", err)
	}
	if m.Subscribed() {
		t.Error("Subscribed() = true after failed login")
	}
}

func TestConnectContractNeverReady(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{contractAfter: 100} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	err := m.ConnectAndSubscribe()
	if !errors.Is(err, ErrLoginOrFetch) {
		t.Fatalf("error = %v, want ErrLoginOrFetch", err)
	}

	ff.handles[0].mu.Lock()
	calls := ff.handles[0].contractCalls
	ff.handles[0].mu.Unlock()
	if calls != 3 {
		t.Errorf("contract fetch attempts = %d, want 3", calls)
	}
}

func TestConnectContractReadyAfterRetries(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{contractAfter: 2, autoConfirm: true} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)
}

func TestUnsubscribe(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	m.Unsubscribe()

	if m.Subscribed() {
		t.Error("Subscribed() = true after confirmed unsubscribe")
	}
	_, unsub, logout := ff.handles[0].counts()
	if unsub != 1 {
		t.Errorf("unsubscribe requests = %d, want 1", unsub)
	}
	if logout != 1 {
		t.Errorf("logout calls = %d, want 1 (handle must be released)", logout)
	}
}

// Without a confirmation event the unsubscribe wait times out but the handle
// is still released.
func TestUnsubscribeConfirmationTimeout(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	cfg := testConfig()
	cfg.ConfirmWait = 10 * time.Millisecond
	m := NewManager(cfg, ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	// Stop confirming before the unsubscribe request goes out.
	ff.handles[0].autoConfirm = false

	m.Unsubscribe()

	_, _, logout := ff.handles[0].counts()
	if logout != 1 {
		t.Errorf("logout calls = %d, want 1 despite missing confirmation", logout)
	}
}

func TestUnsubscribeNoopWhenNotSubscribed(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	m.Unsubscribe()

	if got := ff.count(); got != 0 {
		t.Errorf("SDK handles created = %d, want 0", got)
	}
}

// A reconnect arriving while another is in flight must return immediately
// without creating a second handle.
func TestReconnectMutualExclusion(t *testing.T) {
	gate := make(chan struct{})
	first := true
	ff := &fakeFactory{}
	ff.next = func() *fakeAPI {
		api := &fakeAPI{autoConfirm: true}
		if first {
			api.loginGate = gate
			first = false
		}
		return api
	}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	done := make(chan struct{})
	go func() {
		m.Reconnect("tick timeout")
		close(done)
	}()

	waitFor(t, "first reconnect to reach login", func() bool { return ff.count() == 1 })

	// Re-entrant call while the first holds the guard: returns silently.
	m.Reconnect("session down: duplicate")
	if got := ff.count(); got != 1 {
		t.Errorf("SDK handles created = %d, want 1 while reconnect in flight", got)
	}

	close(gate)
	<-done
	waitFor(t, "subscription after reconnect", m.Subscribed)
}

func TestSessionDownTriggersReconnect(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	ff.handles[0].handlers.OnSessionDown("socket closed")

	waitFor(t, "fresh handle after session down", func() bool { return ff.count() == 2 })
	waitFor(t, "resubscription", m.Subscribed)

	_, _, logout := ff.handles[0].counts()
	if logout != 1 {
		t.Errorf("old handle logout calls = %d, want 1", logout)
	}
}

// Event code 16 with nothing pending is ignored.
func TestEventIgnoredWithoutPendingOp(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	m := NewManager(testConfig(), ff.create, func(model.Tick) {}, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	ff.handles[0].handlers.OnEvent(200, EventSubscriptionChanged, "stray", "quote event")

	if !m.Subscribed() {
		t.Error("stray confirmation event changed the subscribed state")
	}
}

func TestTicksForwarded(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAPI { return &fakeAPI{autoConfirm: true} }}
	var got atomic.Int32
	m := NewManager(testConfig(), ff.create, func(model.Tick) { got.Add(1) }, nil, nil)

	if err := m.ConnectAndSubscribe(); err != nil {
		t.Fatalf("ConnectAndSubscribe failed: %v", err)
	}
	waitFor(t, "subscription confirmation", m.Subscribed)

	for i := 0; i < 5; i++ {
		ff.handles[0].handlers.OnTick(model.Tick{Code: "TXFR1"})
	}
	if got.Load() != 5 {
		t.Errorf("ticks forwarded = %d, want 5", got.Load())
	}
}
