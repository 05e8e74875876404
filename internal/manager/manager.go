// Package manager ties the trade session, the market-data pool, the
// subscription registry, and the dedup gate into the surface the strategy
// layer talks to. It owns the reconnection coordinator and the single
// worker that dispatches deduplicated ticks.
package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trade-gateway/internal/dedup"
	"trade-gateway/internal/interfaces"
	"trade-gateway/internal/logger"
	"trade-gateway/internal/pool"
	"trade-gateway/internal/session"
	"trade-gateway/internal/store"
	"trade-gateway/internal/subscription"
	"trade-gateway/internal/types"
)

const terminateJoinTimeout = 5 * time.Second

type Manager struct {
	cfg *store.Config
	gw  interfaces.TradeGateway

	session  *session.Manager
	pool     *pool.Pool
	registry *subscription.Registry
	gate     *dedup.Gate

	// Reconnection state. recoverMu is the only cross-component lock;
	// connected is written outside it so a disconnect signal arriving
	// mid-recovery is observed by the recovery check.
	recoverMu         sync.Mutex
	connected         atomic.Bool
	reloginInProgress bool

	handlerMu  sync.RWMutex
	msgHandler func(data types.TickData)

	queueMu     sync.RWMutex
	queue       chan types.FeedMessage
	queueClosed bool
	workerDone  chan struct{}

	terminated atomic.Bool
}

var _ interfaces.GatewayManager = (*Manager)(nil)

func New(cfg *store.Config, gw interfaces.TradeGateway) *Manager {
	m := &Manager{
		cfg:        cfg,
		gw:         gw,
		gate:       dedup.NewGate(),
		queue:      make(chan types.FeedMessage, cfg.Dispatch.QueueSize),
		workerDone: make(chan struct{}),
	}

	m.session = session.New(gw, session.Config{
		MaxRetry:   cfg.Relogin.MaxRetry,
		RetryDelay: cfg.ReloginDelay(),
	})

	m.pool = pool.New(
		pool.Config{
			Size:             cfg.Pool.Size,
			SlotCapacity:     cfg.Pool.SlotCapacity,
			OpenRetry:        cfg.Pool.OpenRetry,
			OpenStagger:      cfg.OpenStagger(),
			OpenBackoffBase:  cfg.OpenBackoffBase(),
			ResubscribeDelay: cfg.ResubscribeDelay(),
		},
		gw.OpenRealtimeFeed,
		pool.Handlers{
			OnConnect:    func() { logger.Debug(context.Background(), "Market data socket connected") },
			OnDisconnect: m.OnDisconnect,
			OnError: func(err error) {
				logger.Warn(context.Background(), "Market data socket error", "error", err)
			},
			OnMessage: m.handleRawMessage,
		},
	)

	m.registry = subscription.NewRegistry(m.pool)

	gw.SetEventCallback(m.handleTradeEvent)
	gw.SetOrderCallback(func(code, message string) {
		logger.Debug(context.Background(), "Trade order event", "code", code, "message", message)
	})
	gw.SetOrderChangedCallback(func(code, message string) {
		logger.Debug(context.Background(), "Trade order changed event", "code", code, "message", message)
	})
	gw.SetFilledCallback(func(code, message string) {
		logger.Debug(context.Background(), "Trade filled event", "code", code, "message", message)
	})

	go m.runDispatcher()

	return m
}

// Login authenticates the trade session and opens the market-data pool.
// Returns false on any failure; the first login is never retried here.
func (m *Manager) Login(ctx context.Context, creds types.Credentials) bool {
	if m.terminated.Load() {
		logger.Error(ctx, "Manager has been terminated, start a new one")
		return false
	}

	if !m.session.Login(ctx, creds) {
		return false
	}

	if err := m.pool.Open(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to open market data pool", err)
		m.session.MarkDead("market data pool unavailable")
		return false
	}

	m.connected.Store(true)
	return true
}

// Terminate shuts everything down: callbacks are detached, the dispatch
// worker is stopped and joined with a timeout, every socket is closed and
// the session is logged out. Every step runs even if an earlier one fails.
func (m *Manager) Terminate() {
	if !m.terminated.CompareAndSwap(false, true) {
		return
	}

	ctx := context.Background()
	logger.Info(ctx, "Terminating gateway manager")

	m.gw.SetEventCallback(func(code, message string) {})

	m.queueMu.Lock()
	if !m.queueClosed {
		m.queueClosed = true
		close(m.queue)
	}
	m.queueMu.Unlock()

	select {
	case <-m.workerDone:
	case <-time.After(terminateJoinTimeout):
		logger.Warn(ctx, "Dispatch worker did not stop in time")
	}

	m.pool.CloseAll()
	m.registry.Clear()
	m.session.Wipe()

	logger.Info(ctx, "Gateway manager terminated")
}

// Subscribe requests realtime trades for a symbol. Errors are absorbed and
// logged; a dead pool is reopened first.
func (m *Manager) Subscribe(symbol string) {
	ctx := context.Background()
	if m.terminated.Load() {
		logger.Error(ctx, "Manager has been terminated", "symbol", symbol)
		return
	}
	if !m.session.IsLoggedIn() {
		logger.Warn(ctx, "Subscribe requires a logged-in session", "symbol", symbol)
		return
	}

	if !m.pool.IsOpen() {
		if err := m.pool.Open(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Cannot open market data pool for subscribe", err, "symbol", symbol)
			return
		}
		m.connected.Store(true)
	}

	m.registry.Subscribe(symbol)
}

// Unsubscribe sends the unsubscribe request. The registry entry and the
// dedup entry are only dropped once the gateway confirms.
func (m *Manager) Unsubscribe(symbol string) {
	if m.terminated.Load() {
		return
	}
	m.registry.Unsubscribe(symbol)
}

// SetMessageHandler installs the strategy callback that receives
// deduplicated ticks.
func (m *Manager) SetMessageHandler(fn func(data types.TickData)) {
	m.handlerMu.Lock()
	m.msgHandler = fn
	m.handlerMu.Unlock()
}

func (m *Manager) SetOrderHandler(fn func(code, message string)) {
	m.gw.SetOrderCallback(fn)
}

func (m *Manager) SetOrderChangedHandler(fn func(code, message string)) {
	m.gw.SetOrderChangedCallback(fn)
}

func (m *Manager) SetOrderFilledHandler(fn func(code, message string)) {
	m.gw.SetFilledCallback(fn)
}

func (m *Manager) IsLoggedIn() bool {
	return m.session.IsLoggedIn()
}

// IsAlive reports the process-wide liveness flag. False means recovery has
// given up; the owning process should shut down.
func (m *Manager) IsAlive() bool {
	return m.session.Alive()
}

func (m *Manager) ActiveAccount() (types.Account, bool) {
	return m.session.ActiveAccount()
}

func (m *Manager) SetActiveAccount(accountNo string) bool {
	return m.session.SetActiveAccount(accountNo)
}

func (m *Manager) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if m.terminated.Load() {
		return types.OrderResp{}, types.ErrTerminated
	}
	acct, ok := m.session.ActiveAccount()
	if !ok {
		return types.OrderResp{}, types.ErrNotLoggedIn
	}
	return m.gw.PlaceOrder(ctx, acct, req)
}

func (m *Manager) GetOrderResults(ctx context.Context) ([]types.OrderResult, error) {
	if m.terminated.Load() {
		return nil, types.ErrTerminated
	}
	acct, ok := m.session.ActiveAccount()
	if !ok {
		return nil, types.ErrNotLoggedIn
	}
	return m.gw.GetOrderResults(ctx, acct)
}

func (m *Manager) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	if m.terminated.Load() {
		return types.Quote{}, types.ErrTerminated
	}
	acct, ok := m.session.ActiveAccount()
	if !ok {
		return types.Quote{}, types.ErrNotLoggedIn
	}
	return m.gw.GetQuote(ctx, acct, symbol)
}

// SubscribedSymbols returns a snapshot of the tracked symbols.
func (m *Manager) SubscribedSymbols() []string {
	return m.registry.Symbols()
}

// handleTradeEvent reacts to trade-session events from the gateway. The
// vendor signals a lost trade connection with codes 300/301; forcing a
// logout here makes the next liveness probe detect the dead session.
func (m *Manager) handleTradeEvent(code, message string) {
	ctx := context.Background()

	if code == "300" || code == "301" {
		logger.Warn(ctx, "Trade connection lost, forcing logout before recovery", "code", code, "message", message)
		if err := m.gw.Logout(); err != nil {
			logger.Debug(ctx, "Forced logout failed", "error", err)
		}
		return
	}

	logger.Debug(ctx, "Trade session event", "code", code, "message", message)
}
