package manager

import (
	"context"
	"errors"
	"strings"

	"trade-gateway/internal/logger"
	"trade-gateway/internal/pool"
)

// OnDisconnect is the single entry point for every disconnect signal, from
// any market-data socket or from the trade session. Concurrent signals
// collapse into exactly one recovery pass: the first caller holds recoverMu
// while it recovers, and by the time a queued caller gets the lock the
// connected flag is true again.
func (m *Manager) OnDisconnect(code int, message string) {
	if m.terminated.Load() {
		return
	}

	ctx := context.Background()
	logger.Warn(ctx, "Market data disconnected", "code", code, "message", message)

	m.connected.Store(false)

	m.recoverMu.Lock()
	defer m.recoverMu.Unlock()
	m.recover(ctx)
}

// recover runs under recoverMu.
func (m *Manager) recover(ctx context.Context) {
	if m.connected.Load() {
		logger.Debug(ctx, "Market data already reconnected, ignoring signal")
		return
	}
	if m.reloginInProgress {
		logger.Debug(ctx, "Re-login already in flight, ignoring signal")
		return
	}
	if !m.session.Alive() {
		logger.Debug(ctx, "Session is dead, recovery abandoned")
		return
	}

	logger.Recovery(ctx, "start")

	// The pool rebuild must run whatever the probe finds; a probe error
	// alone never cancels market-data recovery.
	defer m.rebuildMarketData(ctx)

	if !m.session.IsLoggedIn() {
		return
	}

	acct, ok := m.session.ActiveAccount()
	if !ok {
		return
	}

	// Lightweight read-only call to find out whether the trade session
	// itself went down with the socket.
	_, err := m.gw.GetQuote(ctx, acct, m.cfg.ProbeSymbol)
	if err == nil {
		logger.Debug(ctx, "Trade session probe healthy")
		return
	}

	if sessionLost(err) {
		logger.Recovery(ctx, "relogin", "probe_error", err.Error())
		m.reloginInProgress = true
		m.session.ReLogin(ctx)
		m.reloginInProgress = false
	} else {
		logger.Warn(ctx, "Trade session probe failed", "error", err)
	}
}

// rebuildMarketData restores the socket pool and replays every previously
// tracked subscription. The registry snapshot is taken before clearing so
// the replay set can never be partially stale.
func (m *Manager) rebuildMarketData(ctx context.Context) {
	if !m.session.Alive() {
		return
	}

	previous := m.registry.Symbols()
	m.registry.Clear()

	if err := m.pool.Rebuild(ctx, previous, m.registry.Subscribe); err != nil {
		logger.ErrorWithErr(ctx, "Market data rebuild failed", err)
		if errors.Is(err, pool.ErrPoolUnavailable) {
			m.session.MarkDead("market data pool unavailable")
		}
		return
	}

	m.connected.Store(true)
	logger.Recovery(ctx, "complete", "resubscribed", len(previous))
}

// sessionLost classifies a probe failure as a dead trade session.
func sessionLost(err error) bool {
	return strings.Contains(err.Error(), "Login Error") ||
		strings.Contains(strings.ToLower(err.Error()), "not logged in")
}
