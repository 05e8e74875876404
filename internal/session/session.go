package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"trade-gateway/internal/interfaces"
	"trade-gateway/internal/logger"
	"trade-gateway/internal/types"
)

// State of the authenticated trade session.
type State int

const (
	LoggedOut State = iota
	LoggingIn
	Active
	ReloggingIn
	Dead
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case Active:
		return "active"
	case ReloggingIn:
		return "relogging_in"
	case Dead:
		return "dead"
	}
	return "unknown"
}

type Config struct {
	MaxRetry   int
	RetryDelay time.Duration
}

// Manager owns the authenticated trade session: login, logout, and the
// bounded-retry re-login used during recovery. It also carries the
// process-wide liveness flag; once that flips false, recovery stops.
type Manager struct {
	gw  interfaces.TradeGateway
	cfg Config

	mu        sync.Mutex
	state     State
	alive     bool
	creds     types.Credentials
	haveCreds bool
	accounts  []types.Account
	active    types.Account
	activeSet bool
	activeNo  string
}

func New(gw interfaces.TradeGateway, cfg Config) *Manager {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 20
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Manager{gw: gw, cfg: cfg, state: LoggedOut, alive: true}
}

// Login authenticates against the gateway. It does not retry; the caller
// decides what a failed first login means. Credentials are stored only
// after success, for later re-login.
func (m *Manager) Login(ctx context.Context, creds types.Credentials) bool {
	m.mu.Lock()
	m.creds = types.Credentials{}
	m.haveCreds = false
	m.accounts = nil
	m.active = types.Account{}
	m.activeSet = false
	m.state = LoggingIn
	m.mu.Unlock()

	// Drop any previous session before opening a new one.
	if err := m.gw.Logout(); err != nil {
		logger.Debug(ctx, "Logout before login failed", "error", err)
	}

	logger.Info(ctx, "Logging in to gateway", "id", creds.ID)
	accounts, err := m.gw.Login(ctx, creds)
	if err != nil {
		logger.ErrorWithErr(ctx, "Login failed", err)
		m.mu.Lock()
		m.state = LoggedOut
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	m.state = Active
	m.creds = creds
	m.haveCreds = true
	m.accounts = accounts
	m.mu.Unlock()

	logger.Info(ctx, "Login successful", "accounts", len(accounts))

	if creds.AccountNo != "" {
		m.SetActiveAccount(creds.AccountNo)
	}

	return true
}

// ReLogin re-authenticates with the stored credentials, retrying transient
// and authentication failures up to MaxRetry with a fixed delay. A
// non-transient connection error or an exhausted cap marks the session Dead
// and flips the liveness flag.
func (m *Manager) ReLogin(ctx context.Context) bool {
	m.mu.Lock()
	if !m.haveCreds {
		m.mu.Unlock()
		logger.Error(ctx, "Re-login requested without stored credentials")
		return false
	}
	creds := m.creds
	activeNo := m.activeNo
	m.state = ReloggingIn
	m.mu.Unlock()

	for attempt := 0; attempt <= m.cfg.MaxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				m.markDead(ctx, "context cancelled during re-login")
				return false
			case <-time.After(m.cfg.RetryDelay):
			}
		}

		logger.Recovery(ctx, "relogin_attempt", "attempt", attempt, "max_retry", m.cfg.MaxRetry)

		if err := m.gw.Logout(); err != nil {
			logger.Debug(ctx, "Logout before re-login failed", "error", err)
		}

		accounts, err := m.gw.Login(ctx, creds)
		if err != nil {
			if !retryable(err) {
				logger.ErrorWithErr(ctx, "Fatal connection error during re-login", err)
				m.markDead(ctx, "fatal connection error")
				return false
			}
			logger.Warn(ctx, "Re-login attempt failed, will retry", "attempt", attempt, "error", err)
			continue
		}

		m.mu.Lock()
		m.state = Active
		m.accounts = accounts
		m.mu.Unlock()

		if activeNo != "" {
			m.SetActiveAccount(activeNo)
		}

		logger.Recovery(ctx, "relogin_success", "attempts", attempt+1)
		return true
	}

	logger.Error(ctx, "Re-login retry limit reached, giving up", "max_retry", m.cfg.MaxRetry)
	m.markDead(ctx, "re-login retries exhausted")
	return false
}

// retryable reports whether a login failure is worth another attempt.
// Transient network codes and auth rejections retry; anything else aborts.
func retryable(err error) bool {
	if errors.Is(err, types.ErrTransientNetwork) || errors.Is(err, types.ErrAuthFailed) {
		return true
	}
	return strings.Contains(err.Error(), "11001")
}

// Logout is best-effort: the session state is cleared even when the
// underlying call fails.
func (m *Manager) Logout() {
	if err := m.gw.Logout(); err != nil {
		logger.Debug(context.Background(), "Logout failed", "error", err)
	}

	m.mu.Lock()
	m.state = LoggedOut
	m.accounts = nil
	m.active = types.Account{}
	m.activeSet = false
	m.mu.Unlock()
}

// Wipe logs out and additionally discards the stored credentials. Used on
// terminate only.
func (m *Manager) Wipe() {
	m.Logout()

	m.mu.Lock()
	m.creds = types.Credentials{}
	m.haveCreds = false
	m.activeNo = ""
	m.mu.Unlock()
}

// SetActiveAccount selects the account with the given number from the login
// result. The selection is remembered and re-applied after re-login.
func (m *Manager) SetActiveAccount(accountNo string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Active {
		logger.Warn(context.Background(), "Cannot select account, session not active", "state", m.state.String())
		return false
	}

	for _, acct := range m.accounts {
		if acct.AccountNo == accountNo {
			m.active = acct
			m.activeSet = true
			m.activeNo = accountNo
			return true
		}
	}

	logger.Warn(context.Background(), "Account not found in login result", "account_no", accountNo)
	return false
}

// ActiveAccount returns the selected account, if one is set.
func (m *Manager) ActiveAccount() (types.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.activeSet
}

// Accounts returns the accounts from the last successful login.
func (m *Manager) Accounts() []types.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Account, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// IsLoggedIn reports whether the session is currently authenticated.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Active
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Alive reports the process-wide liveness flag. False means recovery has
// given up and the owning process should shut down.
func (m *Manager) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

// MarkDead flips the liveness flag. Used by the recovery path when the pool
// build is exhausted.
func (m *Manager) MarkDead(reason string) {
	m.markDead(context.Background(), reason)
}

func (m *Manager) markDead(ctx context.Context, reason string) {
	m.mu.Lock()
	m.state = Dead
	m.alive = false
	m.mu.Unlock()

	logger.Error(ctx, "Session marked dead", "reason", reason)
}
