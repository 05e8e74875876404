package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trade-gateway/internal/interfaces"
	"trade-gateway/internal/types"
)

type fakeGateway struct {
	mu          sync.Mutex
	loginCalls  int
	logoutCalls int
	loginErrs   []error // consumed per call; nil entry = success
	accounts    []types.Account
}

func (f *fakeGateway) Login(ctx context.Context, c types.Credentials) ([]types.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.accounts, nil
}

func (f *fakeGateway) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}

func (f *fakeGateway) SetEventCallback(fn func(code, message string))        {}
func (f *fakeGateway) SetOrderCallback(fn func(code, message string))        {}
func (f *fakeGateway) SetOrderChangedCallback(fn func(code, message string)) {}
func (f *fakeGateway) SetFilledCallback(fn func(code, message string))       {}

func (f *fakeGateway) OpenRealtimeFeed() (interfaces.MarketSocket, error) {
	return nil, errors.New("no feed in session tests")
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, a types.Account, r types.OrderReq) (types.OrderResp, error) {
	return types.OrderResp{}, nil
}

func (f *fakeGateway) GetOrderResults(ctx context.Context, a types.Account) ([]types.OrderResult, error) {
	return nil, nil
}

func (f *fakeGateway) GetQuote(ctx context.Context, a types.Account, s string) (types.Quote, error) {
	return types.Quote{}, nil
}

func (f *fakeGateway) logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func testManager(gw *fakeGateway, maxRetry int) *Manager {
	return New(gw, Config{MaxRetry: maxRetry, RetryDelay: time.Millisecond})
}

func creds() types.Credentials {
	return types.Credentials{ID: "user", Password: "pw", AccountNo: "12345"}
}

func TestLoginSuccess(t *testing.T) {
	gw := &fakeGateway{accounts: []types.Account{{AccountNo: "12345"}}}
	m := testManager(gw, 3)

	if !m.Login(context.Background(), creds()) {
		t.Fatal("Expected login to succeed")
	}
	if !m.IsLoggedIn() {
		t.Error("Expected session to be active")
	}
	if m.State() != Active {
		t.Errorf("Expected state Active, got %s", m.State())
	}

	acct, ok := m.ActiveAccount()
	if !ok || acct.AccountNo != "12345" {
		t.Errorf("Expected active account 12345, got %+v (ok=%v)", acct, ok)
	}
}

func TestLoginFailureDoesNotRetry(t *testing.T) {
	gw := &fakeGateway{loginErrs: []error{types.ErrAuthFailed}}
	m := testManager(gw, 3)

	if m.Login(context.Background(), creds()) {
		t.Fatal("Expected login to fail")
	}
	if gw.logins() != 1 {
		t.Errorf("Expected exactly 1 login attempt, got %d", gw.logins())
	}
	if m.IsLoggedIn() {
		t.Error("Expected session logged out after failure")
	}
	if !m.Alive() {
		t.Error("A failed first login must not kill liveness")
	}
}

func TestReLoginRetriesTransientErrors(t *testing.T) {
	gw := &fakeGateway{
		accounts: []types.Account{{AccountNo: "12345"}},
		loginErrs: []error{
			nil, // initial login
			types.ErrTransientNetwork,
			types.ErrTransientNetwork,
			nil, // third re-login attempt succeeds
		},
	}
	m := testManager(gw, 5)
	if !m.Login(context.Background(), creds()) {
		t.Fatal("Initial login failed")
	}

	if !m.ReLogin(context.Background()) {
		t.Fatal("Expected re-login to eventually succeed")
	}
	if m.State() != Active {
		t.Errorf("Expected state Active, got %s", m.State())
	}

	// Active account selection must be re-applied after re-login.
	acct, ok := m.ActiveAccount()
	if !ok || acct.AccountNo != "12345" {
		t.Errorf("Expected active account restored, got %+v (ok=%v)", acct, ok)
	}
}

func TestReLoginRetriesVendorTransientCode(t *testing.T) {
	gw := &fakeGateway{
		accounts: []types.Account{{AccountNo: "12345"}},
		loginErrs: []error{
			nil,
			fmt.Errorf("connect failed with code 11001"),
			nil,
		},
	}
	m := testManager(gw, 5)
	m.Login(context.Background(), creds())

	if !m.ReLogin(context.Background()) {
		t.Fatal("Expected vendor transient code to be retried")
	}
}

func TestReLoginFatalErrorAbortsImmediately(t *testing.T) {
	gw := &fakeGateway{
		accounts: []types.Account{{AccountNo: "12345"}},
		loginErrs: []error{
			nil,
			errors.New("certificate revoked"),
		},
	}
	m := testManager(gw, 5)
	m.Login(context.Background(), creds())

	if m.ReLogin(context.Background()) {
		t.Fatal("Expected re-login to fail")
	}
	if gw.logins() != 2 {
		t.Errorf("Expected no retries after fatal error, got %d logins", gw.logins())
	}
	if m.Alive() {
		t.Error("Expected liveness flag down after fatal error")
	}
	if m.State() != Dead {
		t.Errorf("Expected state Dead, got %s", m.State())
	}
}

func TestReLoginStopsAtMaxRetry(t *testing.T) {
	maxRetry := 4
	errs := []error{nil} // initial login
	for i := 0; i < maxRetry+5; i++ {
		errs = append(errs, types.ErrTransientNetwork)
	}

	gw := &fakeGateway{accounts: []types.Account{{AccountNo: "12345"}}, loginErrs: errs}
	m := testManager(gw, maxRetry)
	m.Login(context.Background(), creds())

	if m.ReLogin(context.Background()) {
		t.Fatal("Expected re-login to give up")
	}

	// Initial login + at most maxRetry+1 re-login attempts.
	reloginAttempts := gw.logins() - 1
	if reloginAttempts > maxRetry+1 {
		t.Errorf("Expected at most %d re-login attempts, got %d", maxRetry+1, reloginAttempts)
	}
	if m.Alive() {
		t.Error("Expected liveness flag down after exhausted retries")
	}
}

func TestReLoginWithoutStoredCredentials(t *testing.T) {
	gw := &fakeGateway{}
	m := testManager(gw, 3)

	if m.ReLogin(context.Background()) {
		t.Error("Expected re-login to fail with no stored credentials")
	}
	if gw.logins() != 0 {
		t.Errorf("Expected no login attempts, got %d", gw.logins())
	}
}

func TestLogoutClearsSession(t *testing.T) {
	gw := &fakeGateway{accounts: []types.Account{{AccountNo: "12345"}}}
	m := testManager(gw, 3)
	m.Login(context.Background(), creds())

	m.Logout()

	if m.IsLoggedIn() {
		t.Error("Expected session logged out")
	}
	if _, ok := m.ActiveAccount(); ok {
		t.Error("Expected active account cleared")
	}

	// Credentials survive a plain logout so re-login is still possible.
	if !m.Login(context.Background(), creds()) {
		t.Error("Expected fresh login after logout to work")
	}
}

func TestWipeDiscardsCredentials(t *testing.T) {
	gw := &fakeGateway{accounts: []types.Account{{AccountNo: "12345"}}}
	m := testManager(gw, 3)
	m.Login(context.Background(), creds())

	m.Wipe()

	if m.ReLogin(context.Background()) {
		t.Error("Expected re-login impossible after wipe")
	}
}

func TestSetActiveAccountUnknownNumber(t *testing.T) {
	gw := &fakeGateway{accounts: []types.Account{{AccountNo: "12345"}}}
	m := testManager(gw, 3)
	m.Login(context.Background(), types.Credentials{ID: "user", Password: "pw"})

	if m.SetActiveAccount("99999") {
		t.Error("Expected unknown account number to be rejected")
	}
}
