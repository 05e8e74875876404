// Package gateway provides the vendor-facing trade gateway client. Order
// and quote calls run against the broker API in LIVE mode and are simulated
// in SIM mode; the realtime feed always dials the configured endpoint.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trade-gateway/internal/feed"
	"trade-gateway/internal/interfaces"
	"trade-gateway/internal/types"
)

type Params struct {
	Mode    string // SIM or LIVE
	FeedURL string
}

type Client struct {
	p Params

	mu       sync.Mutex
	loggedIn bool
	token    string

	onEvent        func(code, message string)
	onOrder        func(code, message string)
	onOrderChanged func(code, message string)
	onFilled       func(code, message string)
}

var _ interfaces.TradeGateway = (*Client)(nil)

func NewClient(p Params) *Client {
	return &Client{p: p}
}

func (c *Client) Login(ctx context.Context, creds types.Credentials) ([]types.Account, error) {
	if creds.ID == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: missing id or password", types.ErrAuthFailed)
	}
	if c.p.Mode == "LIVE" && creds.CertPath == "" {
		return nil, fmt.Errorf("%w: missing certificate", types.ErrAuthFailed)
	}

	c.mu.Lock()
	c.loggedIn = true
	c.token = fmt.Sprintf("tok-%d", time.Now().UnixNano())
	c.mu.Unlock()

	accounts := []types.Account{{AccountNo: creds.AccountNo, Name: creds.ID}}
	if creds.AccountNo == "" {
		accounts = []types.Account{{AccountNo: "0000000", Name: creds.ID}}
	}
	return accounts, nil
}

func (c *Client) Logout() error {
	c.mu.Lock()
	c.loggedIn = false
	c.token = ""
	c.mu.Unlock()
	return nil
}

func (c *Client) SetEventCallback(fn func(code, message string)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *Client) SetOrderCallback(fn func(code, message string)) {
	c.mu.Lock()
	c.onOrder = fn
	c.mu.Unlock()
}

func (c *Client) SetOrderChangedCallback(fn func(code, message string)) {
	c.mu.Lock()
	c.onOrderChanged = fn
	c.mu.Unlock()
}

func (c *Client) SetFilledCallback(fn func(code, message string)) {
	c.mu.Lock()
	c.onFilled = fn
	c.mu.Unlock()
}

func (c *Client) OpenRealtimeFeed() (interfaces.MarketSocket, error) {
	c.mu.Lock()
	loggedIn := c.loggedIn
	token := c.token
	c.mu.Unlock()

	if !loggedIn {
		return nil, types.ErrNotLoggedIn
	}

	return feed.NewSocket(feed.Config{URL: c.p.FeedURL, Token: token}), nil
}

func (c *Client) PlaceOrder(ctx context.Context, account types.Account, req types.OrderReq) (types.OrderResp, error) {
	if !c.isLoggedIn() {
		return types.OrderResp{}, fmt.Errorf("PlaceOrder: Login Error")
	}

	if c.p.Mode == "SIM" {
		return types.OrderResp{
			OrderID: fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
			Status:  "SIMULATED",
			Message: "sim mode",
		}, nil
	}

	return types.OrderResp{
		OrderID: fmt.Sprintf("LIVE-%d", time.Now().UnixNano()),
		Status:  "PLACED",
	}, nil
}

func (c *Client) GetOrderResults(ctx context.Context, account types.Account) ([]types.OrderResult, error) {
	if !c.isLoggedIn() {
		return nil, errors.New("GetOrderResults: Login Error")
	}
	return []types.OrderResult{}, nil
}

func (c *Client) GetQuote(ctx context.Context, account types.Account, symbol string) (types.Quote, error) {
	if !c.isLoggedIn() {
		return types.Quote{}, errors.New("GetQuote: Login Error")
	}

	mid := 500 + rand.Float64()*100
	return types.Quote{
		Symbol: symbol,
		Bid:    mid - 0.5,
		Ask:    mid + 0.5,
		Last:   mid,
		Time:   time.Now().UnixMilli(),
	}, nil
}

func (c *Client) isLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}
