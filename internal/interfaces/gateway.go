package interfaces

import (
	"context"

	"trade-gateway/internal/types"
)

// TradeGateway is the vendor trade-side handle: login/logout, trade
// callbacks, order placement, and the factory for realtime feed sockets.
type TradeGateway interface {
	Login(ctx context.Context, c types.Credentials) ([]types.Account, error)
	Logout() error

	SetEventCallback(fn func(code, message string))
	SetOrderCallback(fn func(code, message string))
	SetOrderChangedCallback(fn func(code, message string))
	SetFilledCallback(fn func(code, message string))

	OpenRealtimeFeed() (MarketSocket, error)

	PlaceOrder(ctx context.Context, account types.Account, req types.OrderReq) (types.OrderResp, error)
	GetOrderResults(ctx context.Context, account types.Account) ([]types.OrderResult, error)
	GetQuote(ctx context.Context, account types.Account, symbol string) (types.Quote, error)
}

// MarketSocket is one realtime market-data connection. Handlers must be
// set before Connect; the driver may invoke them from its own goroutines.
type MarketSocket interface {
	OnConnect(fn func())
	OnDisconnect(fn func(code int, message string))
	OnError(fn func(err error))
	OnMessage(fn func(raw []byte))

	Connect(ctx context.Context) error
	Disconnect() error

	Subscribe(channel, symbol string) error
	Unsubscribe(channelID string) error
}
