package interfaces

import (
	"context"

	"trade-gateway/internal/types"
)

// GatewayManager is the surface exposed to the strategy layer.
type GatewayManager interface {
	Login(ctx context.Context, c types.Credentials) bool
	Terminate()

	IsLoggedIn() bool
	IsAlive() bool
	ActiveAccount() (types.Account, bool)
	SetActiveAccount(accountNo string) bool

	Subscribe(symbol string)
	Unsubscribe(symbol string)

	SetMessageHandler(fn func(data types.TickData))
	SetOrderHandler(fn func(code, message string))
	SetOrderChangedHandler(fn func(code, message string))
	SetOrderFilledHandler(fn func(code, message string))

	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	GetQuote(ctx context.Context, symbol string) (types.Quote, error)
}
