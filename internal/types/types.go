package types

// Credentials identify one gateway user. Address is optional; empty means
// the gateway's default endpoint. Held by the session layer only for
// re-login and cleared on terminate.
type Credentials struct {
	ID           string
	Password     string
	CertPath     string
	CertPassword string
	Address      string
	AccountNo    string
}

// Account is one tradable account returned by a successful login.
type Account struct {
	AccountNo string
	Name      string
	Branch    string
}

type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Time   int64   `json:"time"`
}

type OrderReq struct {
	Symbol string
	Side   string
	Qty    int
	Price  float64
	Tag    string
}

type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type OrderResult struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Status    string  `json:"status"`
	FilledQty int     `json:"filled_qty"`
	AvgPrice  float64 `json:"avg_price"`
}

// TickData is the payload of a realtime feed message. ID carries the
// channel id on subscribed/unsubscribed confirmations and is empty on
// data events.
type TickData struct {
	Symbol       string  `json:"symbol"`
	ID           string  `json:"id,omitempty"`
	Time         int64   `json:"time"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	IsContinuous bool    `json:"isContinuous,omitempty"`
}

// FeedMessage is one inbound frame from a market-data socket.
// Event is "subscribed", "unsubscribed", or "data".
type FeedMessage struct {
	Event string   `json:"event"`
	Data  TickData `json:"data"`
}

const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventData         = "data"
)
