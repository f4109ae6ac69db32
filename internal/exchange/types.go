package exchange

import "time"

// Side enumerates the normalized direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderDirection mirrors the exchange's four-way order type field.
type OrderDirection int

const (
	OrderOpenLong   OrderDirection = 1
	OrderOpenShort  OrderDirection = 2
	OrderCloseLong  OrderDirection = 3
	OrderCloseShort OrderDirection = 4
)

func (d OrderDirection) Valid() bool {
	return d >= OrderOpenLong && d <= OrderCloseShort
}

// ExecType mirrors the exchange's order_type field (time-in-force / style).
type ExecType int

const (
	ExecNormal ExecType = 0
	ExecPostOnly ExecType = 1
	ExecFOK      ExecType = 2
	ExecIOC      ExecType = 3
)

func (e ExecType) Valid() bool {
	return e >= ExecNormal && e <= ExecIOC
}

// MatchPrice mirrors the exchange's match_price field: 0=limit, 1=market.
type MatchPrice int

const (
	MatchLimit  MatchPrice = 0
	MatchMarket MatchPrice = 1
)

func (m MatchPrice) Valid() bool {
	return m == MatchLimit || m == MatchMarket
}

// MaxClientOIDLength is the exchange's hard cap on client_oid length.
const MaxClientOIDLength = 40

// DefaultStepSize is used when a contract does not report its own step size.
const DefaultStepSize = 0.0001

// DefaultMaxLeverage caps leverage when a contract omits its own maximum.
const DefaultMaxLeverage = 500

// Order is the wire-shaped request submitted to PlaceOrder. Size and Price
// are pre-rounded decimal strings, not floats, to avoid precision loss at
// the contract boundary.
type Order struct {
	Symbol                string         `json:"symbol"`
	Type                  OrderDirection `json:"type"`
	OrderType             ExecType       `json:"order_type"`
	MatchPrice            MatchPrice     `json:"match_price"`
	Size                  string         `json:"size"`
	Price                 string         `json:"price"`
	ClientOID             string         `json:"client_oid"`
	PresetTakeProfitPrice string         `json:"presetTakeProfitPrice,omitempty"`
	PresetStopLossPrice   string         `json:"presetStopLossPrice,omitempty"`
}

// OrderResult is the normalized response to a successful PlaceOrder call.
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	ClientOID string    `json:"client_oid"`
	Symbol    string    `json:"symbol"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticker is a per-symbol market snapshot as returned by the exchange before
// it is wrapped into market.ExtendedMarketData.
type Ticker struct {
	Symbol       string
	CurrentPrice float64
	High24h      float64
	Low24h       float64
	Volume24h    float64
	Change24h    float64
	MarkPrice    float64
	IndexPrice   float64
	BestBid      float64
	BestAsk      float64
}

// FundingRate carries an optional rate: nil means "unavailable", which must
// never be conflated with an observed rate of exactly zero.
type FundingRate struct {
	Symbol string
	Rate   *float64
}

// RawPosition is the exchange's native position shape before normalization.
// Some fields are exchange-specific and may be absent.
type RawPosition struct {
	Symbol      string
	SideRaw     string // exchange-native side token, e.g. "long"/"short"/"1"/"2"
	Size        float64
	EntryPrice  *float64
	OpenValue   *float64 // notional value at open; used to derive EntryPrice when it is absent
	MarkPrice   float64
	Leverage    *float64
	UnrealizedPnl *float64
}

// Position is the normalized, uniform position shape consumed by the engine.
type Position struct {
	Symbol        string
	Side          Side
	Size          float64
	EntryPrice    float64
	Leverage      float64
	MarkPrice     float64
	UnrealizedPnl *float64
}

// AccountAssets reports the exchange wallet state.
type AccountAssets struct {
	Available float64
	Total     float64
	Currency  string
}

// Contract describes a symbol's precision/leverage metadata.
type Contract struct {
	Symbol      string
	StepSize    float64
	TickSize    float64
	MinSize     float64
	MaxLeverage int
}

// AILogEntry is uploaded to the exchange's AI-decision disclosure endpoint.
// Upload is best-effort: failures are logged, never propagated.
type AILogEntry struct {
	UserID        string    `json:"user_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Stage         string    `json:"stage"`
	Model         string    `json:"model"`
	Input         string    `json:"input"`
	Output        string    `json:"output"`
	Explanation   string    `json:"explanation"`
	Timestamp     time.Time `json:"timestamp"`
}

// AILogUploadResult reports whether the exchange accepted the disclosure.
type AILogUploadResult struct {
	Uploaded      bool
	ExchangeLogID string
}
