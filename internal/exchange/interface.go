package exchange

import "context"

// Client is the typed capability the engine uses to reach the exchange.
// Both the MockClient (paper trading / deterministic tests) and the live
// HTTPClient satisfy this interface; the rest of the engine never imports
// a concrete implementation directly.
type Client interface {
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error)
	GetPositions(ctx context.Context) ([]RawPosition, error)
	GetAccountAssets(ctx context.Context) (*AccountAssets, error)
	GetContracts(ctx context.Context) (map[string]Contract, error)
	PlaceOrder(ctx context.Context, order Order) (*OrderResult, error)
	CloseAllPositions(ctx context.Context, symbol string) error
	UploadAILog(ctx context.Context, entry AILogEntry) (*AILogUploadResult, error)
}
