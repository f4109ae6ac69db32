package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MockClient is an in-memory, deterministic Client used for dry-run trading
// and tests. It never makes network calls.
type MockClient struct {
	mu sync.RWMutex

	logger    zerolog.Logger
	prices    map[string]float64
	funding   map[string]*float64
	positions map[string]RawPosition
	available float64
	contracts map[string]Contract
	orders    []Order
	uploads   []AILogEntry

	failNextOrder error
}

// NewMockClient creates a MockClient seeded with the eight approved symbols
// at a flat starting price, and a default contract table.
func NewMockClient(logger zerolog.Logger) *MockClient {
	m := &MockClient{
		logger:    logger.With().Str("component", "exchange.mock").Logger(),
		prices:    make(map[string]float64),
		funding:   make(map[string]*float64),
		positions: make(map[string]RawPosition),
		available: 10000.0,
		contracts: make(map[string]Contract),
	}
	for _, symbol := range []string{
		"cmt_btcusdt", "cmt_ethusdt", "cmt_solusdt", "cmt_bnbusdt",
		"cmt_xrpusdt", "cmt_dogeusdt", "cmt_adausdt", "cmt_avaxusdt",
	} {
		m.prices[symbol] = 100.0
		m.contracts[symbol] = Contract{
			Symbol:      symbol,
			StepSize:    DefaultStepSize,
			TickSize:    0.01,
			MinSize:     DefaultStepSize,
			MaxLeverage: 125,
		}
	}
	return m
}

// SetMarketPrice overrides the deterministic price for a symbol (test hook).
func (m *MockClient) SetMarketPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetFundingRate overrides the funding rate for a symbol; pass nil to mark
// it unavailable (test hook).
func (m *MockClient) SetFundingRate(symbol string, rate *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funding[symbol] = rate
}

// SetAvailableBalance overrides the wallet balance (test hook).
func (m *MockClient) SetAvailableBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = balance
}

// FailNextOrder makes the next PlaceOrder call return err (test hook).
func (m *MockClient) FailNextOrder(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextOrder = err
}

func (m *MockClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("mock exchange: unknown symbol %q", symbol)
	}
	return &Ticker{
		Symbol:       symbol,
		CurrentPrice: price,
		High24h:      price * 1.02,
		Low24h:       price * 0.98,
		Volume24h:    1_000_000,
		Change24h:    0,
		MarkPrice:    price,
		IndexPrice:   price,
		BestBid:      price * 0.9995,
		BestAsk:      price * 1.0005,
	}, nil
}

func (m *MockClient) GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &FundingRate{Symbol: symbol, Rate: m.funding[symbol]}, nil
}

func (m *MockClient) GetPositions(ctx context.Context) ([]RawPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RawPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockClient) GetAccountAssets(ctx context.Context) (*AccountAssets, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &AccountAssets{Available: m.available, Total: m.available, Currency: "USDT"}, nil
}

func (m *MockClient) GetContracts(ctx context.Context) (map[string]Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Contract, len(m.contracts))
	for k, v := range m.contracts {
		out[k] = v
	}
	return out, nil
}

func (m *MockClient) PlaceOrder(ctx context.Context, order Order) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNextOrder != nil {
		err := m.failNextOrder
		m.failNextOrder = nil
		return nil, err
	}

	contract := m.contracts[order.Symbol]
	if err := ValidateOrder(order, contract); err != nil {
		return nil, err
	}

	price := m.prices[order.Symbol]
	switch order.Type {
	case OrderOpenLong:
		m.positions[order.Symbol] = RawPosition{Symbol: order.Symbol, SideRaw: "long", Size: mustParse(order.Size), EntryPrice: floatPtr(price), MarkPrice: price}
	case OrderOpenShort:
		m.positions[order.Symbol] = RawPosition{Symbol: order.Symbol, SideRaw: "short", Size: mustParse(order.Size), EntryPrice: floatPtr(price), MarkPrice: price}
	case OrderCloseLong, OrderCloseShort:
		delete(m.positions, order.Symbol)
	}

	m.orders = append(m.orders, order)
	m.logger.Info().Str("symbol", order.Symbol).Int("type", int(order.Type)).Str("size", order.Size).Msg("mock order placed")

	return &OrderResult{
		OrderID:   uuid.NewString(),
		ClientOID: order.ClientOID,
		Symbol:    order.Symbol,
		Status:    "FILLED",
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockClient) CloseAllPositions(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, symbol)
	m.logger.Warn().Str("symbol", symbol).Msg("mock: closed all positions for symbol")
	return nil
}

func (m *MockClient) UploadAILog(ctx context.Context, entry AILogEntry) (*AILogUploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, entry)
	return &AILogUploadResult{Uploaded: true, ExchangeLogID: uuid.NewString()}, nil
}

// Uploads returns all AI-log entries accepted so far (test hook).
func (m *MockClient) Uploads() []AILogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AILogEntry, len(m.uploads))
	copy(out, m.uploads)
	return out
}

// Orders returns all orders placed so far (test hook).
func (m *MockClient) Orders() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, len(m.orders))
	copy(out, m.orders)
	return out
}

func floatPtr(f float64) *float64 { return &f }

func mustParse(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}

var _ Client = (*MockClient)(nil)
