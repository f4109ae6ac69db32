package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/indicators"
)

// Assembler builds the per-cycle ExtendedMarketData snapshot the
// deliberation pipeline reasons over. Each symbol is fetched independently
// and concurrently; a failure on one symbol never blocks or discards the
// others (fault isolation) — it is logged and the symbol is omitted from
// the returned snapshot. Only when every symbol fails does Snapshot return
// an error, since a fully empty snapshot means the cycle has nothing to
// deliberate over and must be skipped.
type Assembler struct {
	client     exchange.Client
	cache      *DataCache
	indicators *indicators.Service
	history    *priceHistory
	logger     zerolog.Logger
}

// NewAssembler constructs an Assembler. cache may be nil (no Redis
// configured). The assembler always fetches live; a non-nil cache only
// receives a copy of each fetched snapshot.
func NewAssembler(client exchange.Client, cache *DataCache, indicatorSvc *indicators.Service, logger zerolog.Logger) *Assembler {
	return &Assembler{
		client:     client,
		cache:      cache,
		indicators: indicatorSvc,
		history:    newPriceHistory(200),
		logger:     logger.With().Str("component", "market_assembler").Logger(),
	}
}

// Snapshot fetches fresh market data for every symbol concurrently.
func (a *Assembler) Snapshot(ctx context.Context, symbols []string) (map[string]ExtendedMarketData, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}

	var mu sync.Mutex
	results := make(map[string]ExtendedMarketData, len(symbols))
	var failed []string

	group, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		group.Go(func() error {
			data, err := a.fetchOne(gctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to assemble market data, omitting symbol from cycle")
				failed = append(failed, symbol)
				return nil
			}
			results[symbol] = *data
			return nil
		})
	}

	// errgroup.Wait only returns an error if a goroutine itself returns one,
	// which we deliberately never do here — per-symbol failures are
	// swallowed above so one bad symbol can't cancel the others.
	_ = group.Wait()

	if len(results) == 0 {
		return nil, fmt.Errorf("market data assembly failed for all %d symbols: %v", len(symbols), failed)
	}
	if len(failed) > 0 {
		a.logger.Warn().Strs("failed_symbols", failed).Int("succeeded", len(results)).Msg("partial market data snapshot")
	}

	return results, nil
}

func (a *Assembler) fetchOne(ctx context.Context, symbol string) (*ExtendedMarketData, error) {
	ticker, err := a.client.GetTicker(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get ticker: %w", err)
	}
	if ticker.CurrentPrice <= 0 {
		return nil, fmt.Errorf("ticker returned non-positive price for %s", symbol)
	}

	funding, err := a.client.GetFundingRate(ctx, symbol)
	if err != nil {
		a.logger.Debug().Err(err).Str("symbol", symbol).Msg("funding rate unavailable, proceeding without it")
		funding = &exchange.FundingRate{Symbol: symbol}
	}

	data := &ExtendedMarketData{
		Symbol:       symbol,
		CurrentPrice: ticker.CurrentPrice,
		High24h:      ticker.High24h,
		Low24h:       ticker.Low24h,
		Volume24h:    ticker.Volume24h,
		Change24h:    ticker.Change24h,
		MarkPrice:    ticker.MarkPrice,
		IndexPrice:   ticker.IndexPrice,
		BestBid:      ticker.BestBid,
		BestAsk:      ticker.BestAsk,
		FundingRate:  funding.Rate,
		FetchedAt:    time.Now(),
	}

	high := ticker.High24h
	if high == 0 {
		high = ticker.CurrentPrice
	}
	low := ticker.Low24h
	if low == 0 {
		low = ticker.CurrentPrice
	}
	a.history.record(symbol, high, low, ticker.CurrentPrice)
	highs, lows, closes := a.history.snapshot(symbol)
	enrich(a.indicators, data, highs, lows, closes)

	if a.cache != nil {
		if cacheErr := a.cache.Set(ctx, *data); cacheErr != nil {
			a.logger.Debug().Err(cacheErr).Str("symbol", symbol).Msg("failed to refresh market data cache")
		}
	}

	return data, nil
}
