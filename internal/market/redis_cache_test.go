package market

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) *DataCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDataCache(client, ttl)
}

func TestDataCacheSetThenGetRoundTrips(t *testing.T) {
	cache := newTestCache(t, 5*time.Second)
	ctx := context.Background()

	data := ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 50000, Volume24h: 1200, FetchedAt: time.Now()}
	if err := cache.Set(ctx, data); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok := cache.Get(ctx, "cmt_btcusdt")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.CurrentPrice != 50000 {
		t.Errorf("CurrentPrice = %v, want 50000", got.CurrentPrice)
	}
}

func TestDataCacheGetMissReturnsFalse(t *testing.T) {
	cache := newTestCache(t, 5*time.Second)
	_, ok := cache.Get(context.Background(), "cmt_ethusdt")
	if ok {
		t.Fatal("expected cache miss for unset symbol")
	}
}

func TestDataCacheNilClientIsANoop(t *testing.T) {
	var cache *DataCache = NewDataCache(nil, time.Second)
	if cache != nil {
		t.Fatal("expected NewDataCache(nil, ...) to return nil")
	}
	if _, ok := cache.Get(context.Background(), "cmt_btcusdt"); ok {
		t.Fatal("expected nil-receiver Get to report a miss")
	}
	if err := cache.Set(context.Background(), ExtendedMarketData{Symbol: "cmt_btcusdt"}); err == nil {
		t.Fatal("expected nil-receiver Set to error")
	}
}

func TestDataCacheHealthReportsConnectivity(t *testing.T) {
	cache := newTestCache(t, time.Second)
	if err := cache.Health(context.Background()); err != nil {
		t.Errorf("expected healthy miniredis connection, got %v", err)
	}
}
