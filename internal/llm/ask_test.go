package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coinquorum/tradeengine/internal/market"
)

// fakeLLMClient returns a fixed response for every call, for testing the
// Analyst wrapper without a real HTTP gateway.
type fakeLLMClient struct {
	response string
	err      error
}

func (f *fakeLLMClient) Complete(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	panic("not used by Analyst")
}

func (f *fakeLLMClient) CompleteWithRetry(ctx context.Context, messages []ChatMessage, maxRetries int) (*ChatResponse, error) {
	panic("not used by Analyst")
}

func (f *fakeLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLMClient) ParseJSONResponse(content string, target interface{}) error {
	return json.Unmarshal([]byte(content), target)
}

var _ LLMClient = (*fakeLLMClient)(nil)

func TestAnalystProposeCoinParsesResponse(t *testing.T) {
	fake := &fakeLLMClient{response: `{"symbol":"cmt_btcusdt","action":"LONG","conviction":8.5,"reason":"breakout"}`}
	analyst := NewAnalyst(AnalystProfile{ID: "value"}, fake, "rules")

	pick, err := analyst.ProposeCoin(context.Background(), map[string]market.ExtendedMarketData{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pick.Symbol != "cmt_btcusdt" || pick.Action != ActionLong || pick.Conviction != 8.5 {
		t.Errorf("unexpected pick: %+v", pick)
	}
}

func TestAnalystProposeThesisParsesResponse(t *testing.T) {
	fake := &fakeLLMClient{response: `{"recommendation":"buy","confidence":70,"thesis":"uptrend","price_target":{"bull":110,"base":105,"bear":95},"leverage":4,"position_size":5}`}
	analyst := NewAnalyst(AnalystProfile{ID: "technical"}, fake, "rules")

	result, err := analyst.ProposeThesis(context.Background(), "cmt_ethusdt", "LONG", market.ExtendedMarketData{}, "prior")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Recommendation != RecommendationBuy || result.Confidence != 70 || result.Leverage != 4 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAnalystReviewTradeParsesResponse(t *testing.T) {
	fake := &fakeLLMClient{response: `{"approved":true,"position_size":5,"leverage":3,"stop_loss":95,"reasoning":"ok"}`}
	analyst := NewAnalyst(AnalystProfile{ID: "risk"}, fake, "rules")

	review, err := analyst.ReviewTrade(context.Background(), AnalysisResult{}, "cmt_btcusdt", "LONG", 1000, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !review.Approved || review.PositionSize != 5 {
		t.Errorf("unexpected review: %+v", review)
	}
}

func TestAnalystProposeCoinPropagatesMalformedResponseError(t *testing.T) {
	fake := &fakeLLMClient{response: "not json"}
	analyst := NewAnalyst(AnalystProfile{ID: "value"}, fake, "rules")

	if _, err := analyst.ProposeCoin(context.Background(), map[string]market.ExtendedMarketData{}, nil); err == nil {
		t.Fatal("expected error for malformed response")
	}
}
