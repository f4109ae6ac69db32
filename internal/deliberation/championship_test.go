package deliberation_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
)

func thesisAnalyst(id, response string) *llm.Analyst {
	return llm.NewAnalyst(llm.AnalystProfile{ID: id}, &scriptedLLMClient{fallback: response}, "rules")
}

func defaultWeights() config.JudgeWeights {
	return config.JudgeWeights{DataQuality: 30, Logic: 30, RiskAwareness: 25, CatalystClarity: 15}
}

func TestRunChampionshipPicksDeterministicWinnerWithoutJudge(t *testing.T) {
	analysts := []*llm.Analyst{
		thesisAnalyst("value", `{"recommendation":"buy","confidence":80,"thesis":"deeply undervalued on a multi-quarter view","bull_case":["a","b"],"bear_case":["c"],"catalyst":"earnings","stop_loss":95,"leverage":3,"position_size":5}`),
		thesisAnalyst("technical", `{"recommendation":"hold","confidence":40,"thesis":"mixed signals","leverage":2,"position_size":2}`),
	}
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}

	champion, result, err := deliberation.RunChampionship(context.Background(), analysts, "cmt_btcusdt", "LONG", d, "prior argument", 10, defaultWeights(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if champion.AnalystID != "value" {
		t.Errorf("expected value analyst's richer thesis to win deterministic scoring, got %s", champion.AnalystID)
	}
	if result.Winner != "value" {
		t.Errorf("expected debate result winner to be value, got %s", result.Winner)
	}
	if len(result.Turns) != 2 {
		t.Errorf("expected one turn per valid thesis, got %d", len(result.Turns))
	}
}

func TestRunChampionshipFallsBackToDeterministicOnJudgeFailure(t *testing.T) {
	analysts := []*llm.Analyst{
		thesisAnalyst("value", `{"recommendation":"buy","confidence":70,"thesis":"solid value case","leverage":3,"position_size":4}`),
	}
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}
	brokenJudge := &scriptedLLMClient{err: context.DeadlineExceeded}

	champion, _, err := deliberation.RunChampionship(context.Background(), analysts, "cmt_btcusdt", "LONG", d, "", 10, defaultWeights(), brokenJudge, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if champion.AnalystID != "value" {
		t.Errorf("expected the sole valid thesis to win regardless of judge failure, got %s", champion.AnalystID)
	}
}

func TestRunChampionshipUsesLLMJudgeScoresWhenAvailable(t *testing.T) {
	analysts := []*llm.Analyst{
		thesisAnalyst("value", `{"recommendation":"buy","confidence":55,"thesis":"thin thesis","leverage":2,"position_size":3}`),
		thesisAnalyst("technical", `{"recommendation":"buy","confidence":55,"thesis":"also thin","leverage":2,"position_size":3}`),
	}
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}
	judge := &scriptedLLMClient{fallback: `{"scores":{
		"value":{"data_quality":90,"logic":90,"risk_awareness":90,"catalyst_clarity":90},
		"technical":{"data_quality":10,"logic":10,"risk_awareness":10,"catalyst_clarity":10}
	}}`}

	champion, result, err := deliberation.RunChampionship(context.Background(), analysts, "cmt_btcusdt", "LONG", d, "", 10, defaultWeights(), judge, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if champion.AnalystID != "value" {
		t.Errorf("expected judge's clear winner \"value\" to be champion, got %s", champion.AnalystID)
	}
	if result.Scores["value"].Total <= result.Scores["technical"].Total {
		t.Errorf("expected value's judge-scored total to exceed technical's, got %+v", result.Scores)
	}
}

func TestRunChampionshipFailsWhenEveryThesisInvalid(t *testing.T) {
	analysts := []*llm.Analyst{
		thesisAnalyst("value", `{"recommendation":"not_a_real_call","confidence":70,"thesis":"x","leverage":3,"position_size":4}`),
	}
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}

	_, _, err := deliberation.RunChampionship(context.Background(), analysts, "cmt_btcusdt", "LONG", d, "", 10, defaultWeights(), nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected a stage failure")
	}
}
