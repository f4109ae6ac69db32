package deliberation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
)

// judgePrompt asks a dedicated judging call to score every thesis on the
// four weighted criteria. It is deliberately independent of the eight
// analyst profiles: the judge is not one of {value, growth, ...}, just
// another structured call against the same opaque LLM capability.
func judgePrompt(theses map[string]llm.AnalysisResult, weights config.JudgeWeights) (string, string) {
	system := fmt.Sprintf(
		"You are the championship judge for a perpetual-futures trading desk. Score each analyst's thesis on four "+
			"criteria weighted data_quality=%.0f, logic=%.0f, risk_awareness=%.0f, catalyst_clarity=%.0f (each 0-100, weights sum to 100). "+
			"Respond only with the JSON object requested; no prose outside it.",
		weights.DataQuality, weights.Logic, weights.RiskAwareness, weights.CatalystClarity,
	)

	var sb strings.Builder
	sb.WriteString("Competing theses:\n\n")
	for id, r := range theses {
		sb.WriteString(fmt.Sprintf("- %s (%s, confidence %.0f): %s\n", id, r.Recommendation, r.Confidence, r.Thesis))
	}
	sb.WriteString(`
Respond with JSON:
{
  "scores": {
    "<analystId>": {"data_quality": 0-100, "logic": 0-100, "risk_awareness": 0-100, "catalyst_clarity": 0-100}
  }
}`)
	return system, sb.String()
}

// deterministicScore is the fallback used when the judging call itself
// fails: a cheap heuristic over fields the validated thesis already
// carries, so the championship can still produce a winner.
func deterministicScore(r llm.AnalysisResult) ScoreBreakdown {
	dataQuality := 40.0
	if r.Catalyst != "" {
		dataQuality += 20
	}
	if len(r.BullCase)+len(r.BearCase) >= 2 {
		dataQuality += 20
	}

	logic := 30.0
	if len(r.Thesis) > 80 {
		logic += 30
	}
	if r.Timeframe != "" {
		logic += 10
	}

	riskAwareness := 30.0
	if len(r.BearCase) > 0 {
		riskAwareness += 30
	}
	if r.StopLoss > 0 {
		riskAwareness += 20
	}

	catalystClarity := 30.0
	if r.Catalyst != "" {
		catalystClarity += 40
	}

	return clampScore(ScoreBreakdown{
		DataQuality:     dataQuality,
		Logic:           logic,
		RiskAwareness:   riskAwareness,
		CatalystClarity: catalystClarity,
	})
}

func clampScore(s ScoreBreakdown) ScoreBreakdown {
	clamp := func(v float64) float64 {
		if v > 100 {
			return 100
		}
		if v < 0 {
			return 0
		}
		return v
	}
	s.DataQuality = clamp(s.DataQuality)
	s.Logic = clamp(s.Logic)
	s.RiskAwareness = clamp(s.RiskAwareness)
	s.CatalystClarity = clamp(s.CatalystClarity)
	return s
}

func weightedTotal(s ScoreBreakdown, w config.JudgeWeights) float64 {
	return (s.DataQuality*w.DataQuality + s.Logic*w.Logic + s.RiskAwareness*w.RiskAwareness + s.CatalystClarity*w.CatalystClarity) / 100
}

// RunChampionship solicits a full thesis from every analyst concurrently for
// the stage-2 winning (symbol, direction), then judges them on four weighted
// criteria. The judge call runs first; if it fails structurally or
// transiently, every candidate falls back to the deterministic scorer so
// the stage still produces a champion.
func RunChampionship(ctx context.Context, analysts []*llm.Analyst, symbol, direction string, d market.ExtendedMarketData, priorArgument string, maxLeverage float64, weights config.JudgeWeights, judge llm.LLMClient, logger zerolog.Logger) (llm.AnalysisResult, DebateResult, error) {
	if len(analysts) == 0 {
		return llm.AnalysisResult{}, DebateResult{}, newStageFailure(StageChampionship, "no analysts configured")
	}

	results := make([]llm.AnalysisResult, len(analysts))
	var mu sync.Mutex
	var failures []string

	group, gctx := errgroup.WithContext(ctx)
	for i, analyst := range analysts {
		i, analyst := i, analyst
		group.Go(func() error {
			r, err := analyst.ProposeThesis(gctx, symbol, direction, d, priorArgument)
			if err != nil {
				mu.Lock()
				failures = append(failures, err.Error())
				mu.Unlock()
				return nil
			}
			if err := llm.ValidateAnalysisResult(r, maxLeverage); err != nil {
				mu.Lock()
				failures = append(failures, err.Error())
				mu.Unlock()
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = group.Wait()

	theses := make(map[string]llm.AnalysisResult, len(results))
	for _, r := range results {
		if r.AnalystID != "" {
			theses[r.AnalystID] = r
		}
	}
	if len(theses) == 0 {
		logger.Warn().Strs("failures", failures).Msg("championship: every analyst thesis failed or was invalid")
		return llm.AnalysisResult{}, DebateResult{}, newStageFailure(StageChampionship, "championship debate produced no valid theses")
	}

	scores := judgeTheses(ctx, theses, weights, judge, logger)

	var championID string
	var championScore float64
	first := true
	for id, s := range scores {
		total := weightedTotal(s, weights)
		if first || total > championScore {
			championID = id
			championScore = total
			first = false
		}
	}

	debateScores := make(map[string]ScoreBreakdown, len(scores))
	for id, s := range scores {
		s.Total = weightedTotal(s, weights)
		debateScores[id] = s
	}

	turns := make([]DebateTurn, 0, len(theses))
	ids := make([]string, 0, len(theses))
	for id := range theses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		turns = append(turns, DebateTurn{AnalystName: id, Argument: theses[id].Thesis, Strength: theses[id].Confidence / 10})
	}

	champion := theses[championID]
	result := DebateResult{
		Winner:           championID,
		Scores:           debateScores,
		Turns:            turns,
		WinningArguments: []string{champion.Thesis},
	}

	return champion, result, nil
}

func judgeTheses(ctx context.Context, theses map[string]llm.AnalysisResult, weights config.JudgeWeights, judge llm.LLMClient, logger zerolog.Logger) map[string]ScoreBreakdown {
	if judge != nil {
		if scores, err := judgeViaLLM(ctx, theses, weights, judge); err == nil {
			return scores
		} else {
			logger.Warn().Err(err).Msg("championship judge call failed, falling back to deterministic scorer")
		}
	}

	scores := make(map[string]ScoreBreakdown, len(theses))
	for id, r := range theses {
		scores[id] = deterministicScore(r)
	}
	return scores
}

func judgeViaLLM(ctx context.Context, theses map[string]llm.AnalysisResult, weights config.JudgeWeights, judge llm.LLMClient) (map[string]ScoreBreakdown, error) {
	system, user := judgePrompt(theses, weights)
	raw, err := judge.CompleteWithSystem(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var parsed struct {
		Scores map[string]struct {
			DataQuality     float64 `json:"data_quality"`
			Logic           float64 `json:"logic"`
			RiskAwareness   float64 `json:"risk_awareness"`
			CatalystClarity float64 `json:"catalyst_clarity"`
		} `json:"scores"`
	}
	if err := judge.ParseJSONResponse(raw, &parsed); err != nil {
		return nil, fmt.Errorf("malformed judge response: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("judge response scored no candidates")
	}

	out := make(map[string]ScoreBreakdown, len(theses))
	for id := range theses {
		s, ok := parsed.Scores[id]
		if !ok {
			return nil, fmt.Errorf("judge response omitted candidate %q", id)
		}
		out[id] = clampScore(ScoreBreakdown{
			DataQuality:     s.DataQuality,
			Logic:           s.Logic,
			RiskAwareness:   s.RiskAwareness,
			CatalystClarity: s.CatalystClarity,
		})
	}
	return out, nil
}
