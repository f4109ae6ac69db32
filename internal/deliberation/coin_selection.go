package deliberation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
)

// CoinSelection is stage 2's outcome: either a (symbol, direction) to carry
// into the championship, or a diversion into position management.
type CoinSelection struct {
	Symbol          string
	Direction       string // LONG or SHORT
	IsManage        bool
	ManageSymbol    string
	WinningArgument string
}

// rankWeight implements the spec's #1=3x, #2=2x, #3=1x scoring rule; any
// rank beyond the documented top three still counts, at the #3 weight.
func rankWeight(rank int) float64 {
	switch rank {
	case 0:
		return 3
	case 1:
		return 2
	default:
		return 1
	}
}

// RunCoinSelection solicits a ranked pick from every coin-selector analyst
// concurrently, validates each structurally, then aggregates per-(symbol,
// direction) scores using the rank-weighted conviction rule. A MANAGE pick
// that wins diverts the cycle into position management and bypasses
// stages 3-4 entirely.
func RunCoinSelection(ctx context.Context, selectors []*llm.Analyst, snapshot map[string]market.ExtendedMarketData, openPositions []exchange.Position, approvedSymbols []string, logger zerolog.Logger) (CoinSelection, DebateResult, error) {
	if len(selectors) == 0 {
		return CoinSelection{}, DebateResult{}, newStageFailure(StageCoinSelection, "no coin-selector analysts configured")
	}

	picks := make([]llm.CoinPick, len(selectors))
	var mu sync.Mutex
	var failures []string

	group, gctx := errgroup.WithContext(ctx)
	for i, analyst := range selectors {
		i, analyst := i, analyst
		group.Go(func() error {
			pick, err := analyst.ProposeCoin(gctx, snapshot, openPositions)
			if err != nil {
				mu.Lock()
				failures = append(failures, err.Error())
				mu.Unlock()
				return nil
			}
			if err := llm.ValidateCoinPick(pick, approvedSymbols); err != nil {
				mu.Lock()
				failures = append(failures, err.Error())
				mu.Unlock()
				return nil
			}
			picks[i] = pick
			return nil
		})
	}
	_ = group.Wait()

	valid := picks[:0]
	for _, p := range picks {
		if p.AnalystID != "" {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		logger.Warn().Strs("failures", failures).Msg("coin selection: every analyst pick failed or was invalid")
		return CoinSelection{}, DebateResult{}, newStageFailure(StageCoinSelection, "coin selection debate returned invalid data")
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Conviction > valid[j].Conviction })

	type candidate struct {
		symbol, direction string
		isManage          bool
		score             float64
		reason            string
	}
	scores := make(map[string]*candidate)
	var order []string

	for rank, pick := range valid {
		weight := rankWeight(rank)
		key := string(pick.Action) + "|" + pick.Symbol
		c, ok := scores[key]
		if !ok {
			c = &candidate{symbol: pick.Symbol, direction: string(pick.Action), isManage: pick.Action == llm.ActionManage, reason: pick.Reason}
			scores[key] = c
			order = append(order, key)
		}
		c.score += weight * pick.Conviction
	}

	var winner *candidate
	debateScores := make(map[string]ScoreBreakdown, len(order))
	for _, key := range order {
		c := scores[key]
		debateScores[key] = ScoreBreakdown{Total: c.score}
		if winner == nil || c.score > winner.score {
			winner = c
		}
	}

	turns := make([]DebateTurn, len(valid))
	for i, p := range valid {
		turns[i] = DebateTurn{AnalystName: p.AnalystID, Argument: p.Reason, Strength: p.Conviction}
	}

	result := DebateResult{
		Winner:           fmt.Sprintf("%s|%s", winner.direction, winner.symbol),
		Scores:           debateScores,
		Turns:            turns,
		WinningArguments: []string{winner.reason},
	}

	if winner.isManage {
		return CoinSelection{IsManage: true, ManageSymbol: winner.symbol, WinningArgument: winner.reason}, result, nil
	}

	return CoinSelection{Symbol: winner.symbol, Direction: winner.direction, WinningArgument: winner.reason}, result, nil
}
