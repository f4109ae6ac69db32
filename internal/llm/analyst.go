package llm

import (
	"fmt"
	"math"
)

// DefaultAnalysts returns the eight process-global analyst profiles. Four
// participate in coin selection, all eight contribute theses in the
// championship, and one (methodology risk) reviews the champion in stage 4.
func DefaultAnalysts() []AnalystProfile {
	return []AnalystProfile{
		{ID: "value", DisplayName: "Value Analyst", Methodology: MethodologyValue, PipelineRole: RoleCoinSelector},
		{ID: "growth", DisplayName: "Growth Analyst", Methodology: MethodologyGrowth, PipelineRole: RoleCoinSelector},
		{ID: "technical", DisplayName: "Technical Analyst", Methodology: MethodologyTechnical, PipelineRole: RoleCoinSelector},
		{ID: "macro", DisplayName: "Macro Analyst", Methodology: MethodologyMacro, PipelineRole: RoleCoinSelector},
		{ID: "sentiment", DisplayName: "Sentiment Analyst", Methodology: MethodologySentiment, PipelineRole: RoleSpecialist},
		{ID: "quant", DisplayName: "Quant Analyst", Methodology: MethodologyQuant, PipelineRole: RoleSpecialist},
		{ID: "contrarian", DisplayName: "Contrarian Analyst", Methodology: MethodologyContrarian, PipelineRole: RoleSpecialist},
		{ID: "risk", DisplayName: "Risk Analyst", Methodology: MethodologyRisk, PipelineRole: RoleRiskCouncil},
	}
}

// CoinSelectors returns the subset of profiles that vote in stage 2. The
// spec fixes this at four; DefaultAnalysts tags exactly four as coin_selector.
func CoinSelectors(profiles []AnalystProfile) []AnalystProfile {
	var out []AnalystProfile
	for _, p := range profiles {
		if p.PipelineRole == RoleCoinSelector {
			out = append(out, p)
		}
	}
	return out
}

// RiskCouncilAnalyst returns the single profile with the risk_council role,
// or false if none is configured.
func RiskCouncilAnalyst(profiles []AnalystProfile) (AnalystProfile, bool) {
	for _, p := range profiles {
		if p.PipelineRole == RoleRiskCouncil {
			return p, true
		}
	}
	return AnalystProfile{}, false
}

// ValidateCoinPick enforces stage-2's structural contract: symbol must be
// one of the approved universe, action must be a known enum value, and
// conviction must fall in [0,10].
func ValidateCoinPick(pick CoinPick, approvedSymbols []string) error {
	if pick.Action != ActionLong && pick.Action != ActionShort && pick.Action != ActionManage {
		return fmt.Errorf("coin pick from %s: invalid action %q", pick.AnalystID, pick.Action)
	}
	if pick.Conviction < 0 || pick.Conviction > 10 || math.IsNaN(pick.Conviction) {
		return fmt.Errorf("coin pick from %s: conviction %v out of [0,10]", pick.AnalystID, pick.Conviction)
	}
	if pick.Action == ActionManage {
		return nil // MANAGE picks reference an open position, not the approved universe
	}
	for _, s := range approvedSymbols {
		if s == pick.Symbol {
			return nil
		}
	}
	return fmt.Errorf("coin pick from %s: symbol %q is not in the approved universe", pick.AnalystID, pick.Symbol)
}

// ValidateAnalysisResult enforces stage-3's structural contract per spec §3.
func ValidateAnalysisResult(r AnalysisResult, maxLeverage float64) error {
	switch r.Recommendation {
	case RecommendationStrongBuy, RecommendationBuy, RecommendationHold, RecommendationSell, RecommendationStrongSell:
	default:
		return fmt.Errorf("analyst %s: invalid recommendation %q", r.AnalystID, r.Recommendation)
	}
	if r.Confidence < 0 || r.Confidence > 100 || math.IsNaN(r.Confidence) {
		return fmt.Errorf("analyst %s: confidence %v out of [0,100]", r.AnalystID, r.Confidence)
	}
	if r.Thesis == "" {
		return fmt.Errorf("analyst %s: empty thesis", r.AnalystID)
	}
	for _, v := range []float64{r.PriceTarget.Bull, r.PriceTarget.Base, r.PriceTarget.Bear} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("analyst %s: price target contains a non-finite value", r.AnalystID)
		}
	}
	if r.Leverage < 1 || r.Leverage > maxLeverage {
		return fmt.Errorf("analyst %s: leverage %v out of [1,%v]", r.AnalystID, r.Leverage, maxLeverage)
	}
	if r.PositionSize < 1 || r.PositionSize > 10 {
		return fmt.Errorf("analyst %s: position size %v out of [1,10]", r.AnalystID, r.PositionSize)
	}
	return nil
}

// ValidateRiskReview enforces stage-4's minimal structural contract before
// the deterministic risk council checklist runs.
func ValidateRiskReview(r RiskReview) error {
	if r.Approved && r.PositionSize <= 0 {
		return fmt.Errorf("risk review: approved with non-positive position size %v", r.PositionSize)
	}
	if r.Approved && r.Leverage < 1 {
		return fmt.Errorf("risk review: approved with leverage %v below 1", r.Leverage)
	}
	return nil
}
