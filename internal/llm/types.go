package llm

import "time"

// ChatRequest represents a request to the LLM gateway.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

// ChatMessage represents a single message in the chat.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatResponse represents the response from the LLM gateway.
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ErrorResponse represents an error from the LLM gateway.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Methodology is an analyst's fixed investing lens.
type Methodology string

const (
	MethodologyValue      Methodology = "value"
	MethodologyGrowth     Methodology = "growth"
	MethodologyTechnical  Methodology = "technical"
	MethodologyMacro      Methodology = "macro"
	MethodologySentiment  Methodology = "sentiment"
	MethodologyRisk       Methodology = "risk"
	MethodologyQuant      Methodology = "quant"
	MethodologyContrarian Methodology = "contrarian"
)

// Role is an analyst's part in the pipeline.
type Role string

const (
	RoleCoinSelector Role = "coin_selector"
	RoleSpecialist   Role = "specialist"
	RoleRiskCouncil  Role = "risk_council"
)

// Recommendation is an analyst's directional call.
type Recommendation string

const (
	RecommendationStrongBuy  Recommendation = "strong_buy"
	RecommendationBuy        Recommendation = "buy"
	RecommendationHold       Recommendation = "hold"
	RecommendationSell       Recommendation = "sell"
	RecommendationStrongSell Recommendation = "strong_sell"
)

// Action is a coin-selection pick's directional call.
type Action string

const (
	ActionLong   Action = "LONG"
	ActionShort  Action = "SHORT"
	ActionManage Action = "MANAGE"
)

// AnalystProfile is the static configuration for one of the eight analysts.
// Process-global: constructed once at startup from config, never mutated.
type AnalystProfile struct {
	ID           string
	DisplayName  string
	Methodology  Methodology
	PipelineRole Role
}

// PriceTarget holds an analyst's bull/base/bear price projections, all finite.
type PriceTarget struct {
	Bull float64
	Base float64
	Bear float64
}

// AnalysisResult is a stage-3 analyst thesis. Created by the deliberation
// pipeline; validated before use; consumed by the judge and the executor.
type AnalysisResult struct {
	AnalystID      string
	Recommendation Recommendation
	Confidence     float64 // [0,100]
	Thesis         string
	BullCase       []string
	BearCase       []string
	PriceTarget    PriceTarget
	StopLoss       float64
	Leverage       float64 // [1, MaxLeverage]
	PositionSize   float64 // [1,10] percent of equity
	Catalyst       string
	Timeframe      string
	CreatedAt      time.Time
}

// CoinPick is one analyst's stage-2 ranked pick.
type CoinPick struct {
	AnalystID  string
	Symbol     string
	Action     Action
	Conviction float64 // 0-10
	Reason     string
}

// RiskReview is the risk-role analyst's stage-4 output, before the
// deterministic risk council checklist runs over it.
type RiskReview struct {
	Approved     bool
	PositionSize float64
	Leverage     float64
	StopLoss     float64
	Reasoning    string
	Concerns     []string
}
