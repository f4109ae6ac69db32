package config

import "fmt"

// Validate checks the configuration for internally-consistent values.
// It replaces the teacher's larger secrets/validator/validation files with
// a single consolidated pass scoped to what the engine actually needs.
func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols must not be empty")
	}
	if c.Engine.CycleInterval <= 0 {
		return fmt.Errorf("engine.cycle_interval must be positive")
	}
	if c.Engine.MinTradeInterval <= 0 {
		return fmt.Errorf("engine.min_trade_interval must be positive")
	}
	if c.Engine.MaxLeverage <= 0 {
		return fmt.Errorf("engine.max_leverage must be positive")
	}
	if c.Engine.DefaultLeverage <= 0 || c.Engine.DefaultLeverage > c.Engine.MaxLeverage {
		return fmt.Errorf("engine.default_leverage must be between 1 and max_leverage")
	}
	if c.Engine.MinConfidenceToTrade < 0 || c.Engine.MinConfidenceToTrade > 100 {
		return fmt.Errorf("engine.min_confidence_to_trade must be between 0 and 100")
	}
	judgeSum := c.Engine.JudgeWeights.DataQuality + c.Engine.JudgeWeights.Logic +
		c.Engine.JudgeWeights.RiskAwareness + c.Engine.JudgeWeights.CatalystClarity
	if judgeSum < 99.9 || judgeSum > 100.1 {
		return fmt.Errorf("engine.judge_weights must sum to 100, got %.2f", judgeSum)
	}

	if c.Risk.MaxPositionPercent <= 0 || c.Risk.MaxPositionPercent > 100 {
		return fmt.Errorf("risk.max_position_percent must be between 0 and 100")
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("risk.max_concurrent_positions must be positive")
	}
	if c.Risk.BTCDropYellowPercent >= c.Risk.BTCDropOrangePercent ||
		c.Risk.BTCDropOrangePercent >= c.Risk.BTCDropRedPercent {
		return fmt.Errorf("risk btc drop thresholds must be strictly increasing: yellow < orange < red")
	}
	if c.Risk.DrawdownYellowPercent >= c.Risk.DrawdownOrangePercent ||
		c.Risk.DrawdownOrangePercent >= c.Risk.DrawdownRedPercent {
		return fmt.Errorf("risk drawdown thresholds must be strictly increasing: yellow < orange < red")
	}

	if c.API.Port <= 0 {
		return fmt.Errorf("api.port must be positive")
	}

	if !isDevelopment(c.App.Environment) && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set outside development")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must exceed access_token_ttl")
	}

	return nil
}

func isDevelopment(env string) bool {
	return env == "development" || env == ""
}
