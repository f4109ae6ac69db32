package risk

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolInterface defines the interface for database pool operations
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Calculator provides database-backed risk calculations against a
// portfolio's trade history. All queries read the `trades` table only --
// this tree has no candlestick or performance-snapshot tables, so there is
// no separate historical-price store to calculate from.
type Calculator struct {
	pool PoolInterface
}

// NewCalculator creates a new risk calculator with database connection
func NewCalculator(pool PoolInterface) *Calculator {
	return &Calculator{
		pool: pool,
	}
}

// NewCalculatorWithPool creates a new risk calculator with pgxpool.Pool
func NewCalculatorWithPool(pool *pgxpool.Pool) *Calculator {
	return &Calculator{
		pool: pool,
	}
}

// PerformanceData holds portfolio performance data
type PerformanceData struct {
	EquityCurve []float64
	Returns     []float64
	PeakEquity  float64
	Timestamps  []time.Time
}

// WinRateData holds win rate statistics
type WinRateData struct {
	WinRate       float64
	WinningTrades int64
	LosingTrades  int64
	TotalTrades   int64
	AvgWin        float64
	AvgLoss       float64
}

// ============================================================================
// WIN RATE CALCULATIONS
// ============================================================================

// CalculateWinRate calculates historical win rate from the trades table for
// one portfolio. Only closed trades with a recorded realized_pnl count --
// an open or still-settling trade has nothing to win or lose yet.
func (c *Calculator) CalculateWinRate(ctx context.Context, portfolioID uuid.UUID, symbol string) (*WinRateData, error) {
	if symbol != "" && !isValidSymbol(symbol) {
		return nil, fmt.Errorf("invalid symbol format: %s", symbol)
	}
	if c.pool == nil {
		log.Warn().Str("portfolio_id", portfolioID.String()).Msg("no database pool available, using default win rate")
		return defaultWinRate(), nil
	}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE realized_pnl > 0) AS winning_trades,
			COUNT(*) FILTER (WHERE realized_pnl < 0) AS losing_trades,
			COUNT(*) AS total_trades,
			COALESCE(AVG(realized_pnl) FILTER (WHERE realized_pnl > 0), 0) AS avg_win,
			COALESCE(ABS(AVG(realized_pnl) FILTER (WHERE realized_pnl < 0)), 0) AS avg_loss
		FROM trades
		WHERE portfolio_id = $1
			AND realized_pnl IS NOT NULL
	`

	args := []interface{}{portfolioID}
	if symbol != "" {
		query += " AND symbol = $2"
		args = append(args, symbol)
	}

	var winningTrades, losingTrades, totalTrades int64
	var avgWin, avgLoss float64

	err := c.pool.QueryRow(ctx, query, args...).Scan(
		&winningTrades,
		&losingTrades,
		&totalTrades,
		&avgWin,
		&avgLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate win rate: %w", err)
	}

	if totalTrades == 0 {
		log.Warn().Str("portfolio_id", portfolioID.String()).Msg("no closed trades found, using default win rate")
		return defaultWinRate(), nil
	}

	winRate := float64(winningTrades) / float64(totalTrades)

	log.Debug().
		Str("portfolio_id", portfolioID.String()).
		Int64("winning", winningTrades).
		Int64("losing", losingTrades).
		Float64("win_rate", winRate).
		Float64("avg_win", avgWin).
		Float64("avg_loss", avgLoss).
		Msg("win rate calculated from trade history")

	return &WinRateData{
		WinRate:       winRate,
		WinningTrades: winningTrades,
		LosingTrades:  losingTrades,
		TotalTrades:   totalTrades,
		AvgWin:        avgWin,
		AvgLoss:       avgLoss,
	}, nil
}

func defaultWinRate() *WinRateData {
	return &WinRateData{
		WinRate:       0.55,
		WinningTrades: 0,
		LosingTrades:  0,
		TotalTrades:   0,
		AvgWin:        200.0,
		AvgLoss:       100.0,
	}
}

// ============================================================================
// EQUITY CURVE AND PERFORMANCE METRICS
// ============================================================================

// LoadEquityCurve reconstructs a portfolio's equity curve over the trailing
// window by walking its realized_pnl history cumulatively from
// startingBalance, the same anchor the engine controller records at
// Start(). There is no separate equity-snapshot table in this tree; the
// trades table's append-only ledger is the only durable record of balance
// changes over time.
func (c *Calculator) LoadEquityCurve(ctx context.Context, portfolioID uuid.UUID, startingBalance float64, days int) (*PerformanceData, error) {
	if c.pool == nil {
		log.Warn().Msg("no database pool available, returning empty equity curve")
		return emptyPerformanceData(), nil
	}

	query := `
		SELECT realized_pnl, executed_at
		FROM trades
		WHERE portfolio_id = $1
			AND realized_pnl IS NOT NULL
			AND executed_at >= NOW() - INTERVAL '1 day' * $2
		ORDER BY executed_at ASC
	`

	rows, err := c.pool.Query(ctx, query, portfolioID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()

	equityCurve := []float64{startingBalance}
	timestamps := []time.Time{}
	peakEquity := startingBalance
	running := startingBalance

	for rows.Next() {
		var pnl float64
		var executedAt time.Time
		if err := rows.Scan(&pnl, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		running += pnl
		equityCurve = append(equityCurve, running)
		timestamps = append(timestamps, executedAt)
		if running > peakEquity {
			peakEquity = running
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	if len(equityCurve) < 2 {
		log.Warn().Str("portfolio_id", portfolioID.String()).Msg("no closed trades in window, returning empty equity curve")
		return emptyPerformanceData(), nil
	}

	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] > 0 {
			returns = append(returns, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
		}
	}

	log.Debug().
		Int("data_points", len(equityCurve)).
		Float64("peak_equity", peakEquity).
		Int("returns", len(returns)).
		Msg("equity curve reconstructed from trade history")

	return &PerformanceData{
		EquityCurve: equityCurve,
		Returns:     returns,
		PeakEquity:  peakEquity,
		Timestamps:  timestamps,
	}, nil
}

func emptyPerformanceData() *PerformanceData {
	return &PerformanceData{
		EquityCurve: []float64{},
		Returns:     []float64{},
		PeakEquity:  0,
		Timestamps:  []time.Time{},
	}
}

// ============================================================================
// SHARPE RATIO CALCULATION
// ============================================================================

// CalculateSharpeRatio calculates Sharpe ratio from real returns
// Sharpe Ratio = (Mean Return - Risk-Free Rate) / Standard Deviation
func (c *Calculator) CalculateSharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if len(returns) == 0 {
		return 0, fmt.Errorf("returns array is empty")
	}

	meanReturn := mean(returns)
	stdDev := calculateStdDev(returns)
	if stdDev == 0 {
		return 0, fmt.Errorf("standard deviation is zero")
	}

	// Annualize assuming daily returns, 252 trading days per year.
	annualizedReturn := meanReturn * 252.0
	annualizedStdDev := stdDev * math.Sqrt(252.0)

	sharpe := (annualizedReturn - riskFreeRate) / annualizedStdDev

	log.Debug().
		Float64("mean_return", meanReturn).
		Float64("std_dev", stdDev).
		Float64("annualized_return", annualizedReturn).
		Float64("annualized_std_dev", annualizedStdDev).
		Float64("sharpe_ratio", sharpe).
		Msg("Sharpe ratio calculated from real returns")

	return sharpe, nil
}

// CalculateSharpeFromEquity calculates Sharpe ratio directly from a
// portfolio's reconstructed equity curve.
func (c *Calculator) CalculateSharpeFromEquity(ctx context.Context, portfolioID uuid.UUID, startingBalance float64, days int, riskFreeRate float64) (float64, error) {
	perfData, err := c.LoadEquityCurve(ctx, portfolioID, startingBalance, days)
	if err != nil {
		return 0, fmt.Errorf("failed to load equity curve: %w", err)
	}
	if len(perfData.Returns) == 0 {
		return 0, fmt.Errorf("no returns available")
	}
	return c.CalculateSharpeRatio(perfData.Returns, riskFreeRate)
}

// ============================================================================
// VALUE AT RISK (VAR) CALCULATION
// ============================================================================

// CalculateVaR calculates Value at Risk from historical returns
// VaR represents the maximum expected loss at a given confidence level
// Uses historical simulation method with the 95th percentile
func (c *Calculator) CalculateVaR(returns []float64, confidenceLevel float64) (float64, float64, error) {
	if len(returns) == 0 {
		return 0, 0, fmt.Errorf("returns array is empty")
	}

	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, 0, fmt.Errorf("confidence level must be between 0 and 1")
	}

	sortedReturns := make([]float64, len(returns))
	copy(sortedReturns, returns)
	slices.Sort(sortedReturns)

	// Find the percentile corresponding to (1 - confidence_level)
	// For 95% confidence, we look at the 5th percentile (worst 5% of returns)
	percentile := 1 - confidenceLevel
	index := int(float64(len(sortedReturns)) * percentile)
	if index >= len(sortedReturns) {
		index = len(sortedReturns) - 1
	}

	varValue := -sortedReturns[index]

	var cvarSum float64
	cvarCount := 0
	for i := 0; i <= index; i++ {
		cvarSum += sortedReturns[i]
		cvarCount++
	}
	cvarValue := 0.0
	if cvarCount > 0 {
		cvarValue = -cvarSum / float64(cvarCount)
	}

	log.Debug().
		Int("returns_count", len(returns)).
		Float64("confidence_level", confidenceLevel).
		Float64("var", varValue).
		Float64("cvar", cvarValue).
		Msg("VaR calculated from historical returns")

	return varValue, cvarValue, nil
}

// CalculateVaRFromEquity calculates VaR from a portfolio's reconstructed
// equity curve returns.
func (c *Calculator) CalculateVaRFromEquity(ctx context.Context, portfolioID uuid.UUID, startingBalance float64, days int, confidenceLevel float64) (float64, float64, error) {
	perfData, err := c.LoadEquityCurve(ctx, portfolioID, startingBalance, days)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load equity curve: %w", err)
	}
	if len(perfData.Returns) == 0 {
		return 0, 0, fmt.Errorf("no returns available")
	}
	return c.CalculateVaR(perfData.Returns, confidenceLevel)
}

// ============================================================================
// DRAWDOWN CALCULATIONS
// ============================================================================

// CalculateDrawdown calculates current and maximum drawdown from equity curve
func (c *Calculator) CalculateDrawdown(equityCurve []float64) (currentDD float64, maxDD float64, peakEquity float64) {
	if len(equityCurve) == 0 {
		return 0, 0, 0
	}

	peak := equityCurve[0]
	currentEquity := equityCurve[len(equityCurve)-1]

	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	if currentEquity < peak && peak > 0 {
		currentDD = (peak - currentEquity) / peak
	}

	return currentDD, maxDD, peak
}

// CalculateDrawdownFromDB calculates drawdown from a portfolio's
// reconstructed equity curve.
func (c *Calculator) CalculateDrawdownFromDB(ctx context.Context, portfolioID uuid.UUID, startingBalance float64, days int) (currentDD float64, maxDD float64, peakEquity float64, err error) {
	perfData, err := c.LoadEquityCurve(ctx, portfolioID, startingBalance, days)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to load equity curve: %w", err)
	}
	if len(perfData.EquityCurve) == 0 {
		return 0, 0, 0, nil
	}
	currentDD, maxDD, peakEquity = c.CalculateDrawdown(perfData.EquityCurve)
	return currentDD, maxDD, peakEquity, nil
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev calculates standard deviation of a slice using sample
// variance (Bessel's correction).
func calculateStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	if len(values) > 1 {
		variance /= float64(len(values) - 1)
	} else {
		variance /= float64(len(values))
	}
	return math.Sqrt(variance)
}
