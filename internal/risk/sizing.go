package risk

import (
	"math"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// Invalid-size reasons reported by the position sizing calculator. Rejections
// are normal outcomes and are returned as data, never as errors.
const (
	ReasonZeroPerUnitRisk   = "stop loss equals entry price"
	ReasonZeroEquity        = "account equity must be positive"
	ReasonRiskPctOutOfRange = "risk percent outside (0, 0.10]"
	ReasonBelowExchangeMin  = "size below exchange minimum"
	ReasonDrawdownHalt      = "drawdown at or beyond threshold, new risk halted"
)

// Bounds of the volatility multiplier band. A multiplier above 1 means the
// market is more volatile than baseline and the size shrinks accordingly.
const (
	minVolatilityMult = 0.5
	maxVolatilityMult = 2.0
)

// PositionSizingCalculator computes trade quantities from equity, Kelly
// statistics, volatility and drawdown. It holds only immutable configuration,
// so all methods are safe for concurrent use.
type PositionSizingCalculator struct {
	params *config.RiskParameters
}

// NewPositionSizingCalculator creates a sizing calculator for the given
// validated parameters.
func NewPositionSizingCalculator(params *config.RiskParameters) *PositionSizingCalculator {
	return &PositionSizingCalculator{params: params}
}

// CalculatePositionSize computes an order quantity so that the loss at the
// stop equals accountEquity * riskPct, then shrinks it for volatility. The
// quantity is floored to the instrument's minimum increment; a result below
// the exchange minimum is reported as invalid.
func (c *PositionSizingCalculator) CalculatePositionSize(accountEquity, riskPct, entryPrice, stopLossPrice, volatilityMultiplier float64) PositionSizeResult {
	if accountEquity <= 0 {
		return PositionSizeResult{InvalidReason: ReasonZeroEquity}
	}

	if riskPct <= 0 || riskPct > 0.10 {
		return PositionSizeResult{InvalidReason: ReasonRiskPctOutOfRange}
	}

	perUnitRisk := math.Abs(entryPrice - stopLossPrice)
	if perUnitRisk == 0 {
		return PositionSizeResult{InvalidReason: ReasonZeroPerUnitRisk}
	}

	riskAmount := accountEquity * riskPct
	riskBased := riskAmount / perUnitRisk

	volMult := clamp(volatilityMultiplier, minVolatilityMult, maxVolatilityMult)
	volAdjusted := riskBased / volMult

	quantity := math.Min(riskBased, volAdjusted)
	quantity = c.floorToIncrement(quantity)

	result := PositionSizeResult{
		Quantity:       quantity,
		RiskAmount:     quantity * perUnitRisk,
		RiskPercent:    riskPct,
		VolatilityMult: volMult,
		DrawdownMult:   1.0,
		FinalMult:      math.Min(1.0, 1.0/volMult),
	}

	if quantity < c.params.MinOrderQuantity {
		result.InvalidReason = ReasonBelowExchangeMin
		return result
	}

	result.Valid = true
	result.RMultipleTargets = c.rMultipleTargets(entryPrice, stopLossPrice, quantity)
	return result
}

// CalculateKellyOptimalSize returns the Kelly-optimal capital fraction for
// the given win statistics, clamped to the configured band and scaled by the
// fractional-Kelly multiplier. With no history (zero win rate and averages)
// it falls back to 0; with avgLoss of 0 the raw Kelly is large but the clamp
// keeps it finite.
func (c *PositionSizingCalculator) CalculateKellyOptimalSize(winRate, avgWin, avgLoss float64) float64 {
	if winRate <= 0 || avgWin <= 0 {
		return 0
	}

	var raw float64
	if avgLoss <= 0 {
		// No losing trades yet; treat the payoff ratio as unbounded and let
		// the clamp cap the result.
		raw = c.params.MaxKellyCriterion
	} else {
		payoff := avgWin / avgLoss
		raw = winRate - (1-winRate)/payoff
	}

	scaled := raw * c.params.KellyMultiplier
	return clamp(scaled, c.params.MinKellyCriterion, c.params.MaxKellyCriterion)
}

// AdjustForDrawdown linearly de-risks a base size as drawdown approaches the
// threshold. The multiplier hits 0 at the threshold, halting new risk.
func (c *PositionSizingCalculator) AdjustForDrawdown(baseSize, currentDrawdown, maxDrawdownThreshold float64) float64 {
	return baseSize * DrawdownMultiplier(currentDrawdown, maxDrawdownThreshold)
}

// DrawdownMultiplier returns max(0, 1 - dd/threshold). It is monotonically
// non-increasing in drawdown.
func DrawdownMultiplier(currentDrawdown, maxDrawdownThreshold float64) float64 {
	if maxDrawdownThreshold <= 0 {
		return 0
	}
	if currentDrawdown <= 0 {
		return 1
	}
	mult := 1 - currentDrawdown/maxDrawdownThreshold
	if mult < 0 {
		return 0
	}
	return mult
}

// SizeForSignal produces the final sized order for a validated signal. The
// effective risk percent is the intersection of the fixed per-trade risk and
// the Kelly-optimal fraction, so Kelly alone can never expand size past the
// configured bound. The result is then de-risked for current drawdown.
func (c *PositionSizingCalculator) SizeForSignal(signal TradingSignal, account AccountState, market MarketConditions, stats TradeStats) PositionSizeResult {
	riskPct := c.params.RiskPerTrade
	kellyPct := 0.0

	if c.params.KellySizingEnabled && stats.SampleSize > 0 {
		kellyPct = c.CalculateKellyOptimalSize(stats.WinRate, stats.AvgWin, stats.AvgLoss)
		if kellyPct > 0 && kellyPct < riskPct {
			riskPct = kellyPct
		}
	}

	stops := NewStopLossManager(c.params).CalculateStopLossLevels(signal.EntryPrice, signal.Side)
	volMult := c.VolatilityMultiplier(market)

	result := c.CalculatePositionSize(account.TotalEquity, riskPct, signal.EntryPrice, stops.StopLoss, volMult)
	result.KellyOptimalPct = kellyPct
	if !result.Valid {
		return result
	}

	ddMult := DrawdownMultiplier(account.CurrentDrawdown, c.params.MaxIntradayDrawdown)
	if ddMult == 0 {
		result.Valid = false
		result.InvalidReason = ReasonDrawdownHalt
		result.Quantity = 0
		result.RiskAmount = 0
		result.DrawdownMult = 0
		result.FinalMult = 0
		result.RMultipleTargets = nil
		return result
	}

	perUnitRisk := math.Abs(signal.EntryPrice - stops.StopLoss)
	result.Quantity = c.floorToIncrement(result.Quantity * ddMult)
	result.RiskAmount = result.Quantity * perUnitRisk
	result.DrawdownMult = ddMult
	result.FinalMult = ddMult * math.Min(1.0, 1.0/result.VolatilityMult)
	result.RMultipleTargets = c.rMultipleTargets(signal.EntryPrice, stops.StopLoss, result.Quantity)

	if result.Quantity < c.params.MinOrderQuantity {
		result.Valid = false
		result.InvalidReason = ReasonBelowExchangeMin
	}

	return result
}

// VolatilityMultiplier derives the volatility multiplier from a market
// snapshot. Baseline volatility maps to 1.0; the configured adjustment factor
// steepens or flattens the response. Callers do not need to pre-clamp, the
// sizing path clamps to the band.
func (c *PositionSizingCalculator) VolatilityMultiplier(market MarketConditions) float64 {
	if market.Volatility <= 0 {
		return 1.0
	}
	return 1.0 + market.Volatility*10*c.params.VolatilityAdjustmentFactor
}

// rMultipleTargets builds the expected-profit table at 1R, 2R and 3R
func (c *PositionSizingCalculator) rMultipleTargets(entryPrice, stopLossPrice, quantity float64) []RMultipleTarget {
	perUnitRisk := math.Abs(entryPrice - stopLossPrice)
	if perUnitRisk == 0 || quantity <= 0 {
		return nil
	}

	direction := 1.0
	if stopLossPrice > entryPrice { // short
		direction = -1.0
	}

	targets := make([]RMultipleTarget, 0, 3)
	for r := 1.0; r <= 3.0; r++ {
		targets = append(targets, RMultipleTarget{
			Multiple:       r,
			TargetPrice:    entryPrice + direction*r*perUnitRisk,
			ExpectedProfit: r * quantity * perUnitRisk,
			RiskReward:     r,
		})
	}
	return targets
}

func (c *PositionSizingCalculator) floorToIncrement(quantity float64) float64 {
	inc := c.params.MinQuantityIncrement
	if inc <= 0 {
		return quantity
	}
	steps := math.Floor(quantity/inc + 1e-9)
	return steps * inc
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
