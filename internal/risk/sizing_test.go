package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// TestCalculatePositionSize_RiskBased tests that the quantity makes the loss
// at the stop equal equity times risk percent
func TestCalculatePositionSize_RiskBased(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	result := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 1.0)

	assert.True(t, result.Valid)
	assert.InDelta(t, 0.2, result.Quantity, 1e-9)
	assert.InDelta(t, 200.0, result.RiskAmount, 1e-6)
	assert.Len(t, result.RMultipleTargets, 3)
}

// TestCalculatePositionSize_VolatilityShrink tests that a volatility
// multiplier above 1 shrinks the quantity
func TestCalculatePositionSize_VolatilityShrink(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	baseline := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 1.0)
	shrunk := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 2.0)

	assert.True(t, shrunk.Valid)
	assert.Less(t, shrunk.Quantity, baseline.Quantity)
	assert.InDelta(t, 0.1, shrunk.Quantity, 1e-9)
}

// TestCalculatePositionSize_VolatilityClamped tests that multipliers outside
// the band are clamped before use
func TestCalculatePositionSize_VolatilityClamped(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	extreme := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 10.0)
	atBound := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 2.0)

	assert.Equal(t, atBound.Quantity, extreme.Quantity)
	assert.Equal(t, 2.0, extreme.VolatilityMult)
}

// TestCalculatePositionSize_FinalMultMatchesQuantity tests that the reported
// final multiplier is the ratio actually applied to the risk-based quantity,
// including the calm-market case where volatility never expands the size
func TestCalculatePositionSize_FinalMultMatchesQuantity(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	calm := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 0.5)
	volatile := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 2.0)

	assert.InDelta(t, 0.2, calm.Quantity, 1e-9)
	assert.Equal(t, 1.0, calm.FinalMult)
	assert.InDelta(t, 0.1, volatile.Quantity, 1e-9)
	assert.Equal(t, 0.5, volatile.FinalMult)
}

// TestCalculatePositionSize_StopEqualsEntry tests the zero per-unit-risk
// rejection
func TestCalculatePositionSize_StopEqualsEntry(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	result := calc.CalculatePositionSize(10000, 0.02, 50000, 50000, 1.0)

	assert.False(t, result.Valid)
	assert.Equal(t, ReasonZeroPerUnitRisk, result.InvalidReason)
	assert.Equal(t, 0.0, result.Quantity)
}

// TestCalculatePositionSize_ZeroEquity tests rejection of non-positive equity
func TestCalculatePositionSize_ZeroEquity(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	result := calc.CalculatePositionSize(0, 0.02, 50000, 49000, 1.0)

	assert.False(t, result.Valid)
	assert.Equal(t, ReasonZeroEquity, result.InvalidReason)
}

// TestCalculatePositionSize_RiskPctOutOfRange tests rejection of risk
// percents outside the allowed interval
func TestCalculatePositionSize_RiskPctOutOfRange(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	tooHigh := calc.CalculatePositionSize(10000, 0.11, 50000, 49000, 1.0)
	zero := calc.CalculatePositionSize(10000, 0, 50000, 49000, 1.0)

	assert.Equal(t, ReasonRiskPctOutOfRange, tooHigh.InvalidReason)
	assert.Equal(t, ReasonRiskPctOutOfRange, zero.InvalidReason)
}

// TestCalculatePositionSize_BelowExchangeMinimum tests rejection when the
// floored quantity is under the exchange minimum
func TestCalculatePositionSize_BelowExchangeMinimum(t *testing.T) {
	params := config.Default()
	params.MinOrderQuantity = 1.0
	calc := NewPositionSizingCalculator(params)

	result := calc.CalculatePositionSize(10000, 0.02, 50000, 49000, 1.0)

	assert.False(t, result.Valid)
	assert.Equal(t, ReasonBelowExchangeMin, result.InvalidReason)
}

// TestCalculateKellyOptimalSize_TypicalStats tests the fractional Kelly value
// for a positive-edge history
func TestCalculateKellyOptimalSize_TypicalStats(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	// raw = 0.55 - 0.45/1.5 = 0.25, scaled by 0.25 = 0.0625
	kelly := calc.CalculateKellyOptimalSize(0.55, 150, 100)

	assert.InDelta(t, 0.0625, kelly, 1e-9)
}

// TestCalculateKellyOptimalSize_NegativeEdgeFloored tests that a losing
// system is floored at the minimum Kelly fraction
func TestCalculateKellyOptimalSize_NegativeEdgeFloored(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	// raw = 0.40 - 0.60/1.0 = -0.20, scaled = -0.05, floored to 0.01
	kelly := calc.CalculateKellyOptimalSize(0.40, 100, 100)

	assert.Equal(t, 0.01, kelly)
}

// TestCalculateKellyOptimalSize_NoLosses tests the clamp with an all-win
// history
func TestCalculateKellyOptimalSize_NoLosses(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	kelly := calc.CalculateKellyOptimalSize(1.0, 150, 0)

	assert.LessOrEqual(t, kelly, config.Default().MaxKellyCriterion)
	assert.Greater(t, kelly, 0.0)
}

// TestCalculateKellyOptimalSize_NoHistory tests the zero fallback without
// win statistics
func TestCalculateKellyOptimalSize_NoHistory(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	assert.Equal(t, 0.0, calc.CalculateKellyOptimalSize(0, 0, 0))
}

// TestDrawdownMultiplier_Monotone tests that the multiplier never increases
// as drawdown grows
func TestDrawdownMultiplier_Monotone(t *testing.T) {
	prev := DrawdownMultiplier(0, 0.05)
	assert.Equal(t, 1.0, prev)

	for dd := 0.005; dd <= 0.08; dd += 0.005 {
		mult := DrawdownMultiplier(dd, 0.05)
		assert.LessOrEqual(t, mult, prev)
		prev = mult
	}
}

// TestDrawdownMultiplier_ZeroAtThreshold tests the hard halt at and beyond
// the threshold
func TestDrawdownMultiplier_ZeroAtThreshold(t *testing.T) {
	assert.Equal(t, 0.0, DrawdownMultiplier(0.05, 0.05))
	assert.Equal(t, 0.0, DrawdownMultiplier(0.08, 0.05))
	assert.InDelta(t, 0.5, DrawdownMultiplier(0.025, 0.05), 1e-9)
}

// TestAdjustForDrawdown tests the linear de-risking of a base size
func TestAdjustForDrawdown(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	assert.InDelta(t, 0.1, calc.AdjustForDrawdown(0.2, 0.025, 0.05), 1e-9)
	assert.Equal(t, 0.0, calc.AdjustForDrawdown(0.2, 0.05, 0.05))
}

// TestSizeForSignal_HealthyAccount tests the full sizing path with no
// drawdown and baseline volatility
func TestSizeForSignal_HealthyAccount(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	signal := TradingSignal{Symbol: "BTCUSDT", Side: SideLong, EntryPrice: 50000, Confidence: 0.7}
	account := AccountState{TotalEquity: 10000}
	market := MarketConditions{Symbol: "BTCUSDT", CurrentPrice: 50000}

	result := calc.SizeForSignal(signal, account, market, TradeStats{})

	// stop at 49000, per-unit risk 1000, 2% of 10000 = 200 -> 0.2
	assert.True(t, result.Valid)
	assert.InDelta(t, 0.2, result.Quantity, 1e-9)
	assert.Equal(t, 1.0, result.DrawdownMult)
}

// TestSizeForSignal_KellyCapsRisk tests that a Kelly fraction below the fixed
// risk percent reduces the effective risk
func TestSizeForSignal_KellyCapsRisk(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	signal := TradingSignal{Symbol: "BTCUSDT", Side: SideLong, EntryPrice: 50000, Confidence: 0.7}
	account := AccountState{TotalEquity: 10000}
	market := MarketConditions{Symbol: "BTCUSDT", CurrentPrice: 50000}
	stats := TradeStats{SampleSize: 30, WinRate: 0.40, AvgWin: 100, AvgLoss: 100}

	result := calc.SizeForSignal(signal, account, market, stats)

	// Kelly floors at 0.01, below the 0.02 fixed risk
	assert.True(t, result.Valid)
	assert.Equal(t, 0.01, result.RiskPercent)
	assert.InDelta(t, 0.1, result.Quantity, 1e-9)
}

// TestSizeForSignal_DrawdownHalt tests that drawdown at the threshold halts
// new risk entirely
func TestSizeForSignal_DrawdownHalt(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	signal := TradingSignal{Symbol: "BTCUSDT", Side: SideLong, EntryPrice: 50000}
	account := AccountState{TotalEquity: 10000, CurrentDrawdown: 0.05}
	market := MarketConditions{Symbol: "BTCUSDT", CurrentPrice: 50000}

	result := calc.SizeForSignal(signal, account, market, TradeStats{})

	assert.False(t, result.Valid)
	assert.Equal(t, ReasonDrawdownHalt, result.InvalidReason)
	assert.Equal(t, 0.0, result.Quantity)
	assert.Equal(t, 0.0, result.DrawdownMult)
}

// TestSizeForSignal_PartialDrawdownShrinks tests the linear de-risk between
// zero drawdown and the threshold
func TestSizeForSignal_PartialDrawdownShrinks(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	signal := TradingSignal{Symbol: "BTCUSDT", Side: SideLong, EntryPrice: 50000}
	market := MarketConditions{Symbol: "BTCUSDT", CurrentPrice: 50000}

	healthy := calc.SizeForSignal(signal, AccountState{TotalEquity: 10000}, market, TradeStats{})
	stressed := calc.SizeForSignal(signal, AccountState{TotalEquity: 10000, CurrentDrawdown: 0.025}, market, TradeStats{})

	assert.True(t, stressed.Valid)
	assert.InDelta(t, healthy.Quantity/2, stressed.Quantity, 1e-9)
	assert.InDelta(t, 0.5, stressed.DrawdownMult, 1e-9)
	assert.InDelta(t, 0.5, stressed.FinalMult, 1e-9)
}

// TestVolatilityMultiplier_FromSnapshot tests the mapping from snapshot
// volatility to the sizing multiplier
func TestVolatilityMultiplier_FromSnapshot(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	assert.Equal(t, 1.0, calc.VolatilityMultiplier(MarketConditions{}))
	assert.InDelta(t, 1.2, calc.VolatilityMultiplier(MarketConditions{Volatility: 0.02}), 1e-9)
}

// TestRMultipleTargets_ShortSide tests that short targets sit below the entry
func TestRMultipleTargets_ShortSide(t *testing.T) {
	calc := NewPositionSizingCalculator(config.Default())

	targets := calc.rMultipleTargets(50000, 51000, 0.2)

	assert.Len(t, targets, 3)
	assert.InDelta(t, 49000, targets[0].TargetPrice, 1e-6)
	assert.InDelta(t, 47000, targets[2].TargetPrice, 1e-6)
	assert.InDelta(t, 200, targets[0].ExpectedProfit, 1e-6)
}

// TestFloorToIncrement tests flooring to the instrument's quantity step
func TestFloorToIncrement(t *testing.T) {
	params := config.Default()
	params.MinQuantityIncrement = 0.01
	calc := NewPositionSizingCalculator(params)

	assert.InDelta(t, 0.25, calc.floorToIncrement(0.2599), 1e-9)
	assert.InDelta(t, 0.26, calc.floorToIncrement(0.26), 1e-9)
}
