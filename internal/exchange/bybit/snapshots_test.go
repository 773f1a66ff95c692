package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuphan-dev/crypto-risk-engine/internal/risk"
)

// TestRiskedExposure_StopImplied tests that exposure counts each position's
// stop-implied loss, not its notional value.
func TestRiskedExposure_StopImplied(t *testing.T) {
	positions := []risk.Position{
		{Symbol: "BTCUSDT", Side: risk.SideLong, EntryPrice: 50000, StopLoss: 49000, Quantity: 0.1},
	}

	assert.InDelta(t, 0.01, riskedExposure(positions, 10000), 1e-9)
}

// TestRiskedExposure_ShortSide tests that a short position's risked capital
// uses the distance up to its stop.
func TestRiskedExposure_ShortSide(t *testing.T) {
	positions := []risk.Position{
		{Symbol: "ETHUSDT", Side: risk.SideShort, EntryPrice: 3000, StopLoss: 3060, Quantity: 1.0},
	}

	assert.InDelta(t, 0.006, riskedExposure(positions, 10000), 1e-9)
}

// TestRiskedExposure_NoStopRisksNotional tests that a position without a
// protective stop counts its full notional as risked.
func TestRiskedExposure_NoStopRisksNotional(t *testing.T) {
	positions := []risk.Position{
		{Symbol: "BTCUSDT", Side: risk.SideLong, EntryPrice: 50000, Quantity: 0.1},
	}

	assert.InDelta(t, 0.5, riskedExposure(positions, 10000), 1e-9)
}

// TestRiskedExposure_NoPositions tests the empty portfolio
func TestRiskedExposure_NoPositions(t *testing.T) {
	assert.Equal(t, 0.0, riskedExposure(nil, 10000))
}

// TestRiskedExposure_ZeroEquity tests that zero equity yields zero exposure
// rather than a division error.
func TestRiskedExposure_ZeroEquity(t *testing.T) {
	positions := []risk.Position{
		{Symbol: "BTCUSDT", Side: risk.SideLong, EntryPrice: 50000, StopLoss: 49000, Quantity: 0.1},
	}

	assert.Equal(t, 0.0, riskedExposure(positions, 0))
}

// TestAssembleAccountState_ExposureLeavesHeadroom tests that a snapshot with
// one half-notional but tightly stopped position reports exposure far below
// the portfolio cap, so the exposure projection does not saturate.
func TestAssembleAccountState_ExposureLeavesHeadroom(t *testing.T) {
	tracked := TrackedState{
		PeakEquity: 10000,
		OpenPositions: []risk.Position{
			{Symbol: "BTCUSDT", Side: risk.SideLong, EntryPrice: 50000, StopLoss: 49000, Quantity: 0.1},
		},
	}

	state := assembleAccountState(10000, 5000, 0, 0.12, tracked)

	assert.InDelta(t, 0.01, state.ExposurePercent, 1e-9)
	assert.Equal(t, 5000.0, state.PositionValue)
	assert.Equal(t, 0.12, state.MarginUsagePercent)
	assert.Equal(t, 0.0, state.CurrentDrawdown)
}

// TestAssembleAccountState_IntradayMaxHoldsEarlierTrough tests that the
// tracked intraday maximum is kept when the account has recovered above it.
func TestAssembleAccountState_IntradayMaxHoldsEarlierTrough(t *testing.T) {
	tracked := TrackedState{
		PeakEquity:          10000,
		MaxIntradayDrawdown: 0.04,
	}

	state := assembleAccountState(9800, 9800, 0, 0, tracked)

	assert.InDelta(t, 0.02, state.CurrentDrawdown, 1e-9)
	assert.InDelta(t, 0.04, state.MaxIntradayDrawdown, 1e-9)
}

// TestAssembleAccountState_IntradayMaxDeepens tests that a new trough below
// the tracked maximum advances it.
func TestAssembleAccountState_IntradayMaxDeepens(t *testing.T) {
	tracked := TrackedState{
		PeakEquity:          10000,
		MaxIntradayDrawdown: 0.01,
	}

	state := assembleAccountState(9700, 9700, 0, 0, tracked)

	assert.InDelta(t, 0.03, state.CurrentDrawdown, 1e-9)
	assert.InDelta(t, 0.03, state.MaxIntradayDrawdown, 1e-9)
}

// TestAssembleAccountState_PeakAdvancesWithEquity tests that fresh equity
// above the tracked high-water mark becomes the new peak.
func TestAssembleAccountState_PeakAdvancesWithEquity(t *testing.T) {
	state := assembleAccountState(10500, 10500, 0, 0, TrackedState{PeakEquity: 10000})

	assert.Equal(t, 10500.0, state.PeakEquity)
	assert.Equal(t, 0.0, state.CurrentDrawdown)
}

// TestClassifyRegime_Bands tests the volatility regime banding
func TestClassifyRegime_Bands(t *testing.T) {
	assert.Equal(t, risk.VolatilityLow, classifyRegime(0.002))
	assert.Equal(t, risk.VolatilityNormal, classifyRegime(0.01))
	assert.Equal(t, risk.VolatilityHigh, classifyRegime(0.02))
	assert.Equal(t, risk.VolatilityExtreme, classifyRegime(0.05))
}

// TestLiquidityScore_SpreadDiscount tests that a wide spread halves the
// turnover-implied score.
func TestLiquidityScore_SpreadDiscount(t *testing.T) {
	tight := liquidityScore(100_000_000, 0.0004)
	wide := liquidityScore(100_000_000, 0.002)

	assert.InDelta(t, tight/2, wide, 1e-9)
	assert.Equal(t, 0.0, liquidityScore(0, 0.0004))
}
