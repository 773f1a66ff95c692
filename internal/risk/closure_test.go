package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

func newTestClosureEvaluator(t *testing.T) (*PositionClosureEvaluator, *CircuitBreakerEvaluator, time.Time) {
	t.Helper()

	params := config.Default()
	breaker := NewCircuitBreakerEvaluator(params)
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	breaker.now = func() time.Time { return current }

	evaluator := NewPositionClosureEvaluator(params, breaker)
	evaluator.now = func() time.Time { return current }
	return evaluator, breaker, current
}

func openLongPosition(now time.Time) Position {
	return Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		Side:       SideLong,
		EntryPrice: 50000,
		Quantity:   0.2,
		StopLoss:   49000,
		TakeProfit: 52000,
		OpenedAt:   now.Add(-2 * time.Hour),
	}
}

func quietMarket(price float64) MarketConditions {
	return MarketConditions{
		Symbol:        "BTCUSDT",
		CurrentPrice:  price,
		Volatility:    0.012,
		HistoricalATR: 0.011,
		Regime:        VolatilityNormal,
	}
}

// TestShouldClosePosition_HoldByDefault tests that a healthy position is left
// open
func TestShouldClosePosition_HoldByDefault(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	result := evaluator.ShouldClosePosition(openLongPosition(now), AccountState{TotalEquity: 10000}, quietMarket(50500))

	assert.False(t, result.ShouldClose)
	assert.Equal(t, ReasonNone, result.Reason)
	assert.Equal(t, 0.0, result.PercentageToClose)
}

// TestShouldClosePosition_StopLossHit tests the highest priority rule
func TestShouldClosePosition_StopLossHit(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	result := evaluator.ShouldClosePosition(openLongPosition(now), AccountState{TotalEquity: 10000}, quietMarket(48900))

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonStopLossHit, result.Reason)
	assert.Equal(t, 100.0, result.PercentageToClose)
	assert.Equal(t, UrgencyHigh, result.Urgency)
}

// TestShouldClosePosition_TakeProfitHit tests the take-profit rule
func TestShouldClosePosition_TakeProfitHit(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	result := evaluator.ShouldClosePosition(openLongPosition(now), AccountState{TotalEquity: 10000}, quietMarket(52100))

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonTakeProfitHit, result.Reason)
	assert.Equal(t, UrgencyNormal, result.Urgency)
}

// TestShouldClosePosition_StopBeatsTakeProfit tests the priority order when
// both protective levels read as hit
func TestShouldClosePosition_StopBeatsTakeProfit(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	position := openLongPosition(now)
	position.StopLoss = 53000 // trailed above the take-profit

	result := evaluator.ShouldClosePosition(position, AccountState{TotalEquity: 10000}, quietMarket(52500))

	assert.Equal(t, ReasonStopLossHit, result.Reason)
}

// TestShouldClosePosition_DrawdownProtection tests the account-level
// drawdown rule
func TestShouldClosePosition_DrawdownProtection(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	account := AccountState{TotalEquity: 9400, CurrentDrawdown: 0.06}
	result := evaluator.ShouldClosePosition(openLongPosition(now), account, quietMarket(50500))

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonDrawdownProtection, result.Reason)
	assert.Equal(t, 100.0, result.PercentageToClose)
	assert.Equal(t, UrgencyHigh, result.Urgency)
}

// TestShouldClosePosition_EmergencyExit tests the full close while the
// breaker is in the Emergency state
func TestShouldClosePosition_EmergencyExit(t *testing.T) {
	evaluator, breaker, now := newTestClosureEvaluator(t)

	breaker.Evaluate(
		AccountState{TotalEquity: 10000, RealizedPnLToday: -500},
		MarketConditions{Regime: VolatilityNormal},
	)

	result := evaluator.ShouldClosePosition(openLongPosition(now), AccountState{TotalEquity: 10000}, quietMarket(50500))

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonEmergencyExit, result.Reason)
	assert.Equal(t, UrgencyEmergency, result.Urgency)
}

// TestShouldClosePosition_VolatilitySpikePartial tests the only partial-close
// rule
func TestShouldClosePosition_VolatilitySpikePartial(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	market := quietMarket(50500)
	market.Volatility = 0.04 // above 3x historical ATR of 0.011

	result := evaluator.ShouldClosePosition(openLongPosition(now), AccountState{TotalEquity: 10000}, market)

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonVolatilitySpike, result.Reason)
	assert.Equal(t, 50.0, result.PercentageToClose)
	assert.Equal(t, UrgencyHigh, result.Urgency)
}

// TestShouldClosePosition_TimeStop tests the lowest priority rule
func TestShouldClosePosition_TimeStop(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	position := openLongPosition(now)
	position.OpenedAt = now.Add(-49 * time.Hour)

	result := evaluator.ShouldClosePosition(position, AccountState{TotalEquity: 10000}, quietMarket(50500))

	assert.True(t, result.ShouldClose)
	assert.Equal(t, ReasonTimeStop, result.Reason)
	assert.Equal(t, UrgencyLow, result.Urgency)
}

// TestShouldClosePosition_TimeStopDisabled tests the feature toggle
func TestShouldClosePosition_TimeStopDisabled(t *testing.T) {
	params := config.Default()
	params.TimeStopEnabled = false
	breaker := NewCircuitBreakerEvaluator(params)
	evaluator := NewPositionClosureEvaluator(params, breaker)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator.now = func() time.Time { return now }

	position := openLongPosition(now)
	position.OpenedAt = now.Add(-49 * time.Hour)

	result := evaluator.ShouldClosePosition(position, AccountState{TotalEquity: 10000}, quietMarket(50500))

	assert.False(t, result.ShouldClose)
}

// TestShouldClosePosition_ShortSideStops tests stop and take-profit detection
// for a short position
func TestShouldClosePosition_ShortSideStops(t *testing.T) {
	evaluator, _, now := newTestClosureEvaluator(t)

	position := Position{
		ID:         "pos-2",
		Symbol:     "BTCUSDT",
		Side:       SideShort,
		EntryPrice: 50000,
		Quantity:   0.2,
		StopLoss:   51000,
		TakeProfit: 48000,
		OpenedAt:   now.Add(-time.Hour),
	}

	stopped := evaluator.ShouldClosePosition(position, AccountState{TotalEquity: 10000}, quietMarket(51200))
	assert.Equal(t, ReasonStopLossHit, stopped.Reason)

	profited := evaluator.ShouldClosePosition(position, AccountState{TotalEquity: 10000}, quietMarket(47900))
	assert.Equal(t, ReasonTakeProfitHit, profited.Reason)
}
