package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

func newTestValidator(t *testing.T) (*RiskValidator, *CircuitBreakerEvaluator, time.Time) {
	t.Helper()

	params := config.Default()
	breaker := NewCircuitBreakerEvaluator(params)
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	breaker.now = func() time.Time { return current }

	validator := NewRiskValidator(params, breaker)
	validator.now = func() time.Time { return current }
	return validator, breaker, current
}

func healthyMarket() MarketConditions {
	return MarketConditions{
		Symbol:         "BTCUSDT",
		CurrentPrice:   50000,
		Volatility:     0.012,
		LiquidityScore: 85,
		SpreadPercent:  0.0004,
		Regime:         VolatilityNormal,
	}
}

func healthySignal(now time.Time) TradingSignal {
	return TradingSignal{
		Symbol:     "BTCUSDT",
		Side:       SideLong,
		EntryPrice: 50000,
		Confidence: 0.8,
		CreatedAt:  now,
	}
}

// TestValidateTrade_AllChecksPass tests approval of a clean trade on a
// healthy account
func TestValidateTrade_AllChecksPass(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{
		TotalEquity:   10000,
		LastTradeTime: now.Add(-10 * time.Minute),
	}

	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.True(t, result.Valid)
	for _, check := range result.Checks() {
		assert.True(t, check.Passed, "check %s should pass", check.Name)
	}
	assert.Less(t, result.RiskScore, 20.0)
	assert.Equal(t, RiskVeryLow, result.Level)
	assert.Greater(t, result.Confidence, 0.0)
}

// TestValidateTrade_Idempotent tests that identical snapshots yield identical
// verdicts
func TestValidateTrade_Idempotent(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{TotalEquity: 10000, LastTradeTime: now.Add(-10 * time.Minute)}

	first := validator.ValidateTrade(healthySignal(now), account, healthyMarket())
	second := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.Equal(t, first, second)
}

// TestValidateTrade_BreakerBlocks tests rejection while the circuit breaker
// is restricting entries
func TestValidateTrade_BreakerBlocks(t *testing.T) {
	validator, breaker, now := newTestValidator(t)

	breaker.Evaluate(
		AccountState{TotalEquity: 10000, CurrentDrawdown: 0.06},
		MarketConditions{Regime: VolatilityNormal},
	)

	account := AccountState{TotalEquity: 10000, LastTradeTime: now.Add(-10 * time.Minute)}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.Valid)
	assert.False(t, result.BreakerCheck.Passed)
	assert.Contains(t, result.BreakerCheck.Message, "RESTRICTED")
}

// TestValidateTrade_PositionLimitBlocks tests rejection at the open-position
// cap
func TestValidateTrade_PositionLimitBlocks(t *testing.T) {
	validator, _, now := newTestValidator(t)

	positions := make([]Position, 5)
	for i := range positions {
		positions[i] = Position{Symbol: "ETHUSDT", Side: SideLong}
	}
	account := AccountState{
		TotalEquity:   10000,
		OpenPositions: positions,
		LastTradeTime: now.Add(-10 * time.Minute),
	}

	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.Valid)
	assert.False(t, result.PositionCountCheck.Passed)
}

// TestValidateTrade_TradeSpacingBlocks tests rejection inside the minimum
// spacing window
func TestValidateTrade_TradeSpacingBlocks(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{TotalEquity: 10000, LastTradeTime: now.Add(-30 * time.Second)}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.Valid)
	assert.False(t, result.TradeSpacingCheck.Passed)
}

// TestValidateTrade_FirstTradeHasNoSpacing tests that a zero last-trade time
// passes the spacing check
func TestValidateTrade_FirstTradeHasNoSpacing(t *testing.T) {
	validator, _, now := newTestValidator(t)

	result := validator.ValidateTrade(healthySignal(now), AccountState{TotalEquity: 10000}, healthyMarket())

	assert.True(t, result.TradeSpacingCheck.Passed)
}

// TestValidateTrade_ExposureBlocks tests rejection when the projected
// exposure breaches the portfolio limit
func TestValidateTrade_ExposureBlocks(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{
		TotalEquity:     10000,
		ExposurePercent: 0.49,
		LastTradeTime:   now.Add(-10 * time.Minute),
	}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.Valid)
	assert.False(t, result.ExposureCheck.Passed)
}

// TestValidateTrade_CorrelationBlocks tests rejection on a highly correlated
// open position
func TestValidateTrade_CorrelationBlocks(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{
		TotalEquity: 10000,
		OpenPositions: []Position{
			{Symbol: "ETHUSDT", CorrelationWith: map[string]float64{"BTCUSDT": 0.85}},
		},
		LastTradeTime: now.Add(-10 * time.Minute),
	}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.Valid)
	assert.False(t, result.CorrelationCheck.Passed)
	assert.Contains(t, result.CorrelationCheck.Message, "ETHUSDT")
}

// TestValidateTrade_SameSymbolFullyCorrelated tests that an open position in
// the signal's symbol counts as correlation 1.0
func TestValidateTrade_SameSymbolFullyCorrelated(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{
		TotalEquity:   10000,
		OpenPositions: []Position{{Symbol: "BTCUSDT", Side: SideLong}},
		LastTradeTime: now.Add(-10 * time.Minute),
	}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	assert.False(t, result.CorrelationCheck.Passed)
}

// TestValidateTrade_AllFailuresReported tests that checks do not
// short-circuit and every failure is listed
func TestValidateTrade_AllFailuresReported(t *testing.T) {
	validator, breaker, now := newTestValidator(t)

	breaker.Evaluate(
		AccountState{TotalEquity: 10000, CurrentDrawdown: 0.06},
		MarketConditions{Regime: VolatilityNormal},
	)

	positions := make([]Position, 5)
	for i := range positions {
		positions[i] = Position{Symbol: "BTCUSDT", Side: SideLong}
	}
	account := AccountState{
		TotalEquity:     10000,
		OpenPositions:   positions,
		ExposurePercent: 0.49,
		LastTradeTime:   now.Add(-5 * time.Second),
	}
	market := healthyMarket()
	market.LiquidityScore = 10

	result := validator.ValidateTrade(healthySignal(now), account, market)

	assert.False(t, result.Valid)
	assert.Len(t, result.FailedChecks(), 6)
	assert.Equal(t, 100.0, result.RiskScore)
	assert.Equal(t, RiskExtreme, result.Level)
}

// TestMarketSuitability_ReportsEveryReason tests that all failed criteria are
// listed, not just the first
func TestMarketSuitability_ReportsEveryReason(t *testing.T) {
	validator, _, _ := newTestValidator(t)

	market := MarketConditions{
		LiquidityScore: 10,
		SpreadPercent:  0.01,
		Regime:         VolatilityExtreme,
		Anomalies:      []MarketAnomaly{{Type: "flash_crash", Severity: SeverityCritical}},
	}

	suitability := validator.MarketSuitability(market)

	assert.False(t, suitability.Suitable)
	assert.Len(t, suitability.Reasons, 4)
}

// TestMarketSuitability_HealthyMarket tests the pass path
func TestMarketSuitability_HealthyMarket(t *testing.T) {
	validator, _, _ := newTestValidator(t)

	suitability := validator.MarketSuitability(healthyMarket())

	assert.True(t, suitability.Suitable)
	assert.Empty(t, suitability.Reasons)
}

// TestMaxRecommendedSize tests the exposure-headroom quantity conversion
func TestMaxRecommendedSize(t *testing.T) {
	validator, _, now := newTestValidator(t)

	account := AccountState{
		TotalEquity:     10000,
		ExposurePercent: 0.30,
		LastTradeTime:   now.Add(-10 * time.Minute),
	}
	result := validator.ValidateTrade(healthySignal(now), account, healthyMarket())

	// 20% headroom of 10000 at price 50000
	assert.InDelta(t, 0.04, result.MaxPositionSize, 1e-9)
}

// TestBandRiskScore tests the score-to-level banding
func TestBandRiskScore(t *testing.T) {
	assert.Equal(t, RiskVeryLow, bandRiskScore(0))
	assert.Equal(t, RiskLow, bandRiskScore(20))
	assert.Equal(t, RiskModerate, bandRiskScore(45))
	assert.Equal(t, RiskHigh, bandRiskScore(60))
	assert.Equal(t, RiskExtreme, bandRiskScore(80))
}
