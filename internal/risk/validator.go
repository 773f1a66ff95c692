package risk

import (
	"fmt"
	"time"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// Names of the validator's independent checks
const (
	CheckCircuitBreaker = "circuit_breaker"
	CheckPositionCount  = "position_count"
	CheckTradeSpacing   = "trade_spacing"
	CheckExposure       = "exposure"
	CheckCorrelation    = "correlation"
	CheckMarket         = "market_suitability"
)

// Per-check weights for the aggregate score. Checks are independent and
// additive rather than short-circuited so callers can see which checks
// failed even when the overall verdict is reject.
var checkWeights = map[string]float64{
	CheckCircuitBreaker: 0.25,
	CheckPositionCount:  0.15,
	CheckTradeSpacing:   0.10,
	CheckExposure:       0.20,
	CheckCorrelation:    0.15,
	CheckMarket:         0.15,
}

// RiskValidator runs the full battery of pre-trade checks and aggregates
// them into one verdict. It is stateless apart from the circuit breaker it
// consults, so ValidateTrade is safe for concurrent use and idempotent for
// identical snapshots.
type RiskValidator struct {
	params  *config.RiskParameters
	breaker *CircuitBreakerEvaluator

	now func() time.Time
}

// NewRiskValidator creates a validator that consults the given circuit
// breaker evaluator.
func NewRiskValidator(params *config.RiskParameters, breaker *CircuitBreakerEvaluator) *RiskValidator {
	return &RiskValidator{
		params:  params,
		breaker: breaker,
		now:     time.Now,
	}
}

// ValidateTrade evaluates every check against the proposed signal and the
// current snapshots. A rejected trade is a normal outcome reported as data;
// the per-check breakdown names exactly what failed.
func (v *RiskValidator) ValidateTrade(signal TradingSignal, account AccountState, market MarketConditions) RiskValidationResult {
	result := RiskValidationResult{
		BreakerCheck:       v.checkCircuitBreaker(),
		PositionCountCheck: v.checkPositionCount(account),
		TradeSpacingCheck:  v.checkTradeSpacing(account),
		ExposureCheck:      v.checkExposure(account),
		CorrelationCheck:   v.checkCorrelation(signal, account),
		MarketCheck:        v.checkMarket(market),
		EvaluatedAt:        v.now(),
	}

	result.Valid = true
	score := 0.0
	for _, c := range result.Checks() {
		if !c.Passed {
			result.Valid = false
		}
		score += checkWeights[c.Name] * c.Score
	}

	result.RiskScore = clamp(score, 0, 100)
	result.Level = bandRiskScore(result.RiskScore)
	result.MaxPositionSize = v.maxRecommendedSize(signal, account)
	result.Confidence = clamp(signal.Confidence*100*(1-result.RiskScore/200), 0, 100)

	return result
}

// checkCircuitBreaker requires the Normal operating state. Restricted and
// Emergency both block new entries until the cooldown passes; Halted is a
// manual stop and always blocks.
func (v *RiskValidator) checkCircuitBreaker() RiskCheckResult {
	state := v.breaker.CurrentState()
	if state == StateNormal {
		return RiskCheckResult{Name: CheckCircuitBreaker, Passed: true, Score: 0}
	}

	msg := fmt.Sprintf("circuit breaker state is %s", state)
	if reset := v.breaker.ResetTime(); !reset.IsZero() && state != StateHalted {
		msg = fmt.Sprintf("%s until %s", msg, reset.Format(time.RFC3339))
	}

	return RiskCheckResult{
		Name:    CheckCircuitBreaker,
		Passed:  false,
		Score:   100,
		Message: msg,
	}
}

func (v *RiskValidator) checkPositionCount(account AccountState) RiskCheckResult {
	count := len(account.OpenPositions)
	utilization := float64(count) / float64(v.params.MaxOpenPositions)

	if count >= v.params.MaxOpenPositions {
		return RiskCheckResult{
			Name:    CheckPositionCount,
			Passed:  false,
			Score:   100,
			Message: fmt.Sprintf("open positions %d at limit %d", count, v.params.MaxOpenPositions),
		}
	}

	return RiskCheckResult{Name: CheckPositionCount, Passed: true, Score: clamp(utilization*100, 0, 100)}
}

func (v *RiskValidator) checkTradeSpacing(account AccountState) RiskCheckResult {
	if account.LastTradeTime.IsZero() {
		return RiskCheckResult{Name: CheckTradeSpacing, Passed: true, Score: 0}
	}

	elapsed := v.now().Sub(account.LastTradeTime)
	if elapsed < v.params.MinTimeBetweenTrades {
		return RiskCheckResult{
			Name:    CheckTradeSpacing,
			Passed:  false,
			Score:   100,
			Message: fmt.Sprintf("only %s since last trade, minimum is %s", elapsed.Round(time.Second), v.params.MinTimeBetweenTrades),
		}
	}

	return RiskCheckResult{Name: CheckTradeSpacing, Passed: true, Score: 0}
}

// checkExposure projects portfolio exposure after the proposed trade.
// Exposure is measured in risked capital, so the proposed trade adds the
// per-trade risk fraction.
func (v *RiskValidator) checkExposure(account AccountState) RiskCheckResult {
	projected := account.ExposurePercent + v.params.RiskPerTrade

	if projected > v.params.MaxPortfolioExposure {
		return RiskCheckResult{
			Name:    CheckExposure,
			Passed:  false,
			Score:   100,
			Message: fmt.Sprintf("projected exposure %.1f%% exceeds limit %.1f%%", projected*100, v.params.MaxPortfolioExposure*100),
		}
	}

	utilization := projected / v.params.MaxPortfolioExposure
	return RiskCheckResult{Name: CheckExposure, Passed: true, Score: clamp(utilization*100, 0, 100)}
}

// checkCorrelation finds the highest correlation between the signal's symbol
// and any open position. A position in the same symbol counts as fully
// correlated.
func (v *RiskValidator) checkCorrelation(signal TradingSignal, account AccountState) RiskCheckResult {
	maxCorr := 0.0
	worstSymbol := ""

	for _, pos := range account.OpenPositions {
		corr := 0.0
		if pos.Symbol == signal.Symbol {
			corr = 1.0
		} else if c, ok := pos.CorrelationWith[signal.Symbol]; ok {
			corr = c
		}
		if corr > maxCorr {
			maxCorr = corr
			worstSymbol = pos.Symbol
		}
	}

	if maxCorr > v.params.MaxPositionCorrelation {
		return RiskCheckResult{
			Name:    CheckCorrelation,
			Passed:  false,
			Score:   100,
			Message: fmt.Sprintf("correlation %.2f with open position %s exceeds limit %.2f", maxCorr, worstSymbol, v.params.MaxPositionCorrelation),
		}
	}

	score := 0.0
	if v.params.MaxPositionCorrelation > 0 {
		score = clamp(maxCorr/v.params.MaxPositionCorrelation*100, 0, 100)
	}
	return RiskCheckResult{Name: CheckCorrelation, Passed: true, Score: score}
}

func (v *RiskValidator) checkMarket(market MarketConditions) RiskCheckResult {
	suitability := v.MarketSuitability(market)
	if !suitability.Suitable {
		return RiskCheckResult{
			Name:    CheckMarket,
			Passed:  false,
			Score:   100,
			Message: fmt.Sprintf("market unsuitable: %v", suitability.Reasons),
		}
	}

	// Suitable markets still contribute a graded score from volatility regime
	score := float64(market.Regime) / float64(VolatilityExtreme) * 50
	return RiskCheckResult{Name: CheckMarket, Passed: true, Score: clamp(score, 0, 100)}
}

// MarketSuitability runs the liquidity, spread, regime and anomaly checks on
// a market snapshot and reports every failed criterion.
func (v *RiskValidator) MarketSuitability(market MarketConditions) SuitabilityResult {
	var reasons []string

	if market.LiquidityScore < v.params.MinLiquidityScore {
		reasons = append(reasons, fmt.Sprintf("liquidity score %.0f below minimum %.0f", market.LiquidityScore, v.params.MinLiquidityScore))
	}
	if market.SpreadPercent > v.params.MaxSpreadPercent {
		reasons = append(reasons, fmt.Sprintf("spread %.4f%% above maximum %.4f%%", market.SpreadPercent*100, v.params.MaxSpreadPercent*100))
	}
	// Expected slippage on a market order is about half the spread
	if market.SpreadPercent/2 > v.params.MaxSlippagePercent {
		reasons = append(reasons, fmt.Sprintf("estimated slippage %.4f%% above cap %.4f%%", market.SpreadPercent/2*100, v.params.MaxSlippagePercent*100))
	}
	if market.Regime == VolatilityExtreme {
		reasons = append(reasons, "volatility regime is EXTREME")
	}
	if market.HasAnomalyAtLeast(SeverityHigh) {
		reasons = append(reasons, "high severity market anomaly present")
	}

	return SuitabilityResult{Suitable: len(reasons) == 0, Reasons: reasons}
}

// maxRecommendedSize converts remaining exposure headroom into a quantity at
// the signal's entry price.
func (v *RiskValidator) maxRecommendedSize(signal TradingSignal, account AccountState) float64 {
	if signal.EntryPrice <= 0 || account.TotalEquity <= 0 {
		return 0
	}

	headroom := v.params.MaxPortfolioExposure - account.ExposurePercent
	if headroom <= 0 {
		return 0
	}
	return headroom * account.TotalEquity / signal.EntryPrice
}

// bandRiskScore maps an aggregate score onto the reporting risk levels
func bandRiskScore(score float64) RiskLevel {
	switch {
	case score < 20:
		return RiskVeryLow
	case score < 40:
		return RiskLow
	case score < 60:
		return RiskModerate
	case score < 80:
		return RiskHigh
	default:
		return RiskExtreme
	}
}
