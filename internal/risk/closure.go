package risk

import (
	"fmt"
	"time"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// PositionClosureEvaluator recommends closing all or part of an open
// position. Rules are evaluated in strict priority order and the first rule
// that fires determines the reason and urgency.
type PositionClosureEvaluator struct {
	params  *config.RiskParameters
	breaker *CircuitBreakerEvaluator

	now func() time.Time
}

// NewPositionClosureEvaluator creates a closure evaluator that consults the
// given circuit breaker evaluator for the emergency-exit rule.
func NewPositionClosureEvaluator(params *config.RiskParameters, breaker *CircuitBreakerEvaluator) *PositionClosureEvaluator {
	return &PositionClosureEvaluator{
		params:  params,
		breaker: breaker,
		now:     time.Now,
	}
}

// ShouldClosePosition evaluates the closure rules for one position. Priority:
// stop-loss, take-profit, drawdown protection, emergency exit, volatility
// spike (partial), time stop. The default recommendation is a full close;
// only the volatility-spike rule closes partially.
func (e *PositionClosureEvaluator) ShouldClosePosition(position Position, account AccountState, market MarketConditions) PositionClosureResult {
	now := e.now()
	price := market.CurrentPrice

	if StopHit(position, price) {
		return PositionClosureResult{
			ShouldClose:       true,
			Reason:            ReasonStopLossHit,
			Detail:            fmt.Sprintf("price %.4f reached stop %.4f", price, position.StopLoss),
			PercentageToClose: 100,
			Urgency:           UrgencyHigh,
			EvaluatedAt:       now,
		}
	}

	if TakeProfitHit(position, price) {
		return PositionClosureResult{
			ShouldClose:       true,
			Reason:            ReasonTakeProfitHit,
			Detail:            fmt.Sprintf("price %.4f reached take-profit %.4f", price, position.TakeProfit),
			PercentageToClose: 100,
			Urgency:           UrgencyNormal,
			EvaluatedAt:       now,
		}
	}

	if account.CurrentDrawdown > e.params.MaxIntradayDrawdown {
		return PositionClosureResult{
			ShouldClose:       true,
			Reason:            ReasonDrawdownProtection,
			Detail:            fmt.Sprintf("intraday drawdown %.2f%% breached limit %.2f%%", account.CurrentDrawdown*100, e.params.MaxIntradayDrawdown*100),
			PercentageToClose: 100,
			Urgency:           UrgencyHigh,
			EvaluatedAt:       now,
		}
	}

	if e.breaker.CurrentState() == StateEmergency {
		return PositionClosureResult{
			ShouldClose:       true,
			Reason:            ReasonEmergencyExit,
			Detail:            "circuit breaker in EMERGENCY state",
			PercentageToClose: 100,
			Urgency:           UrgencyEmergency,
			EvaluatedAt:       now,
		}
	}

	if market.HistoricalATR > 0 && market.Volatility > market.HistoricalATR*e.params.VolatilitySpikeMultiple {
		return PositionClosureResult{
			ShouldClose:       true,
			Reason:            ReasonVolatilitySpike,
			Detail:            fmt.Sprintf("volatility %.4f is %.1fx historical ATR %.4f", market.Volatility, market.Volatility/market.HistoricalATR, market.HistoricalATR),
			PercentageToClose: e.params.PartialClosePercent,
			Urgency:           UrgencyHigh,
			EvaluatedAt:       now,
		}
	}

	if e.params.TimeStopEnabled && !position.OpenedAt.IsZero() {
		if age := now.Sub(position.OpenedAt); age > e.params.MaxPositionAge {
			return PositionClosureResult{
				ShouldClose:       true,
				Reason:            ReasonTimeStop,
				Detail:            fmt.Sprintf("position age %s exceeds maximum %s", age.Round(time.Minute), e.params.MaxPositionAge),
				PercentageToClose: 100,
				Urgency:           UrgencyLow,
				EvaluatedAt:       now,
			}
		}
	}

	return PositionClosureResult{
		ShouldClose:       false,
		Reason:            ReasonNone,
		PercentageToClose: 0,
		Urgency:           UrgencyLow,
		EvaluatedAt:       now,
	}
}
