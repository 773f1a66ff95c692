package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// Trigger names reported in CircuitBreakerResult
const (
	TriggerIntradayDrawdown  = "intraday_drawdown"
	TriggerDailyLoss         = "daily_loss"
	TriggerExtremeVolatility = "extreme_volatility"
	TriggerMarketAnomaly     = "market_anomaly"
)

// CircuitBreakerEvaluator inspects account and market snapshots for threshold
// breaches and derives the engine's operating state. Evaluation itself is a
// pure function of the snapshots; the evaluator additionally latches a
// cooldown so that a trip keeps restricting new entries until ResetTime even
// if later snapshots no longer breach. The latch is the only mutable state
// and runs behind an RWMutex: health evaluation arrives on a periodic timer
// while state reads come from the trade-signal path.
type CircuitBreakerEvaluator struct {
	params *config.RiskParameters

	mu           sync.RWMutex
	latchedState SystemState
	resetTime    time.Time
	halted       bool

	now func() time.Time
}

// NewCircuitBreakerEvaluator creates a circuit breaker evaluator in the
// Normal state.
func NewCircuitBreakerEvaluator(params *config.RiskParameters) *CircuitBreakerEvaluator {
	return &CircuitBreakerEvaluator{
		params:       params,
		latchedState: StateNormal,
		now:          time.Now,
	}
}

// Evaluate runs every trigger against the snapshots, derives the system
// state, and latches the resulting cooldown. The trigger set is fixed and
// every trigger is evaluated independently so the result lists all breaches,
// not just the first.
func (e *CircuitBreakerEvaluator) Evaluate(account AccountState, market MarketConditions) CircuitBreakerResult {
	now := e.now()
	var triggers []CircuitBreakerTrigger

	if account.CurrentDrawdown > e.params.MaxIntradayDrawdown {
		triggers = append(triggers, CircuitBreakerTrigger{
			Name:           TriggerIntradayDrawdown,
			Description:    fmt.Sprintf("Intraday drawdown %.2f%% exceeds limit %.2f%%", account.CurrentDrawdown*100, e.params.MaxIntradayDrawdown*100),
			Severity:       SeverityHigh,
			TriggerValue:   account.CurrentDrawdown,
			ThresholdValue: e.params.MaxIntradayDrawdown,
		})
	}

	if dailyLoss := account.DailyLossPercent(); dailyLoss > e.params.MaxDailyLoss {
		triggers = append(triggers, CircuitBreakerTrigger{
			Name:           TriggerDailyLoss,
			Description:    fmt.Sprintf("Daily realized loss %.2f%% exceeds limit %.2f%%", dailyLoss*100, e.params.MaxDailyLoss*100),
			Severity:       SeverityCritical,
			TriggerValue:   dailyLoss,
			ThresholdValue: e.params.MaxDailyLoss,
		})
	}

	if market.Regime == VolatilityExtreme {
		triggers = append(triggers, CircuitBreakerTrigger{
			Name:           TriggerExtremeVolatility,
			Description:    fmt.Sprintf("Volatility regime is %s", market.Regime),
			Severity:       SeverityMedium,
			TriggerValue:   float64(market.Regime),
			ThresholdValue: float64(VolatilityExtreme),
		})
	}

	for _, anomaly := range market.Anomalies {
		if anomaly.Severity >= SeverityHigh {
			triggers = append(triggers, CircuitBreakerTrigger{
				Name:           TriggerMarketAnomaly,
				Description:    fmt.Sprintf("Market anomaly %s (%s): %s", anomaly.Type, anomaly.Severity, anomaly.Description),
				Severity:       SeverityHigh,
				TriggerValue:   float64(anomaly.Severity),
				ThresholdValue: float64(SeverityHigh),
			})
		}
	}

	result := CircuitBreakerResult{
		Triggered:   len(triggers) > 0,
		Triggers:    triggers,
		State:       StateNormal,
		EvaluatedAt: now,
	}

	for _, t := range triggers {
		if t.Severity > result.OverallSeverity {
			result.OverallSeverity = t.Severity
		}
	}

	if result.Triggered {
		if result.OverallSeverity >= SeverityCritical {
			result.State = StateEmergency
		} else {
			result.State = StateRestricted
		}
		result.ResetTime = now.Add(e.params.Cooldown())
	}

	e.latch(result)
	return e.applyLatch(result)
}

// latch records a trip so the restriction outlives the breaching snapshot
func (e *CircuitBreakerEvaluator) latch(result CircuitBreakerResult) {
	if !result.Triggered {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A new trip always refreshes the cooldown. A more severe state replaces
	// a less severe one; a less severe trip never downgrades an unexpired
	// latch.
	if result.State > e.latchedState || e.now().After(e.resetTime) {
		e.latchedState = result.State
	}
	e.resetTime = result.ResetTime
}

// applyLatch overlays any unexpired latched restriction onto a result, so
// a quiet evaluation during cooldown still reports the restricted state.
func (e *CircuitBreakerEvaluator) applyLatch(result CircuitBreakerResult) CircuitBreakerResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.halted {
		result.State = StateHalted
		return result
	}

	if !e.now().After(e.resetTime) && e.latchedState > result.State {
		result.State = e.latchedState
		result.ResetTime = e.resetTime
	}
	return result
}

// CurrentState returns the operating state as of now, accounting for the
// latched cooldown. It takes no snapshots; it answers "may new entries be
// validated right now".
func (e *CircuitBreakerEvaluator) CurrentState() SystemState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.halted {
		return StateHalted
	}
	if e.now().After(e.resetTime) {
		return StateNormal
	}
	return e.latchedState
}

// ResetTime returns when the current restriction lifts; the zero time means
// no restriction is latched.
func (e *CircuitBreakerEvaluator) ResetTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resetTime
}

// SetHalted sets or clears the manually operated Halted state. Halts are
// never derived automatically: a single noisy signal must not be able to
// take the system down.
func (e *CircuitBreakerEvaluator) SetHalted(halted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.halted = halted
	if !halted && e.now().After(e.resetTime) {
		e.latchedState = StateNormal
	}
}

// Reset clears any latched restriction. Intended for operator use and tests.
func (e *CircuitBreakerEvaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latchedState = StateNormal
	e.resetTime = time.Time{}
	e.halted = false
}
