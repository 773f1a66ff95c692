package risk

import (
	"fmt"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
	"github.com/vuphan-dev/crypto-risk-engine/internal/logger"
	"github.com/vuphan-dev/crypto-risk-engine/internal/monitoring"
	"github.com/vuphan-dev/crypto-risk-engine/internal/notifications"
	"github.com/vuphan-dev/crypto-risk-engine/internal/riskerr"
	"github.com/vuphan-dev/crypto-risk-engine/internal/safety"
)

// Engine bundles the evaluators behind one wired facade. It owns no position
// or account state; every method takes snapshots and returns decisions. The
// only mutable state is the circuit breaker's cooldown latch, which the
// breaker guards itself, so Engine methods are safe to call concurrently.
type Engine struct {
	params    *config.RiskParameters
	sizing    *PositionSizingCalculator
	breaker   *CircuitBreakerEvaluator
	stops     *StopLossManager
	validator *RiskValidator
	closure   *PositionClosureEvaluator
	inputs    *safety.Validator

	log      *logger.Logger
	notifier notifications.Notifier
}

// NewEngine validates the parameters and wires the evaluators. An invalid
// configuration is fatal: the constructor returns an error and no engine.
func NewEngine(params *config.RiskParameters, log *logger.Logger, notifier notifications.Notifier) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, riskerr.Wrap(err, riskerr.CategoryConfiguration, "engine", "new")
	}

	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}

	breaker := NewCircuitBreakerEvaluator(params)

	return &Engine{
		params:    params,
		sizing:    NewPositionSizingCalculator(params),
		breaker:   breaker,
		stops:     NewStopLossManager(params),
		validator: NewRiskValidator(params, breaker),
		closure:   NewPositionClosureEvaluator(params, breaker),
		inputs:    safety.NewValidator(),
		log:       log,
		notifier:  notifier,
	}, nil
}

// Params returns the engine's immutable configuration
func (e *Engine) Params() *config.RiskParameters {
	return e.params
}

// Breaker exposes the circuit breaker evaluator, primarily for the periodic
// health loop and operator halt control.
func (e *Engine) Breaker() *CircuitBreakerEvaluator {
	return e.breaker
}

// ValidateTrade runs the full pre-trade check battery for a signal. Input
// snapshots with malformed fields are rejected through the breaker-agnostic
// market check rather than raising errors.
func (e *Engine) ValidateTrade(signal TradingSignal, account AccountState, market MarketConditions) RiskValidationResult {
	if res := e.checkInputs(signal, account, market); res != nil {
		return *res
	}

	result := e.validator.ValidateTrade(signal, account, market)

	monitoring.RecordValidation(signal.Symbol, result.Valid, result.RiskScore)
	for _, name := range result.FailedChecks() {
		monitoring.RecordRejectedCheck(name)
	}
	if e.log != nil {
		e.log.LogValidation(signal.Symbol, result.Valid, result.RiskScore, result.FailedChecks())
	}

	return result
}

// SizePosition produces the final order quantity for a signal that passed
// validation, blending risk-based and Kelly sizing and de-risking for
// drawdown.
func (e *Engine) SizePosition(signal TradingSignal, account AccountState, market MarketConditions, history []ClosedTrade) PositionSizeResult {
	stats := ComputeTradeStats(history)
	result := e.sizing.SizeForSignal(signal, account, market, stats)

	if result.Valid {
		monitoring.RecordPositionSize(signal.Symbol, result.Quantity)
	}
	if e.log != nil {
		if result.Valid {
			e.log.Decision("%s sized %.6f (risk $%.2f, kelly %.4f, vol x%.2f, dd x%.2f)",
				signal.Symbol, result.Quantity, result.RiskAmount, result.KellyOptimalPct, result.VolatilityMult, result.DrawdownMult)
		} else {
			e.log.Decision("%s sizing invalid: %s", signal.Symbol, result.InvalidReason)
		}
	}

	return result
}

// InitialStops computes the protective levels for a new position
func (e *Engine) InitialStops(signal TradingSignal) StopLossLevels {
	return e.stops.CalculateStopLossLevels(signal.EntryPrice, signal.Side)
}

// UpdateTrailingStops advances a position's trailing stop for the current
// price and returns the updated copy. A malformed position or price leaves
// the stop where it is.
func (e *Engine) UpdateTrailingStops(position Position, currentPrice float64) Position {
	if msg := e.checkPosition(position, currentPrice); msg != "" {
		if e.log != nil {
			e.log.Warning("skipping trailing stop update for %s: %s", position.ID, msg)
		}
		return position
	}
	return e.stops.UpdateTrailingStops(position, currentPrice)
}

// EvaluateBreakers runs a circuit breaker evaluation cycle against fresh
// snapshots, publishing trips to metrics, the log and the notifier.
func (e *Engine) EvaluateBreakers(account AccountState, market MarketConditions) CircuitBreakerResult {
	result := e.breaker.Evaluate(account, market)

	monitoring.UpdateBreakerState(int(result.State))
	if result.Triggered {
		descriptions := make([]string, 0, len(result.Triggers))
		for _, t := range result.Triggers {
			monitoring.RecordBreakerTrip(t.Name)
			descriptions = append(descriptions, t.Description)
		}
		if e.log != nil {
			e.log.LogBreakerTrip(result.State.String(), descriptions)
		}

		level := "warning"
		if result.State == StateEmergency {
			level = "error"
		}
		msg := fmt.Sprintf("Circuit breaker %s (severity %s)", result.State, result.OverallSeverity)
		for _, d := range descriptions {
			msg += "\n- " + d
		}
		if err := e.notifier.SendAlert(level, msg); err != nil && e.log != nil {
			e.log.LogError("breaker alert delivery", err)
		}
	}

	return result
}

// ShouldClose evaluates the closure rules for one open position. A position
// with a malformed quantity or price yields a hold recommendation carrying
// the diagnostic, leaving the close decision to the operator.
func (e *Engine) ShouldClose(position Position, account AccountState, market MarketConditions) PositionClosureResult {
	if msg := e.checkPosition(position, market.CurrentPrice); msg != "" {
		if e.log != nil {
			e.log.Warning("not evaluating closure for %s: %s", position.ID, msg)
		}
		return PositionClosureResult{
			ShouldClose: false,
			Reason:      ReasonNone,
			Detail:      msg,
			Urgency:     UrgencyLow,
			EvaluatedAt: e.closure.now(),
		}
	}

	result := e.closure.ShouldClosePosition(position, account, market)

	if result.ShouldClose {
		monitoring.RecordClosure(string(result.Reason))
		if e.log != nil {
			e.log.Decision("close %s %.0f%% (%s, urgency %s): %s",
				position.ID, result.PercentageToClose, result.Reason, result.Urgency, result.Detail)
		}
	}

	return result
}

// checkInputs validates snapshot fields defensively. A malformed input is an
// expected upstream condition and yields a structured rejection with the
// market check carrying the diagnostic, never an error.
func (e *Engine) checkInputs(signal TradingSignal, account AccountState, market MarketConditions) *RiskValidationResult {
	var msg string

	if res := e.inputs.ValidateSymbol(signal.Symbol); !res.Valid {
		msg = res.Message
	} else if res := e.inputs.ValidatePrice(signal.EntryPrice, signal.Symbol); !res.Valid {
		msg = res.Message
	} else if res := e.inputs.ValidatePrice(market.CurrentPrice, market.Symbol); !res.Valid {
		msg = res.Message
	} else if res := e.inputs.ValidateEquity(account.TotalEquity); !res.Valid {
		msg = res.Message
	} else if res := e.inputs.ValidateFraction(account.CurrentDrawdown, 0, 1, "current drawdown"); !res.Valid {
		msg = res.Message
	}

	if msg == "" {
		return nil
	}

	if e.log != nil {
		e.log.Warning("rejecting malformed snapshot: %s", msg)
	}

	skipped := func(name string) RiskCheckResult {
		return RiskCheckResult{Name: name, Passed: false, Score: 100, Message: "not evaluated: malformed input"}
	}
	result := &RiskValidationResult{
		Valid:              false,
		RiskScore:          100,
		Level:              RiskExtreme,
		EvaluatedAt:        e.validator.now(),
		BreakerCheck:       skipped(CheckCircuitBreaker),
		PositionCountCheck: skipped(CheckPositionCount),
		TradeSpacingCheck:  skipped(CheckTradeSpacing),
		ExposureCheck:      skipped(CheckExposure),
		CorrelationCheck:   skipped(CheckCorrelation),
		MarketCheck: RiskCheckResult{
			Name:    CheckMarket,
			Passed:  false,
			Score:   100,
			Message: msg,
		},
	}
	monitoring.RecordValidation(signal.Symbol, false, 100)
	return result
}

// checkPosition validates an open position and the quoted price before stop
// or closure evaluation. An empty string means the position is usable.
func (e *Engine) checkPosition(position Position, currentPrice float64) string {
	if res := e.inputs.ValidateQuantity(position.Quantity, position.Symbol); !res.Valid {
		return res.Message
	}
	if res := e.inputs.ValidatePrice(position.EntryPrice, position.Symbol); !res.Valid {
		return res.Message
	}
	if res := e.inputs.ValidatePrice(currentPrice, position.Symbol); !res.Valid {
		return res.Message
	}
	return ""
}
