package reporting

import (
	"time"

	"github.com/vuphan-dev/crypto-risk-engine/internal/risk"
)

// DecisionRecord captures one full evaluation of a trade signal: the
// validation verdict and, when validation passed, the sized order.
type DecisionRecord struct {
	Timestamp  time.Time                 `json:"timestamp"`
	Symbol     string                    `json:"symbol"`
	Side       risk.Side                 `json:"side"`
	EntryPrice float64                   `json:"entry_price"`
	Validation risk.RiskValidationResult `json:"validation"`
	Sizing     *risk.PositionSizeResult  `json:"sizing,omitempty"`
}

// History accumulates decision records and circuit breaker events for
// reporting. It is an append-only recorder owned by the wiring layer, not
// part of the risk core.
type History struct {
	Decisions     []DecisionRecord            `json:"decisions"`
	BreakerEvents []risk.CircuitBreakerResult `json:"breaker_events"`
}

// AddDecision appends one evaluated signal to the history
func (h *History) AddDecision(rec DecisionRecord) {
	h.Decisions = append(h.Decisions, rec)
}

// AddBreakerEvent appends a triggered breaker evaluation to the history.
// Quiet evaluations are not recorded.
func (h *History) AddBreakerEvent(result risk.CircuitBreakerResult) {
	if result.Triggered {
		h.BreakerEvents = append(h.BreakerEvents, result)
	}
}
