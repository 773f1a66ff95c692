package risk

import (
	"time"
)

// Side represents the direction of a trade or position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Severity represents how serious a risk condition is. The integer ranks
// form a total order so severities can be compared and the maximum taken
// directly.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// SystemState represents the operating state of the risk engine
type SystemState int

const (
	StateNormal SystemState = iota
	StateRestricted
	StateEmergency
	StateHalted
)

// String returns the string representation of the system state
func (s SystemState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateRestricted:
		return "RESTRICTED"
	case StateEmergency:
		return "EMERGENCY"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// VolatilityRegime classifies current market volatility
type VolatilityRegime int

const (
	VolatilityLow VolatilityRegime = iota
	VolatilityNormal
	VolatilityHigh
	VolatilityExtreme
)

// String returns the string representation of the volatility regime
func (v VolatilityRegime) String() string {
	switch v {
	case VolatilityLow:
		return "LOW"
	case VolatilityNormal:
		return "NORMAL"
	case VolatilityHigh:
		return "HIGH"
	case VolatilityExtreme:
		return "EXTREME"
	default:
		return "UNKNOWN"
	}
}

// RiskLevel bands an aggregate risk score for reporting
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota
	RiskLow
	RiskModerate
	RiskHigh
	RiskExtreme
)

// String returns the string representation of the risk level
func (r RiskLevel) String() string {
	switch r {
	case RiskVeryLow:
		return "VERY_LOW"
	case RiskLow:
		return "LOW"
	case RiskModerate:
		return "MODERATE"
	case RiskHigh:
		return "HIGH"
	case RiskExtreme:
		return "EXTREME"
	default:
		return "UNKNOWN"
	}
}

// Urgency indicates how quickly a closure recommendation should be acted on
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyEmergency
)

// String returns the string representation of the urgency
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyNormal:
		return "NORMAL"
	case UrgencyHigh:
		return "HIGH"
	case UrgencyEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// MarketAnomaly describes an unusual market condition flagged upstream
type MarketAnomaly struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	DetectedAt  time.Time `json:"detected_at"`
}

// MarketConditions is an immutable snapshot of the market supplied by the
// market-data layer. The risk core never mutates it.
type MarketConditions struct {
	Symbol          string           `json:"symbol"`
	CurrentPrice    float64          `json:"current_price"`
	Volatility      float64          `json:"volatility"`      // e.g. ATR / price
	LiquidityScore  float64          `json:"liquidity_score"` // 0-100
	SpreadPercent   float64          `json:"spread_percent"`
	Volume24h       float64          `json:"volume_24h"`
	Trend           string           `json:"trend"`
	Regime          VolatilityRegime `json:"regime"`
	Anomalies       []MarketAnomaly  `json:"anomalies,omitempty"`
	TimeToNextEvent time.Duration    `json:"time_to_next_event"`
	HistoricalATR   float64          `json:"historical_atr"`
	Timestamp       time.Time        `json:"timestamp"`
}

// HasAnomalyAtLeast reports whether any flagged anomaly meets the given severity
func (m *MarketConditions) HasAnomalyAtLeast(sev Severity) bool {
	for _, a := range m.Anomalies {
		if a.Severity >= sev {
			return true
		}
	}
	return false
}

// SuitabilityResult explains a market suitability verdict
type SuitabilityResult struct {
	Suitable bool     `json:"suitable"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Position represents an open position supplied by the execution layer.
// The risk core computes new stop levels and closure recommendations from it
// but never persists or mutates it; updated values are returned as copies.
type Position struct {
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol"`
	Side            Side               `json:"side"`
	EntryPrice      float64            `json:"entry_price"`
	Quantity        float64            `json:"quantity"`
	StopLoss        float64            `json:"stop_loss"`
	TakeProfit      float64            `json:"take_profit"`
	TrailingActive  bool               `json:"trailing_active"`
	UnrealizedPnL   float64            `json:"unrealized_pnl"`
	CorrelationWith map[string]float64 `json:"correlation_with,omitempty"`
	OpenedAt        time.Time          `json:"opened_at"`
}

// UnrealizedProfitPercent returns the position's unrealized profit as a
// fraction of the entry price, signed by side.
func (p *Position) UnrealizedProfitPercent(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (currentPrice - p.EntryPrice) / p.EntryPrice
	if p.Side == SideShort {
		return -move
	}
	return move
}

// AccountState is an immutable snapshot of the account supplied by the
// execution layer after every fill or cancel. ExposurePercent is measured in
// risked capital, the sum of stop-implied losses across open positions as a
// fraction of equity, not position notional.
type AccountState struct {
	TotalEquity         float64    `json:"total_equity"`
	AvailableBalance    float64    `json:"available_balance"`
	PositionValue       float64    `json:"position_value"`
	UnrealizedPnL       float64    `json:"unrealized_pnl"`
	RealizedPnLToday    float64    `json:"realized_pnl_today"`
	CurrentDrawdown     float64    `json:"current_drawdown"`
	MaxIntradayDrawdown float64    `json:"max_intraday_drawdown"`
	PeakEquity          float64    `json:"peak_equity"`
	OpenPositions       []Position `json:"open_positions"`
	ExposurePercent     float64    `json:"exposure_percent"`
	DailyTradeCount     int        `json:"daily_trade_count"`
	LastTradeTime       time.Time  `json:"last_trade_time"`
	MarginUsagePercent  float64    `json:"margin_usage_percent"`
	Timestamp           time.Time  `json:"timestamp"`
}

// DrawdownFromPeak derives the drawdown implied by peak and current equity.
// Snapshot producers are expected to set CurrentDrawdown to this value.
func (a *AccountState) DrawdownFromPeak() float64 {
	if a.PeakEquity <= 0 {
		return 0
	}
	dd := (a.PeakEquity - a.TotalEquity) / a.PeakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// DailyLossPercent returns today's realized loss as a positive fraction of
// equity, or 0 if the day is flat or profitable.
func (a *AccountState) DailyLossPercent() float64 {
	if a.TotalEquity <= 0 || a.RealizedPnLToday >= 0 {
		return 0
	}
	return -a.RealizedPnLToday / a.TotalEquity
}

// TradingSignal is a proposed trade from the strategy layer, the subject of
// validation and sizing.
type TradingSignal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Confidence float64   `json:"confidence"` // 0-1
	Strategy   string    `json:"strategy"`
	CreatedAt  time.Time `json:"created_at"`
}

// RMultipleTarget describes the expected outcome at a given R multiple
type RMultipleTarget struct {
	Multiple       float64 `json:"multiple"`
	TargetPrice    float64 `json:"target_price"`
	ExpectedProfit float64 `json:"expected_profit"`
	RiskReward     float64 `json:"risk_reward"`
}

// PositionSizeResult is the output of the position sizing calculator
type PositionSizeResult struct {
	Valid            bool              `json:"valid"`
	InvalidReason    string            `json:"invalid_reason,omitempty"`
	Quantity         float64           `json:"quantity"`
	RiskAmount       float64           `json:"risk_amount"`
	RiskPercent      float64           `json:"risk_percent"`
	KellyOptimalPct  float64           `json:"kelly_optimal_pct"`
	VolatilityMult   float64           `json:"volatility_mult"`
	DrawdownMult     float64           `json:"drawdown_mult"`
	FinalMult        float64           `json:"final_mult"`
	RMultipleTargets []RMultipleTarget `json:"r_multiple_targets,omitempty"`
}

// CircuitBreakerTrigger records one threshold breach
type CircuitBreakerTrigger struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	TriggerValue   float64  `json:"trigger_value"`
	ThresholdValue float64  `json:"threshold_value"`
}

// CircuitBreakerResult is the outcome of one circuit-breaker evaluation cycle
type CircuitBreakerResult struct {
	Triggered       bool                    `json:"triggered"`
	Triggers        []CircuitBreakerTrigger `json:"triggers,omitempty"`
	OverallSeverity Severity                `json:"overall_severity"`
	State           SystemState             `json:"state"`
	ResetTime       time.Time               `json:"reset_time"`
	EvaluatedAt     time.Time               `json:"evaluated_at"`
}

// RiskCheckResult is the outcome of one independent validation check
type RiskCheckResult struct {
	Name    string  `json:"name"`
	Passed  bool    `json:"passed"`
	Score   float64 `json:"score"` // 0-100 contribution, lower is better
	Message string  `json:"message,omitempty"`
}

// RiskValidationResult aggregates every validation check into one verdict.
// Checks are named fields rather than an open-ended map so the contract is
// visible in the type.
type RiskValidationResult struct {
	Valid              bool            `json:"valid"`
	RiskScore          float64         `json:"risk_score"` // 0-100, lower is better
	Level              RiskLevel       `json:"level"`
	BreakerCheck       RiskCheckResult `json:"breaker_check"`
	PositionCountCheck RiskCheckResult `json:"position_count_check"`
	TradeSpacingCheck  RiskCheckResult `json:"trade_spacing_check"`
	ExposureCheck      RiskCheckResult `json:"exposure_check"`
	CorrelationCheck   RiskCheckResult `json:"correlation_check"`
	MarketCheck        RiskCheckResult `json:"market_check"`
	MaxPositionSize    float64         `json:"max_position_size"`
	Confidence         float64         `json:"confidence"` // 0-100
	EvaluatedAt        time.Time       `json:"evaluated_at"`
}

// Checks returns the per-check breakdown in evaluation order
func (r *RiskValidationResult) Checks() []RiskCheckResult {
	return []RiskCheckResult{
		r.BreakerCheck,
		r.PositionCountCheck,
		r.TradeSpacingCheck,
		r.ExposureCheck,
		r.CorrelationCheck,
		r.MarketCheck,
	}
}

// FailedChecks returns the names of every check that did not pass
func (r *RiskValidationResult) FailedChecks() []string {
	var failed []string
	for _, c := range r.Checks() {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// StopLossLevels holds the initial protective levels for a new position
type StopLossLevels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// ClosureReason identifies which rule recommended closing a position
type ClosureReason string

const (
	ReasonNone               ClosureReason = ""
	ReasonStopLossHit        ClosureReason = "STOP_LOSS_HIT"
	ReasonTakeProfitHit      ClosureReason = "TAKE_PROFIT_HIT"
	ReasonDrawdownProtection ClosureReason = "DRAWDOWN_PROTECTION"
	ReasonEmergencyExit      ClosureReason = "EMERGENCY_EXIT"
	ReasonVolatilitySpike    ClosureReason = "VOLATILITY_SPIKE"
	ReasonTimeStop           ClosureReason = "TIME_STOP"
)

// PositionClosureResult is a close or reduce instruction for one position
type PositionClosureResult struct {
	ShouldClose       bool          `json:"should_close"`
	Reason            ClosureReason `json:"reason"`
	Detail            string        `json:"detail,omitempty"`
	PercentageToClose float64       `json:"percentage_to_close"`
	Urgency           Urgency       `json:"urgency"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
}

// ClosedTrade is one completed trade from the execution layer's history,
// used to derive the statistics that feed Kelly sizing and confidence.
type ClosedTrade struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}
