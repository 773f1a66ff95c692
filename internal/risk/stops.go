package risk

import (
	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
)

// StopLossManager computes initial protective levels and evolves trailing
// stops. It holds only immutable configuration; updated positions are
// returned as copies, ownership of position state stays with the execution
// layer.
type StopLossManager struct {
	params *config.RiskParameters
}

// NewStopLossManager creates a stop loss manager for the given parameters
func NewStopLossManager(params *config.RiskParameters) *StopLossManager {
	return &StopLossManager{params: params}
}

// CalculateStopLossLevels derives the initial stop and take-profit from the
// entry price. The stop sits the configured percentage away against the
// position; the take-profit sits the reward multiple of that distance in the
// position's favor.
func (m *StopLossManager) CalculateStopLossLevels(entryPrice float64, side Side) StopLossLevels {
	stopDistance := entryPrice * m.params.InitialStopLossPercent
	profitDistance := stopDistance * m.params.RewardMultiple

	if side == SideShort {
		return StopLossLevels{
			StopLoss:   entryPrice + stopDistance,
			TakeProfit: entryPrice - profitDistance,
		}
	}

	return StopLossLevels{
		StopLoss:   entryPrice - stopDistance,
		TakeProfit: entryPrice + profitDistance,
	}
}

// UpdateTrailingStops returns a copy of the position with its trailing stop
// advanced for the current price. The trail arms once unrealized profit
// reaches the activation threshold; once armed, the stop only ever moves in
// the favorable direction and never regresses.
func (m *StopLossManager) UpdateTrailingStops(position Position, currentPrice float64) Position {
	updated := position

	if !m.params.TrailingStopsEnabled || currentPrice <= 0 {
		return updated
	}

	if !updated.TrailingActive {
		if position.UnrealizedProfitPercent(currentPrice) >= m.params.TrailingStopActivation {
			updated.TrailingActive = true
		} else {
			return updated
		}
	}

	if position.Side == SideShort {
		candidate := currentPrice * (1 + m.params.TrailingStopDistance)
		if updated.StopLoss == 0 || candidate < updated.StopLoss {
			updated.StopLoss = candidate
		}
		return updated
	}

	candidate := currentPrice * (1 - m.params.TrailingStopDistance)
	if candidate > updated.StopLoss {
		updated.StopLoss = candidate
	}
	return updated
}

// StopHit reports whether the current price has reached the position's stop
func StopHit(position Position, currentPrice float64) bool {
	if position.StopLoss <= 0 {
		return false
	}
	if position.Side == SideShort {
		return currentPrice >= position.StopLoss
	}
	return currentPrice <= position.StopLoss
}

// TakeProfitHit reports whether the current price has reached the position's
// take-profit level
func TakeProfitHit(position Position, currentPrice float64) bool {
	if position.TakeProfit <= 0 {
		return false
	}
	if position.Side == SideShort {
		return currentPrice <= position.TakeProfit
	}
	return currentPrice >= position.TakeProfit
}
