package risk

import (
	"math"
)

// Sentinel reported for profit factor with no losing trades and for Sortino
// with no negative returns. Kept for compatibility with downstream consumers
// that expect a large finite value rather than +Inf.
const undefinedRatioSentinel = 999.0

// TradeStats summarizes a closed-trade history. It feeds Kelly sizing and
// the validator's confidence output.
type TradeStats struct {
	SampleSize   int     `json:"sample_size"`
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"` // reported as a positive magnitude
	ProfitFactor float64 `json:"profit_factor"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
}

// ComputeTradeStats derives statistics from the execution layer's closed
// trades. Degenerate histories use documented fallbacks: every ratio is 0
// with fewer than 2 samples, profit factor and Sortino report the sentinel
// when the denominator side is empty. An empty history yields the zero value,
// which disables Kelly sizing upstream.
func ComputeTradeStats(trades []ClosedTrade) TradeStats {
	stats := TradeStats{SampleSize: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	wins := 0
	totalWin := 0.0
	totalLoss := 0.0
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			totalWin += t.PnL
		} else if t.PnL < 0 {
			totalLoss += -t.PnL
		}

		if t.EntryPrice > 0 && t.Quantity > 0 {
			returns = append(returns, t.PnL/(t.EntryPrice*t.Quantity))
		}
	}

	stats.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		stats.AvgWin = totalWin / float64(wins)
	}
	if losses := len(trades) - wins; losses > 0 && totalLoss > 0 {
		stats.AvgLoss = totalLoss / float64(losses)
	}

	if totalLoss == 0 {
		if totalWin > 0 {
			stats.ProfitFactor = undefinedRatioSentinel
		}
	} else {
		stats.ProfitFactor = totalWin / totalLoss
	}

	stats.SharpeRatio = sharpeRatio(returns)
	stats.SortinoRatio = sortinoRatio(returns)

	return stats
}

// sharpeRatio computes mean return over standard deviation, assuming a zero
// risk-free rate. Fewer than 2 samples or zero volatility yields 0.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	avg := mean(returns)

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avg, 2)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-10 {
		return 0
	}
	return avg / stdDev
}

// sortinoRatio computes mean return over downside deviation. With no negative
// returns the downside is undefined and the sentinel is reported; fewer than
// 2 samples yields 0.
func sortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	avg := mean(returns)

	downside := 0.0
	negatives := 0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			negatives++
		}
	}

	if negatives == 0 {
		if avg > 0 {
			return undefinedRatioSentinel
		}
		return 0
	}

	downsideDev := math.Sqrt(downside / float64(len(returns)))
	if downsideDev < 1e-10 {
		return 0
	}
	return avg / downsideDev
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
