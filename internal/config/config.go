package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RiskParameters is the immutable configuration bundle for the risk engine.
// It is loaded once at startup and validated before any component is built;
// a failing validation is fatal, the engine refuses to run with inconsistent
// limits.
type RiskParameters struct {
	// Per-trade and portfolio limits
	RiskPerTrade         float64 // fraction of equity risked per trade, (0, 0.10]
	MaxPortfolioExposure float64 // cap on total exposure as a fraction of equity
	MaxDailyLoss         float64 // cap on realized daily loss fraction
	MaxIntradayDrawdown  float64 // cap on intraday drawdown fraction

	// Kelly sizing
	KellyMultiplier   float64 // fractional Kelly scaling, (0, 1]
	MinKellyCriterion float64 // lower clamp on Kelly output
	MaxKellyCriterion float64 // upper clamp on Kelly output

	// Volatility and execution
	VolatilityAdjustmentFactor float64 // scales the volatility multiplier input
	MaxSlippagePercent         float64
	VolatilitySpikeMultiple    float64 // closure trigger: volatility vs historical ATR

	// Stops
	InitialStopLossPercent  float64
	RewardMultiple          float64 // take-profit distance as a multiple of stop distance
	TrailingStopActivation  float64 // unrealized profit fraction that arms the trail
	TrailingStopDistance    float64 // trail distance as a fraction of price
	PartialClosePercent     float64 // percentage closed on a volatility spike
	MaxPositionAge          time.Duration

	// Validation limits
	MaxOpenPositions       int
	MaxPositionCorrelation float64
	MinTimeBetweenTrades   time.Duration

	// Circuit breaker
	CooldownMinutes int

	// Exchange constraints
	MinQuantityIncrement float64
	MinOrderQuantity     float64

	// Feature toggles
	KellySizingEnabled   bool
	TrailingStopsEnabled bool
	TimeStopEnabled      bool

	// Market suitability thresholds
	MinLiquidityScore float64
	MaxSpreadPercent  float64
}

// Default returns the risk parameters used when no environment overrides are
// present. The values are conservative intraday-crypto defaults.
func Default() *RiskParameters {
	return &RiskParameters{
		RiskPerTrade:         0.02, // 2%
		MaxPortfolioExposure: 0.50, // 50%
		MaxDailyLoss:         0.03, // 3%
		MaxIntradayDrawdown:  0.05, // 5%

		KellyMultiplier:   0.25,
		MinKellyCriterion: 0.01,
		MaxKellyCriterion: 0.25,

		VolatilityAdjustmentFactor: 1.0,
		MaxSlippagePercent:         0.005,
		VolatilitySpikeMultiple:    3.0, // 3x historical ATR

		InitialStopLossPercent: 0.02,
		RewardMultiple:         2.0,
		TrailingStopActivation: 0.01,
		TrailingStopDistance:   0.015,
		PartialClosePercent:    50,
		MaxPositionAge:         48 * time.Hour,

		MaxOpenPositions:       5,
		MaxPositionCorrelation: 0.7,
		MinTimeBetweenTrades:   60 * time.Second,

		CooldownMinutes: 30,

		MinQuantityIncrement: 0.001,
		MinOrderQuantity:     0.001,

		KellySizingEnabled:   true,
		TrailingStopsEnabled: true,
		TimeStopEnabled:      true,

		MinLiquidityScore: 30,
		MaxSpreadPercent:  0.002,
	}
}

// Load builds risk parameters from environment variables, falling back to
// the defaults for anything unset. Call Validate on the result before use.
func Load() *RiskParameters {
	d := Default()

	return &RiskParameters{
		RiskPerTrade:         getEnvFloat("RISK_PER_TRADE", d.RiskPerTrade),
		MaxPortfolioExposure: getEnvFloat("MAX_PORTFOLIO_EXPOSURE", d.MaxPortfolioExposure),
		MaxDailyLoss:         getEnvFloat("MAX_DAILY_LOSS", d.MaxDailyLoss),
		MaxIntradayDrawdown:  getEnvFloat("MAX_INTRADAY_DRAWDOWN", d.MaxIntradayDrawdown),

		KellyMultiplier:   getEnvFloat("KELLY_MULTIPLIER", d.KellyMultiplier),
		MinKellyCriterion: getEnvFloat("MIN_KELLY_CRITERION", d.MinKellyCriterion),
		MaxKellyCriterion: getEnvFloat("MAX_KELLY_CRITERION", d.MaxKellyCriterion),

		VolatilityAdjustmentFactor: getEnvFloat("VOLATILITY_ADJUSTMENT_FACTOR", d.VolatilityAdjustmentFactor),
		MaxSlippagePercent:         getEnvFloat("MAX_SLIPPAGE_PERCENT", d.MaxSlippagePercent),
		VolatilitySpikeMultiple:    getEnvFloat("VOLATILITY_SPIKE_MULTIPLE", d.VolatilitySpikeMultiple),

		InitialStopLossPercent: getEnvFloat("INITIAL_STOP_LOSS_PERCENT", d.InitialStopLossPercent),
		RewardMultiple:         getEnvFloat("REWARD_MULTIPLE", d.RewardMultiple),
		TrailingStopActivation: getEnvFloat("TRAILING_STOP_ACTIVATION", d.TrailingStopActivation),
		TrailingStopDistance:   getEnvFloat("TRAILING_STOP_DISTANCE", d.TrailingStopDistance),
		PartialClosePercent:    getEnvFloat("PARTIAL_CLOSE_PERCENT", d.PartialClosePercent),
		MaxPositionAge:         getEnvDuration("MAX_POSITION_AGE", d.MaxPositionAge),

		MaxOpenPositions:       getEnvInt("MAX_OPEN_POSITIONS", d.MaxOpenPositions),
		MaxPositionCorrelation: getEnvFloat("MAX_POSITION_CORRELATION", d.MaxPositionCorrelation),
		MinTimeBetweenTrades:   getEnvDuration("MIN_TIME_BETWEEN_TRADES", d.MinTimeBetweenTrades),

		CooldownMinutes: getEnvInt("CIRCUIT_BREAKER_COOLDOWN_MINUTES", d.CooldownMinutes),

		MinQuantityIncrement: getEnvFloat("MIN_QUANTITY_INCREMENT", d.MinQuantityIncrement),
		MinOrderQuantity:     getEnvFloat("MIN_ORDER_QUANTITY", d.MinOrderQuantity),

		KellySizingEnabled:   getEnvBool("KELLY_SIZING_ENABLED", d.KellySizingEnabled),
		TrailingStopsEnabled: getEnvBool("TRAILING_STOPS_ENABLED", d.TrailingStopsEnabled),
		TimeStopEnabled:      getEnvBool("TIME_STOP_ENABLED", d.TimeStopEnabled),

		MinLiquidityScore: getEnvFloat("MIN_LIQUIDITY_SCORE", d.MinLiquidityScore),
		MaxSpreadPercent:  getEnvFloat("MAX_SPREAD_PERCENT", d.MaxSpreadPercent),
	}
}

// Validate checks every parameter against its allowed bounds. It returns the
// first violation found; a non-nil error means the configuration must not be
// used.
func (p *RiskParameters) Validate() error {
	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 0.10 {
		return fmt.Errorf("risk per trade must be within (0, 0.10], got: %.4f", p.RiskPerTrade)
	}

	if p.MaxPortfolioExposure <= 0 || p.MaxPortfolioExposure > 1.0 {
		return fmt.Errorf("max portfolio exposure must be within (0, 1.0], got: %.4f", p.MaxPortfolioExposure)
	}

	if p.MaxDailyLoss <= 0 || p.MaxDailyLoss > 0.5 {
		return fmt.Errorf("max daily loss must be within (0, 0.5], got: %.4f", p.MaxDailyLoss)
	}

	if p.MaxIntradayDrawdown <= 0 || p.MaxIntradayDrawdown > 0.5 {
		return fmt.Errorf("max intraday drawdown must be within (0, 0.5], got: %.4f", p.MaxIntradayDrawdown)
	}

	if p.KellyMultiplier <= 0 || p.KellyMultiplier > 1.0 {
		return fmt.Errorf("kelly multiplier must be within (0, 1.0], got: %.4f", p.KellyMultiplier)
	}

	if p.MinKellyCriterion < 0 {
		return fmt.Errorf("min kelly criterion must be non-negative, got: %.4f", p.MinKellyCriterion)
	}

	if p.MaxKellyCriterion <= p.MinKellyCriterion {
		return fmt.Errorf("max kelly criterion %.4f must exceed min %.4f", p.MaxKellyCriterion, p.MinKellyCriterion)
	}

	if p.VolatilityAdjustmentFactor <= 0 {
		return fmt.Errorf("volatility adjustment factor must be positive, got: %.4f", p.VolatilityAdjustmentFactor)
	}

	if p.MaxSlippagePercent <= 0 {
		return fmt.Errorf("max slippage percent must be positive, got: %.6f", p.MaxSlippagePercent)
	}

	if p.VolatilitySpikeMultiple <= 1.0 {
		return fmt.Errorf("volatility spike multiple must exceed 1.0, got: %.4f", p.VolatilitySpikeMultiple)
	}

	if p.InitialStopLossPercent <= 0 || p.InitialStopLossPercent >= 1.0 {
		return fmt.Errorf("initial stop loss percent must be within (0, 1.0), got: %.4f", p.InitialStopLossPercent)
	}

	if p.RewardMultiple <= 0 {
		return fmt.Errorf("reward multiple must be positive, got: %.4f", p.RewardMultiple)
	}

	if p.TrailingStopActivation <= 0 || p.TrailingStopActivation >= 1.0 {
		return fmt.Errorf("trailing stop activation must be within (0, 1.0), got: %.4f", p.TrailingStopActivation)
	}

	if p.TrailingStopDistance <= 0 || p.TrailingStopDistance >= 1.0 {
		return fmt.Errorf("trailing stop distance must be within (0, 1.0), got: %.4f", p.TrailingStopDistance)
	}

	if p.PartialClosePercent <= 0 || p.PartialClosePercent > 100 {
		return fmt.Errorf("partial close percent must be within (0, 100], got: %.2f", p.PartialClosePercent)
	}

	if p.MaxPositionAge <= 0 {
		return fmt.Errorf("max position age must be positive, got: %v", p.MaxPositionAge)
	}

	if p.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be positive, got: %d", p.MaxOpenPositions)
	}

	if p.MaxPositionCorrelation <= 0 || p.MaxPositionCorrelation > 1.0 {
		return fmt.Errorf("max position correlation must be within (0, 1.0], got: %.4f", p.MaxPositionCorrelation)
	}

	if p.MinTimeBetweenTrades < 0 {
		return fmt.Errorf("min time between trades must be non-negative, got: %v", p.MinTimeBetweenTrades)
	}

	if p.CooldownMinutes <= 0 {
		return fmt.Errorf("circuit breaker cooldown must be positive, got: %d minutes", p.CooldownMinutes)
	}

	if p.MinQuantityIncrement <= 0 {
		return fmt.Errorf("minimum quantity increment must be positive, got: %.8f", p.MinQuantityIncrement)
	}

	if p.MinOrderQuantity <= 0 {
		return fmt.Errorf("minimum order quantity must be positive, got: %.8f", p.MinOrderQuantity)
	}

	if p.MinLiquidityScore < 0 || p.MinLiquidityScore > 100 {
		return fmt.Errorf("min liquidity score must be within [0, 100], got: %.2f", p.MinLiquidityScore)
	}

	if p.MaxSpreadPercent <= 0 {
		return fmt.Errorf("max spread percent must be positive, got: %.6f", p.MaxSpreadPercent)
	}

	return nil
}

// Cooldown returns the circuit breaker cooldown as a duration
func (p *RiskParameters) Cooldown() time.Duration {
	return time.Duration(p.CooldownMinutes) * time.Minute
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
