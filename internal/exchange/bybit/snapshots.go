package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/vuphan-dev/crypto-risk-engine/internal/risk"
	"github.com/vuphan-dev/crypto-risk-engine/internal/safety"
)

var inputs = safety.NewValidator()

// walletResult mirrors the fields of the unified wallet response we need
type walletResult struct {
	List []struct {
		TotalEquity           string `json:"totalEquity"`
		TotalAvailableBalance string `json:"totalAvailableBalance"`
		TotalPerpUPL          string `json:"totalPerpUPL"`
		TotalMarginBalance    string `json:"totalMarginBalance"`
		AccountIMRate         string `json:"accountIMRate"`
	} `json:"list"`
}

// tickerResult mirrors the fields of the market ticker response we need
type tickerResult struct {
	List []struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		Bid1Price    string `json:"bid1Price"`
		Ask1Price    string `json:"ask1Price"`
		Volume24h    string `json:"volume24h"`
		Turnover24h  string `json:"turnover24h"`
		HighPrice24h string `json:"highPrice24h"`
		LowPrice24h  string `json:"lowPrice24h"`
	} `json:"list"`
}

// TrackedState carries the values the execution layer tracks across fills.
// The exchange reports balances; the high-water mark, the day's deepest
// drawdown, realized PnL and trade pacing are owned upstream and passed in.
type TrackedState struct {
	PeakEquity          float64
	MaxIntradayDrawdown float64
	OpenPositions       []risk.Position
	DailyRealizedPnL    float64
	LastTradeTime       time.Time
	DailyTradeCount     int
}

// AccountSnapshot builds a risk.AccountState from the unified account
// wallet, combining the exchange-reported balances with the execution
// layer's tracked values.
func (c *Client) AccountSnapshot(ctx context.Context, tracked TrackedState) (risk.AccountState, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return risk.AccountState{}, fmt.Errorf("failed to get account wallet: %w", err)
	}

	var wallet walletResult
	if err := parseResult(result, &wallet); err != nil {
		return risk.AccountState{}, fmt.Errorf("failed to parse wallet response: %w", err)
	}
	if len(wallet.List) == 0 {
		return risk.AccountState{}, fmt.Errorf("wallet response contained no accounts")
	}

	acct := wallet.List[0]
	state := assembleAccountState(
		parseFloat64(acct.TotalEquity),
		parseFloat64(acct.TotalAvailableBalance),
		parseFloat64(acct.TotalPerpUPL),
		parseFloat64(acct.AccountIMRate),
		tracked,
	)

	return state, nil
}

// assembleAccountState derives the drawdown and exposure invariants from the
// balances and tracked values. ExposurePercent is risked capital, each open
// position's stop-implied loss as a fraction of equity, the same unit the
// exposure check projects in.
func assembleAccountState(equity, available, unrealizedPnL, imRate float64, tracked TrackedState) risk.AccountState {
	positionValue := 0.0
	for _, p := range tracked.OpenPositions {
		positionValue += p.EntryPrice * p.Quantity
	}

	state := risk.AccountState{
		TotalEquity:      equity,
		AvailableBalance: available,
		PositionValue:    positionValue,
		UnrealizedPnL:    unrealizedPnL,
		RealizedPnLToday: tracked.DailyRealizedPnL,
		PeakEquity:       math.Max(tracked.PeakEquity, equity),
		OpenPositions:    tracked.OpenPositions,
		DailyTradeCount:  tracked.DailyTradeCount,
		LastTradeTime:    tracked.LastTradeTime,
		Timestamp:        time.Now(),
	}
	state.CurrentDrawdown = state.DrawdownFromPeak()
	state.MaxIntradayDrawdown = math.Max(tracked.MaxIntradayDrawdown, state.CurrentDrawdown)
	if equity > 0 {
		state.ExposurePercent = riskedExposure(tracked.OpenPositions, equity)
		state.MarginUsagePercent = imRate
	}

	return state
}

// riskedExposure sums each position's distance to its stop times quantity as
// a fraction of equity. A position with no stop set risks its full notional.
func riskedExposure(positions []risk.Position, equity float64) float64 {
	risked := 0.0
	for _, p := range positions {
		perUnit := p.EntryPrice
		if p.StopLoss > 0 {
			perUnit = math.Abs(p.EntryPrice - p.StopLoss)
		}
		risked += perUnit * p.Quantity
	}

	frac, err := inputs.SafeDivision(risked, equity)
	if err != nil {
		return 0
	}
	return frac
}

// MarketSnapshot builds a risk.MarketConditions from the ticker and recent
// klines. Volatility is the 14-period ATR relative to price; the regime is a
// simple banding of that ratio. Anomaly detection lives upstream, so the
// snapshot starts with an empty anomaly list.
func (c *Client) MarketSnapshot(ctx context.Context, category, symbol string) (risk.MarketConditions, error) {
	if category == "" {
		category = "linear"
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return risk.MarketConditions{}, fmt.Errorf("failed to get tickers: %w", err)
	}

	var tickers tickerResult
	if err := parseResult(result, &tickers); err != nil {
		return risk.MarketConditions{}, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	if len(tickers.List) == 0 {
		return risk.MarketConditions{}, fmt.Errorf("ticker response contained no symbols")
	}

	t := tickers.List[0]
	lastPrice := parseFloat64(t.LastPrice)
	bid := parseFloat64(t.Bid1Price)
	ask := parseFloat64(t.Ask1Price)

	spread := 0.0
	if bid > 0 && ask > bid {
		spread = (ask - bid) / ((ask + bid) / 2)
	}

	atr, err := c.recentATR(ctx, category, symbol)
	if err != nil {
		return risk.MarketConditions{}, err
	}

	volatility := 0.0
	if lastPrice > 0 {
		volatility = atr / lastPrice
	}

	conditions := risk.MarketConditions{
		Symbol:         symbol,
		CurrentPrice:   lastPrice,
		Volatility:     volatility,
		LiquidityScore: liquidityScore(parseFloat64(t.Turnover24h), spread),
		SpreadPercent:  spread,
		Volume24h:      parseFloat64(t.Volume24h),
		Regime:         classifyRegime(volatility),
		HistoricalATR:  atr,
		Timestamp:      time.Now(),
	}

	return conditions, nil
}

// recentATR computes a 14-period ATR from hourly klines
func (c *Client) recentATR(ctx context.Context, category, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": "60",
		"limit":    15,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get klines: %w", err)
	}

	var klines struct {
		List [][]string `json:"list"`
	}
	if err := parseResult(result, &klines); err != nil {
		return 0, fmt.Errorf("failed to parse kline response: %w", err)
	}

	// Bybit kline format: [startTime, open, high, low, close, volume, turnover],
	// newest first.
	if len(klines.List) < 2 {
		return 0, nil
	}

	atrSum := 0.0
	count := 0
	for i := 0; i < len(klines.List)-1; i++ {
		item := klines.List[i]
		prev := klines.List[i+1]
		if len(item) < 5 || len(prev) < 5 {
			continue
		}

		high := parseFloat64(item[2])
		low := parseFloat64(item[3])
		prevClose := parseFloat64(prev[4])

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		atrSum += tr
		count++
	}

	if count == 0 {
		return 0, nil
	}
	return atrSum / float64(count), nil
}

// classifyRegime bands ATR-relative volatility into the regime enum
func classifyRegime(volatility float64) risk.VolatilityRegime {
	switch {
	case volatility < 0.005:
		return risk.VolatilityLow
	case volatility < 0.015:
		return risk.VolatilityNormal
	case volatility < 0.03:
		return risk.VolatilityHigh
	default:
		return risk.VolatilityExtreme
	}
}

// liquidityScore maps 24h turnover and spread onto the 0-100 score the
// validator expects. Log-scaled turnover dominates; a wide spread discounts.
func liquidityScore(turnover24h, spread float64) float64 {
	if turnover24h <= 0 {
		return 0
	}

	// 1M USD/day maps to ~33, 1B to ~100
	score := math.Log10(turnover24h) / 9 * 100
	if spread > 0.001 {
		score *= 0.5
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// parseResult unmarshals the Result payload of a Bybit server response
func parseResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type %T", response)
	}

	if serverResp.RetCode != 0 {
		return fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return json.Unmarshal(resultBytes, out)
}
