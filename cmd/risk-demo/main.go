package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vuphan-dev/crypto-risk-engine/internal/config"
	"github.com/vuphan-dev/crypto-risk-engine/internal/exchange/bybit"
	"github.com/vuphan-dev/crypto-risk-engine/internal/logger"
	"github.com/vuphan-dev/crypto-risk-engine/internal/monitoring"
	"github.com/vuphan-dev/crypto-risk-engine/internal/notifications"
	"github.com/vuphan-dev/crypto-risk-engine/internal/risk"
	"github.com/vuphan-dev/crypto-risk-engine/pkg/reporting"
)

func main() {
	log.Println("=== Crypto Risk Engine Demo ===")

	// Load .env if present (ignored when absent)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	params := config.Load()
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid risk parameters: %v", err)
	}
	log.Printf("Risk parameters loaded: %.1f%% per trade, %.1f%% max daily loss",
		params.RiskPerTrade*100, params.MaxDailyLoss*100)

	fileLog, err := logger.NewLogger("risk-demo")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer fileLog.Close()

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		notifier = notifications.NewTelegramNotifier(token, os.Getenv("TELEGRAM_CHAT_ID"))
		log.Println("Telegram notifications enabled")
	}

	engine, err := risk.NewEngine(params, fileLog, notifier)
	if err != nil {
		log.Fatalf("Failed to initialize risk engine: %v", err)
	}
	log.Println("Risk engine initialized")

	healthChecker := monitoring.NewHealthChecker()
	setupMonitoringServers(healthChecker)

	console := reporting.NewConsoleReporter(os.Stdout)
	history := &reporting.History{}

	runScenarios(engine, console, history, healthChecker)

	if path := os.Getenv("REPORT_XLSX"); path != "" {
		excel := reporting.NewExcelReporter()
		if err := excel.WriteHistoryXLSX(history, path); err != nil {
			log.Printf("Failed to write Excel report: %v", err)
		} else {
			log.Printf("Excel report written to %s", path)
		}
	}

	console.PrintHistory(history)
	log.Println("Demo finished successfully!")
}

// runScenarios walks the engine through a scripted trading day: a clean entry,
// a deteriorating account that trips the breakers, a trailing-stop ride, and a
// closure decision on the open position.
func runScenarios(engine *risk.Engine, console *reporting.ConsoleReporter,
	history *reporting.History, healthChecker *monitoring.HealthChecker) {

	now := time.Now()
	market := liveOrCannedMarket(now)
	account := risk.AccountState{
		TotalEquity:      10000,
		AvailableBalance: 9000,
		PeakEquity:       10200,
		CurrentDrawdown:  0.0196,
		LastTradeTime:    now.Add(-10 * time.Minute),
		Timestamp:        now,
	}
	signal := risk.TradingSignal{
		Symbol:     "BTCUSDT",
		Side:       risk.SideLong,
		EntryPrice: market.CurrentPrice,
		Confidence: 0.72,
		Strategy:   "breakout",
		CreatedAt:  now,
	}
	historyTrades := sampleTradeHistory(now)

	// Scenario 1: healthy account, clean entry
	log.Println("--- Scenario 1: clean entry ---")
	validation := engine.ValidateTrade(signal, account, market)
	console.PrintValidation(signal.Symbol, validation)
	healthChecker.RecordEvaluation(engine.Breaker().CurrentState().String())

	rec := reporting.DecisionRecord{
		Timestamp:  now,
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		EntryPrice: signal.EntryPrice,
		Validation: validation,
	}
	if validation.Valid {
		sizing := engine.SizePosition(signal, account, market, historyTrades)
		console.PrintSizing(signal.Symbol, sizing)
		rec.Sizing = &sizing
	}
	history.AddDecision(rec)

	// Scenario 2: intraday drawdown breach trips the breaker
	log.Println("--- Scenario 2: drawdown breach ---")
	stressed := account
	stressed.TotalEquity = 9350
	stressed.CurrentDrawdown = stressed.DrawdownFromPeak()
	stressed.RealizedPnLToday = -450

	breakerResult := engine.EvaluateBreakers(stressed, market)
	console.PrintBreaker(breakerResult)
	history.AddBreakerEvent(breakerResult)
	healthChecker.RecordEvaluation(breakerResult.State.String())

	rejected := engine.ValidateTrade(signal, stressed, market)
	console.PrintValidation(signal.Symbol, rejected)
	history.AddDecision(reporting.DecisionRecord{
		Timestamp:  now,
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		EntryPrice: signal.EntryPrice,
		Validation: rejected,
	})

	// Scenario 3: trailing stop follows a rising price
	log.Println("--- Scenario 3: trailing stop ---")
	stops := engine.InitialStops(signal)
	position := risk.Position{
		ID:         "demo-1",
		Symbol:     signal.Symbol,
		Side:       risk.SideLong,
		EntryPrice: signal.EntryPrice,
		Quantity:   0.2,
		StopLoss:   stops.StopLoss,
		TakeProfit: stops.TakeProfit,
		OpenedAt:   now,
	}
	for _, factor := range []float64{1.004, 1.012, 1.02, 1.016} {
		price := signal.EntryPrice * factor
		position = engine.UpdateTrailingStops(position, price)
		log.Printf("Price %.0f -> stop %.2f (trailing=%v)", price, position.StopLoss, position.TrailingActive)
	}

	// Scenario 4: closure decision on the open position
	log.Println("--- Scenario 4: closure check ---")
	spiked := market
	spiked.CurrentPrice = signal.EntryPrice * 1.016
	spiked.Volatility = spiked.HistoricalATR * 3.5
	closure := engine.ShouldClose(position, account, spiked)
	if closure.ShouldClose {
		log.Printf("Close %s: %s (%.0f%%, urgency %s)",
			position.Symbol, closure.Reason, closure.PercentageToClose, closure.Urgency)
	} else {
		log.Printf("Hold %s: no closure rule fired", position.Symbol)
	}
}

// liveOrCannedMarket fetches a real market snapshot from Bybit when API
// credentials are present, otherwise returns a canned healthy snapshot.
func liveOrCannedMarket(now time.Time) risk.MarketConditions {
	if apiKey := os.Getenv("BYBIT_API_KEY"); apiKey != "" {
		client := bybit.NewClient(bybit.Config{
			APIKey:    apiKey,
			APISecret: os.Getenv("BYBIT_API_SECRET"),
			Demo:      os.Getenv("BYBIT_DEMO") == "true",
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		market, err := client.MarketSnapshot(ctx, "linear", "BTCUSDT")
		if err != nil {
			log.Printf("Live market snapshot failed, using canned data: %v", err)
		} else {
			log.Printf("Using live BTCUSDT snapshot: price %.2f, regime %s", market.CurrentPrice, market.Regime)
			return market
		}
	}

	return risk.MarketConditions{
		Symbol:         "BTCUSDT",
		CurrentPrice:   50000,
		Volatility:     0.012,
		LiquidityScore: 85,
		SpreadPercent:  0.0004,
		Volume24h:      1_200_000_000,
		Regime:         risk.VolatilityNormal,
		HistoricalATR:  0.011,
		Timestamp:      now,
	}
}

// sampleTradeHistory fabricates a plausible closed-trade history so Kelly
// sizing has statistics to work with.
func sampleTradeHistory(now time.Time) []risk.ClosedTrade {
	trades := make([]risk.ClosedTrade, 0, 20)
	for i := 0; i < 20; i++ {
		pnl := 150.0
		if i%5 == 0 || i%7 == 0 {
			pnl = -100.0
		}
		trades = append(trades, risk.ClosedTrade{
			Symbol:     "BTCUSDT",
			Side:       risk.SideLong,
			EntryPrice: 50000,
			ExitPrice:  50000 + pnl*10,
			Quantity:   0.1,
			PnL:        pnl,
			OpenedAt:   now.Add(-time.Duration(20-i) * 24 * time.Hour),
			ClosedAt:   now.Add(-time.Duration(20-i)*24*time.Hour + 6*time.Hour),
		})
	}
	return trades
}

func setupMonitoringServers(healthChecker *monitoring.HealthChecker) {
	healthPort := envInt("HEALTH_PORT", 8080)
	metricsPort := envInt("METRICS_PORT", 9090)

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", healthChecker)
	go func() {
		log.Printf("Starting health server on port %d", healthPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", healthPort), healthMux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		log.Printf("Starting metrics server on port %d", metricsPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), metricsMux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return defaultVal
}
