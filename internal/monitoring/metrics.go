package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Validation metrics
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_validations_total",
			Help: "Total number of trade validations by verdict",
		},
		[]string{"symbol", "verdict"},
	)

	rejectionsByCheck = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_rejections_total",
			Help: "Total number of failed validation checks by check name",
		},
		[]string{"check"},
	)

	riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_risk_score",
			Help: "Aggregate risk score of the most recent validation (0-100, lower is better)",
		},
		[]string{"symbol"},
	)

	// Sizing metrics
	positionSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_position_size",
			Help:    "Distribution of computed position sizes",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"symbol"},
	)

	// Circuit breaker metrics
	breakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_breaker_state",
			Help: "Circuit breaker state (0=normal, 1=restricted, 2=emergency, 3=halted)",
		},
	)

	breakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_breaker_trips_total",
			Help: "Total number of circuit breaker trips by trigger",
		},
		[]string{"trigger"},
	)

	// Closure metrics
	closuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_closures_total",
			Help: "Total number of closure recommendations by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(validationsTotal)
	prometheus.MustRegister(rejectionsByCheck)
	prometheus.MustRegister(riskScore)
	prometheus.MustRegister(positionSize)
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(breakerTrips)
	prometheus.MustRegister(closuresTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordValidation records a validation verdict and its aggregate score
func RecordValidation(symbol string, valid bool, score float64) {
	verdict := "rejected"
	if valid {
		verdict = "approved"
	}
	validationsTotal.WithLabelValues(symbol, verdict).Inc()
	riskScore.WithLabelValues(symbol).Set(score)
}

// RecordRejectedCheck records one failed validation check
func RecordRejectedCheck(check string) {
	rejectionsByCheck.WithLabelValues(check).Inc()
}

// RecordPositionSize records a computed position size
func RecordPositionSize(symbol string, quantity float64) {
	positionSize.WithLabelValues(symbol).Observe(quantity)
}

// UpdateBreakerState updates the circuit breaker state gauge
func UpdateBreakerState(state int) {
	breakerState.Set(float64(state))
}

// RecordBreakerTrip records one circuit breaker trigger firing
func RecordBreakerTrip(trigger string) {
	breakerTrips.WithLabelValues(trigger).Inc()
}

// RecordClosure records a closure recommendation
func RecordClosure(reason string) {
	closuresTotal.WithLabelValues(reason).Inc()
}
