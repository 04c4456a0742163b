package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Price feed
	feedPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_feed_polls_total",
			Help: "Price feed polls by result (ok, error, dropped, stale_discarded)",
		},
		[]string{"result"},
	)
	feedLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexus_feed_fetch_seconds",
			Help:    "Round-trip time of a price feed fetch",
			Buckets: prometheus.DefBuckets,
		},
	)
	feedPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexus_feed_price",
			Help: "Last applied price per symbol",
		},
		[]string{"symbol"},
	)

	// Advisory lifecycle
	advisoryRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_advisory_requests_total",
			Help: "Advisory requests issued",
		},
	)
	advisoryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_advisory_outcomes_total",
			Help: "Advisory request outcomes by phase and reason",
		},
		[]string{"phase", "reason"},
	)
	advisorySuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_advisory_superseded_total",
			Help: "Advisory results discarded because a newer request was issued",
		},
	)

	// Ledger
	trades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_trades_total",
			Help: "Simulated trade executions by side and result",
		},
		[]string{"side", "result"},
	)
	balance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexus_balance",
			Help: "Simulated balance per currency",
		},
		[]string{"currency"},
	)

	// Assistant
	assistantCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_assistant_calls_total",
			Help: "Chat and insight calls by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// RecordFeedPoll counts a feed poll outcome.
func RecordFeedPoll(result string) {
	feedPolls.WithLabelValues(result).Inc()
}

// ObserveFeedLatency records a fetch round-trip in seconds.
func ObserveFeedLatency(seconds float64) {
	feedLatency.Observe(seconds)
}

// SetFeedPrice publishes the last applied price for a symbol.
func SetFeedPrice(symbol string, price float64) {
	feedPrice.WithLabelValues(symbol).Set(price)
}

// RecordAdvisoryRequest counts an issued advisory request.
func RecordAdvisoryRequest() {
	advisoryRequests.Inc()
}

// RecordAdvisoryOutcome counts a settled advisory request.
func RecordAdvisoryOutcome(phase, reason string) {
	advisoryOutcomes.WithLabelValues(phase, reason).Inc()
}

// RecordAdvisorySuperseded counts a discarded late result.
func RecordAdvisorySuperseded() {
	advisorySuperseded.Inc()
}

// RecordTrade counts a trade execution attempt.
func RecordTrade(side, result string) {
	trades.WithLabelValues(side, result).Inc()
}

// SetBalance publishes a currency balance.
func SetBalance(currency string, value float64) {
	balance.WithLabelValues(currency).Set(value)
}

// RecordAssistantCall counts a chat or insight call.
func RecordAssistantCall(kind, result string) {
	assistantCalls.WithLabelValues(kind, result).Inc()
}
