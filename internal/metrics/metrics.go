package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState is 1 for the current wallet connection status and 0 for the others
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wallet_connection_state",
			Help: "Current wallet connection status",
		},
		[]string{"status"},
	)

	// ConnectAttempts counts connect attempts by connector and outcome
	ConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_connect_attempts_total",
			Help: "Total number of wallet connect attempts",
		},
		[]string{"connector", "outcome"},
	)

	// RefreshesTotal counts contract state refreshes by outcome
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_reader_refreshes_total",
			Help: "Total number of contract state refreshes",
		},
		[]string{"outcome"},
	)

	// RefreshDuration tracks how long a full refresh takes
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallet_reader_refresh_duration_seconds",
			Help:    "Contract state refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReadErrors counts failed reads per snapshot field
	ReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_reader_errors_total",
			Help: "Total number of failed contract reads",
		},
		[]string{"field"},
	)

	// EventsReceived counts contract events delivered to the watcher
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_watcher_events_total",
			Help: "Total number of contract events received",
		},
		[]string{"event"},
	)

	// TransactionsTotal counts transaction outcomes by function and status
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "Total number of submitted transactions",
		},
		[]string{"function", "status"},
	)

	// TransactionFallbacks counts switches to a fallback function
	TransactionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transaction_fallbacks_total",
			Help: "Total number of fallback function attempts",
		},
		[]string{"from", "to"},
	)

	// ConfirmationPolls tracks how many polls a transaction needed before finishing
	ConfirmationPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallet_confirmation_polls",
			Help:    "Number of confirmation polls per transaction",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)

	// ErrorsTotal counts classified errors by component and kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "kind"},
	)
)

var connectionStatuses = []string{"disconnected", "connecting", "connected", "error"}

// SetConnectionState marks status as the only active connection status.
func SetConnectionState(status string) {
	for _, s := range connectionStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}
