package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion stage counters and histograms. Address labels are deliberately
// absent; the watched set is unbounded.

var (
	// Remote API
	RemoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "remote",
		Name:      "requests_total",
		Help:      "Total remote API requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	RemoteBackoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "remote",
		Name:      "backoffs_total",
		Help:      "Total backoff sleeps after HTTP 429",
	}, []string{"endpoint"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Remote API call duration including backoff",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"endpoint"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"chain"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls by method and status class",
	}, []string{"chain", "method", "status"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "remote",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	// Token directory
	TokenDirectorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "tokens",
		Name:      "directory_size",
		Help:      "Number of token ids cached by the token directory",
	})

	TokenDirectoryPopulations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "tokens",
		Name:      "directory_populations_total",
		Help:      "Total token listing paginations",
	})

	TokensSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "tokens",
		Name:      "skipped_total",
		Help:      "Total token listing entries skipped",
	}, []string{"reason"})

	// Fetcher
	FetcherPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "fetcher",
		Name:      "pages_total",
		Help:      "Total transaction pages fetched",
	}, []string{"direction"})

	FetcherTxFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "fetcher",
		Name:      "transactions_fetched_total",
		Help:      "Total normalized transactions yielded by the fetcher",
	}, []string{"direction"})

	FetcherErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "fetcher",
		Name:      "errors_total",
		Help:      "Total aborted walks",
	}, []string{"direction"})

	// Normalizer
	NormalizerSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "normalizer",
		Name:      "skipped_total",
		Help:      "Total raw entries discarded by the normalizer",
	}, []string{"reason"})

	// Ingester
	IngesterTransactionsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "ingester",
		Name:      "transactions_saved_total",
		Help:      "Total transactions persisted",
	})

	IngesterDuplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "ingester",
		Name:      "duplicates_skipped_total",
		Help:      "Total transactions skipped as duplicates",
	}, []string{"stage"})

	IngesterBatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "ingester",
		Name:      "batch_duration_seconds",
		Help:      "Duration of persisting one fetched page",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// Decoder
	DecoderTransactionsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "decoder",
		Name:      "transactions_decoded_total",
		Help:      "Total transactions decoded into ledger events",
	})

	DecoderEventsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "decoder",
		Name:      "events_written_total",
		Help:      "Total ledger events written",
	}, []string{"type", "subtype"})

	DecoderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "decoder",
		Name:      "errors_total",
		Help:      "Total transactions that failed to decode",
	})

	// Pipeline
	PipelineSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "pipeline",
		Name:      "sync_duration_seconds",
		Help:      "Duration of one full sync cycle",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	})

	PipelineQueryRangeStart = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "pipeline",
		Name:      "last_query_range_start_seconds",
		Help:      "Start bound of the most recently advanced query range",
	})

	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "db_pool",
		Name:      "open_connections",
		Help:      "Number of open DB connections",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "db_pool",
		Name:      "in_use",
		Help:      "Number of DB connections in use",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "db_pool",
		Name:      "idle",
		Help:      "Number of idle DB connections",
	})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts delivered by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts suppressed by the cooldown window",
	}, []string{"type"})
)
