package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"RemoteRequestsTotal", RemoteRequestsTotal},
		{"RemoteBackoffsTotal", RemoteBackoffsTotal},
		{"RemoteLatency", RemoteLatency},
		{"RPCRateLimitWaits", RPCRateLimitWaits},
		{"RPCCallsTotal", RPCCallsTotal},
		{"CircuitBreakerState", CircuitBreakerState},
		{"TokenDirectorySize", TokenDirectorySize},
		{"TokenDirectoryPopulations", TokenDirectoryPopulations},
		{"TokensSkipped", TokensSkipped},
		{"FetcherPagesTotal", FetcherPagesTotal},
		{"FetcherTxFetched", FetcherTxFetched},
		{"FetcherErrors", FetcherErrors},
		{"NormalizerSkipped", NormalizerSkipped},
		{"IngesterTransactionsSaved", IngesterTransactionsSaved},
		{"IngesterDuplicatesSkipped", IngesterDuplicatesSkipped},
		{"IngesterBatchLatency", IngesterBatchLatency},
		{"DecoderTransactionsDecoded", DecoderTransactionsDecoded},
		{"DecoderEventsWritten", DecoderEventsWritten},
		{"DecoderErrors", DecoderErrors},
		{"PipelineSyncLatency", PipelineSyncLatency},
		{"PipelineQueryRangeStart", PipelineQueryRangeStart},
		{"DBPoolOpen", DBPoolOpen},
		{"DBPoolInUse", DBPoolInUse},
		{"DBPoolIdle", DBPoolIdle},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_CounterIncrement(t *testing.T) {
	t.Parallel()

	c := NormalizerSkipped.WithLabelValues("metrics-test-reason")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	assert.NotPanics(t, func() { RemoteRequestsTotal.WithLabelValues("tokens", "ok").Inc() })
	assert.NotPanics(t, func() { FetcherPagesTotal.WithLabelValues("older").Inc() })
	assert.NotPanics(t, func() { DecoderEventsWritten.WithLabelValues("spend", "fee").Inc() })
	assert.NotPanics(t, func() { IngesterBatchLatency.Observe(0.01) })
}
