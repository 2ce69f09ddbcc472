package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(handler func(*http.Request) (*http.Response, error)) (*Client, *[]time.Duration) {
	client := NewClient(Config{BaseURL: "http://zksync.local/api/v0.2"}, slog.Default())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(handler),
	}
	var slept []time.Duration
	client.sleepFn = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &slept
}

func jsonHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestQuery_Success(t *testing.T) {
	client, slept := newTestClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v0.2/accounts/0xabc/transactions", r.URL.Path)
		assert.Equal(t, "latest", r.URL.Query().Get("from"))
		assert.Equal(t, "older", r.URL.Query().Get("direction"))
		return jsonHTTPResponse(http.StatusOK, `{"status":"success","result":{"list":[]}}`), nil
	})

	opts := url.Values{}
	opts.Set("from", "latest")
	opts.Set("direction", "older")
	result, err := client.Query(context.Background(), "accounts/0xabc/transactions", opts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"list":[]}`, string(result))
	assert.Empty(t, *slept)
}

func TestQuery_BacksOffOnTooManyRequests(t *testing.T) {
	calls := 0
	client, slept := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonHTTPResponse(http.StatusTooManyRequests, "slow down"), nil
		}
		return jsonHTTPResponse(http.StatusOK, `{"result":{"ok":true}}`), nil
	})

	result, err := client.Query(context.Background(), "tokens", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestQuery_GivesUpAtBackoffCeiling(t *testing.T) {
	calls := 0
	client, slept := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonHTTPResponse(http.StatusTooManyRequests, "slow down"), nil
	})

	_, err := client.Query(context.Background(), "tokens", nil)
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusTooManyRequests, remoteErr.StatusCode)

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, *slept)
	var total time.Duration
	for _, d := range *slept {
		total += d
	}
	assert.LessOrEqual(t, total, 33*time.Second)
	assert.Equal(t, 6, calls)
}

func TestQuery_FatalResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not found", http.StatusNotFound, `{"result":null}`},
		{"invalid json", http.StatusOK, "<html>"},
		{"json array", http.StatusOK, `[1,2]`},
		{"missing result", http.StatusOK, `{"status":"error","error":{"message":"nope"}}`},
		{"null result", http.StatusOK, `{"result":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client, slept := newTestClient(func(r *http.Request) (*http.Response, error) {
				calls++
				return jsonHTTPResponse(tt.status, tt.body), nil
			})

			_, err := client.Query(context.Background(), "tokens", nil)
			require.Error(t, err)
			assert.True(t, IsRemoteError(err))
			assert.Equal(t, 1, calls, "fatal responses are not retried")
			assert.Empty(t, *slept)
		})
	}
}

func TestQuery_TransportError(t *testing.T) {
	client, _ := newTestClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.Query(context.Background(), "tokens", nil)
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestQuery_CircuitBreakerOpens(t *testing.T) {
	calls := 0
	client, _ := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonHTTPResponse(http.StatusBadGateway, "down"), nil
	})
	client.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:             "zksync_lite_test",
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	}))

	for i := 0; i < 2; i++ {
		_, err := client.Query(context.Background(), "tokens", nil)
		require.Error(t, err)
	}
	_, err := client.Query(context.Background(), "tokens", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.True(t, IsRemoteError(err))
	assert.Equal(t, 2, calls)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "accounts/{id}/transactions", endpointLabel("accounts/0xAbC/transactions"))
	assert.Equal(t, "transactions/{id}/data", endpointLabel("/transactions/0x12/data"))
	assert.Equal(t, "tokens", endpointLabel("tokens"))
}
