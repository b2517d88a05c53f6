package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flakyServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("DOMAIN-SUFFIX,example.com\n"))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestFetchWithRetry_RecoversAfterFailures(t *testing.T) {
	ts, hits := flakyServer(t, 2)

	text, err := FetchWithRetry(context.Background(), KindRuleSource, ts.URL, RetryPolicy{Attempts: 3, Wait: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "DOMAIN-SUFFIX,example.com\n", text)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchWithRetry_GivesUp(t *testing.T) {
	ts, hits := flakyServer(t, 10)

	_, err := FetchWithRetry(context.Background(), KindRuleSource, ts.URL, RetryPolicy{Attempts: 2, Wait: time.Millisecond})
	assertFetchError(t, err, http.StatusBadGateway, "FETCH_FAILED", "fetch_source")
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchWithRetry_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte{0xff})
	}))
	defer ts.Close()

	_, err := FetchWithRetry(context.Background(), KindRuleSource, ts.URL, RetryPolicy{Attempts: 3, Wait: time.Millisecond})
	assertFetchError(t, err, http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "fetch_source")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchWithRetry_ContextCancelledDuringWait(t *testing.T) {
	ts, hits := flakyServer(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := FetchWithRetry(ctx, KindRuleSource, ts.URL, RetryPolicy{Attempts: 3, Wait: time.Minute})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 5*time.Second, p.Wait)
	assert.Equal(t, time.Duration(0), RetryPolicy{Wait: -1}.withDefaults().Wait)
}
