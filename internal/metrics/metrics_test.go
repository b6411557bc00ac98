package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed("client-closed")
	m.Relay("offer")
	m.Relay("offer")
	m.Invalid("join")
	m.ObserveRegistry(3, 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Disconnects.WithLabelValues("client-closed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Relayed.WithLabelValues("offer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvalidInputs.WithLabelValues("join")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rooms))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Members))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.Relay("answer")
		m.ObserveRegistry(1, 1)
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.Joined()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "rendezvous_joins_total 1")
}
