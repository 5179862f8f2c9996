package common

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	logger, err := NewLogger("debug", "json", &out)
	require.NoError(t, err)
	logger.Debug("hello", "n", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "DEBUG", line["level"])

	out.Reset()
	logger, err = NewLogger("warn", "auto", &out)
	require.NoError(t, err)
	logger.Info("dropped")
	assert.Empty(t, out.String())

	_, err = NewLogger("loud", "json", &out)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &out)
	assert.Error(t, err)
}

func TestTelemetryServer(t *testing.T) {
	var logs bytes.Buffer
	logger, err := NewLogger("info", "text", &logs)
	require.NoError(t, err)

	telemetry := NewTelemetryServer("127.0.0.1:0", logger)
	metrics := NewMetrics(telemetry.GetRegistry())
	feed := NewFeedMetrics(telemetry.GetRegistry())
	require.NoError(t, telemetry.Start())
	t.Cleanup(func() { telemetry.Stop(context.Background()) })

	metrics.BookingsTotal.Inc()
	metrics.CheckoutFailures.WithLabelValues("seat_taken").Add(2)
	feed.HttpErrorsTotal.WithLabelValues("feed").Inc()

	response, err := http.Get("http://" + telemetry.Addr() + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), "ticketing_bookings_created_total 1")
	assert.Contains(t, string(body), `ticketing_build_info{git_commit="unknown",version="dev"} 1`)
	assert.Contains(t, string(body), `ticketing_feed_errors_total{endpoint="feed"} 1`)
	assert.Contains(t, string(body), `ticketing_checkout_failures_total{reason="seat_taken"} 2`)
	assert.Contains(t, logs.String(), "telemetry server started")
}

func TestRuntimeBenchmark(t *testing.T) {
	var out bytes.Buffer
	logger, err := NewLogger("info", "text", &out)
	require.NoError(t, err)

	value, err := RuntimeBenchmark(logger, "answer", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Contains(t, out.String(), "label=answer")

	benchmarker := NewBenchmarker(logger, "block")
	benchmarker.Close()
	assert.Contains(t, out.String(), "label=block")
}
