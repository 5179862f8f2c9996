package common

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the API-side series: request handling and ticket sales.
type Metrics struct {
	HttpRequestSeconds   *prometheus.HistogramVec
	HttpRequestsInFlight prometheus.Gauge
	BookingsTotal        prometheus.Counter
	SeatsSoldTotal       prometheus.Counter
	CheckoutReplaysTotal prometheus.Counter
	CheckoutFailures     *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		HttpRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_http_request_seconds",
				Help:    "Time to serve API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		HttpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticketing_http_requests_in_flight",
				Help: "API requests currently being served",
			},
		),
		BookingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketing_bookings_created_total",
				Help: "Bookings created through checkout",
			},
		),
		SeatsSoldTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketing_seats_sold_total",
				Help: "Tickets issued through checkout",
			},
		),
		CheckoutReplaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketing_checkout_replays_total",
				Help: "Checkouts answered from a stored idempotency key",
			},
		),
		CheckoutFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_checkout_failures_total",
				Help: "Rejected or failed checkouts by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		metrics.HttpRequestSeconds,
		metrics.HttpRequestsInFlight,
		metrics.BookingsTotal,
		metrics.SeatsSoldTotal,
		metrics.CheckoutReplaysTotal,
		metrics.CheckoutFailures,
	)

	return metrics
}

// FeedMetrics track polling of upstream realtime feeds.
type FeedMetrics struct {
	HttpTTFBSeconds     *prometheus.HistogramVec
	HttpReadBodySeconds *prometheus.HistogramVec
	HttpBytesTotal      *prometheus.CounterVec
	HttpErrorsTotal     *prometheus.CounterVec
	TripUpdatesTotal    *prometheus.CounterVec
}

func NewFeedMetrics(registry prometheus.Registerer) *FeedMetrics {
	metrics := &FeedMetrics{
		HttpTTFBSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_feed_ttfb_seconds",
				Help:    "Time from feed GET to first byte",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		HttpReadBodySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_feed_read_body_seconds",
				Help:    "Time to read the body of a feed response",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		HttpBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_feed_bytes_total",
				Help: "Bytes downloaded per feed endpoint",
			},
			[]string{"endpoint"},
		),
		HttpErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_feed_errors_total",
				Help: "Errors incurred from sustained interaction with a feed endpoint",
			},
			[]string{"endpoint"},
		),
		TripUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_feed_trip_updates_total",
				Help: "Trip updates seen per outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		metrics.HttpTTFBSeconds,
		metrics.HttpReadBodySeconds,
		metrics.HttpBytesTotal,
		metrics.HttpErrorsTotal,
		metrics.TripUpdatesTotal,
	)

	return metrics
}

type TelemetryServer struct {
	addr     string
	mux      *http.ServeMux
	registry *prometheus.Registry
	logger   *slog.Logger

	server   *http.Server
	listener net.Listener
}

func NewTelemetryServer(addr string, logger *slog.Logger) *TelemetryServer {
	telemetry := &TelemetryServer{
		addr:     addr,
		registry: prometheus.NewRegistry(),
		mux:      http.NewServeMux(),
		logger:   logger,
	}

	telemetry.mux.Handle(
		"/metrics",
		promhttp.HandlerFor(telemetry.registry, promhttp.HandlerOpts{}),
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketing_build_info",
			Help: "Build metadata",
		},
		[]string{"version", "git_commit"},
	)

	telemetry.registry.MustRegister(
		collectors.NewGoCollector(), // Go runtime metrics
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	)

	buildInfo.WithLabelValues(Version, GitCommit).Set(1)

	telemetry.mux.HandleFunc("/debug/pprof/", pprof.Index)
	telemetry.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	telemetry.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	telemetry.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	telemetry.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return telemetry
}

func (telemetry *TelemetryServer) GetRegistry() *prometheus.Registry {
	return telemetry.registry
}

func (telemetry *TelemetryServer) Handler() http.Handler {
	return telemetry.mux
}

// Addr is the bound address once Start has returned.
func (telemetry *TelemetryServer) Addr() string {
	if telemetry.listener == nil {
		return telemetry.addr
	}
	return telemetry.listener.Addr().String()
}

func (telemetry *TelemetryServer) Start() error {
	telemetry.server = &http.Server{
		Addr:              telemetry.addr,
		Handler:           telemetry.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", telemetry.addr)
	if err != nil {
		return err
	}

	telemetry.listener = listener

	go func() {
		if err := telemetry.server.Serve(telemetry.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.logger.Error("telemetry server stopped", "error", err)
		}
	}()

	telemetry.logger.Info("telemetry server started", "addr", telemetry.Addr())
	return nil
}

func (telemetry *TelemetryServer) Stop(ctx context.Context) error {
	if telemetry.server == nil {
		return nil
	}

	return telemetry.server.Shutdown(ctx)
}
