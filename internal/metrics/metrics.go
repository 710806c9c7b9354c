package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hetulpatel/sportsarb/internal/logging"
)

var (
	FetchTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sports_arb_fetch_tasks_total",
		Help: "Venue fetch tasks by outcome",
	}, []string{"venue", "outcome"})

	FetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sports_arb_fetch_task_seconds",
		Help:    "Duration of a single venue fetch task",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue"})

	VenueEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sports_arb_venue_entries",
		Help: "Normalized entries loaded in the last cycle",
	}, []string{"venue", "sport"})

	MatchedPairs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sports_arb_matched_pairs",
		Help: "Cross-venue pairs in the last cycle",
	}, []string{"sport"})

	Opportunities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sports_arb_opportunities",
		Help: "Opportunities published in the last cycle",
	}, []string{"sport"})

	SinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sports_arb_sink_failures_total",
		Help: "Failed sink publications",
	}, []string{"sink"})

	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sports_arb_cycle_seconds",
		Help:    "End to end duration of one scan cycle",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"sport"})
)

func init() {
	prometheus.MustRegister(
		FetchTasks,
		FetchLatency,
		VenueEntries,
		MatchedPairs,
		Opportunities,
		SinkFailures,
		CycleDuration,
	)
}

// FetchObserver returns a callback for fetch.Options.Observe labelled by venue.
func FetchObserver(venue string) func(error, time.Duration) {
	return func(err error, elapsed time.Duration) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		FetchTasks.WithLabelValues(venue, outcome).Inc()
		FetchLatency.WithLabelValues(venue).Observe(elapsed.Seconds())
	}
}

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	return mux
}

// Serve runs the metrics server until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		logging.Infof("[metrics] disabled: empty addr")
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Infof("[metrics] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[metrics] server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("[metrics] shutdown error: %v", err)
		}
	}()
}
