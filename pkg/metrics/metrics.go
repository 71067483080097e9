package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Readiness metrics
	ReadinessPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etlconsole_readiness_polls_total",
			Help: "Total number of readiness polls by outcome",
		},
		[]string{"outcome"},
	)

	ReadinessState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etlconsole_readiness_state",
			Help: "Current readiness state (1 for the active state)",
		},
		[]string{"state"},
	)

	// Job metrics
	JobsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "etlconsole_jobs_started_total",
			Help: "Total number of ETL jobs submitted",
		},
	)

	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etlconsole_jobs_finished_total",
			Help: "Total number of ETL jobs that reached a terminal state",
		},
		[]string{"result"},
	)

	JobSubmitFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "etlconsole_job_submit_failures_total",
			Help: "Total number of rejected job submissions",
		},
	)

	JobProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "etlconsole_job_progress_percent",
			Help: "Last reported progress of the active job",
		},
	)

	ChannelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etlconsole_channel_events_total",
			Help: "Total number of push channel events received by kind",
		},
		[]string{"kind"},
	)

	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etlconsole_queries_total",
			Help: "Total number of chat queries by result",
		},
		[]string{"result"},
	)

	// HTTP client metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etlconsole_http_requests_total",
			Help: "Total number of backend requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etlconsole_http_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(ReadinessPollsTotal)
	prometheus.MustRegister(ReadinessState)
	prometheus.MustRegister(JobsStarted)
	prometheus.MustRegister(JobsFinished)
	prometheus.MustRegister(JobSubmitFailures)
	prometheus.MustRegister(JobProgress)
	prometheus.MustRegister(ChannelEventsTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until the server fails
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// SetReadinessState marks state as the only active readiness state
func SetReadinessState(state string) {
	for _, s := range []string{"polling", "ready", "blocked"} {
		v := 0.0
		if s == state {
			v = 1
		}
		ReadinessState.WithLabelValues(s).Set(v)
	}
}
