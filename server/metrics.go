package server

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the server's prometheus counters/histograms, one
// per accepted connection and per dispatched command. Grounded on the
// teacher's metrics/metrics.go, repurposed from token-issuance metrics
// to crypto-operation metrics; the /metrics + pprof mux wiring below
// is ported near-verbatim from RegisterAndListen.
type Metrics struct {
	Connections     prometheus.Counter
	ConnectionErrs  prometheus.Counter
	CommandTotal    *prometheus.CounterVec
	CommandErrors   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
	BuildInfo       *prometheus.GaugeVec
}

var goVersion = runtime.Version()

var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// NewMetrics builds a fresh, registered Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoserver_connections_total",
			Help: "Total number of accepted connections.",
		}),
		ConnectionErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoserver_connection_errors_total",
			Help: "Total number of connections that failed before a request could be parsed.",
		}),
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoserver_command_total",
			Help: "Total number of commands that completed successfully, by command name.",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoserver_command_errors_total",
			Help: "Total number of commands that failed, by command name.",
		}, []string{"command"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptoserver_command_duration_seconds",
			Help:    "Command execution latency, by command name.",
			Buckets: latencyBuckets,
		}, []string{"command"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptoserver_pool_queue_depth",
			Help: "Approximate number of tasks waiting in the pool queue.",
		}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptoserver_build_info",
			Help: "A metric with a constant '1' value labeled by version and goversion.",
		}, []string{"version", "goversion"}),
	}
	return m
}

// Register registers every collector against reg.
func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Connections, m.ConnectionErrs, m.CommandTotal,
		m.CommandErrors, m.CommandDuration, m.QueueDepth, m.BuildInfo,
	)
}

// AdminMux builds the /metrics + pprof admin handler mounted by
// Server.ServeAdmin.
func (m *Metrics) AdminMux(version string) *http.ServeMux {
	reg := prometheus.NewRegistry()
	m.Register(reg)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
