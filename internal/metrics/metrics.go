package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autctl/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace = "autctl"
	subsystem        = "Metrics"
)

// Outcomes used as label values.
const (
	OutcomeTrue           = "true"
	OutcomeFalse          = "false"
	OutcomeProtocolError  = "protocol_error"
	OutcomeTransportError = "transport_error"
	OutcomeReady          = "ready"
	OutcomeTimeout        = "timeout"
	OutcomeFailure        = "failure"
)

var (
	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "command_duration_seconds",
		Help:      "Duration of agent command exchanges",
		Buckets:   prometheus.DefBuckets,
	}, []string{
		"command",
		"outcome",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "commands_total",
		Help:      "Count of agent commands",
	}, []string{
		"command",
		"outcome",
	})

	launchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "launches_total",
		Help:      "Count of AUT launches",
	}, []string{
		"outcome",
	})

	readinessProbes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "readiness_probes",
		Help:      "Number of probes needed until the agent reported ready",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
	})

	staleTakeovers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "stale_instance_takeovers_total",
		Help:      "Count of launches that force-stopped a stale prior instance",
	})

	autRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "aut_running",
		Help:      "1 while an AUT instance holds the launch slot",
	})
)

// RecordCommand records one command exchange, labelled by command name.
func RecordCommand(command, outcome string, d time.Duration) {
	commandDuration.WithLabelValues(command, outcome).Observe(d.Seconds())
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

func RecordLaunch(outcome string) {
	launchesTotal.WithLabelValues(outcome).Inc()
}

func RecordReadinessProbes(n int) {
	readinessProbes.Observe(float64(n))
}

func RecordStaleTakeover() {
	staleTakeovers.Inc()
}

func SetRunning(running bool) {
	if running {
		autRunning.Set(1)
		return
	}
	autRunning.Set(0)
}

// Serve exposes the default registry on addr under /metrics until ctx is
// done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info(subsystem, "Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
