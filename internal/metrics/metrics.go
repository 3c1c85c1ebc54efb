// Package metrics exposes prometheus instruments for door sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionOutcomes counts terminal outcomes per transport, action and code.
	SessionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doorctl",
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Terminal outcomes of door sessions",
		},
		[]string{"transport", "action", "code"},
	)

	// SessionDuration tracks time from session start to outcome delivery.
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doorctl",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Time from session start to outcome delivery",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"transport"},
	)

	// TransportBusy is 1 while a session holds the transport lock.
	TransportBusy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "doorctl",
			Name:      "transport_busy",
			Help:      "Whether a session currently holds the transport lock",
		},
		[]string{"transport"},
	)
)

// Recorder receives session lifecycle events. The session core calls it
// without knowing about prometheus.
type Recorder interface {
	Acquired(transport string)
	Released(transport string)
	Outcome(transport, action, code string, elapsed time.Duration)
}

type promRecorder struct{}

// Prometheus returns a Recorder backed by the package instruments.
func Prometheus() Recorder {
	return promRecorder{}
}

func (promRecorder) Acquired(transport string) {
	TransportBusy.WithLabelValues(transport).Set(1)
}

func (promRecorder) Released(transport string) {
	TransportBusy.WithLabelValues(transport).Set(0)
}

func (promRecorder) Outcome(transport, action, code string, elapsed time.Duration) {
	SessionOutcomes.WithLabelValues(transport, action, code).Inc()
	SessionDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

type noopRecorder struct{}

// Noop returns a Recorder that drops everything.
func Noop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) Acquired(string)                              {}
func (noopRecorder) Released(string)                              {}
func (noopRecorder) Outcome(string, string, string, time.Duration) {}

// WriteTextfile writes all registered metrics to path in the node-exporter
// textfile collector format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
