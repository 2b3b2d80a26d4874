// ABOUTME: Prometheus metrics for the streaming pipeline and its observers
// ABOUTME: Registered on the default registry and served by the monitor at /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/virtual-audio-driver/micfeed/internal/streamer"
)

// Gauges
var (
	Cycle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "micfeed_cycle",
		Help: "Current script cycle number",
	})
	DriverState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "micfeed_driver_state",
		Help: "Driver state (0 idle, 1 started, 2 streaming, 3 stopped)",
	})
	TapListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "micfeed_tap_listeners",
		Help: "Number of connected PCM tap listeners",
	})
)

// Counters
var (
	BytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "micfeed_bytes_written_total",
		Help: "Total PCM bytes written to the pipe",
	})
	AudioSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "micfeed_audio_seconds_total",
		Help: "Total seconds of audio written to the pipe",
	})
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "micfeed_steps_total",
		Help: "Total script steps written by waveform kind",
	}, []string{"kind"})
	WriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "micfeed_write_failures_total",
		Help: "Total streaming runs ended by a pipe write failure",
	})
	TapDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "micfeed_tap_dropped_total",
		Help: "Total buffers dropped for slow PCM tap listeners",
	})
)

// Observe records one successful write. It is registered as a driver observer.
func Observe(ev streamer.Event) {
	Cycle.Set(float64(ev.Cycle))
	BytesWrittenTotal.Add(float64(ev.Bytes))
	AudioSecondsTotal.Add(ev.Buffer.Duration().Seconds())
	StepsTotal.WithLabelValues(ev.Step.Request.Kind.String()).Inc()
}

// SetState publishes the driver state
func SetState(s streamer.State) {
	DriverState.Set(float64(s))
}
