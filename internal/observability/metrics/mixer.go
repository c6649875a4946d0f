package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/mixcore/internal/mixer"
)

// MixerMetrics records engine activity. Label children are resolved once at
// construction so the mixer goroutine only touches atomics.
type MixerMetrics struct {
	registry *prometheus.Registry

	periodsTotal     prometheus.Counter
	mixDuration      prometheus.Histogram
	activeRequests   prometheus.Gauge
	clockFrames      prometheus.Gauge
	submittedTotal   prometheus.Counter
	stopRequests     prometheus.Counter
	freedTotal       prometheus.Counter
	retiredTotal     *prometheus.CounterVec
	deviceErrors     *prometheus.CounterVec
	deviceRecoveries *prometheus.CounterVec

	retiredCompleted prometheus.Counter
	retiredStopped   prometheus.Counter
	underruns        prometheus.Counter
	writeErrors      prometheus.Counter
	recoveredOK      prometheus.Counter
	recoveredFailed  prometheus.Counter
}

var _ mixer.Recorder = (*MixerMetrics)(nil)

// NewMixerMetrics creates and registers mixer metrics
func NewMixerMetrics(registry *prometheus.Registry) (*MixerMetrics, error) {
	m := &MixerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MixerMetrics) initMetrics() {
	m.periodsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mixcore_mixer_periods_total",
		Help: "Total number of periods mixed and written",
	})

	m.mixDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mixcore_mixer_mix_duration_seconds",
		Help:    "Time spent mixing one period, excluding the device write",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~20ms
	})

	m.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mixcore_mixer_active_requests",
		Help: "Requests still in the registry after the last period",
	})

	m.clockFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mixcore_mixer_clock_frames",
		Help: "Current mix clock in frames",
	})

	m.submittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mixcore_mixer_requests_submitted_total",
		Help: "Total number of playback requests submitted",
	})

	m.stopRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mixcore_mixer_stop_requests_total",
		Help: "Total number of stop requests that changed a request's state",
	})

	m.freedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mixcore_mixer_requests_freed_total",
		Help: "Total number of requests returned to the pool",
	})

	m.retiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixcore_mixer_requests_retired_total",
			Help: "Total number of requests removed from the registry",
		},
		[]string{"reason"}, // completed, stopped
	)

	m.deviceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixcore_mixer_device_errors_total",
			Help: "Total number of failed device writes",
		},
		[]string{"kind"}, // underrun, write
	)

	m.deviceRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixcore_mixer_device_recoveries_total",
			Help: "Total number of device recovery attempts",
		},
		[]string{"status"},
	)

	m.retiredCompleted = m.retiredTotal.WithLabelValues(ReasonCompleted)
	m.retiredStopped = m.retiredTotal.WithLabelValues(ReasonStopped)
	m.underruns = m.deviceErrors.WithLabelValues(DeviceErrorUnderrun)
	m.writeErrors = m.deviceErrors.WithLabelValues(DeviceErrorWrite)
	m.recoveredOK = m.deviceRecoveries.WithLabelValues(StatusSuccess)
	m.recoveredFailed = m.deviceRecoveries.WithLabelValues(StatusError)
}

// RecordPeriod records one mixed period
func (m *MixerMetrics) RecordPeriod(mix time.Duration, active int, clock uint64) {
	m.periodsTotal.Inc()
	m.mixDuration.Observe(mix.Seconds())
	m.activeRequests.Set(float64(active))
	m.clockFrames.Set(float64(clock))
}

// RecordRetire records a request leaving the registry
func (m *MixerMetrics) RecordRetire(reason mixer.RetireReason) {
	if reason == mixer.RetireCompleted {
		m.retiredCompleted.Inc()
		return
	}
	m.retiredStopped.Inc()
}

// RecordSubmit records a new request
func (m *MixerMetrics) RecordSubmit() {
	m.submittedTotal.Inc()
}

// RecordStopRequest records a stop that moved a request out of active
func (m *MixerMetrics) RecordStopRequest() {
	m.stopRequests.Inc()
}

// RecordFree records a request being returned to the pool
func (m *MixerMetrics) RecordFree() {
	m.freedTotal.Inc()
}

// RecordDeviceError records a failed write by kind
func (m *MixerMetrics) RecordDeviceError(kind string) {
	switch kind {
	case DeviceErrorUnderrun:
		m.underruns.Inc()
	case DeviceErrorWrite:
		m.writeErrors.Inc()
	default:
		m.deviceErrors.WithLabelValues(kind).Inc()
	}
}

// RecordRecovery records the outcome of a device recovery
func (m *MixerMetrics) RecordRecovery(ok bool) {
	if ok {
		m.recoveredOK.Inc()
		return
	}
	m.recoveredFailed.Inc()
}

// Describe implements the prometheus.Collector interface
func (m *MixerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.periodsTotal.Describe(ch)
	m.mixDuration.Describe(ch)
	m.activeRequests.Describe(ch)
	m.clockFrames.Describe(ch)
	m.submittedTotal.Describe(ch)
	m.stopRequests.Describe(ch)
	m.freedTotal.Describe(ch)
	m.retiredTotal.Describe(ch)
	m.deviceErrors.Describe(ch)
	m.deviceRecoveries.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *MixerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.periodsTotal.Collect(ch)
	m.mixDuration.Collect(ch)
	m.activeRequests.Collect(ch)
	m.clockFrames.Collect(ch)
	m.submittedTotal.Collect(ch)
	m.stopRequests.Collect(ch)
	m.freedTotal.Collect(ch)
	m.retiredTotal.Collect(ch)
	m.deviceErrors.Collect(ch)
	m.deviceRecoveries.Collect(ch)
}
