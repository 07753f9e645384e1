package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// Collector collects P25-Nexus decode metrics. Each collector owns its
// registry so several can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	frames          *prometheus.CounterVec
	messages        *prometheus.CounterVec
	invalidMessages *prometheus.CounterVec
	correctedErrors *prometheus.CounterVec
	bandUpdates     *prometheus.CounterVec
	lastMessage     *prometheus.GaugeVec
	processorStats  *prometheus.GaugeVec
	captureErrors   *prometheus.CounterVec
	activeCalls     prometheus.Gauge
	publishFailures *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_frames_total",
				Help: "Decoded frames by channel and data unit",
			},
			[]string{"channel", "duid"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_messages_total",
				Help: "Emitted messages by channel and kind",
			},
			[]string{"channel", "kind"},
		),
		invalidMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_messages_invalid_total",
				Help: "Emitted messages with an uncorrectable region",
			},
			[]string{"channel", "duid"},
		),
		correctedErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_corrected_errors_total",
				Help: "Bit or symbol errors repaired by error correction",
			},
			[]string{"channel"},
		),
		bandUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_band_updates_total",
				Help: "Identifier update messages seen",
			},
			[]string{"channel"},
		),
		lastMessage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "p25_last_message_timestamp_seconds",
				Help: "Unix time of the last emitted message",
			},
			[]string{"channel"},
		),
		processorStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "p25_processor_stat",
				Help: "Running processor counters",
			},
			[]string{"channel", "stat"},
		),
		captureErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_capture_errors_total",
				Help: "Malformed capture records",
			},
			[]string{"capture"},
		),
		activeCalls: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "p25_calls_active",
				Help: "Voice calls in progress",
			},
		),
		publishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p25_publish_failures_total",
				Help: "Events a sink failed to deliver",
			},
			[]string{"sink"},
		),
	}
}

// Registry exposes the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records one processor event
func (c *Collector) Observe(ev p25.Event) {
	msg := ev.Message
	duid := msg.DUID().String()

	c.frames.WithLabelValues(ev.Channel, duid).Inc()
	c.messages.WithLabelValues(ev.Channel, msg.Kind()).Inc()
	if !msg.IsValid() {
		c.invalidMessages.WithLabelValues(ev.Channel, duid).Inc()
	}

	corrected := 0
	for _, crc := range msg.CRCs() {
		if crc.Passed() {
			corrected += crc.Errors
		}
	}
	if corrected > 0 {
		c.correctedErrors.WithLabelValues(ev.Channel).Add(float64(corrected))
	}

	if _, ok := msg.(*p25.IdentifierUpdateMessage); ok {
		c.bandUpdates.WithLabelValues(ev.Channel).Inc()
	}
	if !ev.Time.IsZero() {
		c.lastMessage.WithLabelValues(ev.Channel).Set(float64(ev.Time.UnixNano()) / 1e9)
	}
}

// UpdateProcessorStats copies a processor's counters into gauges
func (c *Collector) UpdateProcessorStats(channel string, s p25.ProcessorStats) {
	c.processorStats.WithLabelValues(channel, "frames").Set(float64(s.Frames))
	c.processorStats.WithLabelValues(channel, "data_blocks").Set(float64(s.DataBlocks))
	c.processorStats.WithLabelValues(channel, "events").Set(float64(s.Events))
	c.processorStats.WithLabelValues(channel, "rejected_blocks").Set(float64(s.RejectedBlocks))
	c.processorStats.WithLabelValues(channel, "dropped_sequences").Set(float64(s.DroppedSequences))
	c.processorStats.WithLabelValues(channel, "band_updates").Set(float64(s.BandUpdates))
}

// CaptureError records a malformed capture record
func (c *Collector) CaptureError(capture string) {
	c.captureErrors.WithLabelValues(capture).Inc()
}

// SetActiveCalls records the number of calls in progress
func (c *Collector) SetActiveCalls(n int) {
	c.activeCalls.Set(float64(n))
}

// PublishFailed records an event a sink could not deliver
func (c *Collector) PublishFailed(sink string) {
	c.publishFailures.WithLabelValues(sink).Inc()
}
