package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"p1dlms/pkg/decoder"
)

const namespace = "p1dlms"

// Metrics holds the collectors of one running service. Each instance owns
// its registry so tests can create as many as they like.
type Metrics struct {
	BytesReceived   prometheus.Counter
	FramesAssembled prometheus.Counter
	FramesDropped   prometheus.Counter
	BufferOverflows prometheus.Counter
	FramesDecoded   *prometheus.CounterVec
	Elements        *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	DecodeDuration  prometheus.Histogram
	SinkErrors      *prometheus.CounterVec
	LastValue       *prometheus.GaugeVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the meter port.",
		}),
		FramesAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_assembled_total",
			Help:      "Complete frames delimited on the wire.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames replaced by a newer frame before they were decoded.",
		}),
		BufferOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_overflows_total",
			Help:      "Partial frames discarded because they outgrew the frame buffer.",
		}),
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Decoded frames by outcome (reading or empty).",
		}, []string{"result"}),
		Elements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_decoded_total",
			Help:      "OBIS elements decoded, by quantity.",
		}, []string{"quantity"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Scans cut short, by reason.",
		}, []string{"reason"}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one frame.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 8),
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Readings a sink failed to deliver.",
		}, []string{"sink"}),
		LastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Last decoded value per quantity (energies in kWh).",
		}, []string{"quantity"}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.BytesReceived,
		m.FramesAssembled,
		m.FramesDropped,
		m.BufferOverflows,
		m.FramesDecoded,
		m.Elements,
		m.DecodeErrors,
		m.DecodeDuration,
		m.SinkErrors,
		m.LastValue,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is what the /metrics handler gathers from.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveReport records the outcome of one decoded frame.
func (m *Metrics) ObserveReport(rep decoder.Report, took time.Duration) {
	m.DecodeDuration.Observe(took.Seconds())

	for _, el := range rep.Elements {
		if el.Err != nil {
			reason := "truncated"
			if errors.Is(el.Err, decoder.ErrUnrecognizedType) {
				reason = "unrecognized_type"
			}
			m.DecodeErrors.WithLabelValues(reason).Inc()
			continue
		}
		m.Elements.WithLabelValues(el.Quantity.Key()).Inc()
	}

	if !rep.Found {
		m.FramesDecoded.WithLabelValues("empty").Inc()
		return
	}
	m.FramesDecoded.WithLabelValues("reading").Inc()
	for q, v := range rep.Reading.Values() {
		m.LastValue.WithLabelValues(q.Key()).Set(v)
	}
}
