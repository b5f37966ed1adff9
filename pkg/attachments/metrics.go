package attachments

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts class loader cache activity.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Evictions     prometheus.Counter
	BuildFailures *prometheus.CounterVec
	Leased        prometheus.Gauge
}

// NewMetrics creates the cache metrics and registers them with reg, if
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "txmerkle",
			Subsystem: "classloader_cache",
			Name:      "hits_total",
			Help:      "Class loader cache lookups served from the cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "txmerkle",
			Subsystem: "classloader_cache",
			Name:      "misses_total",
			Help:      "Class loader builds started on a cache miss",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "txmerkle",
			Subsystem: "classloader_cache",
			Name:      "evictions_total",
			Help:      "Class loaders evicted from the cache",
		}),
		BuildFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "txmerkle",
				Subsystem: "classloader_cache",
				Name:      "build_failures_total",
				Help:      "Class loader builds that failed, by reason",
			},
			[]string{"reason"}, // overlap, untrusted, other
		),
		Leased: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "txmerkle",
			Subsystem: "classloader_cache",
			Name:      "leases",
			Help:      "Class loader leases currently held",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.BuildFailures, m.Leased)
	}
	return m
}

func failureReason(err error) string {
	var overlap *OverlappingAttachmentsError
	var untrusted *UntrustedAttachmentsError
	switch {
	case errors.As(err, &overlap):
		return "overlap"
	case errors.As(err, &untrusted):
		return "untrusted"
	default:
		return "other"
	}
}
