package ingrain

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	if reg == nil {
		return nil, errors.New("ingrain: nil metrics registerer")
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingrain",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Requests sent to Ingrain servers by operation and status code.",
	}, []string{"server", "op", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ingrain",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Round-trip latency of requests to Ingrain servers.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"server", "op"})

	// Several clients may share one registry.
	if err := reg.Register(requests); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		requests = existing
	}
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		duration = existing
	}

	return &clientMetrics{requests: requests, duration: duration}, nil
}

// observe is a no-op on a nil receiver so callers need not check whether
// metrics are enabled.
func (m *clientMetrics) observe(cl *call, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(cl.server.String(), cl.op, code).Inc()
	m.duration.WithLabelValues(cl.server.String(), cl.op).Observe(d.Seconds())
}
