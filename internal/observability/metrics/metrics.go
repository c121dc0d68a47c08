package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics exposes counters/histograms for gateway operations.
type GatewayMetrics struct {
	operationsTotal    *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	velocityRejections *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway and velocity collectors on reg,
// falling back to the default registerer when reg is nil.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patronpay",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Total gateway operations by outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patronpay",
			Subsystem: "gateway",
			Name:      "operation_seconds",
			Help:      "Latency of gateway operations including simulated provider delay",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		velocityRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patronpay",
			Subsystem: "velocity",
			Name:      "rejections_total",
			Help:      "Requests rejected by velocity limits",
		}, []string{"check_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationLatency, m.velocityRejections)
	return m
}

// ObserveOperation records one gateway call.
func (m *GatewayMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

// ObserveVelocityRejection counts a request refused by a velocity limit.
func (m *GatewayMetrics) ObserveVelocityRejection(checkType string) {
	if m == nil {
		return
	}
	m.velocityRejections.WithLabelValues(checkType).Inc()
}
