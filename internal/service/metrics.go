package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	canned     *prometheus.CounterVec
	swept      prometheus.Counter
}

// NewMetrics registers pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_pipeline_operations_total",
				Help: "Pipeline operations by outcome; outcome is ok or an error kind.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docchat_pipeline_duration_seconds",
				Help:    "Duration of pipeline operations.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		canned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_canned_responses_total",
				Help: "Questions answered by a canned rule without calling the model.",
			},
			[]string{"rule"},
		),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docchat_orphans_swept_total",
			Help: "Orphaned document objects removed by the sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.canned, m.swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorKind(err)
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) cannedHit(rule string) {
	if m == nil {
		return
	}
	m.canned.WithLabelValues(rule).Inc()
}

func (m *Metrics) orphansSwept(n int) {
	if m == nil || n == 0 {
		return
	}
	m.swept.Add(float64(n))
}
