package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	submissions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presensi",
			Name:      "submissions_total",
			Help:      "Attendance submissions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.submissions)
	return m
}

func (m *metrics) submission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}
