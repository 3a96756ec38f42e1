package app

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
)

type serviceMetrics struct {
	verdicts   *prometheus.CounterVec
	rangeSteps *prometheus.CounterVec
	rangeG     prometheus.Gauge
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagnosis_verdicts_total",
				Help: "Total number of diagnosis verdicts by fault and outcome.",
			},
			[]string{"fault", "kind"},
		),
		rangeSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagnosis_range_steps_total",
				Help: "Total number of accelerometer range steps.",
			},
			[]string{"direction"},
		),
		rangeG: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diagnosis_accel_range_g",
			Help: "Active accelerometer full scale in g.",
		}),
	}
	reg.MustRegister(m.verdicts, m.rangeSteps, m.rangeG)
	return m
}

func (m *serviceMetrics) observeVerdict(v diagnosis.Verdict) {
	fault := strings.ToLower(v.Fault.String())
	if v.Kind == diagnosis.KindInvalid {
		fault = "none"
	}
	m.verdicts.WithLabelValues(fault, v.Kind.String()).Inc()
}

func (m *serviceMetrics) observeRange(from, to accelrange.Code) {
	m.rangeG.Set(to.G())
	switch {
	case to.G() > from.G():
		m.rangeSteps.WithLabelValues("up").Inc()
	case to.G() < from.G():
		m.rangeSteps.WithLabelValues("down").Inc()
	}
}
