package server

import (
	gokitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lhecker/semd/semaphore"
)

const (
	namespace = "semd"
	subsystem = "semaphore"
)

// Metrics registers the semaphore service metrics with r and returns the
// options that feed them.
func Metrics(r prometheus.Registerer) []semaphore.InstrumentOption {
	counter := func(name, help string, labels ...string) *gokitprometheus.Counter {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
		r.MustRegister(vec)
		return gokitprometheus.NewCounter(vec)
	}

	waiting := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "waiting",
		Help:      "Number of goroutines currently inside Wait.",
	}, []string{})
	r.MustRegister(waiting)

	return []semaphore.InstrumentOption{
		semaphore.WithCreates(counter("creates_total", "Semaphores created.")),
		semaphore.WithDestroys(counter("destroys_total", "Semaphores destroyed.")),
		semaphore.WithWaits(counter("waits_total", "Granted waits.")),
		semaphore.WithSignals(counter("signals_total", "Signals.")),
		semaphore.WithFailures(counter("failures_total", "Failed operations.", "operation", "reason")),
		semaphore.WithWaiting(gokitprometheus.NewGauge(waiting)),
	}
}
