package coding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

var mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nodeflow",
	Subsystem: "coding",
	Name:      "mutations_total",
	Help:      "Committed and rejected mutations by operation.",
}, []string{"operation", "outcome"})

func recordMutation(operation string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	mutationTotal.WithLabelValues(operation, outcome).Inc()
}
