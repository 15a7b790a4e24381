package bargraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	displayUpdateCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "barmeter",
		Subsystem: "bargraph",
		Name:      "display_updates_total",
		Help:      "Number of display buffer flushes written to the bus",
	})

	writeRetryCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "barmeter",
		Subsystem: "bargraph",
		Name:      "bus_write_retries_total",
		Help:      "Number of bus write attempts beyond the first",
	})

	writeFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "barmeter",
		Subsystem: "bargraph",
		Name:      "bus_write_failures_total",
		Help:      "Number of bus writes that exhausted the retry limit",
	})
)
