package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rolekeeper",
	Subsystem: "dedup",
	Name:      "rejections_total",
	Help:      "Mutating requests rejected as duplicates within the window.",
})
