package service

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	editsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rolekeeper",
		Subsystem: "admin_edit",
		Name:      "requests_total",
		Help:      "Admin edit requests by outcome.",
	}, []string{"outcome"})

	auditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rolekeeper",
		Subsystem: "admin_edit",
		Name:      "audit_failures_total",
		Help:      "Successful edits whose audit entry could not be written.",
	})
)

func recordOutcome(code string) {
	if code == "" {
		code = "success"
	}
	editsTotal.WithLabelValues(strings.ToLower(code)).Inc()
}
