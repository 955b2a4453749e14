// Package utils holds the small pieces shared by every detskip package: logging, build info, flags and invariants.
//
// An invariant is a condition our own code guarantees, so a violation always means a bug in detskip.
// RaiseInvariant records one without crashing a serving process: it logs an error and bumps
// `invariants_total`, which alerts are built on. The caller still handles the broken case itself,
// usually by returning an error right after raising.
//
// Conditions caused by input are not invariants. A malformed records line is reported and skipped,
// while a skip list gap of four nodes is raised, because no caller can produce one.
package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "Invariant violations, by the module that detected them.",
}, []string{"module", "type"})

// RaiseInvariant reports a violated invariant. Binaries built in test mode panic instead.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.Error(msg, append([]any{"module", module, "invariant", invariantType}, args...)...)
	if IsTestMode {
		panic("invariant violated: " + module + "/" + invariantType)
	}
}

// GetMetricValue returns how many times the invariant `invariantType` of `module` was raised.
func GetMetricValue(module, invariantType string) int {
	metric := &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error("Failed to read the invariants metric.", "error", err)
		return 0
	}
	return int(metric.GetCounter().GetValue())
}
