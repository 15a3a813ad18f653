package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// AICalls counts outbound AI calls by outcome
	// (complete|partial|failure|transport).
	AICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Outbound AI calls by classified outcome.",
		},
		[]string{"outcome"},
	)

	// AICallDuration observes outbound AI call latency.
	AICallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_call_duration_seconds",
			Help:    "Duration of outbound AI calls in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// TranslatedFailures counts failures after resolution into a taxonomy.
	// Labels are bounded by the registered taxonomies.
	TranslatedFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_failures_total",
			Help: "External failures by resolved taxonomy and code.",
		},
		[]string{"taxonomy", "code"},
	)

	// AuditWriteErrors counts lifecycle or audit writes that failed during
	// failure translation (stage is "lookup", "mark_failed" or "audit").
	AuditWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failure_audit_errors_total",
			Help: "Failed lifecycle/audit writes during failure translation.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(AICalls, AICallDuration, TranslatedFailures, AuditWriteErrors)
}
