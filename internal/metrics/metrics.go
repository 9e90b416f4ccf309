package metrics

import "github.com/prometheus/client_golang/prometheus"

// Per-item sweep outcomes. Every user/session a sweep touches is counted
// exactly once as success, skip or error so a bad item never hides.
var (
	sweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_items_total",
			Help: "Per-item outcomes of scheduler sweeps",
		},
		[]string{"job", "outcome"},
	)
	quotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Quota checks that came back not allowed",
		},
		[]string{"feature"},
	)
	habitRemindersSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "habit_reminders_sent_total",
			Help: "Habit reminders delivered through the chat gateway",
		},
	)
)

// Init registers the engine metrics. Call this from main.go
func Init() {
	prometheus.MustRegister(sweepItemsTotal)
	prometheus.MustRegister(quotaDenialsTotal)
	prometheus.MustRegister(habitRemindersSentTotal)
}

const (
	OutcomeSuccess = "success"
	OutcomeSkip    = "skip"
	OutcomeError   = "error"
)

func RecordSweepItem(job, outcome string) {
	sweepItemsTotal.WithLabelValues(job, outcome).Inc()
}

func RecordQuotaDenial(feature string) {
	quotaDenialsTotal.WithLabelValues(feature).Inc()
}

func RecordHabitReminderSent() {
	habitRemindersSentTotal.Inc()
}
