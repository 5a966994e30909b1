package metrics

import "time"

// CypherifyMetrics holds the application metrics.
type CypherifyMetrics struct {
	registry *Registry

	ClassificationsTotal *Counter
	UnclassifiedTotal    *Counter
	TransformsTotal      *Counter
	PasswordEstimates    *Counter
	TeacherQuestions     *Counter
	ErrorsTotal          *Counter
	FamilyWins           *CounterVec

	HistoryRecords *Gauge
	UptimeSeconds  *Gauge

	ClassifyDuration *Histogram
}

var startTime = time.Now()

// NewCypherifyMetrics registers every application metric on registry.
func NewCypherifyMetrics(registry *Registry) *CypherifyMetrics {
	if registry == nil {
		registry = NewRegistry("cypherify")
	}
	return &CypherifyMetrics{
		registry: registry,

		ClassificationsTotal: registry.Counter("classifications_total", "Total number of classification requests"),
		UnclassifiedTotal:    registry.Counter("unclassified_total", "Classifications where no family passed the confidence threshold"),
		TransformsTotal:      registry.Counter("transforms_total", "Explicit keyed encrypt/decrypt requests"),
		PasswordEstimates:    registry.Counter("password_estimates_total", "Password strength estimates computed"),
		TeacherQuestions:     registry.Counter("teacher_questions_total", "Questions forwarded to the teacher"),
		ErrorsTotal:          registry.Counter("errors_total", "Requests that failed"),
		FamilyWins:           registry.CounterVec("family_wins_total", "Top-ranked family per classification", "family"),

		HistoryRecords: registry.Gauge("history_records", "Rows in the analysis history"),
		UptimeSeconds:  registry.Gauge("uptime_seconds", "Seconds since start"),

		ClassifyDuration: registry.Histogram("classify_duration_seconds", "Wall time of a classification", nil, nil),
	}
}

// Registry returns the registry the metrics live in.
func (m *CypherifyMetrics) Registry() *Registry {
	return m.registry
}

// FamilyDuration returns the search-time histogram of one family.
func (m *CypherifyMetrics) FamilyDuration(family string) *Histogram {
	return m.registry.Histogram("family_search_seconds", "Key search wall time per family",
		Labels{"family": family}, nil)
}

// UpdateUptime refreshes the uptime gauge.
func (m *CypherifyMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}
