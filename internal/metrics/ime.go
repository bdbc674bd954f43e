package metrics

import "time"

// IMEMetrics holds the composition engine and table loader metrics.
// A nil *IMEMetrics is valid and records nothing.
type IMEMetrics struct {
	KeysTotal           *Counter
	CommitsTotal        *Counter
	CandidateListsTotal *Counter
	LookupMissesTotal   *Counter
	TableLoadsTotal     *Counter
	TableLoadErrors     *Counter
	TableWaitsTotal     *Counter
	ActiveEngines       *Gauge
	TableLoadSeconds    *Histogram
}

// NewIMEMetrics registers the engine metrics on registry.
func NewIMEMetrics(registry *Registry) *IMEMetrics {
	return &IMEMetrics{
		KeysTotal:           registry.Counter("keys_total", "Key events processed by the composition engine", nil),
		CommitsTotal:        registry.Counter("commits_total", "Strings committed to the host", nil),
		CandidateListsTotal: registry.Counter("candidate_lists_total", "Candidate lists shown", nil),
		LookupMissesTotal:   registry.Counter("lookup_misses_total", "Full-length codes with no table entry", nil),
		TableLoadsTotal:     registry.Counter("table_loads_total", "Code table loads started", nil),
		TableLoadErrors:     registry.Counter("table_load_errors_total", "Code table loads that failed", nil),
		TableWaitsTotal:     registry.Counter("table_waits_total", "Key events that waited for a table load", nil),
		ActiveEngines:       registry.Gauge("active_engines", "Composition engines currently attached to a host", nil),
		TableLoadSeconds:    registry.Histogram("table_load_seconds", "Time spent loading a code table", nil, DurationBuckets),
	}
}

// Key counts a processed key event.
func (m *IMEMetrics) Key() {
	if m != nil {
		m.KeysTotal.Inc()
	}
}

// Commit counts a commit.
func (m *IMEMetrics) Commit() {
	if m != nil {
		m.CommitsTotal.Inc()
	}
}

// CandidateList counts a candidate list shown to the user.
func (m *IMEMetrics) CandidateList() {
	if m != nil {
		m.CandidateListsTotal.Inc()
	}
}

// LookupMiss counts a full-length code without candidates.
func (m *IMEMetrics) LookupMiss() {
	if m != nil {
		m.LookupMissesTotal.Inc()
	}
}

// TableWait counts a key event blocked on a table load.
func (m *IMEMetrics) TableWait() {
	if m != nil {
		m.TableWaitsTotal.Inc()
	}
}

// TableLoaded records a finished table load.
func (m *IMEMetrics) TableLoaded(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TableLoadsTotal.Inc()
	m.TableLoadSeconds.ObserveDuration(d)
	if err != nil {
		m.TableLoadErrors.Inc()
	}
}

// EngineAttached adjusts the active engine gauge by delta.
func (m *IMEMetrics) EngineAttached(delta int64) {
	if m != nil {
		m.ActiveEngines.Add(delta)
	}
}
