package trace

import "time"

// TraceLevel controls the verbosity of anomaly tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelAnomalies captures car anomaly state transitions and evictions.
	TraceLevelAnomalies TraceLevel = "anomalies"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelAnomalies: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SessionTrace collects anomaly records during one session.
type SessionTrace struct {
	Config    TraceConfig
	Anomalies []AnomalyRecord
	Evictions []EvictionRecord
}

// NewSessionTrace creates a SessionTrace ready for recording.
func NewSessionTrace(config TraceConfig) *SessionTrace {
	return &SessionTrace{
		Config:    config,
		Anomalies: make([]AnomalyRecord, 0),
		Evictions: make([]EvictionRecord, 0),
	}
}

// Enabled reports whether records should be collected.
// Safe to call on a nil trace.
func (st *SessionTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelAnomalies
}

// RecordAnomaly appends an anomaly state transition record.
func (st *SessionTrace) RecordAnomaly(record AnomalyRecord) {
	if !st.Enabled() {
		return
	}
	st.Anomalies = append(st.Anomalies, record)
}

// RecordEviction appends an eviction record.
func (st *SessionTrace) RecordEviction(record EvictionRecord) {
	if !st.Enabled() {
		return
	}
	st.Evictions = append(st.Evictions, record)
}

// Reset drops all records, keeping the config.
func (st *SessionTrace) Reset() {
	if st == nil {
		return
	}
	st.Anomalies = st.Anomalies[:0]
	st.Evictions = st.Evictions[:0]
}

// Since returns the anomaly records at or after t.
func (st *SessionTrace) Since(t time.Duration) []AnomalyRecord {
	if st == nil {
		return nil
	}
	var out []AnomalyRecord
	for _, a := range st.Anomalies {
		if a.Time >= t {
			out = append(out, a)
		}
	}
	return out
}
