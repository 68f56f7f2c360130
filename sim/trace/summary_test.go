package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSessionTrace(TraceConfig{Level: TraceLevelAnomalies})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	assert.Equal(t, 0, summary.TotalAnomalies)
	assert.Equal(t, 0, summary.TotalEvictions)
	assert.Empty(t, summary.KindDistribution)
	assert.Empty(t, summary.MostAffectedCar)
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)

	assert.Equal(t, 0, summary.TotalAnomalies)
	assert.NotNil(t, summary.CarDistribution)
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed anomaly and eviction records
	st := NewSessionTrace(TraceConfig{Level: TraceLevelAnomalies})
	st.RecordAnomaly(AnomalyRecord{CarID: "b", Kind: AnomalyOffsetLapUpdate})
	st.RecordAnomaly(AnomalyRecord{CarID: "b", Kind: AnomalyOffsetLapUpdate})
	st.RecordAnomaly(AnomalyRecord{CarID: "a", Kind: AnomalyJumpedToPits})
	st.RecordAnomaly(AnomalyRecord{CarID: "a", Kind: AnomalyJumpedToPits})
	st.RecordAnomaly(AnomalyRecord{CarID: "c", Kind: AnomalyStartLine})
	st.RecordEviction(EvictionRecord{CarID: "d"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match and ties pick the smallest car ID
	assert.Equal(t, 5, summary.TotalAnomalies)
	assert.Equal(t, 1, summary.TotalEvictions)
	assert.Equal(t, 2, summary.KindDistribution[AnomalyOffsetLapUpdate])
	assert.Equal(t, 2, summary.KindDistribution[AnomalyJumpedToPits])
	assert.Equal(t, 1, summary.KindDistribution[AnomalyStartLine])
	assert.Equal(t, "a", summary.MostAffectedCar)
}
