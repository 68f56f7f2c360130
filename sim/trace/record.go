// Package trace provides anomaly-trace recording for post-session analysis of
// telemetry glitches. This package has no dependencies on sim/. It stores pure data types.
package trace

import "time"

// AnomalyKind names the state machine a record belongs to.
type AnomalyKind string

const (
	AnomalyOffsetLapUpdate AnomalyKind = "offset-lap-update"
	AnomalyJumpedToPits    AnomalyKind = "jumped-to-pits"
	AnomalyStartLine       AnomalyKind = "start-line"
)

// AnomalyRecord captures a single anomaly state transition of one car.
type AnomalyRecord struct {
	CarID string
	Time  time.Duration // frame time
	Kind  AnomalyKind
	From  string
	To    string
	Lap   int
}

// EvictionRecord captures a car dropped from the active set.
type EvictionRecord struct {
	CarID         string
	Time          time.Duration
	MissedUpdates int
}
