// Package sim provides the per-frame car ranking and gap computation engine.
//
// # Reading Guide
//
// Start with these files to understand the frame pipeline:
//   - telemetry.go: Frame and CarSnapshot, the raw per-frame input
//   - car.go: Car state tracker (laps, spline position, pits, stints, best laps)
//   - anomaly.go: offset-lap-update, start-line and jumped-to-pits state machines
//   - gap.go: CalculateGap, on-track gaps and the lap-gap encoding
//   - field.go: Field aggregator (ranking, reference cars, dependent pass, eviction)
//
// # Architecture
//
// A frame is processed in two phases that the API keeps in order:
// Field.UpdateIndependent consumes a Frame and returns an UpdatedCars handle, and
// Field.UpdateDependent requires that handle to rank cars and compute cross-car
// fields. Leaderboard views (sim/leaderboard/) read the ranked orders afterwards.
//
// Sub-packages:
//   - sim/track/: lap-time interpolators, reference-lap files and the SQLite lap store
//   - sim/leaderboard/: dynamic leaderboard views and their YAML configuration
//   - sim/engine/: the frame pipeline tying session, field and views together
//   - sim/trace/: anomaly trace recording
//   - sim/replay/: recorded telemetry replay format
package sim
