// Package track models per-track reference data used to turn spline positions into
// expected lap times: lap interpolators built from recorded reference laps, the
// naive constant-speed fallback, and persistence of reference laps.
//
// This package has no dependencies on sim/. The car model consumes it, not vice versa.
package track

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/interp"
)

// Sample is one point of a reference lap: normalized spline position and the
// elapsed lap time at that position.
type Sample struct {
	Pos  float64
	Time time.Duration
}

// LapInterpolator maps a spline position in [0, 1] to the expected elapsed lap time
// for one car class. Immutable after construction.
type LapInterpolator struct {
	spline  interp.PiecewiseLinear
	lapTime time.Duration
}

// NewLapInterpolator fits a piecewise-linear spline through the given samples.
// Samples must be sorted by strictly increasing position and contain at least two points.
// The reference lap time is the time of the last sample.
func NewLapInterpolator(samples []Sample) (*LapInterpolator, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("lap interpolator needs at least 2 samples, got %d", len(samples))
	}
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		if i > 0 && s.Pos <= samples[i-1].Pos {
			return nil, fmt.Errorf("sample %d: position %f is not greater than previous %f", i, s.Pos, samples[i-1].Pos)
		}
		xs[i] = s.Pos
		ys[i] = s.Time.Seconds()
	}
	li := &LapInterpolator{
		lapTime: samples[len(samples)-1].Time,
	}
	if err := li.spline.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitting lap interpolator: %w", err)
	}
	return li, nil
}

// LapTime returns the total time of the reference lap.
func (li *LapInterpolator) LapTime() time.Duration {
	return li.lapTime
}

// Interpolate returns the expected elapsed lap time at splinePos.
// Positions outside the sampled range are clamped to the end points.
func (li *LapInterpolator) Interpolate(splinePos float64) time.Duration {
	secs := li.spline.Predict(splinePos)
	return time.Duration(secs * float64(time.Second))
}

// GapBetween returns the non-negative time needed to travel from the position with
// elapsed time start to the position with elapsed time end. If end < start the end
// point is on the following lap.
func GapBetween(start, end, lapTime time.Duration) time.Duration {
	if end < start {
		return lapTime - start + end
	}
	return end - start
}
