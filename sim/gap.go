package sim

import (
	"math"
	"time"

	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

// LapGapValue is added to whole-lap differences so a single gap value can carry
// either a time gap on the same lap or a lap count. 100_002s means two laps ahead,
// 99_998s two laps behind.
const LapGapValue = 100_000 * time.Second

// DefaultHalfLapGapThreshold separates same-lap gaps (below) from encoded lap gaps.
const DefaultHalfLapGapThreshold = LapGapValue / 2

// EncodeLapGap encodes a signed whole-lap difference.
func EncodeLapGap(laps int) time.Duration {
	return LapGapValue + time.Duration(laps)*time.Second
}

// DecodeLapGap recovers the signed lap difference from an encoded gap. ok is false
// if the gap is below threshold, i.e. a plain time gap on the same lap.
func DecodeLapGap(gap, threshold time.Duration) (laps int, ok bool) {
	if gap < threshold {
		return 0, false
	}
	return int(math.Round((gap - LapGapValue).Seconds())), true
}

// GapState distinguishes why a gap has or lacks a value.
type GapState int

const (
	// GapNotApplicable means there is no value: no reference car or it cannot be computed.
	GapNotApplicable GapState = iota
	// GapFrozen keeps the last computed value while an anomaly suppresses recomputation.
	GapFrozen
	// GapComputed holds a value computed this frame.
	GapComputed
)

// Gap is a time gap that remembers whether it is fresh, frozen or absent.
type Gap struct {
	state GapState
	value time.Duration
}

// ComputedGap returns a freshly computed gap.
func ComputedGap(v time.Duration) Gap {
	return Gap{state: GapComputed, value: v}
}

// Get returns the resolved value. Frozen gaps resolve to their last computed value.
func (g Gap) Get() (time.Duration, bool) {
	if g.state == GapNotApplicable {
		return 0, false
	}
	return g.value, true
}

// Ptr returns the resolved value or nil.
func (g Gap) Ptr() *time.Duration {
	v, ok := g.Get()
	if !ok {
		return nil
	}
	return &v
}

// State returns the gap state.
func (g Gap) State() GapState {
	return g.state
}

// freeze keeps the current value, if any, without marking it fresh.
func (g Gap) freeze() Gap {
	if g.state == GapNotApplicable {
		return g
	}
	return Gap{state: GapFrozen, value: g.value}
}

// GapStatus is the outcome of CalculateGap.
type GapStatus int

const (
	GapOK GapStatus = iota
	// GapKeepPrevious means the gap cannot be trusted this frame; keep the previous value.
	GapKeepPrevious
	// GapUnavailable means no gap exists between the cars.
	GapUnavailable
)

// RelativeLapDiff classifies a car relative to the focused car.
type RelativeLapDiff int

const (
	LapDiffBehind  RelativeLapDiff = -1
	LapDiffSameLap RelativeLapDiff = 0
	LapDiffAhead   RelativeLapDiff = 1
)

func (d RelativeLapDiff) String() string {
	switch d {
	case LapDiffAhead:
		return "ahead"
	case LapDiffBehind:
		return "behind"
	default:
		return "same-lap"
	}
}

// RelativeSplinePosition returns the position of toPos relative to fromPos in
// [-0.5, 0.5]. Positive means ahead; a car more than half a lap ahead is shown behind.
func RelativeSplinePosition(fromPos, toPos float64) float64 {
	rel := toPos - fromPos
	if rel > 0.5 {
		rel -= 1.0
	} else if rel < -0.5 {
		rel += 1.0
	}
	return rel
}

// CalculateGap returns the race gap from `from` to `to`: positive if `to` is ahead.
// Gaps of a lap or more are returned in the lap-gap encoding.
func CalculateGap(from, to *Car, td *track.Data) (time.Duration, GapStatus) {
	if from.ID == to.ID || !from.HasCrossedStartLine() || !to.HasCrossedStartLine() {
		return 0, GapUnavailable
	}
	if from.OffsetLapUpdate() != OffsetNone || to.OffsetLapUpdate() != OffsetNone {
		return 0, GapKeepPrevious
	}

	flaps := from.Laps.New
	tlaps := to.Laps.New

	// there is no correct gap to a car that teleported into the pits on the same lap
	if flaps == tlaps && (from.JumpedToPits() || to.JumpedToPits()) {
		return 0, GapKeepPrevious
	}

	if from.IsFinished && to.IsFinished {
		if flaps == tlaps {
			return *from.FinishTime - *to.FinishTime, GapOK
		}
		return EncodeLapGap(tlaps - flaps), GapOK
	}

	// An unfinished car parked in the pits after the finish can no longer complete its lap.
	if tlaps != flaps &&
		((to.IsFinished && !from.IsFinished && from.IsInPitLane) ||
			(from.IsFinished && !to.IsFinished && to.IsInPitLane)) {
		return EncodeLapGap(tlaps - flaps), GapOK
	}

	dist := to.TotalSplinePosition - from.TotalSplinePosition
	switch {
	case dist <= -1:
		return EncodeLapGap(int(math.Ceil(dist))), GapOK
	case dist >= 1:
		return EncodeLapGap(int(math.Floor(dist))), GapOK
	}

	if from.IsFinished || to.IsFinished {
		return 0, GapKeepPrevious
	}
	if td == nil {
		return 0, GapUnavailable
	}

	li := gapInterpolator(from, to, td)
	if li == nil {
		return td.NaiveGap(dist), GapOK
	}
	if dist > 0 {
		return track.GapBetween(from.splinePosTime(li), to.splinePosTime(li), li.LapTime()), GapOK
	}
	return -track.GapBetween(to.splinePosTime(li), from.splinePosTime(li), li.LapTime()), GapOK
}

// CalculateOnTrackGap returns the gap on track regardless of laps: positive if
// `from` is ahead of `to` on track.
func CalculateOnTrackGap(from, to *Car, td *track.Data) (time.Duration, GapStatus) {
	if from.ID == to.ID || td == nil {
		return 0, GapUnavailable
	}
	if from.OffsetLapUpdate() != OffsetNone || to.OffsetLapUpdate() != OffsetNone {
		return 0, GapKeepPrevious
	}

	rel := RelativeSplinePosition(from.SplinePosition, to.SplinePosition)
	li := gapInterpolator(from, to, td)
	if li == nil {
		return -td.NaiveGap(rel), GapOK
	}
	if rel > 0 {
		return -track.GapBetween(from.splinePosTime(li), to.splinePosTime(li), li.LapTime()), GapOK
	}
	return track.GapBetween(to.splinePosTime(li), from.splinePosTime(li), li.LapTime()), GapOK
}

// gapInterpolator prefers the class of `to`, then the class of `from`.
func gapInterpolator(from, to *Car, td *track.Data) *track.LapInterpolator {
	if li := td.Interpolator(to.Class); li != nil {
		return li
	}
	return td.Interpolator(from.Class)
}

// resolveGap turns a CalculateGap outcome into the new gap value.
func resolveGap(current Gap, v time.Duration, status GapStatus) Gap {
	switch status {
	case GapOK:
		return ComputedGap(v)
	case GapKeepPrevious:
		return current.freeze()
	default:
		return Gap{}
	}
}

// relativeLapDiff classifies car c against the focused car.
func relativeLapDiff(c, focused *Car, halfLapThreshold time.Duration) RelativeLapDiff {
	total, ok := c.GapToFocusedTotal.Get()
	if !ok {
		switch {
		case c.Laps.New < focused.Laps.New:
			return LapDiffBehind
		case c.Laps.New > focused.Laps.New:
			return LapDiffAhead
		}
		return sameLapDiff(c, focused)
	}
	switch {
	case total > LapGapValue:
		return LapDiffAhead
	case total < halfLapThreshold:
		return sameLapDiff(c, focused)
	default:
		return LapDiffBehind
	}
}

// sameLapDiff resolves cars on the same lap using on-track order and race positions:
// a car ahead on track but behind in the race has been lapped.
func sameLapDiff(c, focused *Car) RelativeLapDiff {
	onTrack, _ := c.GapToFocusedOnTrack.Get()
	if onTrack > 0 {
		if c.PositionOverall > focused.PositionOverall {
			return LapDiffBehind
		}
		return LapDiffSameLap
	}
	if c.PositionOverall < focused.PositionOverall {
		return LapDiffAhead
	}
	return LapDiffSameLap
}
