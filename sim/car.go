package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dynleaderboards/dynleaderboards/sim/trace"
	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

// ErrMissingTrackPosition is returned when a connected car has no spline position.
var ErrMissingTrackPosition = errors.New("missing track position")

// DefaultCup is the cup category of cars whose cup is not reported.
const DefaultCup = "Overall"

// updateContext carries per-frame inputs shared by all cars.
type updateContext struct {
	now     time.Duration
	session *Session
	track   *track.Data
	trace   *trace.SessionTrace
}

// References are the cars a car's gaps and deltas are measured against.
type References struct {
	Focused        *Car
	OverallBestLap *Car
	ClassBestLap   *Car
	CupBestLap     *Car
	Leader         *Car
	ClassLeader    *Car
	CupLeader      *Car
	Ahead          *Car
	AheadInClass   *Car
	AheadInCup     *Car
	AheadOnTrack   *Car
}

// Car is the tracked state of one car across frames.
type Car struct {
	ID           string
	CarName      string
	Model        string
	Manufacturer string
	Class        string
	Cup          string
	CarNumber    string
	TeamName     string
	ClassColor   TextBoxColor
	CupColor     TextBoxColor

	Location            NewOld[CarLocation]
	Laps                NewOld[int]
	IsNewLap            bool
	SplinePosition      float64 // [0, 1), spline offset applied
	TotalSplinePosition float64 // laps + spline position
	CurrentLapTime      time.Duration
	IsCurrentLapValid   bool
	IsCurrentLapOutLap  bool
	IsCurrentLapInLap   bool
	LastLap             *Lap
	BestLap             *Lap
	BestLapDeltas       LapDeltas // deltas of BestLap, refreshed every frame
	BestSectors         Sectors

	IsFocused           bool
	IsBestLapCarOverall bool
	IsBestLapCarInClass bool
	IsBestLapCarInCup   bool

	// Drivers lists every driver seen in this car; the current driver is first.
	Drivers []*Driver

	PositionOverall      int
	PositionInClass      int
	PositionInCup        int
	PositionOverallStart int // 0 until starting positions are known
	PositionInClassStart int
	PositionInCupStart   int
	IndexOverall         int
	IndexClass           int
	IndexCup             int

	IsInPitLane    bool
	ExitedPitLane  bool
	EnteredPitLane bool
	PitCount       int
	PitEntryTime   *time.Duration
	PitTimeLast    *time.Duration
	PitTimeCurrent *time.Duration
	TotalPitTime   time.Duration

	GapToLeader         Gap
	GapToClassLeader    Gap
	GapToCupLeader      Gap
	GapToFocusedTotal   Gap
	GapToFocusedOnTrack Gap
	GapToAheadOnTrack   Gap
	GapToAhead          Gap
	GapToAheadInClass   Gap
	GapToAheadInCup     Gap

	RelativeOnTrackLapDiff          RelativeLapDiff
	RelativeSplinePositionToFocused float64 // [-0.5, 0.5], positive if ahead

	IsFinished bool
	FinishTime *time.Duration

	CurrentStintLaps *int
	LastStintLaps    *int
	CurrentStintTime *time.Duration
	LastStintTime    *time.Duration
	stintStartTime   *time.Duration

	MaxSpeed      float64
	IsConnected   bool
	MissedUpdates int

	RawNew CarSnapshot
	RawOld CarSnapshot

	offset        offsetLapTracker
	startLine     startLineTracker
	jump          jumpToPitsTracker
	isSplineReset bool

	refLap         []track.Sample
	splinePosTimes map[*track.LapInterpolator]time.Duration
}

// NewCar creates the tracked state of a car first seen in snapshot s. Static info
// comes from the catalog when it knows the car model, otherwise from the snapshot.
func NewCar(s CarSnapshot, catalog *CarInfoCatalog) *Car {
	c := &Car{
		ID:                s.ID,
		CarName:           s.CarName,
		CarNumber:         s.CarNumber,
		TeamName:          s.TeamName,
		Cup:               s.CupCategory,
		Location:          NewNewOld(LocationNone),
		Laps:              NewNewOld(lapsCompleted(s)),
		IsCurrentLapValid: true,
		PositionOverall:   s.Position,
		PositionInClass:   s.PositionInClass,
		RawNew:            s,
		RawOld:            s,
		offset:            newOffsetLapTracker(),
		startLine:         newStartLineTracker(),
		splinePosTimes:    make(map[*track.LapInterpolator]time.Duration),
	}

	info, ok := catalog.Lookup(s.CarName)
	if !ok {
		logrus.Warnf("car info not found for %q, class and manufacturer may be wrong", s.CarName)
	}
	c.Class = firstNonEmpty(info.Class, s.CarClass, "None")
	c.Model = firstNonEmpty(info.Name, s.CarName, "Unknown")
	c.Manufacturer = firstNonEmpty(info.Manufacturer, manufacturerFromModel(c.Model))
	if c.CarNumber == "" {
		c.CarNumber = "-1"
	}
	if c.Cup == "" {
		c.Cup = DefaultCup
	}
	if color, ok := catalog.ClassColor(c.Class); ok {
		c.ClassColor = color
	} else {
		c.ClassColor = DefaultTextBoxColor
	}
	if color, ok := catalog.CupColor(c.Cup); ok {
		c.CupColor = color
	} else {
		c.CupColor = DefaultTextBoxColor
	}
	return c
}

// lapsCompleted derives the completed lap count from the 1-based current lap.
func lapsCompleted(s CarSnapshot) int {
	if s.CurrentLap == nil || *s.CurrentLap < 1 {
		return 0
	}
	return *s.CurrentLap - 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CurrentDriver returns the driver in the car, or nil before the first update.
func (c *Car) CurrentDriver() *Driver {
	if len(c.Drivers) == 0 {
		return nil
	}
	return c.Drivers[0]
}

// OffsetLapUpdate returns the car's offset-lap-update state.
func (c *Car) OffsetLapUpdate() OffsetLapUpdate {
	return c.offset.state
}

// rankingSplinePosition is TotalSplinePosition with the lap counter realigned to the
// spline position while an offset lap update is in progress.
func (c *Car) rankingSplinePosition() float64 {
	switch c.offset.state {
	case OffsetLapBeforeSpline:
		return c.TotalSplinePosition - 1
	case OffsetSplineBeforeLap:
		return c.TotalSplinePosition + 1
	}
	return c.TotalSplinePosition
}

// HasCrossedStartLine is false while the car is known to sit behind the line at race start.
func (c *Car) HasCrossedStartLine() bool {
	return c.startLine.state.HasCrossed()
}

// StartLine returns the start-line state.
func (c *Car) StartLine() StartLineState {
	return c.startLine.state
}

// JumpedToPits is true while a car that teleported from the track into the pits stays there.
func (c *Car) JumpedToPits() bool {
	return c.jump.jumped
}

// cupKey identifies a cup scope: cups are ranked within their class.
type cupKey struct {
	class string
	cup   string
}

func (c *Car) cupKey() cupKey {
	return cupKey{class: c.Class, cup: c.Cup}
}

// validateSnapshot checks the fields an update cannot proceed without.
func validateSnapshot(s CarSnapshot) error {
	if s.TrackPositionPercent == nil {
		return fmt.Errorf("car %s: %w", s.ID, ErrMissingTrackPosition)
	}
	return nil
}

// updateIndependent applies this car's own telemetry. The snapshot must be connected
// and pass validateSnapshot.
func (c *Car) updateIndependent(s CarSnapshot, ctx updateContext) {
	c.IsConnected = true
	c.MissedUpdates = 0
	c.RawOld = c.RawNew
	c.RawNew = s
	c.IsFocused = s.IsPlayer

	c.IsBestLapCarOverall = false
	c.IsBestLapCarInClass = false
	c.IsBestLapCarInCup = false

	c.Laps.Update(lapsCompleted(s))
	c.IsNewLap = c.Laps.New > c.Laps.Old

	c.Location.Update(locationOf(s))
	c.IsInPitLane = c.Location.New.IsInPits()
	c.ExitedPitLane = c.Location.New == LocationTrack && c.Location.Old.IsInPits()
	if c.ExitedPitLane {
		logrus.Infof("car %s #%s exited pits", c.ID, c.CarNumber)
	}
	c.EnteredPitLane = c.Location.New.IsInPits() && c.Location.Old == LocationTrack
	if c.EnteredPitLane {
		logrus.Infof("car %s #%s entered pits", c.ID, c.CarNumber)
	}
	c.PitCount = s.PitCount

	pos := *s.TrackPositionPercent
	if ctx.track != nil {
		pos += ctx.track.SplinePosOffset
	}
	pos = math.Mod(pos, 1)
	if pos < 0 {
		pos += 1
	}
	c.isSplineReset = pos < 0.1 && c.SplinePosition > 0.9
	c.SplinePosition = pos
	c.TotalSplinePosition = float64(c.Laps.New) + c.SplinePosition

	c.CurrentLapTime = s.CurrentLapTime
	if s.Speed > c.MaxSpeed {
		c.MaxSpeed = s.Speed
	}

	c.updateDrivers(s)

	if c.IsCurrentLapValid && !s.LapValid {
		c.IsCurrentLapValid = false
	}

	if c.IsNewLap {
		c.CurrentDriver().TotalLaps++
		c.finishReferenceLap(ctx)
	}

	c.updateLastLap(s)

	if ctx.session.IsRace() {
		c.updateJumpToPits(ctx)
		c.updateStartLine(ctx)
	}

	c.updatePitInfo(ctx.now)
	c.updateStintInfo(ctx)
	c.updateOffsetLapUpdate(ctx)
	c.recordReferenceSample()
}

// updateDrivers moves the current driver to the front, adding it if new.
func (c *Car) updateDrivers(s CarSnapshot) {
	name := driverFullName(s.Driver)
	idx := -1
	for i, existing := range c.Drivers {
		if existing.FullName == name {
			idx = i
			break
		}
	}
	switch {
	case idx == 0:
	case idx == -1:
		c.Drivers = append([]*Driver{NewDriver(s.Driver)}, c.Drivers...)
	default:
		current := c.Drivers[idx]
		copy(c.Drivers[1:idx+1], c.Drivers[:idx])
		c.Drivers[0] = current
	}
}

// updateLastLap records a newly reported lap time and updates best laps.
func (c *Car) updateLastLap(s CarSnapshot) {
	driver := c.CurrentDriver()
	if s.LastLapTime > 0 && (c.LastLap == nil || s.LastLapTime != c.LastLap.Time) {
		lap := newLap(s.LastLapSectors, s.LastLapTime, c.Laps.New, driver)
		lap.IsValid = c.IsCurrentLapValid
		lap.IsOutLap = c.IsCurrentLapOutLap
		lap.IsInLap = c.IsCurrentLapInLap
		if c.BestLap != nil {
			d := lap.Time - c.BestLap.Time
			lap.Deltas.ToOwnBest = &d
		}
		c.LastLap = lap

		if lap.IsValid && (driver.BestLap == nil || lap.Time < driver.BestLap.Time) {
			driver.BestLap = lap.Basic()
		}
		c.BestSectors = NewSectors(s.BestSectors)

		// crossing the line in the pit lane starts an invalid out lap
		c.IsCurrentLapValid = !c.IsInPitLane
		c.IsCurrentLapOutLap = c.IsInPitLane
		c.IsCurrentLapInLap = false
	}

	if c.LastLap != nil && c.LastLap.IsValid && (c.BestLap == nil || c.LastLap.Time < c.BestLap.Time) {
		c.BestLap = c.LastLap
		driver.BestLap = c.BestLap.Basic()
	}
}

func (c *Car) updateJumpToPits(ctx updateContext) {
	prev := c.jump.update(jumpToPitsInput{
		isFinished:  c.IsFinished,
		oldLocation: c.Location.Old,
		newLocation: c.Location.New,
	})
	if prev != c.jump.jumped {
		if c.jump.jumped {
			logrus.Infof("car %s #%s jumped to pits", c.ID, c.CarNumber)
		} else {
			logrus.Infof("car %s #%s jumped to pits cleared", c.ID, c.CarNumber)
		}
		c.traceAnomaly(ctx, trace.AnomalyJumpedToPits, fmt.Sprint(prev), fmt.Sprint(c.jump.jumped))
	}
}

func (c *Car) updateStartLine(ctx updateContext) {
	prev := c.startLine.update(startLineInput{
		phase:         ctx.session.Phase,
		splinePos:     c.SplinePosition,
		isInPitLane:   c.IsInPitLane,
		exitedPitLane: c.ExitedPitLane,
		jumpedToPits:  c.jump.jumped,
		laps:          c.Laps.New,
	})
	if prev != c.startLine.state {
		logrus.Infof("car %s #%s start line: %s -> %s", c.ID, c.CarNumber, prev, c.startLine.state)
		c.traceAnomaly(ctx, trace.AnomalyStartLine, string(prev), string(c.startLine.state))
	}
}

func (c *Car) updateOffsetLapUpdate(ctx updateContext) {
	prev := c.offset.update(offsetLapInput{
		isNewLap:         c.IsNewLap,
		splinePos:        c.SplinePosition,
		isSplineReset:    c.isSplineReset,
		lapsNew:          c.Laps.New,
		lapsOld:          c.Laps.Old,
		crossedStartLine: c.HasCrossedStartLine(),
	})
	if prev != c.offset.state {
		logrus.Debugf("car %s offset lap update: %s -> %s (spline=%.4f, laps %d -> %d)",
			c.ID, prev, c.offset.state, c.SplinePosition, c.Laps.Old, c.Laps.New)
		c.traceAnomaly(ctx, trace.AnomalyOffsetLapUpdate, string(prev), string(c.offset.state))
	}
}

func (c *Car) traceAnomaly(ctx updateContext, kind trace.AnomalyKind, from, to string) {
	ctx.trace.RecordAnomaly(trace.AnomalyRecord{
		CarID: c.ID,
		Time:  ctx.now,
		Kind:  kind,
		From:  from,
		To:    to,
		Lap:   c.Laps.New,
	})
}

// updatePitInfo runs the pit timer on the frame clock.
func (c *Car) updatePitInfo(now time.Duration) {
	if c.EnteredPitLane || (c.IsInPitLane && c.PitEntryTime == nil) {
		entry := now
		c.PitEntryTime = &entry
		c.IsCurrentLapInLap = true
		c.IsCurrentLapValid = false
	}

	if c.PitEntryTime != nil && (c.ExitedPitLane || !c.IsInPitLane) {
		c.IsCurrentLapOutLap = true
		c.IsCurrentLapValid = false
		last := now - *c.PitEntryTime
		c.PitTimeLast = &last
		c.TotalPitTime += last
		c.PitTimeCurrent = nil
		c.PitEntryTime = nil
	}

	if c.PitEntryTime != nil {
		current := now - *c.PitEntryTime
		c.PitTimeCurrent = &current
	}
}

func (c *Car) updateStintInfo(ctx updateContext) {
	now := ctx.now
	if c.IsNewLap && c.CurrentStintLaps != nil {
		*c.CurrentStintLaps++
	}

	if c.ExitedPitLane ||
		(ctx.session.IsRace() && ctx.session.IsSessionStart) ||
		(c.stintStartTime == nil && c.Location.New == LocationTrack && ctx.session.Phase != PhasePreSession) {
		start := now
		c.stintStartTime = &start
		laps := 0
		c.CurrentStintLaps = &laps
	}

	if c.EnteredPitLane && c.stintStartTime != nil {
		last := now - *c.stintStartTime
		c.LastStintTime = &last
		c.CurrentDriver().onStintEnd(last)
		c.LastStintLaps = c.CurrentStintLaps
		c.stintStartTime = nil
		c.CurrentStintTime = nil
		c.CurrentStintLaps = nil
	}

	if c.stintStartTime != nil {
		current := now - *c.stintStartTime
		c.CurrentStintTime = &current
	}
}

// recordReferenceSample records the car's progress while the current lap is clean.
func (c *Car) recordReferenceSample() {
	if !c.IsCurrentLapValid || c.IsCurrentLapOutLap || c.IsCurrentLapInLap ||
		c.IsInPitLane || c.offset.state != OffsetNone {
		c.refLap = c.refLap[:0]
		return
	}
	c.refLap = append(c.refLap, track.Sample{Pos: c.SplinePosition, Time: c.CurrentLapTime})
}

// finishReferenceLap offers the lap recorded up to the line crossing as a new
// reference lap for the car's class.
func (c *Car) finishReferenceLap(ctx updateContext) {
	samples := c.refLap
	c.refLap = nil
	if ctx.track == nil || len(samples) < 2 {
		return
	}
	// a lap recorded from the start line onwards covers nearly the whole spline
	if samples[0].Pos > 0.1 || samples[len(samples)-1].Pos < 0.9 {
		return
	}
	ctx.track.OnLapFinished(c.Class, samples)
}

// splinePosTime returns the expected lap time at this car's position on li. Results
// are cached for the frame.
func (c *Car) splinePosTime(li *track.LapInterpolator) time.Duration {
	if t, ok := c.splinePosTimes[li]; ok {
		return t
	}
	t := li.Interpolate(c.SplinePosition)
	c.splinePosTimes[li] = t
	return t
}

// markMissed records a frame without a usable update for this car.
func (c *Car) markMissed(connected bool) {
	c.MissedUpdates++
	c.IsConnected = connected
}

// setStartingPositions records the grid positions of this car.
func (c *Car) setStartingPositions(overall, inClass, inCup int) {
	c.PositionOverallStart = overall
	c.PositionInClassStart = inClass
	c.PositionInCupStart = inCup
}

// updateDependent computes everything that needs the ranked field: best-lap flags,
// relative positions, finish, lap deltas and gaps.
func (c *Car) updateDependent(refs References, ctx updateContext, firstFinished bool, halfLapThreshold time.Duration) {
	clear(c.splinePosTimes)

	switch {
	case refs.OverallBestLap == c:
		c.IsBestLapCarOverall = true
		c.IsBestLapCarInClass = true
		c.IsBestLapCarInCup = true
	case refs.ClassBestLap == c:
		c.IsBestLapCarInClass = true
		c.IsBestLapCarInCup = true
	case refs.CupBestLap == c:
		c.IsBestLapCarInCup = true
	}

	if c.IsFocused {
		c.RelativeSplinePositionToFocused = 0
		c.RelativeOnTrackLapDiff = LapDiffSameLap
	} else if refs.Focused != nil {
		c.RelativeSplinePositionToFocused = RelativeSplinePosition(refs.Focused.SplinePosition, c.SplinePosition)
	}

	if firstFinished && c.IsNewLap && !c.IsFinished {
		c.IsFinished = true
		finish := ctx.now
		c.FinishTime = &finish
		logrus.Infof("car %s #%s finished at P%d", c.ID, c.CarNumber, c.PositionOverall)
	}

	if c.BestLap != nil {
		c.BestLapDeltas = computeDeltas(c.BestLap.Time, c.BestLap.Deltas.ToOwnBest, refs)
	}
	if c.LastLap != nil {
		c.LastLap.Deltas = computeDeltas(c.LastLap.Time, c.LastLap.Deltas.ToOwnBest, refs)
	}

	c.setGaps(refs, ctx, halfLapThreshold)
}

func (c *Car) setGaps(refs References, ctx updateContext, halfLapThreshold time.Duration) {
	// gaps stay frozen until lap counter and spline position agree again
	if ctx.track != nil && c.offset.state == OffsetNone {
		if refs.Focused == nil {
			c.GapToFocusedOnTrack = Gap{}
		} else if refs.Focused.offset.state == OffsetNone {
			c.GapToFocusedOnTrack = onTrackGap(c.GapToFocusedOnTrack, c, refs.Focused, ctx.track)
		}
		if refs.AheadOnTrack == nil {
			c.GapToAheadOnTrack = Gap{}
		} else if refs.AheadOnTrack.offset.state == OffsetNone {
			c.GapToAheadOnTrack = onTrackGap(c.GapToAheadOnTrack, refs.AheadOnTrack, c, ctx.track)
		}
	}

	if ctx.session.IsRace() {
		if ctx.track == nil || c.offset.state != OffsetNone {
			c.freezeRaceGaps()
			return
		}
		c.GapToLeader = raceGap(c.GapToLeader, c, refs.Leader, refs.Leader, ctx.track)
		c.GapToClassLeader = raceGap(c.GapToClassLeader, c, refs.ClassLeader, refs.ClassLeader, ctx.track)
		c.GapToCupLeader = raceGap(c.GapToCupLeader, c, refs.CupLeader, refs.CupLeader, ctx.track)
		if c.IsFocused {
			c.GapToFocusedTotal = ComputedGap(0)
		} else {
			c.GapToFocusedTotal = raceGap(c.GapToFocusedTotal, refs.Focused, c, refs.Focused, ctx.track)
		}
		c.GapToAhead = raceGap(c.GapToAhead, c, refs.Ahead, refs.Ahead, ctx.track)
		c.GapToAheadInClass = raceGap(c.GapToAheadInClass, c, refs.AheadInClass, refs.AheadInClass, ctx.track)
		c.GapToAheadInCup = raceGap(c.GapToAheadInCup, c, refs.AheadInCup, refs.AheadInCup, ctx.track)

		if refs.Focused != nil && !c.IsFocused && refs.Focused.offset.state == OffsetNone {
			c.RelativeOnTrackLapDiff = relativeLapDiff(c, refs.Focused, halfLapThreshold)
		}
		return
	}

	// outside races gaps are best lap deltas
	if c.BestLap == nil {
		c.GapToLeader = Gap{}
		c.GapToClassLeader = Gap{}
		c.GapToCupLeader = Gap{}
		c.GapToFocusedTotal = Gap{}
		c.GapToAhead = Gap{}
		c.GapToAheadInClass = Gap{}
		c.GapToAheadInCup = Gap{}
		return
	}
	best := c.BestLap.Time
	c.GapToLeader = bestLapGap(best, refs.Leader)
	c.GapToClassLeader = bestLapGap(best, refs.ClassLeader)
	c.GapToCupLeader = bestLapGap(best, refs.CupLeader)
	c.GapToFocusedTotal = bestLapGap(best, refs.Focused)
	c.GapToAhead = bestLapGap(best, refs.Ahead)
	c.GapToAheadInClass = bestLapGap(best, refs.AheadInClass)
	c.GapToAheadInCup = bestLapGap(best, refs.AheadInCup)
}

func (c *Car) freezeRaceGaps() {
	c.GapToLeader = c.GapToLeader.freeze()
	c.GapToClassLeader = c.GapToClassLeader.freeze()
	c.GapToCupLeader = c.GapToCupLeader.freeze()
	c.GapToFocusedTotal = c.GapToFocusedTotal.freeze()
	c.GapToAhead = c.GapToAhead.freeze()
	c.GapToAheadInClass = c.GapToAheadInClass.freeze()
	c.GapToAheadInCup = c.GapToAheadInCup.freeze()
}

// raceGap updates a race gap. other is the reference car; while it is in an offset
// lap update the gap keeps its previous value.
func raceGap(current Gap, from, to, other *Car, td *track.Data) Gap {
	if from == nil || to == nil {
		return Gap{}
	}
	if other.offset.state != OffsetNone {
		return current.freeze()
	}
	v, status := CalculateGap(from, to, td)
	return resolveGap(current, v, status)
}

func onTrackGap(current Gap, from, to *Car, td *track.Data) Gap {
	v, status := CalculateOnTrackGap(from, to, td)
	return resolveGap(current, v, status)
}

func bestLapGap(best time.Duration, to *Car) Gap {
	if to == nil || to.BestLap == nil {
		return Gap{}
	}
	return ComputedGap(best - to.BestLap.Time)
}
