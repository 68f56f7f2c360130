package sim

// OffsetLapUpdate tracks telemetry sources whose lap counter and spline position
// reset at different instants. While not OffsetNone the car's total spline position
// is off by a lap and its gaps are frozen.
type OffsetLapUpdate string

const (
	OffsetNone            OffsetLapUpdate = "none"
	OffsetLapBeforeSpline OffsetLapUpdate = "lap-before-spline"
	OffsetSplineBeforeLap OffsetLapUpdate = "spline-before-lap"
)

// offsetLapInput is what the offset-lap-update state machine observes each frame.
type offsetLapInput struct {
	isNewLap         bool
	splinePos        float64
	isSplineReset    bool // new position < 0.1 and previous > 0.9
	lapsNew          int
	lapsOld          int
	crossedStartLine bool
}

type offsetLapTracker struct {
	state       OffsetLapUpdate
	lapAtUpdate int
}

func newOffsetLapTracker() offsetLapTracker {
	return offsetLapTracker{state: OffsetNone, lapAtUpdate: -1}
}

// update advances the state machine and returns the previous state.
func (t *offsetLapTracker) update(in offsetLapInput) OffsetLapUpdate {
	prev := t.state

	if t.state == OffsetNone {
		switch {
		case in.isNewLap && in.splinePos > 0.9:
			t.state = OffsetLapBeforeSpline
			t.lapAtUpdate = in.lapsNew
		case in.isSplineReset &&
			in.lapsNew != t.lapAtUpdate && // already handled as lap-before-spline
			in.lapsNew == in.lapsOld &&
			in.crossedStartLine:
			t.state = OffsetSplineBeforeLap
			t.lapAtUpdate = in.lapsNew
		}
	}

	switch t.state {
	case OffsetLapBeforeSpline:
		if in.splinePos < 0.9 {
			t.reset()
		}
	case OffsetSplineBeforeLap:
		// the middle band is a fallback for lap counts that never catch up, e.g. crossing
		// the line in the pits after jumping there
		if in.lapsNew != t.lapAtUpdate || (in.splinePos > 0.025 && in.splinePos < 0.9) {
			t.reset()
		}
	}
	return prev
}

func (t *offsetLapTracker) reset() {
	t.state = OffsetNone
	t.lapAtUpdate = -1
}

// StartLineState tracks whether a car has crossed the start line at race start.
type StartLineState string

const (
	// StartLineAssumedCrossed is the initial state: nothing indicates the car is behind the line.
	StartLineAssumedCrossed StartLineState = "assumed-crossed"
	StartLineNotCrossed     StartLineState = "not-crossed"
	StartLineCrossed        StartLineState = "crossed"
)

// HasCrossed is false only while the car is known to be behind the start line.
func (s StartLineState) HasCrossed() bool {
	return s != StartLineNotCrossed
}

type startLineInput struct {
	phase         SessionPhase
	splinePos     float64
	isInPitLane   bool
	exitedPitLane bool
	jumpedToPits  bool
	laps          int
}

type startLineTracker struct {
	state StartLineState
	set   bool
}

func newStartLineTracker() startLineTracker {
	return startLineTracker{state: StartLineAssumedCrossed}
}

// update advances the state machine and returns the previous state.
func (t *startLineTracker) update(in startLineInput) StartLineState {
	prev := t.state

	// Set once before the race: cars on the grid sit before the line (spline > 0.5),
	// cars starting from the pit lane are also behind it.
	if (in.phase == PhasePreSession || in.phase == PhasePreFormation) &&
		!t.set &&
		t.state.HasCrossed() &&
		(in.splinePos > 0.5 || in.isInPitLane) &&
		in.laps == 0 {
		t.state = StartLineNotCrossed
		t.set = true
	}

	if !t.state.HasCrossed() && ((in.splinePos < 0.5 && !in.jumpedToPits) || in.exitedPitLane) {
		t.state = StartLineCrossed
	}
	return prev
}

// jumpToPitsTracker detects cars teleported from the track into the pit box. A car
// driving in passes through the pit lane first.
type jumpToPitsTracker struct {
	jumped bool
}

type jumpToPitsInput struct {
	isFinished  bool
	oldLocation CarLocation
	newLocation CarLocation
}

// update advances the detector and returns the previous value.
func (t *jumpToPitsTracker) update(in jumpToPitsInput) bool {
	prev := t.jumped
	// finished cars may jump to the pits freely
	if !in.isFinished && in.oldLocation == LocationTrack && in.newLocation == LocationPitBox {
		t.jumped = true
	}
	if t.jumped && !in.newLocation.IsInPits() {
		t.jumped = false
	}
	return prev
}
