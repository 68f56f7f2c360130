package sim

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynleaderboards/dynleaderboards/sim/trace"
)

func TestField_RanksBySplinePositionInRace(t *testing.T) {
	// GIVEN three cars on the same lap, classes {A, A, B} at 0.9 / 0.95 / 0.1
	f := newTestField(t)

	step(t, f, raceFrame(0,
		focused(testCar("car1", "A", 1, 0.9)),
		testCar("car2", "A", 1, 0.95),
		testCar("car3", "B", 1, 0.1),
	))

	// THEN overall order is by spline position descending
	assert.Equal(t, []string{"car2", "car1", "car3"}, ids(f.OverallOrder()))

	// AND the focused car's class order holds only class A
	assert.Equal(t, []string{"car2", "car1"}, ids(f.ClassOrder()))

	// AND car3 leads class B alone
	car3 := mustCar(t, f, "car3")
	assert.Equal(t, 3, car3.PositionOverall)
	assert.Equal(t, 1, car3.PositionInClass)
	assert.Equal(t, 2, f.NumClasses())
	assert.Equal(t, 2, mustCar(t, f, "car1").PositionInClass)
}

func TestField_PositionsAreDenseInEveryScope(t *testing.T) {
	f := newTestField(t)
	classes := []string{"GT3", "GT4", "GT3", "TCX", "GT4", "GT3", "GT3"}
	cups := []string{"Pro", "Am", "Am", "", "Am", "Pro", "Am"}
	var cars []CarSnapshot
	for i, cls := range classes {
		s := testCar(fmt.Sprintf("c%d", i), cls, 3, 0.1*float64(i)+0.05)
		s.CupCategory = cups[i]
		cars = append(cars, s)
	}
	cars[0] = focused(cars[0])

	for frame := 0; frame < 3; frame++ {
		step(t, f, raceFrame(secs(float64(frame)), cars...))
	}

	overall := map[int]bool{}
	inClass := map[string]map[int]bool{}
	inCup := map[cupKey]map[int]bool{}
	for _, c := range f.Cars() {
		overall[c.PositionOverall] = true
		if inClass[c.Class] == nil {
			inClass[c.Class] = map[int]bool{}
		}
		inClass[c.Class][c.PositionInClass] = true
		if inCup[c.cupKey()] == nil {
			inCup[c.cupKey()] = map[int]bool{}
		}
		inCup[c.cupKey()][c.PositionInCup] = true
		assert.Equal(t, c.PositionOverall-1, c.IndexOverall)
	}
	assertDense := func(name string, got map[int]bool) {
		for p := 1; p <= len(got); p++ {
			assert.True(t, got[p], "%s: missing position %d in %v", name, p, got)
		}
	}
	assertDense("overall", overall)
	assert.Len(t, overall, len(classes))
	for cls, got := range inClass {
		assertDense(cls, got)
	}
	for key, got := range inCup {
		assertDense(key.class+"/"+key.cup, got)
	}
	assert.Equal(t, 3, f.NumClasses())
	assert.Equal(t, 4, f.NumCups())
}

func TestField_RaceGapsAndOnTrackOrder(t *testing.T) {
	// GIVEN a leads b on the same lap and c is most of a lap down but ahead of b on track
	f := newTestField(t)
	step(t, f, raceFrame(0,
		testCar("a", "GT3", 3, 0.5),
		focused(testCar("b", "GT3", 3, 0.3)),
		testCar("c", "GT3", 2, 0.6),
	))
	a, b, c := mustCar(t, f, "a"), mustCar(t, f, "b"), mustCar(t, f, "c")

	// THEN race gaps follow total progress
	require.Equal(t, []string{"a", "b", "c"}, ids(f.OverallOrder()))
	gap, _ := b.GapToLeader.Get()
	assert.InDelta(t, 20.0, gap.Seconds(), 1e-6)
	gap, _ = c.GapToAhead.Get()
	assert.InDelta(t, 70.0, gap.Seconds(), 1e-6)
	gap, _ = c.GapToFocusedTotal.Get()
	assert.InDelta(t, -70.0, gap.Seconds(), 1e-6)
	gap, _ = b.GapToFocusedTotal.Get()
	assert.Zero(t, gap)
	assert.Nil(t, a.GapToLeader.Ptr())

	// AND on track both a and c are ahead of b, nearest first
	assert.Equal(t, []string{"a", "c"}, ids(f.OnTrackAhead()))
	assert.Empty(t, f.OnTrackBehind())
	gap, _ = c.GapToFocusedOnTrack.Get()
	assert.InDelta(t, 30.0, gap.Seconds(), 1e-6)
	assert.Nil(t, b.GapToFocusedOnTrack.Ptr())
	gap, _ = a.GapToAheadOnTrack.Get()
	assert.InDelta(t, 10.0, gap.Seconds(), 1e-6)

	// AND c is classified as lapped, a as on the same lap
	assert.Equal(t, LapDiffBehind, c.RelativeOnTrackLapDiff)
	assert.Equal(t, LapDiffSameLap, a.RelativeOnTrackLapDiff)
	assert.InDelta(t, 0.3, c.RelativeSplinePositionToFocused, 1e-9)
}

func TestField_SplineBeforeLap_FreezesGapsUntilLapCatchesUp(t *testing.T) {
	// GIVEN b 45s ahead of the focused car a
	f := newTestField(t)
	step(t, f, raceFrame(0, focused(testCar("a", "GT3", 3, 0.5)), testCar("b", "GT3", 3, 0.95)))
	b := mustCar(t, f, "b")
	gap, _ := b.GapToFocusedTotal.Get()
	require.InDelta(t, 45.0, gap.Seconds(), 1e-6)

	// WHEN b's spline position wraps from 0.95 to 0.05 before its lap counter increments
	step(t, f, raceFrame(secs(1), focused(testCar("a", "GT3", 3, 0.51)), testCar("b", "GT3", 3, 0.05)))

	// THEN b is in SplineBeforeLap and its gap keeps the previous value
	assert.Equal(t, OffsetSplineBeforeLap, b.OffsetLapUpdate())
	assert.Equal(t, GapFrozen, b.GapToFocusedTotal.State())
	gap, _ = b.GapToFocusedTotal.Get()
	assert.InDelta(t, 45.0, gap.Seconds(), 1e-6)

	// WHEN the lap counter catches up
	step(t, f, raceFrame(secs(2), focused(testCar("a", "GT3", 3, 0.52)), testCar("b", "GT3", 4, 0.06)))

	// THEN the gap is computed again
	assert.Equal(t, OffsetNone, b.OffsetLapUpdate())
	assert.Equal(t, GapComputed, b.GapToFocusedTotal.State())
	gap, _ = b.GapToFocusedTotal.Get()
	assert.InDelta(t, 54.0, gap.Seconds(), 1e-6)
}

func TestField_LapBeforeSpline_KeepsLappedCarBehind(t *testing.T) {
	// GIVEN a leading a and c a lap down just before the line
	f := newTestField(t)
	step(t, f, raceFrame(0, focused(testCar("a", "GT3", 4, 0.30)), testCar("c", "GT3", 3, 0.95)))
	require.Equal(t, []string{"a", "c"}, ids(f.OverallOrder()))

	// WHEN c's lap counter increments while its spline position has not wrapped yet
	step(t, f, raceFrame(secs(1), focused(testCar("a", "GT3", 4, 0.31)), testCar("c", "GT3", 4, 0.96)))

	// THEN c is in LapBeforeSpline and still ranked behind a
	c := mustCar(t, f, "c")
	assert.Equal(t, OffsetLapBeforeSpline, c.OffsetLapUpdate())
	assert.Equal(t, []string{"a", "c"}, ids(f.OverallOrder()))
	assert.Equal(t, 2, c.PositionOverall)

	// WHEN the spline position wraps
	step(t, f, raceFrame(secs(2), focused(testCar("a", "GT3", 4, 0.32)), testCar("c", "GT3", 4, 0.01)))

	// THEN the order is unchanged
	assert.Equal(t, OffsetNone, c.OffsetLapUpdate())
	assert.Equal(t, []string{"a", "c"}, ids(f.OverallOrder()))
}

func TestField_SplineBeforeLap_KeepsLeaderAhead(t *testing.T) {
	// GIVEN b leading a on the same lap
	f := newTestField(t)
	step(t, f, raceFrame(0, focused(testCar("a", "GT3", 3, 0.5)), testCar("b", "GT3", 3, 0.95)))
	require.Equal(t, []string{"b", "a"}, ids(f.OverallOrder()))

	// WHEN b's spline position wraps before its lap counter increments
	step(t, f, raceFrame(secs(1), focused(testCar("a", "GT3", 3, 0.51)), testCar("b", "GT3", 3, 0.05)))

	// THEN b keeps the lead
	b := mustCar(t, f, "b")
	assert.Equal(t, OffsetSplineBeforeLap, b.OffsetLapUpdate())
	assert.Equal(t, []string{"b", "a"}, ids(f.OverallOrder()))
	assert.Equal(t, 1, b.PositionOverall)
}

func TestField_TotalSplinePositionNeverDecreasesWithoutAnomaly(t *testing.T) {
	f := newTestField(t)
	positions := []struct {
		lap int
		pos float64
	}{{1, 0.7}, {1, 0.85}, {1, 0.99}, {2, 0.02}, {2, 0.2}, {2, 0.5}}

	last := -1.0
	for i, p := range positions {
		step(t, f, raceFrame(secs(float64(i)), focused(testCar("x", "GT3", p.lap, p.pos))))
		x := mustCar(t, f, "x")
		require.Equal(t, OffsetNone, x.OffsetLapUpdate())
		assert.GreaterOrEqual(t, x.TotalSplinePosition, last)
		last = x.TotalSplinePosition
	}
}

func TestField_NonRaceOrdersByReportedPosition(t *testing.T) {
	f := newTestField(t)

	step(t, f, testFrame(0, SessionQualifying, PhaseSession,
		withPosition(testCar("a", "GT3", 4, 0.9), 0),
		withPosition(focused(testCar("b", "GT3", 2, 0.1)), 2),
		withPosition(testCar("c", "GT4", 3, 0.5), 1),
	))

	assert.Equal(t, []string{"c", "b", "a"}, ids(f.OverallOrder()))
	assert.Equal(t, 1, mustCar(t, f, "c").PositionInClass)
	assert.Equal(t, 1, mustCar(t, f, "b").PositionInClass)
}

func TestField_QualifyingGapsAreBestLapDifferences(t *testing.T) {
	f := newTestField(t)

	step(t, f, testFrame(0, SessionQualifying, PhaseSession,
		withPosition(withLastLap(testCar("a", "GT3", 4, 0.2), secs(100)), 1),
		withPosition(focused(withLastLap(testCar("b", "GT3", 4, 0.3), secs(101.5))), 2),
		withPosition(testCar("c", "GT3", 1, 0.4), 3),
	))

	gap, ok := mustCar(t, f, "b").GapToLeader.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.5, gap.Seconds(), 1e-6)
	assert.Nil(t, mustCar(t, f, "c").GapToLeader.Ptr())
	assert.True(t, mustCar(t, f, "a").IsBestLapCarOverall)
}

func TestField_StartingPositionsFromGrid(t *testing.T) {
	// GIVEN three cars on the grid behind the line
	f := newTestField(t)
	grid := func(phase SessionPhase) Frame {
		return testFrame(0, SessionRace, phase,
			withPosition(testCar("a", "GT3", 1, 0.96), 3),
			withPosition(focused(testCar("b", "GT4", 1, 0.97)), 2),
			withPosition(testCar("c", "GT3", 1, 0.98), 1),
		)
	}

	step(t, f, grid(PhasePreSession))

	// THEN starting positions follow the reported grid
	assert.Equal(t, 1, mustCar(t, f, "c").PositionOverallStart)
	assert.Equal(t, 2, mustCar(t, f, "b").PositionOverallStart)
	assert.Equal(t, 3, mustCar(t, f, "a").PositionOverallStart)
	assert.Equal(t, 2, mustCar(t, f, "a").PositionInClassStart)
	assert.Equal(t, 1, mustCar(t, f, "b").PositionInClassStart)

	// AND the cars have not crossed the start line yet
	assert.False(t, mustCar(t, f, "a").HasCrossedStartLine())
	assert.Nil(t, mustCar(t, f, "a").GapToLeader.Ptr())

	// AND starting positions are not overwritten later
	step(t, f, grid(PhaseSession))
	assert.Equal(t, 3, mustCar(t, f, "a").PositionOverallStart)
}

func TestField_EvictsCarsMissingTooLong(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.MaxMissedUpdates = 2
	st := trace.NewSessionTrace(trace.TraceConfig{Level: trace.TraceLevelAnomalies})
	f := NewField(cfg, nil, st)
	f.SetTrack(linearTrack(t))

	// GIVEN b leads a
	step(t, f, raceFrame(0, focused(testCar("a", "GT3", 2, 0.4)), testCar("b", "GT3", 2, 0.5)))
	require.Equal(t, 2, mustCar(t, f, "a").PositionOverall)

	// WHEN b stops reporting for two frames it is kept with its previous state
	for i := 1; i <= 2; i++ {
		u := step(t, f, raceFrame(secs(float64(i)), focused(testCar("a", "GT3", 2, 0.4+0.01*float64(i)))))
		assert.Equal(t, 1, u.Updated)
	}
	b := mustCar(t, f, "b")
	assert.Equal(t, 2, b.MissedUpdates)
	assert.Equal(t, 0.5, b.SplinePosition)

	// WHEN it misses a third frame
	step(t, f, raceFrame(secs(3), focused(testCar("a", "GT3", 2, 0.43))))

	// THEN it is evicted and positions stay dense
	_, ok := f.Car("b")
	assert.False(t, ok)
	assert.Equal(t, 1, mustCar(t, f, "a").PositionOverall)
	require.Len(t, st.Evictions, 1)
	assert.Equal(t, "b", st.Evictions[0].CarID)
	assert.Equal(t, 3, st.Evictions[0].MissedUpdates)
}

func TestField_FinishedCarsAreNotEvicted(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.MaxMissedUpdates = 0
	f := NewField(cfg, nil, nil)
	f.SetTrack(linearTrack(t))
	step(t, f, raceFrame(0, focused(testCar("a", "GT3", 2, 0.4)), testCar("b", "GT3", 2, 0.5)))
	mustCar(t, f, "b").IsFinished = true

	disconnected := testCar("b", "GT3", 2, 0.5)
	disconnected.IsConnected = false
	step(t, f, raceFrame(secs(1), focused(testCar("a", "GT3", 2, 0.41)), disconnected))

	b := mustCar(t, f, "b")
	assert.False(t, b.IsConnected)
	assert.Equal(t, 1, b.MissedUpdates)
}

func TestField_InvalidCarDoesNotAbortFrame(t *testing.T) {
	f := newTestField(t)
	broken := testCar("b", "GT3", 2, 0)
	broken.TrackPositionPercent = nil

	u := f.UpdateIndependent(raceFrame(0, focused(testCar("a", "GT3", 2, 0.4)), broken))
	require.NoError(t, f.UpdateDependent(u))

	require.Contains(t, u.Errors, "b")
	assert.ErrorIs(t, u.Errors["b"], ErrMissingTrackPosition)
	assert.Equal(t, []string{"a"}, ids(f.OverallOrder()))
}

func TestField_UpdateDependentRejectsStaleHandles(t *testing.T) {
	f := newTestField(t)
	frame := raceFrame(0, focused(testCar("a", "GT3", 2, 0.4)))

	first := f.UpdateIndependent(frame)
	second := f.UpdateIndependent(frame)

	assert.ErrorIs(t, f.UpdateDependent(first), ErrStaleUpdate)
	assert.NoError(t, f.UpdateDependent(second))
	assert.ErrorIs(t, f.UpdateDependent(second), ErrStaleUpdate)
	assert.ErrorIs(t, NewField(DefaultFieldConfig(), nil, nil).UpdateDependent(second), ErrStaleUpdate)
	assert.ErrorIs(t, f.UpdateDependent(nil), ErrStaleUpdate)
}

func TestField_LeaderFinishesFirstThenOthersOnCrossing(t *testing.T) {
	f := newTestField(t)
	frame := func(at time.Duration, remaining int, cars ...CarSnapshot) Frame {
		fr := raceFrame(at, cars...)
		fr.Session.RemainingLaps = remaining
		return fr
	}

	// GIVEN a lap-limited race on its final lap
	step(t, f, frame(0, 1, withPosition(focused(testCar("a", "GT3", 5, 0.9)), 1), withPosition(testCar("b", "GT3", 5, 0.8), 2)))
	step(t, f, frame(secs(1), 0, withPosition(focused(testCar("a", "GT3", 5, 0.95)), 1), withPosition(testCar("b", "GT3", 5, 0.85), 2)))
	a, b := mustCar(t, f, "a"), mustCar(t, f, "b")
	require.False(t, a.IsFinished)

	// WHEN the leader crosses the line
	step(t, f, frame(secs(6), 0, withPosition(focused(testCar("a", "GT3", 6, 0.01)), 1), withPosition(testCar("b", "GT3", 5, 0.9), 2)))

	// THEN it finishes and the second car does not yet
	assert.True(t, f.IsFirstFinished())
	assert.True(t, a.IsFinished)
	require.NotNil(t, a.FinishTime)
	assert.Equal(t, secs(6), *a.FinishTime)
	assert.False(t, b.IsFinished)

	// WHEN the second car crosses
	step(t, f, frame(secs(16), 0, withPosition(focused(testCar("a", "GT3", 6, 0.1)), 1), withPosition(testCar("b", "GT3", 6, 0.01), 2)))

	// THEN it finishes too, and the gap between them is the finish time difference
	assert.True(t, b.IsFinished)
	assert.Equal(t, []string{"a", "b"}, ids(f.OverallOrder()))
	gap, _ := b.GapToLeader.Get()
	assert.Equal(t, secs(10), gap)
}

func TestField_NewSessionResetsCars(t *testing.T) {
	f := newTestField(t)
	step(t, f, testFrame(0, SessionPractice, PhaseSession, focused(testCar("a", "GT3", 2, 0.4))))
	require.Len(t, f.Cars(), 1)

	step(t, f, raceFrame(secs(1), focused(testCar("b", "GT3", 1, 0.9))))

	_, ok := f.Car("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, ids(f.Cars()))
}

func TestFieldConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultFieldConfig().Validate())
	assert.Error(t, FieldConfig{MaxMissedUpdates: -1, HalfLapGapThreshold: DefaultHalfLapGapThreshold}.Validate())
	assert.Error(t, FieldConfig{MaxMissedUpdates: 1}.Validate())
	assert.Panics(t, func() { NewField(FieldConfig{}, nil, nil) })
}
