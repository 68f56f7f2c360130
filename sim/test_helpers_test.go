package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// testCar builds a connected car snapshot on the given 1-based lap and spline position.
func testCar(id, class string, lap int, pos float64) CarSnapshot {
	return CarSnapshot{
		ID:                   id,
		CarName:              "model_" + id,
		CarClass:             class,
		CarNumber:            id,
		IsConnected:          true,
		HasCoordinates:       true,
		CurrentLap:           intPtr(lap),
		TrackPositionPercent: floatPtr(pos),
		LapValid:             true,
		Driver:               DriverInfo{FirstName: "Driver", LastName: id},
	}
}

func focused(s CarSnapshot) CarSnapshot {
	s.IsPlayer = true
	return s
}

func withPosition(s CarSnapshot, pos int) CarSnapshot {
	s.Position = pos
	return s
}

func inPitLane(s CarSnapshot) CarSnapshot {
	s.IsCarInPitLane = true
	return s
}

func withLastLap(s CarSnapshot, lapTime time.Duration) CarSnapshot {
	s.LastLapTime = lapTime
	return s
}

func testFrame(at time.Duration, typ SessionType, phase SessionPhase, cars ...CarSnapshot) Frame {
	return Frame{
		Time:    at,
		Session: SessionDescriptor{Type: typ, Phase: phase, TimeLeft: time.Hour},
		Track:   TrackDescriptor{ID: "testtrack", Name: "Test Track", LengthMeters: 5000},
		Cars:    cars,
	}
}

func raceFrame(at time.Duration, cars ...CarSnapshot) Frame {
	return testFrame(at, SessionRace, PhaseSession, cars...)
}

// linearTrack returns track data where every class laps in 100s at constant speed.
func linearTrack(t *testing.T) *track.Data {
	t.Helper()
	td := track.NewData("testtrack", "Test Track", 5000, 0)
	require.NoError(t, td.AddCorrectedLap("GT3", []track.Sample{
		{Pos: 0, Time: 0},
		{Pos: 1, Time: secs(100)},
	}))
	return td
}

// newTestField returns a field on linearTrack with default config.
func newTestField(t *testing.T) *Field {
	t.Helper()
	f := NewField(DefaultFieldConfig(), nil, nil)
	f.SetTrack(linearTrack(t))
	return f
}

// step runs both passes of one frame and fails the test on any error.
func step(t *testing.T, f *Field, frame Frame) *UpdatedCars {
	t.Helper()
	u := f.UpdateIndependent(frame)
	require.NoError(t, f.UpdateDependent(u))
	return u
}

func mustCar(t *testing.T, f *Field, id string) *Car {
	t.Helper()
	c, ok := f.Car(id)
	require.True(t, ok, "car %s not in field", id)
	return c
}

func ids(cars []*Car) []string {
	out := make([]string, len(cars))
	for i, c := range cars {
		out[i] = c.ID
	}
	return out
}
