package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynleaderboards/dynleaderboards/sim"
	"github.com/dynleaderboards/dynleaderboards/sim/engine"
	"github.com/dynleaderboards/dynleaderboards/sim/trace"
)

func renderTestFrame() sim.Frame {
	car := func(id, number string, pos int, spline float64, player bool) sim.CarSnapshot {
		lap := 2
		return sim.CarSnapshot{
			ID: id, CarNumber: number, CarClass: "GT3",
			IsConnected: true, HasCoordinates: true, IsPlayer: player,
			Position: pos, CurrentLap: &lap, TrackPositionPercent: &spline,
			Driver: sim.DriverInfo{FirstName: "Driver", LastName: id},
		}
	}
	return sim.Frame{
		Session: sim.SessionDescriptor{Type: sim.SessionRace, Phase: sim.PhaseSession, TimeLeft: time.Hour},
		Track:   sim.TrackDescriptor{ID: "testtrack", LengthMeters: 5000},
		Cars:    []sim.CarSnapshot{car("lead", "11", 1, 0.5, false), car("chase", "22", 2, 0.3, true)},
	}
}

func TestPrintViews_RendersEveryViewWithFocusedMarker(t *testing.T) {
	// GIVEN an engine after one race frame
	e := engine.New(engine.Options{Field: sim.DefaultFieldConfig()}, nil)
	_, err := e.Process(renderTestFrame())
	require.NoError(t, err)

	// WHEN the views are printed
	var buf bytes.Buffer
	printViews(&buf, e, nil)

	// THEN the default view is titled by name and kind and lists both cars
	out := buf.String()
	assert.Contains(t, out, "Dynamic: Overall")
	assert.Contains(t, out, "11")
	assert.Contains(t, out, "22")
	assert.Contains(t, out, "+20.0", "naive gap of the chasing car")
	assert.Contains(t, out, ">")
}

func TestPrintViews_UnknownNameIsReported(t *testing.T) {
	e := engine.New(engine.Options{Field: sim.DefaultFieldConfig()}, nil)

	var buf bytes.Buffer
	printViews(&buf, e, []string{"Nope"})

	assert.Contains(t, buf.String(), `unknown leaderboard "Nope"`)
}

func TestFormatGap(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }
	tests := []struct {
		name string
		gap  *time.Duration
		want string
	}{
		{"missing", nil, "-"},
		{"behind", d(20 * time.Second), "+20.0"},
		{"ahead", d(-3500 * time.Millisecond), "-3.5"},
		{"laps ahead", d(sim.EncodeLapGap(2)), "+2L"},
		{"lap behind", d(sim.EncodeLapGap(-1)), "-1L"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatGap(tc.gap))
		})
	}
}

func TestFormatLapTime(t *testing.T) {
	assert.Equal(t, "-", formatLapTime(nil))
	lap := &sim.Lap{}
	lap.Time = 92345 * time.Millisecond
	assert.Equal(t, "1:32.345", formatLapTime(lap))
	lap.Time = 65500 * time.Millisecond
	assert.Equal(t, "1:05.500", formatLapTime(lap))
}

func TestPrintTraceSummary_ListsKindsAndEvictions(t *testing.T) {
	st := trace.NewSessionTrace(trace.TraceConfig{Level: trace.TraceLevelAnomalies})
	st.RecordAnomaly(trace.AnomalyRecord{CarID: "7", Kind: trace.AnomalyJumpedToPits})
	st.RecordEviction(trace.EvictionRecord{CarID: "9"})

	var buf bytes.Buffer
	printTraceSummary(&buf, trace.Summarize(st))

	out := buf.String()
	assert.Contains(t, out, "jumped-to-pits")
	assert.Contains(t, out, "most affected")
}
