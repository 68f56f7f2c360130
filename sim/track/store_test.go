package track

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "laps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLap_ReplacesPreviousLapOfClass(t *testing.T) {
	// GIVEN a store with a GT3 lap on monza
	s := openTestStore(t)
	require.NoError(t, s.SaveLap("monza", "GT3", linearLap(110)))

	// WHEN a new GT3 lap is saved
	require.NoError(t, s.SaveLap("monza", "GT3", linearLap(108)))

	// THEN only the new samples are loaded back
	laps, err := s.LoadTrack("monza")
	require.NoError(t, err)
	require.Len(t, laps, 1)
	assert.Equal(t, linearLap(108), laps["GT3"])
}

func TestStore_ListLaps_SummarizesEveryTrackAndClass(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveLap("spa", "GT3", linearLap(138)))
	require.NoError(t, s.SaveLap("monza", "GT4", linearLap(118)))
	require.NoError(t, s.SaveLap("monza", "GT3", linearLap(108)))

	got, err := s.ListLaps()

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, LapSummary{TrackID: "monza", Class: "GT3", LapTime: secs(108), NumSamples: 3}, got[0])
	assert.Equal(t, "GT4", got[1].Class)
	assert.Equal(t, "spa", got[2].TrackID)
}

func TestStore_SaveLap_EmptyIsError(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveLap("monza", "GT3", nil))
}

func TestStore_SplineOffset_DefaultsToZero(t *testing.T) {
	s := openTestStore(t)

	got, err := s.SplineOffset("monza")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	require.NoError(t, s.SetSplineOffset("monza", 0.0123))
	got, err = s.SplineOffset("monza")
	require.NoError(t, err)
	assert.Equal(t, 0.0123, got)
}

func TestStore_AsLapSink_PersistsAcceptedReferenceLaps(t *testing.T) {
	// GIVEN track data wired to a store
	s := openTestStore(t)
	d := NewData("monza", "Monza", 5793, 0)
	d.SetLapSink(s)

	// WHEN a first reference lap is offered
	require.True(t, d.OnLapFinished("GT3", linearLap(107)))

	// THEN a fresh track loaded from the store gets the same interpolator
	laps, err := s.LoadTrack("monza")
	require.NoError(t, err)
	fresh := NewData("monza", "Monza", 5793, 0)
	for cls, samples := range laps {
		require.NoError(t, fresh.AddCorrectedLap(cls, samples))
	}
	assert.Equal(t, secs(107), fresh.Interpolator("GT3").LapTime())
}
