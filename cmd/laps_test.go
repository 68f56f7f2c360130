package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

func TestImportLap_StoresPreparedSamples(t *testing.T) {
	// GIVEN a raw lap file recorded on a 100s lap
	dir := t.TempDir()
	lapFile := filepath.Join(dir, "monza_GT3.txt")
	require.NoError(t, os.WriteFile(lapFile, []byte("0.01;1\n0.5;50\n0.99;99\n"), 0o644))
	store, err := track.OpenStore(filepath.Join(dir, "laps.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// WHEN imported
	n, err := importLap(store, "monza", "GT3", lapFile, 0)

	// THEN the prepared lap starts at the line and ends at 1.0
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	laps, err := store.ListLaps()
	require.NoError(t, err)
	require.Len(t, laps, 1)
	assert.InDelta(t, 100.0, laps[0].LapTime.Seconds(), 1e-6)

	// AND the list renders it
	var buf bytes.Buffer
	renderLaps(&buf, laps)
	assert.Contains(t, buf.String(), "monza")
	assert.Contains(t, buf.String(), "100.000")
}

func TestImportLap_RejectsUnusableFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := track.OpenStore(filepath.Join(dir, "laps.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = importLap(store, "monza", "GT3", filepath.Join(dir, "missing.txt"), 0)
	assert.Error(t, err)

	// every sample sits after the start line, nothing usable remains
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("0.5;50\n0.6;60\n"), 0o644))
	_, err = importLap(store, "monza", "GT3", bad, 0)
	assert.Error(t, err)
}
