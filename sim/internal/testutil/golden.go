// Package testutil provides shared test infrastructure: the golden replay dataset
// and assertion helpers used across sim/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// GoldenDataset represents the structure of testdata/golden.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one recorded replay and the standings expected after its last frame.
type GoldenTestCase struct {
	Name     string          `json:"name"`
	Replay   string          `json:"replay"` // base name of testdata/replays/<replay>.{yaml,csv}
	Expected GoldenStandings `json:"expected"`
}

// GoldenStandings are the expected field state after the last frame.
type GoldenStandings struct {
	Order             []string           `json:"order"`
	PositionInClass   map[string]int     `json:"position_in_class"`
	GapToLeaderS      map[string]float64 `json:"gap_to_leader_s"`
	GapToClassLeaderS map[string]float64 `json:"gap_to_class_leader_s"`
	NumClasses        int                `json:"num_classes"`
	NumCups           int                `json:"num_cups"`
	Focused           string             `json:"focused"`
}

// TestdataPath resolves a path under the repository's testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func TestdataPath(t *testing.T, elem ...string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	parts := append([]string{filepath.Dir(thisFile), "..", "..", "..", "testdata"}, elem...)
	return filepath.Join(parts...)
}

// ReplayPaths returns the header and data paths of a golden replay.
func ReplayPaths(t *testing.T, name string) (headerPath, dataPath string) {
	t.Helper()
	return TestdataPath(t, "replays", name+".yaml"), TestdataPath(t, "replays", name+".csv")
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "golden.json"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertDurationSeconds compares a duration against a value in seconds with relative tolerance.
// A nil duration is a failure.
func AssertDurationSeconds(t *testing.T, name string, wantS float64, got *time.Duration, relTol float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: got nil, want %vs", name, wantS)
		return
	}
	AssertFloat64Equal(t, name, wantS, got.Seconds(), relTol)
}
