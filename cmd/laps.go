package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

var (
	// CLI flags for the laps commands
	lapsStorePath string  // SQLite reference lap store
	lapTrackID    string  // Track of the imported lap
	lapClass      string  // Class of the imported lap
	lapFilePath   string  // pos;time lap file to import
	splineOffset  float64 // Spline position correction of the track
)

// lapsCmd groups reference lap store management
var lapsCmd = &cobra.Command{
	Use:   "laps",
	Short: "Manage the reference lap store",
}

var lapsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a recorded pos;time lap file as the reference lap of a class",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if lapTrackID == "" || lapClass == "" || lapFilePath == "" {
			logrus.Fatalf("--track, --class and --file are required")
		}
		store := openLapStore()
		defer func() { _ = store.Close() }()

		n, err := importLap(store, lapTrackID, lapClass, lapFilePath, splineOffset)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("offset") {
			if err := store.SetSplineOffset(lapTrackID, splineOffset); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d samples for %s on %s\n", n, lapClass, lapTrackID)
	},
}

var lapsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reference laps",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		store := openLapStore()
		defer func() { _ = store.Close() }()

		laps, err := store.ListLaps()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		renderLaps(cmd.OutOrStdout(), laps)
	},
}

func openLapStore() *track.Store {
	if lapsStorePath == "" {
		logrus.Fatalf("--db is required")
	}
	store, err := track.OpenStore(lapsStorePath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return store
}

// importLap prepares a raw lap file with the track's spline offset and saves it.
// Returns the number of stored samples.
func importLap(store *track.Store, trackID, class, path string, offset float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening lap file: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := track.ReadLapSamples(f)
	if err != nil {
		return 0, err
	}
	samples := track.PrepareSamples(raw, offset)
	if _, err := track.NewLapInterpolator(samples); err != nil {
		return 0, fmt.Errorf("lap file %s: %w", path, err)
	}
	if err := store.SaveLap(trackID, class, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}

func renderLaps(w io.Writer, laps []track.LapSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Track", "Class", "Lap time", "Samples"})
	for _, l := range laps {
		t.AppendRow(table.Row{l.TrackID, l.Class, fmt.Sprintf("%.3f", l.LapTime.Seconds()), l.NumSamples})
	}
	t.Render()
}

func init() {
	lapsCmd.PersistentFlags().StringVar(&lapsStorePath, "db", "", "SQLite reference lap store")

	lapsImportCmd.Flags().StringVar(&lapTrackID, "track", "", "Track ID")
	lapsImportCmd.Flags().StringVar(&lapClass, "class", "", "Car class")
	lapsImportCmd.Flags().StringVar(&lapFilePath, "file", "", "Lap file with pos;time rows")
	lapsImportCmd.Flags().Float64Var(&splineOffset, "offset", 0, "Spline position correction of the track (also stored for the track)")

	lapsCmd.AddCommand(lapsImportCmd, lapsListCmd)
	rootCmd.AddCommand(lapsCmd)
}
