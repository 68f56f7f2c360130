package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dynleaderboards/dynleaderboards/sim"
	"github.com/dynleaderboards/dynleaderboards/sim/engine"
	"github.com/dynleaderboards/dynleaderboards/sim/leaderboard"
	"github.com/dynleaderboards/dynleaderboards/sim/replay"
	"github.com/dynleaderboards/dynleaderboards/sim/trace"
	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

var (
	// CLI flags for the run command
	logLevel          string // Log verbosity level
	leaderboardConfig string // Path to the leaderboard YAML config
	carInfoPath       string // Path to the car-info catalog YAML
	replayHeaderPath  string // Path to the replay header YAML
	replayDataPath    string // Path to the replay CSV
	lapsDir           string // Directory of <track>_<class>.txt reference laps
	lapsDB            string // SQLite reference lap store
	traceLevel        string // Anomaly trace level
	maxMissedUpdates  int    // Frames a car may miss before eviction
	printEvery        int    // Print the views every N frames (0: only after the last frame)
	viewNames         []string
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dynleaderboards",
	Short: "Per-frame racing telemetry rankings, gaps and dynamic leaderboards",
}

// runCmd replays recorded telemetry through the engine
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay recorded telemetry and print the dynamic leaderboards",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		if replayHeaderPath == "" || replayDataPath == "" {
			logrus.Fatalf("--replay-header and --replay-data are required")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		lbFile := leaderboard.DefaultFile()
		if leaderboardConfig != "" {
			var err error
			if lbFile, err = leaderboard.LoadFile(leaderboardConfig); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		views, err := leaderboard.NewSet(lbFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		var catalog *sim.CarInfoCatalog
		if carInfoPath != "" {
			if catalog, err = sim.LoadCarInfoCatalog(carInfoPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		fieldConfig := sim.DefaultFieldConfig()
		fieldConfig.MaxMissedUpdates = maxMissedUpdates
		if err := fieldConfig.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		st := trace.NewSessionTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})
		opts := engine.Options{Field: fieldConfig, Catalog: catalog, LapDir: lapsDir, Trace: st}
		if lapsDB != "" {
			store, err := track.OpenStore(lapsDB)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer func() { _ = store.Close() }()
			opts.Store = store
		}

		r, err := replay.Load(replayHeaderPath, replayDataPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("loaded %d frames on %s", len(r.Frames), r.Header.Track.ID)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		e := engine.New(opts, views)
		out := cmd.OutOrStdout()
		err = e.Run(ctx, r.Frames, func(i int, res *engine.Result) error {
			for id, carErr := range res.Errors {
				logrus.Debugf("frame %d: car %s skipped: %v", i, id, carErr)
			}
			if printEvery > 0 && (i+1)%printEvery == 0 {
				printViews(out, e, viewNames)
			}
			return nil
		})
		if err != nil {
			logrus.Fatalf("replay stopped: %v", err)
		}
		if printEvery <= 0 || len(r.Frames)%printEvery != 0 {
			printViews(out, e, viewNames)
		}
		if st.Enabled() {
			printTraceSummary(out, trace.Summarize(st))
		}

		logrus.Info("Replay complete.")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&replayHeaderPath, "replay-header", "", "Replay header YAML")
	runCmd.Flags().StringVar(&replayDataPath, "replay-data", "", "Replay frames CSV")
	runCmd.Flags().StringVar(&leaderboardConfig, "leaderboards", "", "Leaderboard config YAML (default: a single \"Dynamic\" leaderboard)")
	runCmd.Flags().StringVar(&carInfoPath, "car-infos", "", "Car-info catalog YAML")
	runCmd.Flags().StringVar(&lapsDir, "laps-dir", "", "Directory of <track>_<class>.txt reference laps")
	runCmd.Flags().StringVar(&lapsDB, "laps-db", "", "SQLite reference lap store; new reference laps are saved to it")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Anomaly trace level (none, anomalies)")
	runCmd.Flags().IntVar(&maxMissedUpdates, "max-missed-updates", sim.DefaultFieldConfig().MaxMissedUpdates, "Frames a car may miss before it is dropped")
	runCmd.Flags().IntVar(&printEvery, "print-every", 0, "Print the leaderboards every N frames (0: after the last frame only)")
	runCmd.Flags().StringSliceVar(&viewNames, "view", nil, "Leaderboards to print (default: all)")

	rootCmd.AddCommand(runCmd)
}
