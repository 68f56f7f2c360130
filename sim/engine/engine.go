// Package engine runs the per-frame pipeline: track loading, the two field passes and
// leaderboard view materialization.
package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dynleaderboards/dynleaderboards/sim"
	"github.com/dynleaderboards/dynleaderboards/sim/leaderboard"
	"github.com/dynleaderboards/dynleaderboards/sim/trace"
	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

// LapStore loads and persists reference laps. *track.Store implements it.
type LapStore interface {
	track.LapSink
	LoadTrack(trackID string) (map[string][]track.Sample, error)
	SplineOffset(trackID string) (float64, error)
}

// Options configures an Engine. Everything except Field is optional.
type Options struct {
	Field   sim.FieldConfig
	Catalog *sim.CarInfoCatalog
	Store   LapStore
	LapDir  string // directory of "<track>_<class>.txt" reference lap files
	Trace   *trace.SessionTrace
}

// Engine owns a field and the leaderboard views reading it.
type Engine struct {
	opts  Options
	field *sim.Field
	views *leaderboard.Set
}

// New creates an engine. A nil views set gets the default leaderboard. Panics if
// opts.Field is invalid.
func New(opts Options, views *leaderboard.Set) *Engine {
	if views == nil {
		var err error
		if views, err = leaderboard.NewSet(leaderboard.DefaultFile()); err != nil {
			panic(fmt.Sprintf("engine.New: %v", err))
		}
	}
	return &Engine{
		opts:  opts,
		field: sim.NewField(opts.Field, opts.Catalog, opts.Trace),
		views: views,
	}
}

// Field returns the ranked field.
func (e *Engine) Field() *sim.Field { return e.field }

// Views returns the leaderboard views.
func (e *Engine) Views() *leaderboard.Set { return e.views }

// Result describes one processed frame.
type Result struct {
	Updated int
	Errors  map[string]error // per car ID; the frame was processed without these cars
}

// Process runs one frame through the pipeline: load track data on a track change,
// update every car, rank the field and rebuild the views.
func (e *Engine) Process(frame sim.Frame) (*Result, error) {
	if td := e.field.Track(); td == nil || td.ID != frame.Track.ID {
		e.field.SetTrack(e.loadTrack(frame.Track))
	}

	u := e.field.UpdateIndependent(frame)
	if err := e.field.UpdateDependent(u); err != nil {
		return nil, fmt.Errorf("ranking frame at %v: %w", frame.Time, err)
	}
	e.views.Materialize(e.field)
	return &Result{Updated: u.Updated, Errors: u.Errors}, nil
}

// Run processes frames in order, calling onFrame after each one. It stops early when
// ctx is done or onFrame returns an error.
func (e *Engine) Run(ctx context.Context, frames []sim.Frame, onFrame func(i int, r *Result) error) error {
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := e.Process(f)
		if err != nil {
			return err
		}
		if onFrame != nil {
			if err := onFrame(i, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Next cycles the named view forward.
func (e *Engine) Next(name string) error {
	return e.views.Next(name, e.field)
}

// Previous cycles the named view backward.
func (e *Engine) Previous(name string) error {
	return e.views.Previous(name, e.field)
}

// Reset drops all car state and rebuilds the views.
func (e *Engine) Reset() {
	e.field.Reset()
	e.views.Materialize(e.field)
}

// loadTrack builds track data for td from the lap directory and the store. Stored
// laps replace directory laps of the same class only when faster. Load failures are
// logged and leave the affected classes on naive estimates.
func (e *Engine) loadTrack(td sim.TrackDescriptor) *track.Data {
	offset := td.SplinePosOffset
	if e.opts.Store != nil && offset == 0 {
		stored, err := e.opts.Store.SplineOffset(td.ID)
		if err != nil {
			logrus.Warnf("track %s: %v", td.ID, err)
		}
		offset = stored
	}
	data := track.NewData(td.ID, td.Name, td.LengthMeters, offset)

	if e.opts.LapDir != "" {
		laps, err := track.LoadLapDir(e.opts.LapDir, td.ID)
		if err != nil {
			logrus.Warnf("track %s: %v", td.ID, err)
		}
		for class, raw := range laps {
			if err := data.AddReferenceLap(class, raw); err != nil {
				logrus.Warnf("track %s: reference lap %s: %v", td.ID, class, err)
			}
		}
	}

	if e.opts.Store != nil {
		laps, err := e.opts.Store.LoadTrack(td.ID)
		if err != nil {
			logrus.Warnf("track %s: %v", td.ID, err)
		}
		for class, samples := range laps {
			if len(samples) == 0 {
				continue
			}
			if cur := data.Interpolator(class); cur != nil && cur.LapTime() <= samples[len(samples)-1].Time {
				continue
			}
			if err := data.AddCorrectedLap(class, samples); err != nil {
				logrus.Warnf("track %s: stored lap %s: %v", td.ID, class, err)
			}
		}
		data.SetLapSink(e.opts.Store)
	}

	if e.opts.Catalog != nil {
		data.SetReplacements(e.opts.Catalog.Replacements())
	}
	logrus.Infof("loaded track %s with reference laps for %v", td.ID, data.Classes())
	return data
}
