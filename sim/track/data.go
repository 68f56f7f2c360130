package track

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// NaiveSpeedMps is the constant speed (180 km/h) used to estimate gaps when no
// interpolator exists for either car's class.
const NaiveSpeedMps = 50.0

// LapSink receives reference laps accepted by Data.OnLapFinished, e.g. to persist them.
// Samples are spline-offset corrected.
type LapSink interface {
	SaveLap(trackID, class string, samples []Sample) error
}

// Data holds per-track metadata and the class interpolators built at track load.
type Data struct {
	ID              string
	Name            string
	LengthMeters    float64
	SplinePosOffset float64

	interpolators map[string]*LapInterpolator
	replacements  map[string][]string // class -> preference ordered replacement classes
	sink          LapSink
}

// NewData creates track data without any interpolators.
func NewData(id, name string, lengthMeters, splinePosOffset float64) *Data {
	return &Data{
		ID:              id,
		Name:            name,
		LengthMeters:    lengthMeters,
		SplinePosOffset: splinePosOffset,
		interpolators:   make(map[string]*LapInterpolator),
		replacements:    make(map[string][]string),
	}
}

// SetReplacements sets, per class, the ordered list of classes whose interpolator may
// stand in when the class has no reference lap of its own.
func (d *Data) SetReplacements(replacements map[string][]string) {
	d.replacements = make(map[string][]string, len(replacements))
	for cls, repl := range replacements {
		d.replacements[cls] = append([]string(nil), repl...)
	}
}

// SetLapSink registers a sink notified of every accepted reference lap.
func (d *Data) SetLapSink(sink LapSink) {
	d.sink = sink
}

// AddReferenceLap prepares raw recorded samples (spline offset not yet applied) and
// builds the interpolator for class, replacing any existing one.
func (d *Data) AddReferenceLap(class string, raw []Sample) error {
	return d.addPrepared(class, PrepareSamples(raw, d.SplinePosOffset))
}

// AddCorrectedLap is like AddReferenceLap for samples that already have the spline
// offset applied (e.g. laps read back from a Store).
func (d *Data) AddCorrectedLap(class string, samples []Sample) error {
	return d.addPrepared(class, PrepareSamples(samples, 0))
}

func (d *Data) addPrepared(class string, samples []Sample) error {
	li, err := NewLapInterpolator(samples)
	if err != nil {
		return fmt.Errorf("building lap interpolator for %s on %s: %w", class, d.ID, err)
	}
	d.interpolators[class] = li
	logrus.Infof("built lap interpolator for %s on %s (lap time %v)", class, d.ID, li.LapTime())
	return nil
}

// Interpolator returns the interpolator for class, falling back to the first
// replacement class that has one. Returns nil if none is available.
func (d *Data) Interpolator(class string) *LapInterpolator {
	if d == nil {
		return nil
	}
	if li, ok := d.interpolators[class]; ok {
		return li
	}
	for _, repl := range d.replacements[class] {
		if li, ok := d.interpolators[repl]; ok {
			return li
		}
	}
	return nil
}

// Classes returns the classes that have their own interpolator, sorted.
func (d *Data) Classes() []string {
	classes := make([]string, 0, len(d.interpolators))
	for cls := range d.interpolators {
		classes = append(classes, cls)
	}
	sort.Strings(classes)
	return classes
}

// NaiveGap estimates the time to cover splineDist (fraction of a lap) at NaiveSpeedMps.
func (d *Data) NaiveGap(splineDist float64) time.Duration {
	secs := splineDist * d.LengthMeters / NaiveSpeedMps
	return time.Duration(secs * float64(time.Second))
}

// OnLapFinished offers a completed clean lap (offset-corrected samples) as the new
// reference for class. It is accepted if the class has no interpolator yet or the new
// lap is faster than the current reference at the lap's last recorded position.
// Returns true if the lap was accepted.
func (d *Data) OnLapFinished(class string, samples []Sample) bool {
	if len(samples) == 0 {
		return false
	}
	last := samples[len(samples)-1]
	if current, ok := d.interpolators[class]; ok && current.Interpolate(last.Pos) <= last.Time {
		return false
	}
	if err := d.AddCorrectedLap(class, samples); err != nil {
		logrus.Warnf("rejected reference lap for %s on %s: %v", class, d.ID, err)
		return false
	}
	logrus.Infof("new reference lap for %s on %s: %v", class, d.ID, last.Time)
	if d.sink != nil {
		if err := d.sink.SaveLap(d.ID, class, samples); err != nil {
			logrus.Warnf("saving reference lap for %s on %s: %v", class, d.ID, err)
		}
	}
	return true
}
