package sim

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dynleaderboards/dynleaderboards/sim/trace"
	"github.com/dynleaderboards/dynleaderboards/sim/track"
)

// ErrStaleUpdate is returned by UpdateDependent when the handle does not belong to
// the latest independent pass of the field.
var ErrStaleUpdate = errors.New("stale or foreign independent update")

// FieldConfig tunes the aggregator.
type FieldConfig struct {
	// MaxMissedUpdates is the number of consecutive frames a car may be missing before
	// it is evicted. Finished cars are never evicted.
	MaxMissedUpdates int
	// HalfLapGapThreshold separates same-lap gaps from lap-encoded gaps when
	// classifying relative laps. Gaps at or above it count as laps apart.
	HalfLapGapThreshold time.Duration
}

// DefaultFieldConfig returns the default aggregator tuning.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		MaxMissedUpdates:    10,
		HalfLapGapThreshold: DefaultHalfLapGapThreshold,
	}
}

// Validate checks the config values.
func (c FieldConfig) Validate() error {
	if c.MaxMissedUpdates < 0 {
		return fmt.Errorf("max missed updates must be non-negative, got %d", c.MaxMissedUpdates)
	}
	if c.HalfLapGapThreshold <= 0 || c.HalfLapGapThreshold > LapGapValue {
		return fmt.Errorf("half lap gap threshold must be in (0, %v], got %v", LapGapValue, c.HalfLapGapThreshold)
	}
	return nil
}

// UpdatedCars proves that the independent pass of a frame has completed. It is
// consumed by Field.UpdateDependent.
type UpdatedCars struct {
	field    *Field
	seq      uint64
	consumed bool

	// Errors holds per-car failures of the independent pass keyed by car ID. Failed
	// cars keep their previous state.
	Errors map[string]error
	// Updated is the number of cars that received an update this frame.
	Updated int
}

// Field aggregates all cars of a session and ranks them each frame.
type Field struct {
	config  FieldConfig
	session *Session
	track   *track.Data
	catalog *CarInfoCatalog
	trace   *trace.SessionTrace

	cars map[string]*Car
	seq  uint64
	now  time.Duration

	overallOrder  []*Car
	classOrder    []*Car // focused car's class
	cupOrder      []*Car // focused car's class and cup
	onTrackAhead  []*Car // nearest first
	onTrackBehind []*Car // nearest first
	focused       *Car

	numClasses int
	numCups    int

	startingPositionsSet bool
	firstFinished        bool
}

// NewField creates an empty field. Panics if config is invalid.
func NewField(config FieldConfig, catalog *CarInfoCatalog, st *trace.SessionTrace) *Field {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("NewField: %v", err))
	}
	if catalog == nil {
		catalog = NewCarInfoCatalog()
	}
	return &Field{
		config:  config,
		session: NewSession(),
		catalog: catalog,
		trace:   st,
		cars:    make(map[string]*Car),
	}
}

// SetTrack sets the track data used for spline offsets and gap interpolation.
func (f *Field) SetTrack(td *track.Data) {
	f.track = td
}

// Track returns the current track data, or nil.
func (f *Field) Track() *track.Data { return f.track }

// Session returns the session state.
func (f *Field) Session() *Session { return f.session }

// Reset drops every car and all derived state.
func (f *Field) Reset() {
	logrus.Infof("resetting field (%d cars)", len(f.cars))
	f.cars = make(map[string]*Car)
	f.overallOrder = nil
	f.classOrder = nil
	f.cupOrder = nil
	f.onTrackAhead = nil
	f.onTrackBehind = nil
	f.focused = nil
	f.numClasses = 0
	f.numCups = 0
	f.startingPositionsSet = false
	f.firstFinished = false
	f.trace.Reset()
}

// UpdateIndependent applies a frame's session state and each car's own telemetry.
// A new session type resets the field first. Cars that are disconnected, have no
// coordinates or fail validation keep their previous state for this frame.
func (f *Field) UpdateIndependent(frame Frame) *UpdatedCars {
	f.session.Update(frame.Session)
	if f.session.IsNewSession {
		f.Reset()
	}
	if f.track == nil || f.track.ID != frame.Track.ID {
		logrus.Infof("no track data for %q, using naive gap estimates", frame.Track.ID)
		f.track = track.NewData(frame.Track.ID, frame.Track.Name, frame.Track.LengthMeters, frame.Track.SplinePosOffset)
	}

	f.seq++
	f.now = frame.Time
	u := &UpdatedCars{field: f, seq: f.seq, Errors: make(map[string]error)}
	ctx := f.context()

	updated := make(map[string]bool, len(frame.Cars))
	for _, s := range frame.Cars {
		if !s.IsConnected || !s.HasCoordinates {
			if c, ok := f.cars[s.ID]; ok {
				c.IsConnected = false
			}
			continue
		}
		if err := validateSnapshot(s); err != nil {
			u.Errors[s.ID] = err
			logrus.Warnf("skipping car update: %v", err)
			continue
		}
		c, ok := f.cars[s.ID]
		if !ok {
			c = NewCar(s, f.catalog)
			f.cars[s.ID] = c
			logrus.Infof("new car %s #%s (%s, %s)", c.ID, c.CarNumber, c.Model, c.Class)
		}
		c.updateIndependent(s, ctx)
		updated[s.ID] = true
	}

	for id, c := range f.cars {
		if !updated[id] {
			c.markMissed(c.IsConnected)
			// IsNewLap must not repeat on frames without an update
			c.IsNewLap = false
		}
	}
	u.Updated = len(updated)
	return u
}

func (f *Field) context() updateContext {
	return updateContext{
		now:     f.now,
		session: f.session,
		track:   f.track,
		trace:   f.trace,
	}
}

// UpdateDependent ranks the field and computes all cross-car fields. It requires the
// handle returned by the latest UpdateIndependent and accepts it only once.
func (f *Field) UpdateDependent(u *UpdatedCars) error {
	if u == nil || u.field != f || u.seq != f.seq || u.consumed {
		return ErrStaleUpdate
	}
	u.consumed = true

	f.evictMissingCars()
	if len(f.cars) == 0 {
		f.clearOrders()
		return nil
	}

	if f.session.IsRace() && !f.startingPositionsSet && f.allCarsUpdated() {
		f.setStartingPositions()
	}

	f.sortOverall()
	leaders, bestLaps := f.assignPositions()
	f.setFocused()
	f.setOnTrackOrders()

	if f.session.IsRace() && f.session.IsOver() && !f.firstFinished && f.overallOrder[0].IsNewLap {
		f.firstFinished = true
		logrus.Infof("leader %s finished, session over", f.overallOrder[0].ID)
	}

	ctx := f.context()
	var ahead *Car
	aheadInClass := make(map[string]*Car)
	aheadInCup := make(map[cupKey]*Car)
	for _, c := range f.overallOrder {
		refs := References{
			Focused:        f.focused,
			OverallBestLap: bestLaps.overall,
			ClassBestLap:   bestLaps.class[c.Class],
			CupBestLap:     bestLaps.cup[c.cupKey()],
			Leader:         f.overallOrder[0],
			ClassLeader:    leaders.class[c.Class],
			CupLeader:      leaders.cup[c.cupKey()],
			Ahead:          ahead,
			AheadInClass:   aheadInClass[c.Class],
			AheadInCup:     aheadInCup[c.cupKey()],
			AheadOnTrack:   f.aheadOnTrackOf(c),
		}
		c.updateDependent(refs, ctx, f.firstFinished, f.config.HalfLapGapThreshold)

		ahead = c
		aheadInClass[c.Class] = c
		aheadInCup[c.cupKey()] = c
	}
	return nil
}

func (f *Field) clearOrders() {
	f.overallOrder = nil
	f.classOrder = nil
	f.cupOrder = nil
	f.onTrackAhead = nil
	f.onTrackBehind = nil
	f.focused = nil
	f.numClasses = 0
	f.numCups = 0
}

func (f *Field) evictMissingCars() {
	for id, c := range f.cars {
		if c.MissedUpdates > f.config.MaxMissedUpdates && !c.IsFinished {
			logrus.Infof("evicting car %s #%s after %d missed updates", id, c.CarNumber, c.MissedUpdates)
			f.trace.RecordEviction(trace.EvictionRecord{CarID: id, Time: f.now, MissedUpdates: c.MissedUpdates})
			delete(f.cars, id)
		}
	}
}

func (f *Field) allCarsUpdated() bool {
	for _, c := range f.cars {
		if c.MissedUpdates > 0 {
			return false
		}
	}
	return true
}

// byReportedPosition orders cars by the position the game reports; cars without a
// position go last and ties break by ID for a deterministic order.
func byReportedPosition(cars []*Car) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := cars[i].RawNew.Position, cars[j].RawNew.Position
		if (a > 0) != (b > 0) {
			return a > 0
		}
		if a != b {
			return a < b
		}
		return cars[i].ID < cars[j].ID
	}
}

func (f *Field) sortedCars() []*Car {
	cars := make([]*Car, 0, len(f.cars))
	for _, c := range f.cars {
		cars = append(cars, c)
	}
	sort.Slice(cars, func(i, j int) bool { return cars[i].ID < cars[j].ID })
	return cars
}

func (f *Field) setStartingPositions() {
	cars := f.sortedCars()
	sort.SliceStable(cars, byReportedPosition(cars))
	classPos := make(map[string]int)
	cupPos := make(map[cupKey]int)
	for i, c := range cars {
		classPos[c.Class]++
		cupPos[c.cupKey()]++
		c.setStartingPositions(i+1, classPos[c.Class], cupPos[c.cupKey()])
	}
	f.startingPositionsSet = true
	logrus.Infof("starting positions set for %d cars", len(cars))
}

// sortOverall orders the field. In races cars are ordered by total spline position,
// corrected for cars in an offset lap update;
// finished cars and exact ties fall back to the reported position. Other sessions
// use the reported position.
func (f *Field) sortOverall() {
	cars := f.sortedCars()
	if f.session.IsRace() {
		sort.SliceStable(cars, func(i, j int) bool {
			a, b := cars[i], cars[j]
			ta, tb := a.rankingSplinePosition(), b.rankingSplinePosition()
			if a.IsFinished || b.IsFinished || ta == tb {
				return byReportedPosition(cars)(i, j)
			}
			return ta > tb
		})
	} else {
		sort.SliceStable(cars, byReportedPosition(cars))
	}
	f.overallOrder = cars
}

type scopeLeaders struct {
	class map[string]*Car
	cup   map[cupKey]*Car
}

type scopeBestLaps struct {
	overall *Car
	class   map[string]*Car
	cup     map[cupKey]*Car
}

// assignPositions sets dense positions and indices in every scope and finds each
// scope's leader and best-lap holder.
func (f *Field) assignPositions() (scopeLeaders, scopeBestLaps) {
	leaders := scopeLeaders{class: make(map[string]*Car), cup: make(map[cupKey]*Car)}
	best := scopeBestLaps{class: make(map[string]*Car), cup: make(map[cupKey]*Car)}
	classPos := make(map[string]int)
	cupPos := make(map[cupKey]int)

	for i, c := range f.overallOrder {
		key := c.cupKey()
		classPos[c.Class]++
		cupPos[key]++
		c.PositionOverall = i + 1
		c.IndexOverall = i
		c.PositionInClass = classPos[c.Class]
		c.IndexClass = classPos[c.Class] - 1
		c.PositionInCup = cupPos[key]
		c.IndexCup = cupPos[key] - 1

		if _, ok := leaders.class[c.Class]; !ok {
			leaders.class[c.Class] = c
		}
		if _, ok := leaders.cup[key]; !ok {
			leaders.cup[key] = c
		}

		if c.BestLap != nil {
			if isFaster(c, best.overall) {
				best.overall = c
			}
			if isFaster(c, best.class[c.Class]) {
				best.class[c.Class] = c
			}
			if isFaster(c, best.cup[key]) {
				best.cup[key] = c
			}
		}
	}
	f.numClasses = len(classPos)
	f.numCups = len(cupPos)
	return leaders, best
}

func isFaster(c, current *Car) bool {
	return current == nil || c.BestLap.Time < current.BestLap.Time
}

func (f *Field) setFocused() {
	f.focused = nil
	for _, c := range f.overallOrder {
		if c.IsFocused {
			f.focused = c
			break
		}
	}
	f.classOrder = nil
	f.cupOrder = nil
	if f.focused == nil {
		return
	}
	key := f.focused.cupKey()
	for _, c := range f.overallOrder {
		if c.Class == f.focused.Class {
			f.classOrder = append(f.classOrder, c)
			if c.Cup == key.cup {
				f.cupOrder = append(f.cupOrder, c)
			}
		}
	}
}

// setOnTrackOrders splits the connected cars into those ahead of and behind the
// focused car on track, nearest first.
func (f *Field) setOnTrackOrders() {
	f.onTrackAhead = nil
	f.onTrackBehind = nil
	if f.focused == nil {
		return
	}
	for _, c := range f.overallOrder {
		if c == f.focused || !c.IsConnected {
			continue
		}
		rel := RelativeSplinePosition(f.focused.SplinePosition, c.SplinePosition)
		switch {
		case rel > 0:
			f.onTrackAhead = append(f.onTrackAhead, c)
		case rel < 0:
			f.onTrackBehind = append(f.onTrackBehind, c)
		}
	}
	relTo := func(c *Car) float64 {
		return RelativeSplinePosition(f.focused.SplinePosition, c.SplinePosition)
	}
	sort.SliceStable(f.onTrackAhead, func(i, j int) bool { return relTo(f.onTrackAhead[i]) < relTo(f.onTrackAhead[j]) })
	sort.SliceStable(f.onTrackBehind, func(i, j int) bool { return relTo(f.onTrackBehind[i]) > relTo(f.onTrackBehind[j]) })
}

// aheadOnTrackOf returns the nearest connected car ahead of c on track, regardless of laps.
func (f *Field) aheadOnTrackOf(c *Car) *Car {
	var nearest *Car
	best := 1.0
	for _, other := range f.overallOrder {
		if other == c || !other.IsConnected {
			continue
		}
		d := other.SplinePosition - c.SplinePosition
		if d <= 0 {
			d += 1
		}
		if d < best {
			best = d
			nearest = other
		}
	}
	return nearest
}

// Cars returns the active cars in overall order.
func (f *Field) Cars() []*Car { return f.overallOrder }

// Car returns the car with the given ID.
func (f *Field) Car(id string) (*Car, bool) {
	c, ok := f.cars[id]
	return c, ok
}

// OverallOrder returns all cars in overall order.
func (f *Field) OverallOrder() []*Car { return f.overallOrder }

// ClassOrder returns the cars of the focused car's class in overall order.
func (f *Field) ClassOrder() []*Car { return f.classOrder }

// CupOrder returns the cars of the focused car's class and cup in overall order.
func (f *Field) CupOrder() []*Car { return f.cupOrder }

// OnTrackAhead returns the cars ahead of the focused car on track, nearest first.
func (f *Field) OnTrackAhead() []*Car { return f.onTrackAhead }

// OnTrackBehind returns the cars behind the focused car on track, nearest first.
func (f *Field) OnTrackBehind() []*Car { return f.onTrackBehind }

// Focused returns the focused car, or nil.
func (f *Field) Focused() *Car { return f.focused }

// NumClasses returns the number of distinct classes in the field.
func (f *Field) NumClasses() int { return f.numClasses }

// NumCups returns the number of distinct class and cup combinations in the field.
func (f *Field) NumCups() int { return f.numCups }

// IsFirstFinished reports whether the race winner has crossed the line.
func (f *Field) IsFirstFinished() bool { return f.firstFinished }
