package leaderboard

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dynleaderboards/dynleaderboards/sim"
)

// Snapshot is the ranked field a view reads. *sim.Field implements it.
type Snapshot interface {
	OverallOrder() []*sim.Car
	ClassOrder() []*sim.Car
	CupOrder() []*sim.Car
	OnTrackAhead() []*sim.Car
	OnTrackBehind() []*sim.Car
	Focused() *sim.Car
	NumClasses() int
	NumCups() int
}

// View is one dynamic leaderboard.
type View struct {
	config  Config
	current int

	cars         []*sim.Car
	focusedIndex int
}

// NewView creates a view positioned on the first enabled kind of the order. Panics
// if config is invalid.
func NewView(config Config) *View {
	if err := config.Validate(); err != nil {
		panic(err.Error())
	}
	v := &View{config: config, focusedIndex: -1}
	for i, e := range config.Order {
		if e.IsEnabled() {
			v.current = i
			break
		}
	}
	return v
}

// Name returns the leaderboard name.
func (v *View) Name() string { return v.config.Name }

// Config returns the view's configuration.
func (v *View) Config() Config { return v.config }

// Kind returns the current kind.
func (v *View) Kind() Kind { return v.config.Order[v.current].Kind }

// MaxPositions returns the largest window this view can produce.
func (v *View) MaxPositions() int { return v.config.MaxPositions() }

// Cars returns the current window. Nil entries are empty slots.
func (v *View) Cars() []*sim.Car { return v.cars }

// Car returns the car in slot i, or nil for an empty or out of range slot.
func (v *View) Car(i int) *sim.Car {
	if i < 0 || i >= len(v.cars) {
		return nil
	}
	return v.cars[i]
}

// FocusedIndex returns the focused car's slot. For top-N kinds this is the focused
// car's index in the scope and may lie past the end of the window.
func (v *View) FocusedIndex() (int, bool) {
	return v.focusedIndex, v.focusedIndex >= 0
}

// Materialize rebuilds the window from s for the current kind.
func (v *View) Materialize(s Snapshot) {
	v.cars = nil
	v.focusedIndex = -1
	p := v.config.Positions
	focused := s.Focused()

	// top-N windows are filled without a focused car
	switch v.Kind() {
	case KindOverall:
		v.setTop(s.OverallOrder(), p.Overall, scopeIndex(focused, func(c *sim.Car) int { return c.IndexOverall }))
		return
	case KindClass:
		v.setTop(s.ClassOrder(), p.Class, scopeIndex(focused, func(c *sim.Car) int { return c.IndexClass }))
		return
	case KindCup:
		v.setTop(s.CupOrder(), p.Cup, scopeIndex(focused, func(c *sim.Car) int { return c.IndexCup }))
		return
	}
	if focused == nil {
		return
	}

	switch v.Kind() {
	case KindRelativeOverall:
		v.setRelative(s.OverallOrder(), p.OverallRelative, focused.IndexOverall)
	case KindRelativeClass:
		v.setRelative(s.ClassOrder(), p.ClassRelative, focused.IndexClass)
	case KindRelativeCup:
		v.setRelative(s.CupOrder(), p.CupRelative, focused.IndexCup)
	case KindPartialRelativeOverall:
		v.setPartialRelative(s.OverallOrder(), p.PartialOverallTop, p.PartialOverallRelative, focused)
	case KindPartialRelativeClass:
		v.setPartialRelative(s.ClassOrder(), p.PartialClassTop, p.PartialClassRelative, focused)
	case KindPartialRelativeCup:
		v.setPartialRelative(s.CupOrder(), p.PartialCupTop, p.PartialCupRelative, focused)
	case KindRelativeOnTrack:
		v.setOnTrack(s.OnTrackAhead(), s.OnTrackBehind(), p.OnTrackRelative, focused, false)
	case KindRelativeOnTrackWoPit:
		v.setOnTrack(s.OnTrackAhead(), s.OnTrackBehind(), p.OnTrackRelative, focused, true)
	}
}

func scopeIndex(c *sim.Car, index func(*sim.Car) int) int {
	if c == nil {
		return -1
	}
	return index(c)
}

func at(cars []*sim.Car, i int) *sim.Car {
	if i < 0 || i >= len(cars) {
		return nil
	}
	return cars[i]
}

func (v *View) setTop(cars []*sim.Car, n, focusedIdx int) {
	v.cars = make([]*sim.Car, n)
	for i := range v.cars {
		v.cars[i] = at(cars, i)
	}
	v.focusedIndex = focusedIdx
}

// setRelative centers a window of 2m+1 slots on the focused car.
func (v *View) setRelative(cars []*sim.Car, m, focusedIdx int) {
	v.cars = make([]*sim.Car, 0, 2*m+1)
	start := focusedIdx - m
	for i := start; i < start+2*m+1; i++ {
		v.cars = append(v.cars, at(cars, i))
	}
	v.focusedIndex = m
}

// setPartialRelative shows the top n cars followed by 2m+1 slots centered on the
// focused car. The relative block never starts inside the top block.
func (v *View) setPartialRelative(cars []*sim.Car, n, m int, focused *sim.Car) {
	v.cars = make([]*sim.Car, 0, n+2*m+1)
	for i := 0; i < n; i++ {
		v.cars = append(v.cars, at(cars, i))
	}

	focusedIdx := -1
	for i, c := range cars {
		if c == focused {
			focusedIdx = i
			break
		}
	}
	start := max(focusedIdx-m, n)
	for i := start; i < start+2*m+1; i++ {
		v.cars = append(v.cars, at(cars, i))
	}

	for i, c := range v.cars {
		if c != nil && c == focused {
			v.focusedIndex = i
			break
		}
	}
}

// setOnTrack places the m nearest cars ahead on track above the focused car and
// the m nearest behind below it.
func (v *View) setOnTrack(ahead, behind []*sim.Car, m int, focused *sim.Car, withoutPit bool) {
	if withoutPit {
		ahead = withoutPitLane(ahead)
		behind = withoutPitLane(behind)
	}
	ahead = ahead[:min(m, len(ahead))]
	behind = behind[:min(m, len(behind))]

	v.cars = make([]*sim.Car, 2*m+1)
	for i, c := range ahead {
		v.cars[m-1-i] = c
	}
	v.cars[m] = focused
	copy(v.cars[m+1:], behind)
	v.focusedIndex = m
}

func withoutPitLane(cars []*sim.Car) []*sim.Car {
	out := make([]*sim.Car, 0, len(cars))
	for _, c := range cars {
		if !c.IsInPitLane {
			out = append(out, c)
		}
	}
	return out
}

// Next moves to the next selectable kind, wrapping around, and rebuilds the window.
// If no kind is selectable the current kind is kept.
func (v *View) Next(s Snapshot) {
	v.cycle(s, 1)
}

// Previous moves to the previous selectable kind, wrapping around, and rebuilds the window.
func (v *View) Previous(s Snapshot) {
	v.cycle(s, -1)
}

func (v *View) cycle(s Snapshot, dir int) {
	n := len(v.config.Order)
	numClasses, numCups := s.NumClasses(), s.NumCups()
	idx := v.current
	for i := 0; i < n; i++ {
		idx = (idx + dir + n) % n
		if !v.config.Order[idx].skipped(numClasses, numCups) {
			break
		}
	}
	if idx != v.current {
		v.current = idx
		logrus.Infof("leaderboard %s: switched to %s", v.config.Name, v.Kind().DisplayName())
	}
	v.Materialize(s)
}

// Dynamic holds the fields of one slot whose source depends on the view kind. Nil
// means not available.
type Dynamic struct {
	GapToFocused              *time.Duration
	GapToAhead                *time.Duration
	BestLapDeltaToFocusedBest *time.Duration
	LastLapDeltaToFocusedBest *time.Duration
	LastLapDeltaToFocusedLast *time.Duration
	Position                  *int
	PositionStart             *int
}

// Dynamic resolves the kind-dependent fields of slot i.
func (v *View) Dynamic(i int) Dynamic {
	return dynamicFields(v.Kind(), v.Car(i))
}

// dynamicFields is the single kind dispatch: for top-N kinds gaps and deltas are to
// the scope leader, for relative kinds to the focused car.
func dynamicFields(kind Kind, c *sim.Car) Dynamic {
	if c == nil || kind == KindNone || !IsValidKind(string(kind)) {
		return Dynamic{}
	}
	best := c.BestLapDeltas
	var last sim.LapDeltas
	if c.LastLap != nil {
		last = c.LastLap.Deltas
	}
	if c.BestLap == nil {
		best = sim.LapDeltas{}
	}

	var d Dynamic
	switch kind {
	case KindOverall:
		d = Dynamic{
			GapToFocused:              c.GapToLeader.Ptr(),
			GapToAhead:                c.GapToAhead.Ptr(),
			BestLapDeltaToFocusedBest: best.ToLeaderBest,
			LastLapDeltaToFocusedBest: last.ToLeaderBest,
			LastLapDeltaToFocusedLast: last.ToLeaderLast,
		}
	case KindClass:
		d = Dynamic{
			GapToFocused:              c.GapToClassLeader.Ptr(),
			GapToAhead:                c.GapToAheadInClass.Ptr(),
			BestLapDeltaToFocusedBest: best.ToClassLeaderBest,
			LastLapDeltaToFocusedBest: last.ToClassLeaderBest,
			LastLapDeltaToFocusedLast: last.ToClassLeaderLast,
		}
	case KindCup:
		d = Dynamic{
			GapToFocused:              c.GapToCupLeader.Ptr(),
			GapToAhead:                c.GapToAheadInCup.Ptr(),
			BestLapDeltaToFocusedBest: best.ToCupLeaderBest,
			LastLapDeltaToFocusedBest: last.ToCupLeaderBest,
			LastLapDeltaToFocusedLast: last.ToCupLeaderLast,
		}
	case KindRelativeOverall, KindPartialRelativeOverall:
		d = toFocused(c.GapToFocusedTotal.Ptr(), c.GapToAhead.Ptr(), best, last)
	case KindRelativeClass, KindPartialRelativeClass:
		d = toFocused(c.GapToFocusedTotal.Ptr(), c.GapToAheadInClass.Ptr(), best, last)
	case KindRelativeCup, KindPartialRelativeCup:
		d = toFocused(c.GapToFocusedTotal.Ptr(), c.GapToAheadInCup.Ptr(), best, last)
	case KindRelativeOnTrack, KindRelativeOnTrackWoPit:
		d = toFocused(c.GapToFocusedOnTrack.Ptr(), c.GapToAheadOnTrack.Ptr(), best, last)
	}

	switch kind {
	case KindClass, KindRelativeClass, KindPartialRelativeClass:
		d.Position, d.PositionStart = position(c.PositionInClass), position(c.PositionInClassStart)
	case KindCup, KindRelativeCup, KindPartialRelativeCup:
		d.Position, d.PositionStart = position(c.PositionInCup), position(c.PositionInCupStart)
	default:
		d.Position, d.PositionStart = position(c.PositionOverall), position(c.PositionOverallStart)
	}
	return d
}

func toFocused(gapToFocused, gapToAhead *time.Duration, best, last sim.LapDeltas) Dynamic {
	return Dynamic{
		GapToFocused:              gapToFocused,
		GapToAhead:                gapToAhead,
		BestLapDeltaToFocusedBest: best.ToFocusedBest,
		LastLapDeltaToFocusedBest: last.ToFocusedBest,
		LastLapDeltaToFocusedLast: last.ToFocusedLast,
	}
}

// position maps the unset position 0 to nil.
func position(p int) *int {
	if p <= 0 {
		return nil
	}
	return &p
}
