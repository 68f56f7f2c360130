package leaderboard

import (
	"fmt"
	"time"

	"github.com/dynleaderboards/dynleaderboards/sim"
)

// fakeSnapshot is a hand-built ranked field.
type fakeSnapshot struct {
	overall, class, cup []*sim.Car
	ahead, behind       []*sim.Car
	focused             *sim.Car
	numClasses, numCups int
}

func (f *fakeSnapshot) OverallOrder() []*sim.Car  { return f.overall }
func (f *fakeSnapshot) ClassOrder() []*sim.Car    { return f.class }
func (f *fakeSnapshot) CupOrder() []*sim.Car      { return f.cup }
func (f *fakeSnapshot) OnTrackAhead() []*sim.Car  { return f.ahead }
func (f *fakeSnapshot) OnTrackBehind() []*sim.Car { return f.behind }
func (f *fakeSnapshot) Focused() *sim.Car         { return f.focused }
func (f *fakeSnapshot) NumClasses() int           { return f.numClasses }
func (f *fakeSnapshot) NumCups() int              { return f.numCups }

// rankedCars returns n cars in overall order with positions and indices set.
func rankedCars(n int) []*sim.Car {
	cars := make([]*sim.Car, n)
	for i := range cars {
		cars[i] = &sim.Car{
			ID:              fmt.Sprintf("car%d", i),
			PositionOverall: i + 1,
			IndexOverall:    i,
		}
	}
	return cars
}

// overallSnapshot focuses cars[focusedIdx] in a single class field.
func overallSnapshot(cars []*sim.Car, focusedIdx int) *fakeSnapshot {
	return &fakeSnapshot{
		overall:    cars,
		class:      cars,
		cup:        cars,
		focused:    cars[focusedIdx],
		numClasses: 1,
		numCups:    1,
	}
}

// configWith returns a one-kind leaderboard with small windows.
func configWith(kind Kind) Config {
	cfg := DefaultConfig("Test")
	cfg.Order = []Entry{{Kind: kind}}
	cfg.Positions = Positions{
		Overall: 5, Class: 5, Cup: 5,
		OverallRelative: 2, ClassRelative: 2, CupRelative: 2, OnTrackRelative: 2,
		PartialOverallTop: 3, PartialOverallRelative: 2,
		PartialClassTop: 3, PartialClassRelative: 2,
		PartialCupTop: 3, PartialCupRelative: 2,
	}
	return cfg
}

func ids(cars []*sim.Car) []string {
	out := make([]string, len(cars))
	for i, c := range cars {
		if c != nil {
			out[i] = c.ID
		}
	}
	return out
}

func dur(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}
