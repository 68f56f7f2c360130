package sim

import "time"

// Sectors holds up to three sector times. A zero entry means the sector is unknown.
type Sectors [3]time.Duration

// NewSectors converts raw splits; zero splits stay unknown.
func NewSectors(st SectorTimes) Sectors {
	return Sectors(st)
}

// Sector returns the i-th (0-based) sector time, or false if it is unknown.
func (s Sectors) Sector(i int) (time.Duration, bool) {
	if i < 0 || i >= len(s) || s[i] <= 0 {
		return 0, false
	}
	return s[i], true
}

// LapBasic is the timing of one completed lap without any deltas.
type LapBasic struct {
	Sectors   Sectors
	Time      time.Duration
	LapNumber int
	Driver    *Driver
	IsValid   bool
	IsOutLap  bool
	IsInLap   bool
}

// LapDeltas holds the differences between a lap time and reference lap times.
// Nil means the reference time is not available.
type LapDeltas struct {
	ToOwnBest *time.Duration

	ToOverallBest      *time.Duration
	ToClassBest        *time.Duration
	ToCupBest          *time.Duration
	ToLeaderBest       *time.Duration
	ToClassLeaderBest  *time.Duration
	ToCupLeaderBest    *time.Duration
	ToFocusedBest      *time.Duration
	ToAheadBest        *time.Duration
	ToAheadInClassBest *time.Duration
	ToAheadInCupBest   *time.Duration

	ToLeaderLast       *time.Duration
	ToClassLeaderLast  *time.Duration
	ToCupLeaderLast    *time.Duration
	ToFocusedLast      *time.Duration
	ToAheadLast        *time.Duration
	ToAheadInClassLast *time.Duration
	ToAheadInCupLast   *time.Duration
}

// Lap is a completed lap. Its deltas are recomputed every frame while it is the
// car's last lap and frozen afterwards.
type Lap struct {
	LapBasic
	Deltas LapDeltas
}

func newLap(sectors SectorTimes, lapTime time.Duration, lapNumber int, driver *Driver) *Lap {
	return &Lap{
		LapBasic: LapBasic{
			Sectors:   NewSectors(sectors),
			Time:      lapTime,
			LapNumber: lapNumber,
			Driver:    driver,
			IsValid:   true,
		},
	}
}

// Basic returns a copy of the lap's timing without deltas.
func (l *Lap) Basic() *LapBasic {
	b := l.LapBasic
	return &b
}

func bestTime(c *Car) *time.Duration {
	if c == nil || c.BestLap == nil {
		return nil
	}
	return &c.BestLap.Time
}

func lastTime(c *Car) *time.Duration {
	if c == nil || c.LastLap == nil {
		return nil
	}
	return &c.LastLap.Time
}

func deltaTo(t time.Duration, ref *time.Duration) *time.Duration {
	if ref == nil {
		return nil
	}
	d := t - *ref
	return &d
}

// computeDeltas fills every reference delta of a lap with time t. The own-best delta
// is fixed at lap completion and is carried over unchanged.
func computeDeltas(t time.Duration, ownBest *time.Duration, refs References) LapDeltas {
	return LapDeltas{
		ToOwnBest: ownBest,

		ToOverallBest:      deltaTo(t, bestTime(refs.OverallBestLap)),
		ToClassBest:        deltaTo(t, bestTime(refs.ClassBestLap)),
		ToCupBest:          deltaTo(t, bestTime(refs.CupBestLap)),
		ToLeaderBest:       deltaTo(t, bestTime(refs.Leader)),
		ToClassLeaderBest:  deltaTo(t, bestTime(refs.ClassLeader)),
		ToCupLeaderBest:    deltaTo(t, bestTime(refs.CupLeader)),
		ToFocusedBest:      deltaTo(t, bestTime(refs.Focused)),
		ToAheadBest:        deltaTo(t, bestTime(refs.Ahead)),
		ToAheadInClassBest: deltaTo(t, bestTime(refs.AheadInClass)),
		ToAheadInCupBest:   deltaTo(t, bestTime(refs.AheadInCup)),

		ToLeaderLast:       deltaTo(t, lastTime(refs.Leader)),
		ToClassLeaderLast:  deltaTo(t, lastTime(refs.ClassLeader)),
		ToCupLeaderLast:    deltaTo(t, lastTime(refs.CupLeader)),
		ToFocusedLast:      deltaTo(t, lastTime(refs.Focused)),
		ToAheadLast:        deltaTo(t, lastTime(refs.Ahead)),
		ToAheadInClassLast: deltaTo(t, lastTime(refs.AheadInClass)),
		ToAheadInCupLast:   deltaTo(t, lastTime(refs.AheadInCup)),
	}
}
