package sim

// CarLocation is where a car currently is.
type CarLocation string

const (
	LocationNone    CarLocation = "none"
	LocationTrack   CarLocation = "track"
	LocationPitlane CarLocation = "pitlane"
	LocationPitBox  CarLocation = "pitbox"
)

// IsInPits returns true for the pit lane and the pit box.
func (l CarLocation) IsInPits() bool {
	return l == LocationPitlane || l == LocationPitBox
}

// locationOf derives a car's location from its raw pit flags.
func locationOf(s CarSnapshot) CarLocation {
	switch {
	case s.IsCarInPit:
		return LocationPitBox
	case s.IsCarInPitLane:
		return LocationPitlane
	default:
		return LocationTrack
	}
}

// NewOld keeps the current and previous value of a per-frame field.
type NewOld[T any] struct {
	New T
	Old T
}

// NewNewOld returns a pair with both values set to v.
func NewNewOld[T any](v T) NewOld[T] {
	return NewOld[T]{New: v, Old: v}
}

// Update shifts New into Old and stores v as New.
func (n *NewOld[T]) Update(v T) {
	n.Old = n.New
	n.New = v
}
