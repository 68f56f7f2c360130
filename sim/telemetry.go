package sim

import "time"

// SectorTimes holds the three sector splits of a lap as reported by the game.
// A zero split means the game did not report it.
type SectorTimes [3]time.Duration

// DriverInfo is the raw description of the driver currently in a car.
type DriverInfo struct {
	FirstName   string
	LastName    string
	FullName    string // derived from first and last name when empty
	ShortName   string
	Category    string
	Nationality string
}

// CarSnapshot is one car's raw telemetry for a single frame. Pointer fields are
// nullable; nil means "no data this frame".
type CarSnapshot struct {
	ID          string // stable across frames
	CarName     string // model identifier used for car-info lookup
	CarClass    string // reported class, used when the car-info catalog has no entry
	CupCategory string
	CarNumber   string
	TeamName    string

	IsConnected    bool
	HasCoordinates bool
	IsPlayer       bool // the focused car

	Position        int // reported overall position, 1-based
	PositionInClass int

	CurrentLap           *int     // 1-based lap being driven
	TrackPositionPercent *float64 // required: normalized spline position
	CurrentLapTime       time.Duration
	LastLapTime          time.Duration
	LastLapSectors       SectorTimes
	BestSectors          SectorTimes
	LapValid             bool

	IsCarInPit     bool
	IsCarInPitLane bool
	PitCount       int
	Speed          float64 // km/h

	Driver DriverInfo
}

// TrackDescriptor describes the track of the current session.
type TrackDescriptor struct {
	ID              string
	Name            string
	LengthMeters    float64
	SplinePosOffset float64
}

// SessionDescriptor describes the current session state.
type SessionDescriptor struct {
	Type          SessionType
	Phase         SessionPhase
	RemainingLaps int           // laps left for the leader to start, 0 if unknown
	TimeLeft      time.Duration // session time left
}

// Frame is one telemetry update for the whole field.
type Frame struct {
	Time    time.Duration // monotonic session clock used by pit and stint timers
	Session SessionDescriptor
	Track   TrackDescriptor
	Cars    []CarSnapshot
}
