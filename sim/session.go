package sim

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionType is the kind of session being driven.
type SessionType string

const (
	SessionPractice        SessionType = "practice"
	SessionQualifying      SessionType = "qualifying"
	SessionSuperpole       SessionType = "superpole"
	SessionRace            SessionType = "race"
	SessionHotlap          SessionType = "hotlap"
	SessionHotstint        SessionType = "hotstint"
	SessionHotlapSuperpole SessionType = "hotlapsuperpole"
	SessionDrift           SessionType = "drift"
	SessionTimeAttack      SessionType = "time_attack"
	SessionDrag            SessionType = "drag"
	SessionWarmup          SessionType = "warmup"
	SessionTimeTrial       SessionType = "time_trial"
	SessionUnknown         SessionType = "unknown"
)

// sessionTypeAliases maps lower-cased names reported by various games to session types.
var sessionTypeAliases = map[string]SessionType{
	"practice":         SessionPractice,
	"open practice":    SessionPractice,
	"offline testing":  SessionPractice,
	"practice 1":       SessionPractice,
	"practice 2":       SessionPractice,
	"practice 3":       SessionPractice,
	"short practice":   SessionPractice,
	"qualify":          SessionQualifying,
	"qualifying":       SessionQualifying,
	"open qualify":     SessionQualifying,
	"lone qualify":     SessionQualifying,
	"qualifying 1":     SessionQualifying,
	"qualifying 2":     SessionQualifying,
	"qualifying 3":     SessionQualifying,
	"short qualifying": SessionQualifying,
	"osq":              SessionQualifying,
	"superpole":        SessionSuperpole,
	"race":             SessionRace,
	"race 1":           SessionRace,
	"race 2":           SessionRace,
	"race 3":           SessionRace,
	"hotlap":           SessionHotlap,
	"hotstint":         SessionHotstint,
	"hotlapsuperpole":  SessionHotlapSuperpole,
	"drift":            SessionDrift,
	"time_attack":      SessionTimeAttack,
	"drag":             SessionDrag,
	"time_trial":       SessionTimeTrial,
	"warmup":           SessionWarmup,
	"unknown":          SessionUnknown,
}

// ParseSessionType maps a reported session name to a SessionType.
// Unrecognized names map to SessionUnknown.
func ParseSessionType(s string) SessionType {
	if t, ok := sessionTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return SessionUnknown
}

// SessionPhase is the phase within a session. Phases are ordered.
type SessionPhase int

const (
	PhaseUnknown SessionPhase = iota
	PhaseStarting
	PhasePreFormation
	PhaseFormationLap
	PhasePreSession
	PhaseSession
	PhaseSessionOver
	PhasePostSession
	PhaseResultUI
)

var sessionPhaseNames = map[SessionPhase]string{
	PhaseUnknown:      "unknown",
	PhaseStarting:     "starting",
	PhasePreFormation: "preformation",
	PhaseFormationLap: "formationlap",
	PhasePreSession:   "presession",
	PhaseSession:      "session",
	PhaseSessionOver:  "sessionover",
	PhasePostSession:  "postsession",
	PhaseResultUI:     "resultui",
}

func (p SessionPhase) String() string {
	if name, ok := sessionPhaseNames[p]; ok {
		return name
	}
	return sessionPhaseNames[PhaseUnknown]
}

// ParseSessionPhase maps a phase name to a SessionPhase. Unrecognized names map to PhaseUnknown.
func ParseSessionPhase(s string) SessionPhase {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range sessionPhaseNames {
		if name == s {
			return p
		}
	}
	return PhaseUnknown
}

// Session tracks the session state across frames.
type Session struct {
	Type           SessionType
	Phase          SessionPhase
	IsNewSession   bool // session type changed this frame; all car state must be reset
	IsSessionStart bool // phase entered PhaseSession this frame
	IsLapLimited   bool
	IsTimeLimited  bool
	RemainingLaps  int
	TimeLeft       time.Duration

	limitSet bool
}

// NewSession returns a session in the unknown state.
func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Reset clears the session state.
func (s *Session) Reset() {
	*s = Session{
		Type:         SessionUnknown,
		Phase:        PhaseUnknown,
		IsNewSession: true,
	}
}

// IsRace returns true if the current session is a race.
func (s *Session) IsRace() bool {
	return s.Type == SessionRace
}

// Update applies this frame's session descriptor.
func (s *Session) Update(d SessionDescriptor) {
	isNew := d.Type != s.Type
	if isNew {
		logrus.Infof("new session: %s -> %s", s.Type, d.Type)
		s.Reset()
	}
	s.IsNewSession = isNew
	s.Type = d.Type

	oldPhase := s.Phase
	s.Phase = d.Phase
	s.IsSessionStart = oldPhase != PhaseSession && s.Phase == PhaseSession
	s.RemainingLaps = d.RemainingLaps
	s.TimeLeft = d.TimeLeft

	if !s.limitSet {
		// Latched once: at the end of a session the time left is zero, which would
		// otherwise look like a lap-limited session.
		s.IsLapLimited = d.RemainingLaps > 0
		s.IsTimeLimited = !s.IsLapLimited
		s.limitSet = true
		logrus.Infof("session limit set: lapLimited=%v, timeLimited=%v", s.IsLapLimited, s.IsTimeLimited)
	}
}

// IsOver returns true once no more racing laps can be started: the game reports the
// session over, or the lap or time limit is reached while the session is running.
func (s *Session) IsOver() bool {
	if s.Phase >= PhaseSessionOver {
		return true
	}
	if s.Phase != PhaseSession {
		return false
	}
	if s.IsLapLimited {
		return s.RemainingLaps <= 0
	}
	return s.TimeLeft <= 0
}
