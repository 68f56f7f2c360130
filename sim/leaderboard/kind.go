// Package leaderboard builds dynamic leaderboard views over a ranked field.
//
// A View owns an ordered list of leaderboard kinds the user cycles through. On
// every frame Materialize selects the cars for the current kind into a fixed
// shape window and records the focused car's slot. The kind-dependent fields of
// a slot (which gap, which delta, which position) are resolved by a single
// dispatch over the kind, see Dynamic.
package leaderboard

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Kind selects which cars a view shows and which fields it reads.
type Kind string

const (
	KindNone                   Kind = "None"
	KindOverall                Kind = "Overall"
	KindClass                  Kind = "Class"
	KindCup                    Kind = "Cup"
	KindRelativeOverall        Kind = "RelativeOverall"
	KindRelativeClass          Kind = "RelativeClass"
	KindRelativeCup            Kind = "RelativeCup"
	KindPartialRelativeOverall Kind = "PartialRelativeOverall"
	KindPartialRelativeClass   Kind = "PartialRelativeClass"
	KindPartialRelativeCup     Kind = "PartialRelativeCup"
	KindRelativeOnTrack        Kind = "RelativeOnTrack"
	KindRelativeOnTrackWoPit   Kind = "RelativeOnTrackWoPit"
)

// kindDisplayNames maps every valid kind to its human readable name.
var kindDisplayNames = map[Kind]string{
	KindNone:                   "None",
	KindOverall:                "Overall",
	KindClass:                  "Class",
	KindCup:                    "Cup",
	KindRelativeOverall:        "Relative overall",
	KindRelativeClass:          "Relative class",
	KindRelativeCup:            "Relative cup",
	KindPartialRelativeOverall: "Partial relative overall",
	KindPartialRelativeClass:   "Partial relative class",
	KindPartialRelativeCup:     "Partial relative cup",
	KindRelativeOnTrack:        "Relative on track",
	KindRelativeOnTrackWoPit:   "Relative on track (wo pit)",
}

// IsValidKind returns true if name is a known compact kind name.
func IsValidKind(name string) bool {
	_, ok := kindDisplayNames[Kind(name)]
	return ok
}

// ValidKindNames returns the compact names of all kinds in declaration order.
func ValidKindNames() []string {
	return []string{
		string(KindNone), string(KindOverall), string(KindClass), string(KindCup),
		string(KindRelativeOverall), string(KindRelativeClass), string(KindRelativeCup),
		string(KindPartialRelativeOverall), string(KindPartialRelativeClass), string(KindPartialRelativeCup),
		string(KindRelativeOnTrack), string(KindRelativeOnTrackWoPit),
	}
}

// ParseKind maps a compact kind name to a Kind. Unknown names map to KindNone.
func ParseKind(name string) Kind {
	if IsValidKind(name) {
		return Kind(name)
	}
	logrus.Warnf("unknown leaderboard kind %q, using %s", name, KindNone)
	return KindNone
}

// CompactName returns the kind's identifier-like name.
func (k Kind) CompactName() string {
	if !IsValidKind(string(k)) {
		return string(KindNone)
	}
	return string(k)
}

// DisplayName returns the kind's human readable name.
func (k Kind) DisplayName() string {
	if name, ok := kindDisplayNames[k]; ok {
		return name
	}
	return kindDisplayNames[KindNone]
}

func (k Kind) String() string {
	return k.CompactName()
}

// UnmarshalYAML decodes a kind name; unknown names decode to KindNone.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return fmt.Errorf("line %d: leaderboard kind must be a string: %w", value.Line, err)
	}
	*k = ParseKind(name)
	return nil
}
