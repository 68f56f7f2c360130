package leaderboard

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Entry is one kind in a view's cycling order.
type Entry struct {
	Kind                Kind  `yaml:"kind"`
	Enabled             *bool `yaml:"enabled,omitempty"` // nil means enabled
	RemoveIfSingleClass bool  `yaml:"remove_if_single_class,omitempty"`
	RemoveIfSingleCup   bool  `yaml:"remove_if_single_cup,omitempty"`
}

// IsEnabled reports whether the entry takes part in cycling.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// skipped reports whether cycling must pass over this entry for the given field.
func (e Entry) skipped(numClasses, numCups int) bool {
	isSingleClass := numClasses < 2
	isSingleCup := numCups == numClasses
	return !e.IsEnabled() ||
		(isSingleClass && e.RemoveIfSingleClass) ||
		(isSingleCup && e.RemoveIfSingleCup)
}

// Positions sets the window sizes of every kind. Relative counts are the number of
// cars on each side of the focused car.
type Positions struct {
	Overall         int `yaml:"overall"`
	Class           int `yaml:"class"`
	Cup             int `yaml:"cup"`
	OverallRelative int `yaml:"overall_relative"`
	ClassRelative   int `yaml:"class_relative"`
	CupRelative     int `yaml:"cup_relative"`
	OnTrackRelative int `yaml:"on_track_relative"`

	PartialOverallTop      int `yaml:"partial_overall_top"`
	PartialOverallRelative int `yaml:"partial_overall_relative"`
	PartialClassTop        int `yaml:"partial_class_top"`
	PartialClassRelative   int `yaml:"partial_class_relative"`
	PartialCupTop          int `yaml:"partial_cup_top"`
	PartialCupRelative     int `yaml:"partial_cup_relative"`
}

// DefaultPositions returns the default window sizes.
func DefaultPositions() Positions {
	return Positions{
		Overall:                16,
		Class:                  16,
		Cup:                    16,
		OverallRelative:        5,
		ClassRelative:          5,
		CupRelative:            5,
		OnTrackRelative:        5,
		PartialOverallTop:      5,
		PartialOverallRelative: 5,
		PartialClassTop:        5,
		PartialClassRelative:   5,
		PartialCupTop:          5,
		PartialCupRelative:     5,
	}
}

// Config is one dynamic leaderboard: a name, a cycling order and window sizes.
type Config struct {
	Name      string    `yaml:"name"`
	Order     []Entry   `yaml:"order"`
	Positions Positions `yaml:"positions"`
}

// DefaultConfig returns a leaderboard cycling through every kind.
func DefaultConfig(name string) Config {
	return Config{
		Name: name,
		Order: []Entry{
			{Kind: KindOverall},
			{Kind: KindClass, RemoveIfSingleClass: true},
			{Kind: KindCup, RemoveIfSingleClass: true, RemoveIfSingleCup: true},
			{Kind: KindPartialRelativeOverall},
			{Kind: KindPartialRelativeClass, RemoveIfSingleClass: true},
			{Kind: KindPartialRelativeCup, RemoveIfSingleClass: true, RemoveIfSingleCup: true},
			{Kind: KindRelativeOverall},
			{Kind: KindRelativeClass, RemoveIfSingleClass: true},
			{Kind: KindRelativeCup, RemoveIfSingleClass: true, RemoveIfSingleCup: true},
			{Kind: KindRelativeOnTrack},
			{Kind: KindRelativeOnTrackWoPit},
		},
		Positions: DefaultPositions(),
	}
}

// windowSize returns the number of slots kind k materializes.
func (p Positions) windowSize(k Kind) int {
	switch k {
	case KindOverall:
		return p.Overall
	case KindClass:
		return p.Class
	case KindCup:
		return p.Cup
	case KindRelativeOverall:
		return 2*p.OverallRelative + 1
	case KindRelativeClass:
		return 2*p.ClassRelative + 1
	case KindRelativeCup:
		return 2*p.CupRelative + 1
	case KindRelativeOnTrack, KindRelativeOnTrackWoPit:
		return 2*p.OnTrackRelative + 1
	case KindPartialRelativeOverall:
		return p.PartialOverallTop + 2*p.PartialOverallRelative + 1
	case KindPartialRelativeClass:
		return p.PartialClassTop + 2*p.PartialClassRelative + 1
	case KindPartialRelativeCup:
		return p.PartialCupTop + 2*p.PartialCupRelative + 1
	default:
		return 0
	}
}

// MaxPositions returns the largest window any kind of this config can produce,
// whether or not the kind is in the cycling order.
func (c Config) MaxPositions() int {
	largest := 0
	for _, name := range ValidKindNames() {
		largest = max(largest, c.Positions.windowSize(Kind(name)))
	}
	return largest
}

var validName = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Validate checks the name, order and window sizes.
func (c Config) Validate() error {
	if !validName.MatchString(c.Name) {
		return fmt.Errorf("leaderboard name %q must be non-empty and contain only letters and digits", c.Name)
	}
	if len(c.Order) == 0 {
		return fmt.Errorf("leaderboard %q: order must list at least one kind", c.Name)
	}
	counts := map[string]int{
		"overall":                  c.Positions.Overall,
		"class":                    c.Positions.Class,
		"cup":                      c.Positions.Cup,
		"overall_relative":         c.Positions.OverallRelative,
		"class_relative":           c.Positions.ClassRelative,
		"cup_relative":             c.Positions.CupRelative,
		"on_track_relative":        c.Positions.OnTrackRelative,
		"partial_overall_top":      c.Positions.PartialOverallTop,
		"partial_overall_relative": c.Positions.PartialOverallRelative,
		"partial_class_top":        c.Positions.PartialClassTop,
		"partial_class_relative":   c.Positions.PartialClassRelative,
		"partial_cup_top":          c.Positions.PartialCupTop,
		"partial_cup_relative":     c.Positions.PartialCupRelative,
	}
	for name, n := range counts {
		if n < 0 {
			return fmt.Errorf("leaderboard %q: positions.%s must be non-negative, got %d", c.Name, name, n)
		}
	}
	return nil
}

// File is the on-disk leaderboard configuration.
type File struct {
	// PositionCap bounds MaxPositions of every leaderboard. Zero means no cap.
	PositionCap  int      `yaml:"position_cap"`
	Leaderboards []Config `yaml:"leaderboards"`
}

// DefaultFile returns a single default leaderboard named "Dynamic".
func DefaultFile() *File {
	return &File{Leaderboards: []Config{DefaultConfig("Dynamic")}}
}

// LoadFile reads and validates a YAML leaderboard configuration.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard config: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a YAML leaderboard configuration with strict field checking.
// Window sizes left out of a leaderboard's positions keep their defaults.
func ParseFile(data []byte) (*File, error) {
	var raw struct {
		PositionCap  int         `yaml:"position_cap"`
		Leaderboards []yaml.Node `yaml:"leaderboards"`
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing leaderboard config: %w", err)
	}

	f := &File{PositionCap: raw.PositionCap}
	for i := range raw.Leaderboards {
		cfg := Config{Positions: DefaultPositions()}
		if err := decodeStrict(&raw.Leaderboards[i], &cfg); err != nil {
			return nil, fmt.Errorf("parsing leaderboard %d: %w", i, err)
		}
		f.Leaderboards = append(f.Leaderboards, cfg)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// decodeStrict decodes a node into out, rejecting unknown fields.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}

// Validate checks every leaderboard, name uniqueness and the position cap.
func (f *File) Validate() error {
	if f.PositionCap < 0 {
		return fmt.Errorf("position_cap must be non-negative, got %d", f.PositionCap)
	}
	if len(f.Leaderboards) == 0 {
		return fmt.Errorf("at least one leaderboard must be configured")
	}
	seen := make(map[string]bool, len(f.Leaderboards))
	for _, c := range f.Leaderboards {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate leaderboard name %q", c.Name)
		}
		seen[c.Name] = true
		if f.PositionCap > 0 && c.MaxPositions() > f.PositionCap {
			return fmt.Errorf("leaderboard %q needs %d positions, above position_cap %d", c.Name, c.MaxPositions(), f.PositionCap)
		}
	}
	return nil
}
