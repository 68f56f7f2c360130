package leaderboard

import "fmt"

// Set holds every configured view, in configuration order.
type Set struct {
	views  []*View
	byName map[string]*View
}

// NewSet builds one view per leaderboard of f. Returns an error if f is invalid.
func NewSet(f *File) (*Set, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s := &Set{byName: make(map[string]*View, len(f.Leaderboards))}
	for _, cfg := range f.Leaderboards {
		v := NewView(cfg)
		s.views = append(s.views, v)
		s.byName[cfg.Name] = v
	}
	return s, nil
}

// Views returns the views in configuration order.
func (s *Set) Views() []*View { return s.views }

// View returns the view named name, or nil.
func (s *Set) View(name string) *View { return s.byName[name] }

// Materialize rebuilds every view from snap.
func (s *Set) Materialize(snap Snapshot) {
	for _, v := range s.views {
		v.Materialize(snap)
	}
}

// Next cycles the named view forward.
func (s *Set) Next(name string, snap Snapshot) error {
	v, err := s.lookup(name)
	if err != nil {
		return err
	}
	v.Next(snap)
	return nil
}

// Previous cycles the named view backward.
func (s *Set) Previous(name string, snap Snapshot) error {
	v, err := s.lookup(name)
	if err != nil {
		return err
	}
	v.Previous(snap)
	return nil
}

func (s *Set) lookup(name string) (*View, error) {
	v, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard %q", name)
	}
	return v, nil
}
