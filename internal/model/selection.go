package model

import "sort"

// Selection is the multi-select state used for batch deletes.
// Selected ids are not checked against the collection: a selected id may
// point at a bookmark that another client already deleted.
type Selection struct {
	Active   bool
	Selected map[string]bool
}

// NewSelection creates an inactive, empty Selection.
func NewSelection() Selection {
	return Selection{
		Selected: make(map[string]bool),
	}
}

// Enter switches selection mode on and clears any previous selection.
func (s *Selection) Enter() {
	s.Active = true
	s.Selected = make(map[string]bool)
}

// Exit switches selection mode off and clears the selection.
func (s *Selection) Exit() {
	s.Active = false
	s.Selected = make(map[string]bool)
}

// Toggle adds or removes an id from the selection.
func (s *Selection) Toggle(id string) {
	if s.Selected == nil {
		s.Selected = make(map[string]bool)
	}
	if s.Selected[id] {
		delete(s.Selected, id)
	} else {
		s.Selected[id] = true
	}
}

// IsSelected returns true if the id is selected.
func (s Selection) IsSelected(id string) bool {
	return s.Selected[id]
}

// Count returns the number of selected ids.
func (s Selection) Count() int {
	return len(s.Selected)
}

// IDs returns the selected ids in sorted order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.Selected))
	for id := range s.Selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a Selection that shares no map with s.
func (s Selection) Clone() Selection {
	out := Selection{Active: s.Active, Selected: make(map[string]bool, len(s.Selected))}
	for id := range s.Selected {
		out.Selected[id] = true
	}
	return out
}
