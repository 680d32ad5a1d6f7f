package engine

import "slices"

func NewEmptyState(mode Mode) State {
	return State{
		Mode:      mode,
		Catalog:   []Drawing{},
		Pairings:  map[string]string{},
		Paired:    map[string]Drawing{},
		Positions: map[string]Position{},
		Loading:   true,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// clone copies every map and slice so the copy can be mutated freely.
func (s State) clone() State {
	ns := s
	ns.Catalog = slices.Clone(s.Catalog)
	if s.Pending != nil {
		d := *s.Pending
		ns.Pending = &d
	}
	ns.Pairings = make(map[string]string, len(s.Pairings))
	for k, v := range s.Pairings {
		ns.Pairings[k] = v
	}
	ns.Paired = make(map[string]Drawing, len(s.Paired))
	for k, v := range s.Paired {
		ns.Paired[k] = v
	}
	ns.Positions = make(map[string]Position, len(s.Positions))
	for k, v := range s.Positions {
		ns.Positions[k] = v
	}
	return ns
}

func (s *State) unpair(key string) Event {
	id := s.Pairings[key]
	d, ok := s.Paired[id]
	delete(s.Pairings, key)
	delete(s.Paired, id)
	delete(s.Positions, id)
	if ok {
		s.returnToGallery(d)
	}
	return Event{Type: EvtUnpaired, Controller: key, DrawingID: id}
}

// returnToGallery prepends d unless the catalog already lists it.
func (s *State) returnToGallery(d Drawing) {
	if inCatalog(*s, d.ID) {
		return
	}
	s.Catalog = append([]Drawing{d}, s.Catalog...)
}

func inCatalog(s State, id string) bool {
	return slices.ContainsFunc(s.Catalog, func(d Drawing) bool { return d.ID == id })
}

func isPaired(s State, drawingID string) bool {
	_, ok := s.Paired[drawingID]
	return ok
}

// LookupDrawing finds a drawing the user could tap: one in the catalog or
// one currently on stage.
func LookupDrawing(s State, id string) (Drawing, bool) {
	for _, d := range s.Catalog {
		if d.ID == id {
			return d, true
		}
	}
	if s.Pending != nil && s.Pending.ID == id {
		return *s.Pending, true
	}
	d, ok := s.Paired[id]
	return d, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// mergeCatalog returns listed, preceded by any known drawing the listing
// does not include (uploads that raced the listing).
func mergeCatalog(known, listed []Drawing) []Drawing {
	out := make([]Drawing, 0, len(known)+len(listed))
	for _, d := range known {
		if !slices.ContainsFunc(listed, func(l Drawing) bool { return l.ID == d.ID }) {
			out = append(out, d)
		}
	}
	return append(out, listed...)
}
