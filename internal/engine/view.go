package engine

import wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"

// View projects s into the snapshot the stage page renders. Paired
// drawings are left out of the gallery unless they are pending; a pending
// drawing is in turn left out of the active list so no drawing shows twice.
func View(s State) wire.StageSnapshot {
	snap := wire.StageSnapshot{
		Mode:      string(s.Mode),
		Gallery:   []wire.Drawing{},
		Active:    []wire.ActiveDrawing{},
		Awaiting:  s.Pending != nil,
		Loading:   s.Loading,
		LoadError: s.LoadError,
	}

	for _, d := range s.Catalog {
		pending := s.Pending != nil && s.Pending.ID == d.ID
		if isPaired(s, d.ID) && !pending {
			continue
		}
		snap.Gallery = append(snap.Gallery, toWire(d))
	}

	if s.Pending != nil {
		d := toWire(*s.Pending)
		snap.Pending = &d
		// A pending drawing always waits at the origin of the stage.
		snap.PendingPosition = wire.Position{X: 0, Y: 0}
	}

	for _, key := range sortedKeys(s.Pairings) {
		id := s.Pairings[key]
		if s.Pending != nil && s.Pending.ID == id {
			continue
		}
		pos := s.Positions[id]
		snap.Active = append(snap.Active, wire.ActiveDrawing{
			Controller: key,
			Drawing:    toWire(s.Paired[id]),
			Position:   wire.Position{X: pos.X, Y: pos.Y},
		})
	}

	return snap
}

func toWire(d Drawing) wire.Drawing {
	return wire.Drawing{ID: d.ID, URL: d.URL, UploadedAt: d.UploadedAt, Size: d.Size}
}
