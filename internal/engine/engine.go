package engine

import (
	"errors"
	"time"
)

var ErrNoPendingSelection = errors.New("no pending selection")
var ErrNotPaired = errors.New("controller not paired")
var ErrMissingControllerID = errors.New("connect event without controller id")
var ErrUnroutable = errors.New("motion event without controller id")
var ErrUnknownSlot = errors.New("unknown player slot")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Mode string

const (
	ModeFixed   Mode = "fixed"
	ModeDynamic Mode = "dynamic"
)

type Drawing struct {
	ID         string
	URL        string
	UploadedAt time.Time
	Size       int64
}

type Position struct {
	X float64
	Y float64
}

// Payload is a decoded controller message. Step is nil when the
// controller did not send one, so the default applies.
type Payload struct {
	Raw      string
	Event    string
	ID       string
	PlayerID string
	Button   string
	DX       float64
	DY       float64
	Step     *float64
}

const EventConnect = "connect"

type State struct {
	Mode      Mode
	Catalog   []Drawing
	Pending   *Drawing
	Pairings  map[string]string   // controller key -> drawing id
	Paired    map[string]Drawing  // drawing id -> drawing
	Positions map[string]Position // drawing id -> position
	Loading   bool
	LoadError string
}

type CommandType string

const (
	CmdSelectDrawing   CommandType = "SelectDrawing"
	CmdRelease         CommandType = "Release"
	CmdControllerInput CommandType = "ControllerInput"
	CmdLoadGallery     CommandType = "LoadGallery"
	CmdGalleryFailed   CommandType = "GalleryFailed"
	CmdAddDrawing      CommandType = "AddDrawing"
)

type Command struct {
	Type     CommandType
	Drawing  Drawing
	Drawings []Drawing
	Payload  Payload
	Message  string
}

type EventType string

const (
	EvtDrawingSelected   EventType = "DrawingSelected"
	EvtSelectionReleased EventType = "SelectionReleased"
	EvtPaired            EventType = "Paired"
	EvtUnpaired          EventType = "Unpaired"
	EvtMoved             EventType = "Moved"
	EvtGalleryLoaded     EventType = "GalleryLoaded"
	EvtGalleryFailed     EventType = "GalleryFailed"
	EvtDrawingAdded      EventType = "DrawingAdded"
)

type Event struct {
	Type       EventType
	Controller string
	DrawingID  string
	Position   Position
}

// Apply runs one command against s and returns the resulting state.
// s is never mutated. A non-nil error means the command was a no-op and
// the returned state is s itself.
func Apply(strat Strategy, s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdSelectDrawing:
		ns := s.clone()
		if ns.Pending != nil && ns.Pending.ID != cmd.Drawing.ID {
			ns.returnToGallery(*ns.Pending)
		}
		d := cmd.Drawing
		ns.Pending = &d
		return []Event{{Type: EvtDrawingSelected, DrawingID: d.ID}}, ns, nil

	case CmdRelease:
		events, ns := strat.Release(s)
		return events, ns, nil

	case CmdControllerInput:
		return strat.Handle(s, cmd.Payload)

	case CmdLoadGallery:
		ns := s.clone()
		ns.Catalog = mergeCatalog(s.Catalog, cmd.Drawings)
		ns.Loading = false
		ns.LoadError = ""
		return []Event{{Type: EvtGalleryLoaded}}, ns, nil

	case CmdGalleryFailed:
		ns := s.clone()
		ns.Loading = false
		ns.LoadError = cmd.Message
		return []Event{{Type: EvtGalleryFailed}}, ns, nil

	case CmdAddDrawing:
		if inCatalog(s, cmd.Drawing.ID) {
			return nil, s, nil
		}
		ns := s.clone()
		ns.returnToGallery(cmd.Drawing)
		return []Event{{Type: EvtDrawingAdded, DrawingID: cmd.Drawing.ID}}, ns, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// pair links key to d, first dropping any pairing that already uses
// either side. d's position starts at the origin.
func pair(s State, key string, d Drawing) ([]Event, State) {
	ns := s.clone()
	events := []Event{}

	for _, k := range sortedKeys(ns.Pairings) {
		if k == key || ns.Pairings[k] == d.ID {
			events = append(events, ns.unpair(k))
		}
	}

	ns.Pairings[key] = d.ID
	ns.Paired[d.ID] = d
	ns.Positions[d.ID] = Position{}
	ns.Pending = nil

	events = append(events, Event{Type: EvtPaired, Controller: key, DrawingID: d.ID})
	return events, ns
}

func move(s State, key string, p Payload) ([]Event, State, error) {
	id, ok := s.Pairings[key]
	if !ok {
		return nil, s, ErrNotPaired
	}

	ns := s.clone()
	next := MovePosition(ns.Positions[id], p)
	ns.Positions[id] = next

	return []Event{{Type: EvtMoved, Controller: key, DrawingID: id, Position: next}}, ns, nil
}

// releasePending puts the pending drawing back into the gallery.
func releasePending(ns *State) []Event {
	if ns.Pending == nil {
		return []Event{{Type: EvtSelectionReleased}}
	}
	id := ns.Pending.ID
	ns.returnToGallery(*ns.Pending)
	ns.Pending = nil
	return []Event{{Type: EvtSelectionReleased, DrawingID: id}}
}
