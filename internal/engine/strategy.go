package engine

import "fmt"

// Strategy decides how controller messages claim and move drawings.
type Strategy interface {
	Mode() Mode
	Handle(s State, p Payload) ([]Event, State, error)
	Release(s State) ([]Event, State)
}

type Routing string

const (
	// RouteByID requires every motion message to carry the controller id.
	RouteByID Routing = "id"
	// RouteSingle sends id-less motion to the only active pairing, if there is exactly one.
	RouteSingle Routing = "single"
)

func NewStrategy(mode Mode, routing Routing) (Strategy, error) {
	switch mode {
	case ModeFixed:
		return FixedSlots{}, nil
	case ModeDynamic:
		switch routing {
		case RouteByID, RouteSingle:
			return Dynamic{Routing: routing}, nil
		case "":
			return Dynamic{Routing: RouteByID}, nil
		default:
			return nil, fmt.Errorf("unknown motion routing %q", routing)
		}
	default:
		return nil, fmt.Errorf("unknown pairing mode %q", mode)
	}
}

// FixedSlots is the two-player variant: player1 and player2.
type FixedSlots struct{}

func (FixedSlots) Mode() Mode { return ModeFixed }

func (FixedSlots) Handle(s State, p Payload) ([]Event, State, error) {
	// Any message claims a slot while a selection is pending.
	slot, err := slotFor(p.PlayerID)
	if err != nil {
		return nil, s, err
	}
	if s.Pending != nil {
		events, ns := pair(s, slot, *s.Pending)
		return events, ns, nil
	}
	return move(s, slot, p)
}

// slotFor names the slot a message belongs to; no playerId means
// player1, both when claiming and when moving.
func slotFor(playerID string) (string, error) {
	if playerID == "" {
		return SlotPlayer1, nil
	}
	if !IsSlot(playerID) {
		return "", ErrUnknownSlot
	}
	return playerID, nil
}

// Release also empties both slots.
func (FixedSlots) Release(s State) ([]Event, State) {
	ns := s.clone()
	events := releasePending(&ns)
	for _, slot := range sortedKeys(ns.Pairings) {
		events = append(events, ns.unpair(slot))
	}
	return events, ns
}

// Dynamic pairs any number of controllers by their hardware id.
type Dynamic struct {
	Routing Routing
}

func (Dynamic) Mode() Mode { return ModeDynamic }

func (d Dynamic) Handle(s State, p Payload) ([]Event, State, error) {
	if p.Event == EventConnect {
		if p.ID == "" {
			return nil, s, ErrMissingControllerID
		}
		if s.Pending == nil {
			return nil, s, ErrNoPendingSelection
		}
		events, ns := pair(s, p.ID, *s.Pending)
		return events, ns, nil
	}

	key, err := d.route(s, p)
	if err != nil {
		return nil, s, err
	}
	return move(s, key, p)
}

func (d Dynamic) route(s State, p Payload) (string, error) {
	if p.ID != "" {
		if _, ok := s.Pairings[p.ID]; !ok {
			return "", ErrNotPaired
		}
		return p.ID, nil
	}
	if d.Routing == RouteSingle && len(s.Pairings) == 1 {
		for key := range s.Pairings {
			return key, nil
		}
	}
	return "", ErrUnroutable
}

// Pairings survive a release in this mode.
func (Dynamic) Release(s State) ([]Event, State) {
	ns := s.clone()
	return releasePending(&ns), ns
}
