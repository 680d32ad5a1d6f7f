package engine

import "slices"

const (
	SlotPlayer1 = "player1"
	SlotPlayer2 = "player2"
)

// Slots lists the fixed-mode slots in claim order.
var Slots = []string{SlotPlayer1, SlotPlayer2}

func IsSlot(name string) bool {
	return slices.Contains(Slots, name)
}
