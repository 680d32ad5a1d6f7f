package engine

// Controller ids the keyboard plays as in dynamic mode.
const (
	KeyboardID1 = "keyboard-1"
	KeyboardID2 = "keyboard-2"
)

var arrowButtons = map[string]string{
	"ArrowUp":    "up",
	"ArrowDown":  "down",
	"ArrowLeft":  "left",
	"ArrowRight": "right",
}

// KeyPayload maps a browser key to the payload a controller would send.
// In fixed mode 1 and 2 press "run" for each slot. In dynamic mode they
// connect the keyboard controllers instead. Arrows steer the first one.
func KeyPayload(mode Mode, key string) (Payload, bool) {
	dynamic := mode == ModeDynamic

	switch key {
	case "1", "2":
		slot, id := SlotPlayer1, KeyboardID1
		if key == "2" {
			slot, id = SlotPlayer2, KeyboardID2
		}
		if dynamic {
			return Payload{Raw: EventConnect, Event: EventConnect, ID: id}, true
		}
		return Payload{Raw: "run", Button: "run", PlayerID: slot}, true
	}

	button, ok := arrowButtons[key]
	if !ok {
		return Payload{}, false
	}
	if dynamic {
		return Payload{Raw: button, Button: button, ID: KeyboardID1}, true
	}
	return Payload{Raw: button, Button: button, PlayerID: SlotPlayer1}, true
}
