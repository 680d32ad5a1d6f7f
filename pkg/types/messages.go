package types

// Controller -> Broker
// connect (dynamic mode, sent when the stick's select button is held):
//   event: "connect"
//   id: string            // stable hardware address, e.g. "24:0A:C4:12:34:56"
//
// motion / button:
//   playerId: string      // "player1" | "player2" (fixed-slot mode)
//   id: string            // optional, controller identity (dynamic mode)
//   button: "up" | "down" | "left" | "right" | "run"
//   dx: number            // optional additive offset
//   dy: number            // optional additive offset
//   step: number          // optional, defaults to 6
//
// Firmware may also publish a bare word ("up", "run") instead of JSON.

// ControllerPayload is the JSON shape published by controllers.
// Pointers distinguish "absent" from zero where the default is not zero.
type ControllerPayload struct {
	Event    string   `json:"event,omitempty"`
	ID       string   `json:"id,omitempty"`
	PlayerID string   `json:"playerId,omitempty"`
	Button   string   `json:"button,omitempty"`
	DX       *float64 `json:"dx,omitempty"`
	DY       *float64 `json:"dy,omitempty"`
	Step     *float64 `json:"step,omitempty"`
}

const EventConnect = "connect"
