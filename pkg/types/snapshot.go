package types

import "time"

// StageSnapshot:
//   gallery: Drawing[]        // drawings the user can still tap
//   pending: Drawing | null   // tapped, waiting for a controller
//   pending_position: {x, y}
//   active: ActiveDrawing[]   // paired drawings, sorted by controller key
//   awaiting: boolean
//   loading: boolean
//   load_error: string
//   last_raw: string          // last controller message, for diagnostics
//   status: {connected, connecting, error, text}

type Drawing struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
	Size       int64     `json:"size"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ActiveDrawing struct {
	Controller string   `json:"controller"`
	Drawing    Drawing  `json:"drawing"`
	Position   Position `json:"position"`
}

type Status struct {
	Connected  bool   `json:"connected"`
	Connecting bool   `json:"connecting"`
	Error      string `json:"error,omitempty"`
	Text       string `json:"text"`
}

type StageSnapshot struct {
	Mode            string          `json:"mode"`
	Gallery         []Drawing       `json:"gallery"`
	Pending         *Drawing        `json:"pending"`
	PendingPosition Position        `json:"pending_position"`
	Active          []ActiveDrawing `json:"active"`
	Awaiting        bool            `json:"awaiting"`
	Loading         bool            `json:"loading"`
	LoadError       string          `json:"load_error,omitempty"`
	LastRaw         string          `json:"last_raw,omitempty"`
	Status          Status          `json:"status"`
}
