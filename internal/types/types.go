package types

import wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"

const (
	MsgSelect        = "Select"
	MsgRelease       = "Release"
	MsgKey           = "Key"
	MsgStageSnapshot = "StageSnapshot"
	MsgError         = "Error"
)

type ClientMessage struct {
	Type      string `json:"type"` // "Select" | "Release" | "Key"
	DrawingID string `json:"drawing_id,omitempty"`
	Key       string `json:"key,omitempty"`
}

type ServerMessage struct {
	Type    string              `json:"type"` // "StageSnapshot" | "Error"
	Session string              `json:"session,omitempty"`
	Version int                 `json:"version"`
	State   *wire.StageSnapshot `json:"state,omitempty"`
	Error   string              `json:"error,omitempty"`
}
