package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeEdit    = "EDIT"
	TypeSave    = "SAVE"
	TypeRegen   = "REGEN"
	TypeSaved   = "SAVED"
	TypeError   = "ERROR"
)

// Edit operations.
const (
	OpSetRadius      = "SET_RADIUS"
	OpSetSeaLevel    = "SET_SEA_LEVEL"
	OpSetResolution  = "SET_RESOLUTION"
	OpSetPlanetColor = "SET_PLANET_COLOR"
	OpSetLight       = "SET_LIGHT"
	OpAddLayer       = "ADD_LAYER"
	OpRemoveLayer    = "REMOVE_LAYER"
	OpMoveLayer      = "MOVE_LAYER"
	OpSetLayer       = "SET_LAYER"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
