package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	State           PlanetState `json:"state"`
	Regen           *RegenMsg   `json:"regen,omitempty"`
}

type PlanetState struct {
	Radius        float32      `json:"radius"`
	SeaLevel      float32      `json:"sea_level"`
	Resolution    int          `json:"resolution"`
	PlanetColor   [3]float32   `json:"planet_color"`
	LightEulerRot [3]float32   `json:"light_euler_rot"`
	Layers        []LayerState `json:"layers"`
}

// LayerState mirrors one generator layer. WarpTarget is 1-based.
type LayerState struct {
	Enabled        bool        `json:"enabled"`
	FirstLayerMask bool        `json:"first_layer_mask"`
	IsWarp         bool        `json:"is_warp"`
	WarpTarget     uint32      `json:"warp_target"`
	Filter         FilterState `json:"filter"`
}

type FilterState struct {
	Type        string     `json:"type"`
	Seed        uint32     `json:"seed"`
	Octaves     int32      `json:"octaves"`
	Strength    float32    `json:"strength"`
	Roughness   float32    `json:"roughness"`
	Lacunarity  float32    `json:"lacunarity"`
	Persistence float32    `json:"persistence"`
	Offset      float32    `json:"offset"`
	Floor       float32    `json:"floor"`
	Center      [3]float32 `json:"center"`
	WarpOffset  [3]float32 `json:"warp_offset"`
}

// EDIT (client -> server). Ops apply atomically in order.
type EditMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id"`
	Ops             []EditOp `json:"ops"`
}

// EditOp fields are interpreted per Op. Layer indices are 0-based.
// SET_LIGHT carries its euler rotation (degrees) in Color.
type EditOp struct {
	Op         string      `json:"op"`
	Value      *float32    `json:"value,omitempty"`
	Resolution int         `json:"resolution,omitempty"`
	Color      *[3]float32 `json:"color,omitempty"`
	Index      int         `json:"index,omitempty"`
	To         int         `json:"to,omitempty"`
	Layer      *LayerState `json:"layer,omitempty"`
}

// SAVE (client -> server)
type SaveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Name            string `json:"name"`
}

// REGEN (server -> client)
type RegenMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id,omitempty"`
	Seq             uint64  `json:"seq"`
	Resolution      int     `json:"resolution"`
	Layers          int     `json:"layers"`
	Min             float32 `json:"min"`
	Max             float32 `json:"max"`
	Digest          string  `json:"digest"`
	DurationMS      int64   `json:"duration_ms"`
}

// SAVED (server -> client)
type SavedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Path            string `json:"path"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(id, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ID: id, Code: code, Message: msg}
}
