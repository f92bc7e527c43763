package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"planetgen/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// validateGo round-trips a Go message through JSON so the schema sees exactly
// what the server writes.
func validateGo(t *testing.T, s *jsonschema.Schema, msg any) {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate %s: %v", b, err)
	}
}

func sampleLayer() protocol.LayerState {
	return protocol.LayerState{
		Enabled: true,
		Filter: protocol.FilterState{
			Type:        "RIGID",
			Seed:        4294967295,
			Octaves:     4,
			Strength:    0.5,
			Roughness:   1.2,
			Lacunarity:  2,
			Persistence: 0.5,
			Center:      [3]float32{0, 1, 2},
		},
	}
}

func TestSchemas_ValidateServerMessages(t *testing.T) {
	regen := protocol.RegenMsg{
		Type:            protocol.TypeRegen,
		ProtocolVersion: protocol.Version,
		ID:              "E1",
		Seq:             3,
		Resolution:      10,
		Layers:          2,
		Min:             0.9,
		Max:             1.4,
		Digest:          "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		DurationMS:      12,
	}
	validateGo(t, compile(t, "regen.schema.json"), regen)

	validateGo(t, compile(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		State: protocol.PlanetState{
			Radius:      1,
			SeaLevel:    1,
			Resolution:  10,
			PlanetColor: [3]float32{1, 1, 1},
			Layers:      []protocol.LayerState{sampleLayer()},
		},
		Regen: &regen,
	})

	validateGo(t, compile(t, "saved.schema.json"), protocol.SavedMsg{
		Type:            protocol.TypeSaved,
		ProtocolVersion: protocol.Version,
		ID:              "S1",
		Path:            "data/saves/terra-1.snap.zst",
	})

	validateGo(t, compile(t, "error.schema.json"), protocol.NewError("E1", protocol.ErrConfig, "warp target out of range"))
}

func TestSchemas_ValidateClientMessages(t *testing.T) {
	validateGo(t, compile(t, "hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "editor",
	})

	v := float32(2.5)
	l := sampleLayer()
	validateGo(t, compile(t, "edit.schema.json"), protocol.EditMsg{
		Type:            protocol.TypeEdit,
		ProtocolVersion: protocol.Version,
		ID:              "E1",
		Ops: []protocol.EditOp{
			{Op: protocol.OpSetRadius, Value: &v},
			{Op: protocol.OpAddLayer, Layer: &l},
			{Op: protocol.OpMoveLayer, Index: 1, To: 0},
		},
	})

	validateGo(t, compile(t, "save.schema.json"), protocol.SaveMsg{
		Type:            protocol.TypeSave,
		ProtocolVersion: protocol.Version,
		Name:            "terra",
	})
}

func TestSchemas_RejectBadEdit(t *testing.T) {
	s := compile(t, "edit.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"EDIT","protocol_version":"1.0","ops":[{"op":"EXPLODE"}]}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected unknown op rejected")
	}
}
