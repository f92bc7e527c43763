package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"planetgen/internal/terrain/noise"
	"planetgen/internal/terrain/shape"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	Name    string `json:"name,omitempty"`
	SavedAt string `json:"saved_at"`
	Layers  int    `json:"layers"`
}

// SaveStateV1 is the full editor save. Permutation tables are never stored;
// Import rebuilds each kernel from its seed.
type SaveStateV1 struct {
	Header Header `json:"header"`

	Shape  ShapeV1  `json:"shape"`
	Colors ColorsV1 `json:"colors"`
	Render RenderV1 `json:"render"`
}

type ShapeV1 struct {
	Radius   float32   `json:"radius"`
	SeaLevel float32   `json:"sea_level"`
	Layers   []LayerV1 `json:"layers"`
}

type LayerV1 struct {
	Filter         FilterV1 `json:"filter"`
	IsWarp         bool     `json:"is_warp"`
	WarpTarget     uint32   `json:"warp_target"`
	FirstLayerMask bool     `json:"first_layer_mask"`
	Enabled        bool     `json:"enabled"`
}

type FilterV1 struct {
	Seed        uint32     `json:"seed"`
	Type        uint32     `json:"type"`
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

type ColorsV1 struct {
	PlanetColor [3]float32 `json:"planet_color"`
}

type RenderV1 struct {
	PlanetResolution int        `json:"planet_resolution"`
	LightEulerRot    [3]float32 `json:"light_euler_rot"`
}

// Export captures the structural state of g.
func Export(g *shape.Generator) ShapeV1 {
	s := ShapeV1{Radius: g.Radius, SeaLevel: g.SeaLevel}
	for _, l := range g.Layers() {
		f := l.Filter
		s.Layers = append(s.Layers, LayerV1{
			Filter: FilterV1{
				Seed:        f.Seed(),
				Type:        uint32(f.Type),
				Octaves:     f.Octaves,
				Strength:    f.Strength,
				Roughness:   f.Roughness,
				Lacunarity:  f.Lacunarity,
				Persistence: f.Persistence,
				Offset:      f.Offset,
				Floor:       f.Floor,
				Center:      f.Center,
				WarpOffset:  f.WarpOffset,
			},
			IsWarp:         l.IsWarp,
			WarpTarget:     l.WarpTarget,
			FirstLayerMask: l.FirstLayerMask,
			Enabled:        l.Enabled,
		})
	}
	return s
}

// Import rebuilds a generator, deriving every kernel from its stored seed.
func Import(s ShapeV1) (*shape.Generator, error) {
	layers := make([]shape.Layer, 0, len(s.Layers))
	for i, lv := range s.Layers {
		if lv.Filter.Type > uint32(noise.Warp) {
			return nil, fmt.Errorf("layer %d: unknown filter type %d", i, lv.Filter.Type)
		}
		f := noise.Filter{
			Type:        noise.FilterType(lv.Filter.Type),
			Octaves:     lv.Filter.Octaves,
			Strength:    lv.Filter.Strength,
			Roughness:   lv.Filter.Roughness,
			Lacunarity:  lv.Filter.Lacunarity,
			Persistence: lv.Filter.Persistence,
			Offset:      lv.Filter.Offset,
			Floor:       lv.Filter.Floor,
			Center:      mgl32.Vec3(lv.Filter.Center),
			WarpOffset:  mgl32.Vec3(lv.Filter.WarpOffset),
		}
		f.SetSeed(lv.Filter.Seed)
		layers = append(layers, shape.Layer{
			Filter:         f,
			IsWarp:         lv.IsWarp,
			WarpTarget:     lv.WarpTarget,
			FirstLayerMask: lv.FirstLayerMask,
			Enabled:        lv.Enabled,
		})
	}
	g := shape.FromLayers(s.Radius, s.SeaLevel, layers)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewSaveState wraps the current editor state, stamping the header.
func NewSaveState(name string, g *shape.Generator, colors ColorsV1, render RenderV1) SaveStateV1 {
	return SaveStateV1{
		Header: Header{
			Version: Version,
			Name:    name,
			SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
			Layers:  g.LayerCount(),
		},
		Shape:  Export(g),
		Colors: colors,
		Render: render,
	}
}

func WriteSnapshot(path string, snap SaveStateV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SaveStateV1, error) {
	var snap SaveStateV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is for tooling; gob carries it again.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
