package tuning

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"planetgen/internal/terrain/noise"
	"planetgen/internal/terrain/shape"
)

type Planet struct {
	Radius     float32 `yaml:"radius"`
	SeaLevel   float32 `yaml:"sea_level"`
	Resolution int     `yaml:"resolution"`

	PlanetColor   [3]float32 `yaml:"planet_color"`
	LightEulerRot [3]float32 `yaml:"light_euler_rot"`

	Layers []Layer `yaml:"layers"`
}

type Layer struct {
	// Enabled defaults to true when omitted.
	Enabled        *bool  `yaml:"enabled"`
	FirstLayerMask bool   `yaml:"first_layer_mask"`
	IsWarp         bool   `yaml:"is_warp"`
	WarpTarget     uint32 `yaml:"warp_target"`
	Filter         Filter `yaml:"filter"`
}

type Filter struct {
	Type        string     `yaml:"type"`
	Seed        uint32     `yaml:"seed"`
	Octaves     int32      `yaml:"octaves"`
	Strength    float32    `yaml:"strength"`
	Roughness   float32    `yaml:"roughness"`
	Lacunarity  float32    `yaml:"lacunarity"`
	Persistence float32    `yaml:"persistence"`
	Offset      float32    `yaml:"offset"`
	Floor       float32    `yaml:"floor"`
	Center      [3]float32 `yaml:"center"`
	WarpOffset  [3]float32 `yaml:"warp_offset"`
}

// Defaults matches shape.New plus the default render settings.
func Defaults() Planet {
	f := noise.NewFilter()
	return Planet{
		Radius:      shape.DefaultRadius,
		SeaLevel:    shape.DefaultSeaLevel,
		Resolution:  10,
		PlanetColor: [3]float32{1, 1, 1},
		Layers: []Layer{{
			Filter: Filter{
				Type:        f.Type.String(),
				Octaves:     f.Octaves,
				Strength:    f.Strength,
				Roughness:   f.Roughness,
				Lacunarity:  f.Lacunarity,
				Persistence: f.Persistence,
			},
		}},
	}
}

func Load(path string) (Planet, error) {
	var p Planet
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("planet.yaml: %w", err)
	}
	if p.Resolution == 0 {
		p.Resolution = Defaults().Resolution
	}
	return p, nil
}

// Build converts the config into a validated generator.
func (p Planet) Build() (*shape.Generator, error) {
	layers := make([]shape.Layer, 0, len(p.Layers))
	for i, lc := range p.Layers {
		l, err := lc.Build()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers = append(layers, l)
	}
	g := shape.FromLayers(p.Radius, p.SeaLevel, layers)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (lc Layer) Build() (shape.Layer, error) {
	typ, err := noise.ParseFilterType(lc.Filter.Type)
	if err != nil {
		return shape.Layer{}, err
	}
	f := noise.Filter{
		Type:        typ,
		Octaves:     lc.Filter.Octaves,
		Strength:    lc.Filter.Strength,
		Roughness:   lc.Filter.Roughness,
		Lacunarity:  lc.Filter.Lacunarity,
		Persistence: lc.Filter.Persistence,
		Offset:      lc.Filter.Offset,
		Floor:       lc.Filter.Floor,
		Center:      mgl32.Vec3(lc.Filter.Center),
		WarpOffset:  mgl32.Vec3(lc.Filter.WarpOffset),
	}
	f.SetSeed(lc.Filter.Seed)
	enabled := true
	if lc.Enabled != nil {
		enabled = *lc.Enabled
	}
	return shape.Layer{
		Filter:         f,
		IsWarp:         lc.IsWarp,
		WarpTarget:     lc.WarpTarget,
		FirstLayerMask: lc.FirstLayerMask,
		Enabled:        enabled,
	}, nil
}
