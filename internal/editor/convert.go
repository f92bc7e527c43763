package editor

import (
	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/protocol"
	"planetgen/internal/terrain/noise"
	"planetgen/internal/terrain/shape"
)

func layerState(l shape.Layer) protocol.LayerState {
	f := l.Filter
	return protocol.LayerState{
		Enabled:        l.Enabled,
		FirstLayerMask: l.FirstLayerMask,
		IsWarp:         l.IsWarp,
		WarpTarget:     l.WarpTarget,
		Filter: protocol.FilterState{
			Type:        f.Type.String(),
			Seed:        f.Seed(),
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
	}
}

func layerFromState(s protocol.LayerState) (shape.Layer, error) {
	typ, err := noise.ParseFilterType(s.Filter.Type)
	if err != nil {
		return shape.Layer{}, err
	}
	f := noise.Filter{
		Type:        typ,
		Octaves:     s.Filter.Octaves,
		Strength:    s.Filter.Strength,
		Roughness:   s.Filter.Roughness,
		Lacunarity:  s.Filter.Lacunarity,
		Persistence: s.Filter.Persistence,
		Offset:      s.Filter.Offset,
		Floor:       s.Filter.Floor,
		Center:      mgl32.Vec3(s.Filter.Center),
		WarpOffset:  mgl32.Vec3(s.Filter.WarpOffset),
	}
	f.SetSeed(s.Filter.Seed)
	return shape.Layer{
		Filter:         f,
		IsWarp:         s.IsWarp,
		WarpTarget:     s.WarpTarget,
		FirstLayerMask: s.FirstLayerMask,
		Enabled:        s.Enabled,
	}, nil
}
