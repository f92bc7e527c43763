// Package layerbuf mirrors a shape generator into a flat, fixed-capacity
// record buffer that another execution target can evaluate without access
// to the generator itself.
package layerbuf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dgravesa/go-parallel/parallel"
	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/terrain/noise"
	"planetgen/internal/terrain/shape"
)

// Capacity is the fixed number of layer slots in a Buffer.
const Capacity = shape.MaxLayers

// Record is one layer slot. Booleans are stored as 0/1 int32 so the layout
// has no padding surprises.
type Record struct {
	Perm       [noise.PermSize]int32
	FilterType uint32

	Octaves     int32
	Strength    float32
	Roughness   float32
	Lacunarity  float32
	Persistence float32
	Offset      float32
	Floor       float32

	Center         mgl32.Vec3
	WarpTarget     int32
	WarpOffset     mgl32.Vec3
	FirstLayerMask int32

	Enabled int32
	IsWarp  int32
	Seed    uint32
}

// Buffer is the full mirror. Slots at or past Count are zero.
type Buffer struct {
	Radius   float32
	SeaLevel float32
	Count    uint32
	Layers   [Capacity]Record
}

// Size is the encoded length of a Buffer in bytes.
var Size = binary.Size(Buffer{})

// Pack copies g into a new buffer. The generator must be valid.
func Pack(g *shape.Generator) (*Buffer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	b := &Buffer{
		Radius:   g.Radius,
		SeaLevel: g.SeaLevel,
		Count:    uint32(g.LayerCount()),
	}
	for i, l := range g.Layers() {
		f := &l.Filter
		b.Layers[i] = Record{
			Perm:           f.Kernel().Table(),
			FilterType:     uint32(f.Type),
			Octaves:        f.Octaves,
			Strength:       f.Strength,
			Roughness:      f.Roughness,
			Lacunarity:     f.Lacunarity,
			Persistence:    f.Persistence,
			Offset:         f.Offset,
			Floor:          f.Floor,
			Center:         f.Center,
			WarpTarget:     int32(l.WarpTarget),
			WarpOffset:     f.WarpOffset,
			FirstLayerMask: boolInt(l.FirstLayerMask),
			Enabled:        boolInt(l.Enabled),
			IsWarp:         boolInt(l.IsWarp),
			Seed:           f.Seed(),
		}
	}
	return b, nil
}

// Unpack rebuilds a generator from the buffer. Kernels come from the stored
// tables rather than being re-derived from the seed.
func Unpack(b *Buffer) (*shape.Generator, error) {
	if b.Count == 0 || b.Count > Capacity {
		return nil, &shape.ConfigurationError{
			Reason: shape.ReasonTooManyLayers,
			Index:  int(b.Count),
			Detail: fmt.Sprintf("buffer count %d, want 1..%d", b.Count, Capacity),
		}
	}
	layers := make([]shape.Layer, b.Count)
	for i := range layers {
		r := &b.Layers[i]
		if r.FilterType > uint32(noise.Warp) {
			return nil, fmt.Errorf("layer %d: unknown filter type %d", i, r.FilterType)
		}
		if r.WarpTarget < 0 {
			return nil, &shape.ConfigurationError{
				Reason: shape.ReasonWarpTargetRange,
				Index:  i,
				Detail: fmt.Sprintf("negative warp target %d", r.WarpTarget),
			}
		}
		f := noise.Filter{
			Type:        noise.FilterType(r.FilterType),
			Octaves:     r.Octaves,
			Strength:    r.Strength,
			Roughness:   r.Roughness,
			Lacunarity:  r.Lacunarity,
			Persistence: r.Persistence,
			Offset:      r.Offset,
			Floor:       r.Floor,
			Center:      r.Center,
			WarpOffset:  r.WarpOffset,
		}
		layers[i] = shape.Layer{
			Filter:         f.WithKernel(r.Seed, noise.KernelFromTable(r.Perm)),
			IsWarp:         r.IsWarp != 0,
			WarpTarget:     uint32(r.WarpTarget),
			FirstLayerMask: r.FirstLayerMask != 0,
			Enabled:        r.Enabled != 0,
		}
	}
	g := shape.FromLayers(b.Radius, b.SeaLevel, layers)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Evaluate computes the elevation of every point from the mirror alone,
// spreading points across a goroutine pool.
func (b *Buffer) Evaluate(points []mgl32.Vec3) ([]float32, error) {
	g, err := Unpack(b)
	if err != nil {
		return nil, err
	}
	plan, err := g.Plan()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(points))
	if len(points) == 0 {
		return out, nil
	}
	parallel.For(len(points), func(i, _ int) {
		out[i] = plan.Elevation(points[i])
	})
	return out, nil
}

func (b *Buffer) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(Size)
	if err := binary.Write(&buf, binary.LittleEndian, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Buffer) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("layer buffer: got %d bytes, want %d", len(data), Size)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, b)
}

func boolInt(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
