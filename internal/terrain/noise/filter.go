package noise

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// FilterType selects how a Filter accumulates octaves.
type FilterType uint32

const (
	Standard FilterType = iota
	Rigid
	Warp
)

func (t FilterType) String() string {
	switch t {
	case Standard:
		return "STANDARD"
	case Rigid:
		return "RIGID"
	case Warp:
		return "WARP"
	default:
		return fmt.Sprintf("FilterType(%d)", uint32(t))
	}
}

// ParseFilterType is the inverse of FilterType.String.
func ParseFilterType(s string) (FilterType, error) {
	switch s {
	case "STANDARD", "":
		return Standard, nil
	case "RIGID":
		return Rigid, nil
	case "WARP":
		return Warp, nil
	default:
		return Standard, fmt.Errorf("unknown filter type %q", s)
	}
}

// Filter is a fractal evaluator over a seeded Kernel.
//
// Floor is carried through persistence and the layer mirror but no
// evaluation path reads it.
type Filter struct {
	kernel Kernel
	seed   uint32

	Type        FilterType
	Octaves     int32
	Strength    float32
	Roughness   float32
	Lacunarity  float32
	Persistence float32
	Offset      float32
	Floor       float32
	Center      mgl32.Vec3
	WarpOffset  mgl32.Vec3
}

// NewFilter returns the default filter: one Standard octave over the seed 0
// kernel.
func NewFilter() Filter {
	return Filter{
		kernel:      NewKernel(0),
		Type:        Standard,
		Octaves:     1,
		Strength:    1,
		Roughness:   1,
		Lacunarity:  2,
		Persistence: 0.5,
	}
}

// Seed reports the seed the kernel was built from.
func (f *Filter) Seed() uint32 { return f.seed }

// SetSeed stores seed and rebuilds the kernel from it.
func (f *Filter) SetSeed(seed uint32) {
	f.seed = seed
	f.kernel = NewKernel(seed)
}

// Kernel exposes the filter's kernel for mirroring.
func (f *Filter) Kernel() *Kernel { return &f.kernel }

// WithKernel returns a copy of f evaluating over k. The seed is kept as
// given; callers are responsible for k matching it.
func (f Filter) WithKernel(seed uint32, k Kernel) Filter {
	f.seed = seed
	f.kernel = k
	return f
}

// Evaluate samples the filter at p. A filter with no octaves evaluates to 0
// regardless of Offset.
func (f *Filter) Evaluate(p mgl32.Vec3) float32 {
	if f.Octaves <= 0 {
		return 0
	}
	switch f.Type {
	case Rigid:
		return f.rigid(p)
	case Standard, Warp:
		return f.standard(p)
	default:
		panic(fmt.Sprintf("noise: unhandled filter type %d", f.Type))
	}
}

func (f *Filter) standard(p mgl32.Vec3) float32 {
	var sum float32
	freq := f.Roughness
	var amp float32 = 1
	for o := int32(0); o < f.Octaves; o++ {
		v := f.kernel.Evaluate(p.Mul(freq).Add(f.Center))
		sum += (v + 1) * 0.5 * amp
		freq *= f.Lacunarity
		amp *= f.Persistence
	}
	return sum*f.Strength - f.Offset
}

func (f *Filter) rigid(p mgl32.Vec3) float32 {
	var sum float32
	freq := f.Roughness
	var amp float32 = 1
	var weight float32 = 1
	for o := int32(0); o < f.Octaves; o++ {
		v := RidgeValue(f.kernel.Evaluate(p.Mul(freq).Add(f.Center)))
		v = v * v * weight
		weight = v
		sum += v * amp
		freq *= f.Lacunarity
		amp *= f.Persistence
	}
	return sum*f.Strength - f.Offset
}

// RidgeValue folds a raw kernel sample into the ridge profile 1-|n|.
func RidgeValue(n float32) float32 {
	return 1 - math32.Abs(n)
}
