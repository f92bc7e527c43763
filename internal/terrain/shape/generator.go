package shape

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/terrain/noise"
)

const (
	DefaultRadius   float32 = 1
	DefaultSeaLevel float32 = 1
)

// Generator composes an ordered layer list into an elevation field over
// the unit sphere. Layer 0 is the base layer: it is always sampled so later
// layers can be masked by it, and only adds to the elevation when enabled.
//
// A Generator has no internal locking. Structural edits must not race with
// evaluation; batch callers should take a Plan, which owns a private copy.
type Generator struct {
	Radius   float32
	SeaLevel float32

	layers []Layer
}

// New returns a generator with one default layer.
func New() *Generator {
	return &Generator{
		Radius:   DefaultRadius,
		SeaLevel: DefaultSeaLevel,
		layers:   []Layer{NewLayer()},
	}
}

// FromLayers builds a generator around layers without validating them;
// invalid configurations surface as a ConfigurationError on evaluation.
func FromLayers(radius, seaLevel float32, layers []Layer) *Generator {
	ls := make([]Layer, len(layers))
	copy(ls, layers)
	return &Generator{Radius: radius, SeaLevel: seaLevel, layers: ls}
}

// Clone returns a deep copy.
func (g *Generator) Clone() *Generator {
	return FromLayers(g.Radius, g.SeaLevel, g.layers)
}

func (g *Generator) LayerCount() int { return len(g.layers) }

// Layers returns a copy of the layer list.
func (g *Generator) Layers() []Layer {
	out := make([]Layer, len(g.layers))
	copy(out, g.layers)
	return out
}

// Layer returns the layer at the 0-based index i.
func (g *Generator) Layer(i int) (Layer, error) {
	if i < 0 || i >= len(g.layers) {
		return Layer{}, configErr(ReasonLayerIndexRange, i, "layer %d of %d", i, len(g.layers))
	}
	return g.layers[i], nil
}

// SetLayer replaces the layer at i.
func (g *Generator) SetLayer(i int, l Layer) error {
	if i < 0 || i >= len(g.layers) {
		return configErr(ReasonLayerIndexRange, i, "layer %d of %d", i, len(g.layers))
	}
	g.layers[i] = l
	return nil
}

// AddLayer appends l.
func (g *Generator) AddLayer(l Layer) error {
	if len(g.layers) >= MaxLayers {
		return configErr(ReasonTooManyLayers, len(g.layers), "at most %d layers", MaxLayers)
	}
	g.layers = append(g.layers, l)
	return nil
}

// RemoveLayer deletes the layer at i. The last remaining layer cannot be
// removed. Warp targets of other layers are left as stored.
func (g *Generator) RemoveLayer(i int) error {
	if i < 0 || i >= len(g.layers) {
		return configErr(ReasonLayerIndexRange, i, "layer %d of %d", i, len(g.layers))
	}
	if len(g.layers) == 1 {
		return configErr(ReasonEmptyLayers, i, "cannot remove the only layer")
	}
	g.layers = append(g.layers[:i], g.layers[i+1:]...)
	return nil
}

// MoveLayer moves the layer at from so it ends up at index to.
func (g *Generator) MoveLayer(from, to int) error {
	n := len(g.layers)
	if from < 0 || from >= n {
		return configErr(ReasonLayerIndexRange, from, "layer %d of %d", from, n)
	}
	if to < 0 || to >= n {
		return configErr(ReasonLayerIndexRange, to, "layer %d of %d", to, n)
	}
	if from == to {
		return nil
	}
	l := g.layers[from]
	g.layers = append(g.layers[:from], g.layers[from+1:]...)
	g.layers = append(g.layers[:to], append([]Layer{l}, g.layers[to:]...)...)
	return nil
}

// SetSeed reseeds the filter of layer i, rebuilding its kernel.
func (g *Generator) SetSeed(i int, seed uint32) error {
	if i < 0 || i >= len(g.layers) {
		return configErr(ReasonLayerIndexRange, i, "layer %d of %d", i, len(g.layers))
	}
	g.layers[i].Filter.SetSeed(seed)
	return nil
}

// Validate checks the structural invariants composition relies on.
func (g *Generator) Validate() error {
	_, err := warpSources(g.layers)
	return err
}

// Elevation validates the generator and returns the elevation at a point on
// the unit sphere.
func (g *Generator) Elevation(p mgl32.Vec3) (float32, error) {
	src, err := warpSources(g.layers)
	if err != nil {
		return 0, err
	}
	return compose(g.Radius, g.SeaLevel, g.layers, src, p), nil
}

// PointAndElevation returns the displaced position p*elevation together
// with the elevation.
func (g *Generator) PointAndElevation(p mgl32.Vec3) (mgl32.Vec3, float32, error) {
	e, err := g.Elevation(p)
	if err != nil {
		return mgl32.Vec3{}, 0, err
	}
	return p.Mul(e), e, nil
}

// Plan validates the generator once and returns an immutable snapshot safe
// for concurrent evaluation.
func (g *Generator) Plan() (*Plan, error) {
	src, err := warpSources(g.layers)
	if err != nil {
		return nil, err
	}
	return &Plan{
		radius:   g.Radius,
		seaLevel: g.SeaLevel,
		layers:   g.Layers(),
		warpSrc:  src,
	}, nil
}

// Plan is a validated, read-only view of a Generator.
type Plan struct {
	radius   float32
	seaLevel float32
	layers   []Layer
	warpSrc  []int
}

func (p *Plan) Radius() float32   { return p.radius }
func (p *Plan) SeaLevel() float32 { return p.seaLevel }
func (p *Plan) LayerCount() int   { return len(p.layers) }

// Elevation is total over the plan's validated configuration.
func (p *Plan) Elevation(pt mgl32.Vec3) float32 {
	return compose(p.radius, p.seaLevel, p.layers, p.warpSrc, pt)
}

func (p *Plan) PointAndElevation(pt mgl32.Vec3) (mgl32.Vec3, float32) {
	e := p.Elevation(pt)
	return pt.Mul(e), e
}

// WarpSource reports which layer perturbs layer i, if any.
func (p *Plan) WarpSource(i int) (int, bool) {
	if i < 0 || i >= len(p.warpSrc) || p.warpSrc[i] < 0 {
		return 0, false
	}
	return p.warpSrc[i], true
}

// warpSources maps each layer index to the enabled warp layer perturbing
// it, or -1. When several warp layers share a target the last one wins.
func warpSources(layers []Layer) ([]int, error) {
	n := len(layers)
	if n == 0 {
		return nil, configErr(ReasonEmptyLayers, 0, "no layers")
	}
	if n > MaxLayers {
		return nil, configErr(ReasonTooManyLayers, n, "%d layers, at most %d", n, MaxLayers)
	}
	src := make([]int, n)
	for i := range src {
		src[i] = -1
	}
	for i := range layers {
		l := &layers[i]
		if !l.IsWarp {
			continue
		}
		if l.WarpTarget < 1 || int(l.WarpTarget) > n {
			return nil, configErr(ReasonWarpTargetRange, i, "layer %d targets %d, want 1..%d", i, l.WarpTarget, n)
		}
		if l.Enabled {
			src[l.WarpTarget-1] = i
		}
	}
	return src, nil
}

func compose(radius, seaLevel float32, layers []Layer, warpSrc []int, p mgl32.Vec3) float32 {
	first := layers[0].Filter.Evaluate(samplePoint(layers, warpSrc, 0, p))
	var acc float32
	if layers[0].Enabled {
		acc = first
	}
	for i := 1; i < len(layers); i++ {
		l := &layers[i]
		if l.IsWarp || !l.Enabled {
			continue
		}
		mask := float32(1)
		if l.FirstLayerMask {
			mask = math32.Max(0, first-seaLevel+1)
		}
		acc += l.Filter.Evaluate(samplePoint(layers, warpSrc, i, p)) * mask
	}
	return radius * (1 + acc)
}

func samplePoint(layers []Layer, warpSrc []int, i int, p mgl32.Vec3) mgl32.Vec3 {
	s := warpSrc[i]
	if s < 0 {
		return p
	}
	return p.Add(WarpedPos(p, &layers[s].Filter))
}

// WarpedPos evaluates the warp filter three times, each time shifting the
// whole point by one scalar component of WarpOffset, and returns the three
// results as a displacement vector.
func WarpedPos(p mgl32.Vec3, warp *noise.Filter) mgl32.Vec3 {
	o := warp.WarpOffset
	return mgl32.Vec3{
		warp.Evaluate(shift(p, o[0])),
		warp.Evaluate(shift(p, o[1])),
		warp.Evaluate(shift(p, o[2])),
	}
}

func shift(p mgl32.Vec3, s float32) mgl32.Vec3 {
	return mgl32.Vec3{p[0] + s, p[1] + s, p[2] + s}
}
