package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/terrain/noise"
)

var samplePoints = []mgl32.Vec3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, -1},
	mgl32.Vec3{1, 1, 1}.Normalize(),
	mgl32.Vec3{-0.3, 0.8, 0.2}.Normalize(),
}

func layerWith(seed uint32, typ noise.FilterType) Layer {
	l := NewLayer()
	l.Filter.SetSeed(seed)
	l.Filter.Type = typ
	l.Filter.Octaves = 3
	l.Filter.Roughness = 1.7
	return l
}

func mustElevation(t *testing.T, g *Generator, p mgl32.Vec3) float32 {
	t.Helper()
	e, err := g.Elevation(p)
	if err != nil {
		t.Fatalf("elevation: %v", err)
	}
	return e
}

func TestConcreteSingleLayerScenario(t *testing.T) {
	g := New()
	g.Radius = 2
	g.SeaLevel = 1

	k := noise.NewKernel(0)
	p := mgl32.Vec3{1, 0, 0}
	want := 2 * (1 + ((k.Evaluate(p) + 1) * 0.5))
	if got := mustElevation(t, g, p); math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("got %v want %v", got, want)
	}
	// K(1,0,0) = -0.76010 for the canonical table.
	if got := mustElevation(t, g, p); math.Abs(float64(got)-2*(1+(1-0.7600995884773656)*0.5)) > 1e-5 {
		t.Fatalf("unexpected absolute elevation %v", got)
	}
}

func TestScalingLaw(t *testing.T) {
	g := New()
	g.Radius = 3.5
	raw := FromLayers(1, g.SeaLevel, g.Layers())
	for _, p := range samplePoints {
		r := mustElevation(t, raw, p) - 1
		want := g.Radius * (1 + r)
		if got := mustElevation(t, g, p); math.Abs(float64(got-want)) > 1e-5 {
			t.Fatalf("p=%v: got %v want %v", p, got, want)
		}
		pos, e, err := g.PointAndElevation(p)
		if err != nil {
			t.Fatalf("point and elevation: %v", err)
		}
		if e != mustElevation(t, g, p) || pos != p.Mul(e) {
			t.Fatalf("p=%v: pos=%v e=%v", p, pos, e)
		}
	}
}

func TestMaskDisabledIgnoresSeaLevel(t *testing.T) {
	base := layerWith(1, noise.Standard)
	detail := layerWith(2, noise.Rigid)
	a := FromLayers(1, -5, []Layer{base, detail})
	b := FromLayers(1, 7, []Layer{base, detail})
	for _, p := range samplePoints {
		if mustElevation(t, a, p) != mustElevation(t, b, p) {
			t.Fatalf("p=%v: sea level leaked into unmasked layer", p)
		}
	}
}

func TestMaskAtSeaLevelOneIsClampedFirstLayer(t *testing.T) {
	base := layerWith(1, noise.Standard)
	base.Filter.Offset = 0.6 // push part of the field below zero
	base.Enabled = false
	detail := layerWith(2, noise.Standard)
	detail.FirstLayerMask = true
	g := FromLayers(1, 1, []Layer{base, detail})

	for _, p := range samplePoints {
		first := base.Filter.Evaluate(p)
		mask := first
		if mask < 0 {
			mask = 0
		}
		want := 1 * (1 + detail.Filter.Evaluate(p)*mask)
		if got := mustElevation(t, g, p); math.Abs(float64(got-want)) > 1e-6 {
			t.Fatalf("p=%v: got %v want %v (first=%v)", p, got, want, first)
		}
	}
}

func TestDisabledBaseStillMasks(t *testing.T) {
	base := layerWith(4, noise.Standard)
	base.Filter.Offset = 5 // base far below sea level: mask is zero
	base.Enabled = false
	detail := layerWith(5, noise.Standard)
	detail.FirstLayerMask = true
	g := FromLayers(2, 1, []Layer{base, detail})
	for _, p := range samplePoints {
		if got := mustElevation(t, g, p); got != 2 {
			t.Fatalf("p=%v: expected fully masked detail, got %v", p, got)
		}
	}
}

func TestWarpLayersNeverContribute(t *testing.T) {
	base := layerWith(1, noise.Standard)
	warp := layerWith(9, noise.Warp)
	warp.IsWarp = true
	warp.WarpTarget = 3 // targets a disabled layer: no visible effect
	off := layerWith(2, noise.Standard)
	off.Enabled = false

	with := FromLayers(1, 1, []Layer{base, warp, off})
	without := FromLayers(1, 1, []Layer{base, off})
	for _, p := range samplePoints {
		if mustElevation(t, with, p) != mustElevation(t, without, p) {
			t.Fatalf("p=%v: warp layer contributed to elevation", p)
		}
	}
}

func TestWarpIsolation(t *testing.T) {
	base := layerWith(1, noise.Standard)
	a := layerWith(2, noise.Standard)
	b := layerWith(3, noise.Rigid)
	warp := layerWith(4, noise.Warp)
	warp.IsWarp = true
	warp.WarpTarget = 2 // layer a

	g := FromLayers(1, 1, []Layer{base, a, b, warp})
	p := samplePoints[3]

	planA, err := g.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if src, ok := planA.WarpSource(1); !ok || src != 3 {
		t.Fatalf("expected layer 1 warped by 3, got %d %v", src, ok)
	}
	if _, ok := planA.WarpSource(2); ok {
		t.Fatalf("layer 2 must not be warped")
	}

	warp.Filter.WarpOffset = mgl32.Vec3{4, -2, 0.5}
	g2 := FromLayers(1, 1, []Layer{base, a, b, warp})

	// Unwarped layers sample the raw point in both generators.
	for _, i := range []int{0, 2} {
		l := g.layers[i]
		if l.Filter.Evaluate(samplePoint(g.layers, mustSources(t, g), i, p)) !=
			l.Filter.Evaluate(samplePoint(g2.layers, mustSources(t, g2), i, p)) {
			t.Fatalf("layer %d changed with warp offset", i)
		}
	}
	if samplePoint(g.layers, mustSources(t, g), 1, p) == samplePoint(g2.layers, mustSources(t, g2), 1, p) {
		t.Fatalf("target layer point did not move")
	}
}

func mustSources(t *testing.T, g *Generator) []int {
	t.Helper()
	src, err := warpSources(g.layers)
	if err != nil {
		t.Fatalf("warp sources: %v", err)
	}
	return src
}

func TestWarpedPosShiftsWholePointPerComponent(t *testing.T) {
	f := noise.NewFilter()
	f.SetSeed(21)
	f.Octaves = 2
	f.WarpOffset = mgl32.Vec3{0.5, -1, 3}
	p := mgl32.Vec3{0.1, 0.2, 0.3}

	got := WarpedPos(p, &f)
	want := mgl32.Vec3{
		f.Evaluate(mgl32.Vec3{p[0] + 0.5, p[1] + 0.5, p[2] + 0.5}),
		f.Evaluate(mgl32.Vec3{p[0] - 1, p[1] - 1, p[2] - 1}),
		f.Evaluate(mgl32.Vec3{p[0] + 3, p[1] + 3, p[2] + 3}),
	}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWarpOnBaseLayer(t *testing.T) {
	base := layerWith(1, noise.Standard)
	warp := layerWith(6, noise.Warp)
	warp.IsWarp = true
	warp.WarpTarget = 1
	g := FromLayers(1, 1, []Layer{base, warp})

	p := samplePoints[1]
	wp := p.Add(WarpedPos(p, &warp.Filter))
	want := 1 * (1 + base.Filter.Evaluate(wp))
	if got := mustElevation(t, g, p); got != want {
		t.Fatalf("got %v want %v", got, want)
	}

	warp.Enabled = false
	g = FromLayers(1, 1, []Layer{base, warp})
	if got := mustElevation(t, g, p); got != 1*(1+base.Filter.Evaluate(p)) {
		t.Fatalf("disabled warp still applied: %v", got)
	}
}

func TestConfigurationErrors(t *testing.T) {
	warp := NewLayer()
	warp.IsWarp = true

	cases := []struct {
		name   string
		layers []Layer
		reason string
	}{
		{"empty", nil, ReasonEmptyLayers},
		{"target zero", []Layer{NewLayer(), warp}, ReasonWarpTargetRange},
		{"target past end", []Layer{NewLayer(), func() Layer { w := warp; w.WarpTarget = 3; return w }()}, ReasonWarpTargetRange},
		{"disabled warp still checked", []Layer{NewLayer(), func() Layer { w := warp; w.WarpTarget = 9; w.Enabled = false; return w }()}, ReasonWarpTargetRange},
		{"too many", make17(), ReasonTooManyLayers},
	}
	for _, c := range cases {
		g := FromLayers(1, 1, c.layers)
		_, err := g.Elevation(mgl32.Vec3{1, 0, 0})
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("%s: expected ConfigurationError, got %v", c.name, err)
		}
		if cerr.Reason != c.reason {
			t.Fatalf("%s: reason %s want %s", c.name, cerr.Reason, c.reason)
		}
		if _, err := g.Plan(); err == nil {
			t.Fatalf("%s: plan accepted invalid generator", c.name)
		}
	}
}

func make17() []Layer {
	ls := make([]Layer, MaxLayers+1)
	for i := range ls {
		ls[i] = NewLayer()
	}
	return ls
}

func TestPlanMatchesGenerator(t *testing.T) {
	base := layerWith(1, noise.Standard)
	ridge := layerWith(2, noise.Rigid)
	ridge.FirstLayerMask = true
	warp := layerWith(3, noise.Warp)
	warp.IsWarp = true
	warp.WarpTarget = 2
	warp.Filter.WarpOffset = mgl32.Vec3{1, 2, 3}
	g := FromLayers(1.5, 0.8, []Layer{base, ridge, warp})

	plan, err := g.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	g.Radius = 99 // later edits must not leak into the plan
	for _, p := range samplePoints {
		want := mustElevation(t, FromLayers(1.5, 0.8, []Layer{base, ridge, warp}), p)
		if got := plan.Elevation(p); got != want {
			t.Fatalf("p=%v: plan %v generator %v", p, got, want)
		}
	}
}

func TestLayerEditing(t *testing.T) {
	g := New()
	for i := 1; i < MaxLayers; i++ {
		if err := g.AddLayer(layerWith(uint32(i), noise.Standard)); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := g.AddLayer(NewLayer()); err == nil {
		t.Fatalf("expected capacity error")
	}

	if err := g.MoveLayer(3, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	l, _ := g.Layer(0)
	if l.Filter.Seed() != 3 {
		t.Fatalf("expected seed 3 at front, got %d", l.Filter.Seed())
	}
	l, _ = g.Layer(3)
	if l.Filter.Seed() != 2 {
		t.Fatalf("expected seed 2 shifted to index 3, got %d", l.Filter.Seed())
	}

	if err := g.RemoveLayer(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if g.LayerCount() != MaxLayers-1 {
		t.Fatalf("unexpected count %d", g.LayerCount())
	}
	if _, err := g.Layer(MaxLayers); err == nil {
		t.Fatalf("expected index error")
	}

	if err := g.SetSeed(0, 1234); err != nil {
		t.Fatalf("set seed: %v", err)
	}
	l, _ = g.Layer(0)
	if l.Filter.Kernel().Table() != noise.NewKernel(1234).Table() {
		t.Fatalf("kernel not rebuilt")
	}

	one := New()
	if err := one.RemoveLayer(0); err == nil {
		t.Fatalf("expected refusal to remove last layer")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := New()
	c := g.Clone()
	if err := c.SetSeed(0, 5); err != nil {
		t.Fatalf("set seed: %v", err)
	}
	c.Radius = 4
	l, _ := g.Layer(0)
	if l.Filter.Seed() != 0 || g.Radius != DefaultRadius {
		t.Fatalf("clone mutation leaked into original")
	}
}
