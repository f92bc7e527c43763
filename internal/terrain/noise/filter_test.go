package noise

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestStandardOneOctaveReduction(t *testing.T) {
	f := NewFilter()
	f.SetSeed(1337)
	f.Octaves = 1
	f.Persistence = 1
	f.Lacunarity = 1
	f.Roughness = 2.5
	f.Strength = 0.75
	f.Offset = 0.1
	f.Center = mgl32.Vec3{0.5, -1, 2}

	k := NewKernel(1337)
	for _, p := range []mgl32.Vec3{{1, 0, 0}, {0, 0.6, 0.8}, {-0.3, 0.2, 0.93}} {
		want := (k.Evaluate(p.Mul(f.Roughness).Add(f.Center))+1)*0.5*f.Strength - f.Offset
		if got := f.Evaluate(p); got != want {
			t.Fatalf("p=%v: got %v want %v", p, got, want)
		}
	}
}

func TestStandardAccumulatesOctaves(t *testing.T) {
	f := NewFilter()
	f.Octaves = 3
	f.Roughness = 1.5
	f.Lacunarity = 2
	f.Persistence = 0.5

	k := NewKernel(0)
	p := mgl32.Vec3{0.2, 0.4, -0.9}
	var sum float32
	freq, amp := f.Roughness, float32(1)
	for i := 0; i < 3; i++ {
		sum += (k.Evaluate(p.Mul(freq).Add(f.Center)) + 1) * 0.5 * amp
		freq *= f.Lacunarity
		amp *= f.Persistence
	}
	if got := f.Evaluate(p); got != sum*f.Strength-f.Offset {
		t.Fatalf("got %v want %v", got, sum)
	}
}

func TestNonPositiveOctavesYieldZero(t *testing.T) {
	for _, typ := range []FilterType{Standard, Rigid, Warp} {
		for _, oct := range []int32{0, -3} {
			f := NewFilter()
			f.Type = typ
			f.Octaves = oct
			f.Offset = 0.4
			if got := f.Evaluate(mgl32.Vec3{1, 0, 0}); got != 0 {
				t.Fatalf("%s octaves=%d: got %v", typ, oct, got)
			}
		}
	}
}

func TestRigidRawValueWithinUnitInterval(t *testing.T) {
	k := NewKernel(5)
	for i := 0; i < 2000; i++ {
		a := float32(i) * 0.013
		p := mgl32.Vec3{a, a * 1.7, -a * 0.3}
		v := RidgeValue(k.Evaluate(p))
		if v < 0 || v > 1 {
			t.Fatalf("p=%v: ridge value %v outside [0,1]", p, v)
		}
	}
}

func TestRigidWeightFeedback(t *testing.T) {
	f := NewFilter()
	f.Type = Rigid
	f.SetSeed(3)
	f.Octaves = 2
	f.Roughness = 1
	f.Lacunarity = 2
	f.Persistence = 0.5

	k := NewKernel(3)
	p := mgl32.Vec3{0.6, 0.8, 0}
	v1 := RidgeValue(k.Evaluate(p))
	v1 = v1 * v1
	v2 := RidgeValue(k.Evaluate(p.Mul(2)))
	v2 = v2 * v2 * v1
	want := v1 + v2*0.5
	if got := f.Evaluate(p); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWarpEvaluatesLikeStandard(t *testing.T) {
	std := NewFilter()
	std.SetSeed(11)
	std.Octaves = 4
	std.Roughness = 1.3
	warp := std
	warp.Type = Warp
	p := mgl32.Vec3{0.1, -0.7, 0.7}
	if math.Float32bits(std.Evaluate(p)) != math.Float32bits(warp.Evaluate(p)) {
		t.Fatalf("warp filter diverged from standard")
	}
}

func TestFloorIsInert(t *testing.T) {
	f := NewFilter()
	f.Octaves = 2
	p := mgl32.Vec3{0, 1, 0}
	before := f.Evaluate(p)
	f.Floor = 10
	if after := f.Evaluate(p); after != before {
		t.Fatalf("floor changed evaluation: %v -> %v", before, after)
	}
}

func TestSetSeedRebuildsKernel(t *testing.T) {
	f := NewFilter()
	f.SetSeed(77)
	if f.Seed() != 77 {
		t.Fatalf("seed not stored")
	}
	if f.Kernel().Table() != NewKernel(77).Table() {
		t.Fatalf("kernel not rebuilt for seed")
	}
}

func TestParseFilterType(t *testing.T) {
	for _, typ := range []FilterType{Standard, Rigid, Warp} {
		got, err := ParseFilterType(typ.String())
		if err != nil || got != typ {
			t.Fatalf("parse %s: got %v err=%v", typ, got, err)
		}
	}
	if _, err := ParseFilterType("BILLOW"); err == nil {
		t.Fatalf("expected unknown type rejected")
	}
}
