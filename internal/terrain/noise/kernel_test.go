package noise

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewKernelSeedZeroIsCanonicalTable(t *testing.T) {
	k := NewKernel(0)
	tab := k.Table()
	for i := 0; i < TableSize; i++ {
		if tab[i] != source[i] || tab[i+TableSize] != source[i] {
			t.Fatalf("entry %d: got %d/%d want %d", i, tab[i], tab[i+TableSize], source[i])
		}
	}
}

func TestNewKernelSeedXorsAllFourBytes(t *testing.T) {
	seed := uint32(0x04030201)
	tab := NewKernel(seed).Table()
	mask := int32(0x01 ^ 0x02 ^ 0x03 ^ 0x04)
	for i := 0; i < TableSize; i++ {
		want := source[i] ^ mask
		if tab[i] != want || tab[i+TableSize] != want {
			t.Fatalf("entry %d: got %d/%d want %d", i, tab[i], tab[i+TableSize], want)
		}
	}

	// 1337 = 0x0539 -> 0x39 ^ 0x05 = 60.
	tab = NewKernel(1337).Table()
	if tab[0] != 171 || tab[1] != 156 || tab[2] != 181 || tab[3] != 103 {
		t.Fatalf("unexpected seeded prefix: %v", tab[:4])
	}
}

func TestNewKernelXorNoOpSeedKeepsCanonicalTable(t *testing.T) {
	// Bytes 0x0f,0x0f cancel out under XOR.
	canon := NewKernel(0).Table()
	if got := NewKernel(0x0f0f).Table(); got != canon {
		t.Fatalf("expected XOR-neutral seed to reproduce canonical table")
	}
	if got := NewKernel(7).Table(); got == canon {
		t.Fatalf("expected seed 7 to change the table")
	}
}

func TestKernelEvaluateDeterministic(t *testing.T) {
	pts := []mgl32.Vec3{{1, 0, 0}, {0.3, 0.7, -1.2}, {-2.5, 4.25, 0.125}, {100.5, -33.25, 7}}
	for _, seed := range []uint32{0, 1, 1337, 0xdeadbeef} {
		a := NewKernel(seed)
		b := NewKernel(seed)
		for _, p := range pts {
			va, vb := a.Evaluate(p), b.Evaluate(p)
			if math.Float32bits(va) != math.Float32bits(vb) {
				t.Fatalf("seed %d p=%v: %v != %v", seed, p, va, vb)
			}
		}
	}
}

func TestKernelEvaluateKnownValues(t *testing.T) {
	cases := []struct {
		seed uint32
		p    mgl32.Vec3
		want float64
	}{
		{0, mgl32.Vec3{1, 0, 0}, -0.7600995884773656},
		{0, mgl32.Vec3{0.3, 0.7, -1.2}, 0.18270874627160488},
		{0, mgl32.Vec3{-2.5, 4.25, 0.125}, 0.582243712234497},
		{1337, mgl32.Vec3{0.3, 0.7, -1.2}, -0.3597104582057615},
		{1337, mgl32.Vec3{-2.5, 4.25, 0.125}, -0.29980603040059456},
	}
	for _, c := range cases {
		k := NewKernel(c.seed)
		got := float64(k.Evaluate(c.p))
		if math.Abs(got-c.want) > 1e-5 {
			t.Fatalf("seed %d p=%v: got %v want %v", c.seed, c.p, got, c.want)
		}
	}
}

func TestKernelEvaluateStaysNearUnitRange(t *testing.T) {
	k := NewKernel(42)
	for x := -8; x <= 8; x++ {
		for y := -8; y <= 8; y++ {
			for z := -8; z <= 8; z++ {
				p := mgl32.Vec3{float32(x) * 0.37, float32(y) * 0.53, float32(z) * 0.71}
				v := k.Evaluate(p)
				if v < -1 || v > 1 {
					t.Fatalf("p=%v: %v outside [-1,1]", p, v)
				}
			}
		}
	}
}

func TestKernelFromTableMatchesSeededKernel(t *testing.T) {
	a := NewKernel(99)
	b := KernelFromTable(a.Table())
	p := mgl32.Vec3{0.25, -1.5, 3}
	if a.Evaluate(p) != b.Evaluate(p) {
		t.Fatalf("table round trip changed output")
	}
}
