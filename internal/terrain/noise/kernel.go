package noise

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// TableSize is the number of distinct permutation entries.
	TableSize = 256
	// PermSize is the length of the duplicated permutation table.
	PermSize = TableSize * 2

	f3 float32 = 1.0 / 3.0
	g3 float32 = 1.0 / 6.0
)

var source = [TableSize]int32{
	151, 160, 137, 91, 90, 15, 131, 13, 201, 95, 96, 53, 194, 233, 7, 225, 140, 36, 103, 30, 69, 142,
	8, 99, 37, 240, 21, 10, 23, 190, 6, 148, 247, 120, 234, 75, 0, 26, 197, 62, 94, 252, 219, 203,
	117, 35, 11, 32, 57, 177, 33, 88, 237, 149, 56, 87, 174, 20, 125, 136, 171, 168, 68, 175, 74, 165,
	71, 134, 139, 48, 27, 166, 77, 146, 158, 231, 83, 111, 229, 122, 60, 211, 133, 230, 220, 105, 92, 41,
	55, 46, 245, 40, 244, 102, 143, 54, 65, 25, 63, 161, 1, 216, 80, 73, 209, 76, 132, 187, 208, 89,
	18, 169, 200, 196, 135, 130, 116, 188, 159, 86, 164, 100, 109, 198, 173, 186, 3, 64, 52, 217, 226, 250,
	124, 123, 5, 202, 38, 147, 118, 126, 255, 82, 85, 212, 207, 206, 59, 227, 47, 16, 58, 17, 182, 189,
	28, 42, 223, 183, 170, 213, 119, 248, 152, 2, 44, 154, 163, 70, 221, 153, 101, 155, 167, 43, 172, 9,
	129, 22, 39, 253, 19, 98, 108, 110, 79, 113, 224, 232, 178, 185, 112, 104, 218, 246, 97, 228, 251, 34,
	242, 193, 238, 210, 144, 12, 191, 179, 162, 241, 81, 51, 145, 235, 249, 14, 239, 107, 49, 192, 214, 31,
	181, 199, 106, 157, 184, 84, 204, 176, 115, 121, 50, 45, 127, 4, 150, 254, 138, 236, 205, 93, 222, 114,
	67, 29, 24, 72, 243, 141, 128, 195, 78, 66, 215, 61, 156, 180,
}

var grad3 = [12][3]float32{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0},
	{-1, -1, 0}, {1, 0, 1}, {-1, 0, 1},
	{1, 0, -1}, {-1, 0, -1}, {0, 1, 1},
	{0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// Kernel is a seeded 3D simplex noise function. The zero value is not
// usable; build one with NewKernel or KernelFromTable.
type Kernel struct {
	perm [PermSize]int32
}

// NewKernel builds the permutation table for seed. Seed 0 yields the
// canonical table; any other seed XORs every entry with the four seed bytes.
func NewKernel(seed uint32) Kernel {
	var k Kernel
	if seed == 0 {
		for i := 0; i < TableSize; i++ {
			k.perm[i] = source[i]
			k.perm[i+TableSize] = source[i]
		}
		return k
	}
	b := seedBytes(seed)
	for i := 0; i < TableSize; i++ {
		v := source[i] ^ int32(b[0])
		v ^= int32(b[1])
		v ^= int32(b[2])
		v ^= int32(b[3])
		k.perm[i] = v
		k.perm[i+TableSize] = v
	}
	return k
}

// KernelFromTable wraps an already expanded permutation table.
func KernelFromTable(perm [PermSize]int32) Kernel {
	return Kernel{perm: perm}
}

// Table returns a copy of the permutation table.
func (k Kernel) Table() [PermSize]int32 { return k.perm }

func seedBytes(seed uint32) [4]byte {
	return [4]byte{
		byte(seed & 0x000000ff),
		byte((seed & 0x0000ff00) >> 8),
		byte((seed & 0x00ff0000) >> 16),
		byte((seed & 0xff000000) >> 24),
	}
}

// Evaluate returns the simplex noise value at p. Output is scaled by 32 and
// stays close to [-1, 1] without a hard bound.
func (k *Kernel) Evaluate(p mgl32.Vec3) float32 {
	x, y, z := p[0], p[1], p[2]

	s := (x + y + z) * f3
	i := math32.Floor(x + s)
	j := math32.Floor(y + s)
	l := math32.Floor(z + s)

	t := (i + j + l) * g3
	x0 := x - (i - t)
	y0 := y - (j - t)
	z0 := z - (l - t)

	var i1, j1, k1, i2, j2, k2 int32
	if x0 >= y0 {
		switch {
		case y0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 1, 0
		case x0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 0, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 1, 0, 1
		}
	} else {
		switch {
		case y0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 0, 1, 1
		case x0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 0, 1, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 1, 1, 0
		}
	}

	x1 := x0 - float32(i1) + g3
	y1 := y0 - float32(j1) + g3
	z1 := z0 - float32(k1) + g3

	x2 := x0 - float32(i2) + f3
	y2 := y0 - float32(j2) + f3
	z2 := z0 - float32(k2) + f3

	x3 := x0 - 0.5
	y3 := y0 - 0.5
	z3 := z0 - 0.5

	ii := int32(i) & 0xff
	jj := int32(j) & 0xff
	kk := int32(l) & 0xff

	var n0, n1, n2, n3 float32
	if t0 := 0.6 - x0*x0 - y0*y0 - z0*z0; t0 > 0 {
		t0 *= t0
		n0 = t0 * t0 * dot(k.gradient(ii, jj, kk), x0, y0, z0)
	}
	if t1 := 0.6 - x1*x1 - y1*y1 - z1*z1; t1 > 0 {
		t1 *= t1
		n1 = t1 * t1 * dot(k.gradient(ii+i1, jj+j1, kk+k1), x1, y1, z1)
	}
	if t2 := 0.6 - x2*x2 - y2*y2 - z2*z2; t2 > 0 {
		t2 *= t2
		n2 = t2 * t2 * dot(k.gradient(ii+i2, jj+j2, kk+k2), x2, y2, z2)
	}
	if t3 := 0.6 - x3*x3 - y3*y3 - z3*z3; t3 > 0 {
		t3 *= t3
		n3 = t3 * t3 * dot(k.gradient(ii+1, jj+1, kk+1), x3, y3, z3)
	}

	return (n0 + n1 + n2 + n3) * 32
}

// gradient indexes the doubled table; callers pass base cell coordinates in
// [0,255] plus a corner offset of at most 1, so no index leaves [0,511].
func (k *Kernel) gradient(i, j, l int32) [3]float32 {
	return grad3[k.perm[i+k.perm[j+k.perm[l]]]%12]
}

func dot(g [3]float32, x, y, z float32) float32 {
	return g[0]*x + g[1]*y + g[2]*z
}
