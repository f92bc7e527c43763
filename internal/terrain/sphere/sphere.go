// Package sphere samples a shape generator over the six faces of a
// cube-projected sphere, the way the mesh builder consumes it.
package sphere

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/dgravesa/go-parallel/parallel"
	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/terrain/shape"
)

const (
	MinResolution = 2
	MaxResolution = 256
)

// Directions lists the face normals in generation order.
var Directions = [6]mgl32.Vec3{
	{0, 1, 0}, {0, -1, 0},
	{1, 0, 0}, {-1, 0, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Face is one cube face projected onto the sphere.
type Face struct {
	Up    mgl32.Vec3
	AxisA mgl32.Vec3
	AxisB mgl32.Vec3

	Points     []mgl32.Vec3
	Elevations []float32
}

// NewFace derives the two in-plane axes for a face normal.
func NewFace(up mgl32.Vec3) Face {
	a := mgl32.Vec3{up[1], up[2], up[0]}
	return Face{Up: up, AxisA: a, AxisB: up.Cross(a)}
}

// UnitPoint maps grid cell (x, y) of a res*res face to the unit sphere.
func (f *Face) UnitPoint(x, y, res int) mgl32.Vec3 {
	u := float32(x) / float32(res-1)
	v := float32(y) / float32(res-1)
	onCube := f.Up.Add(f.AxisA.Mul((u - 0.5) * 2)).Add(f.AxisB.Mul((v - 0.5) * 2))
	return onCube.Normalize()
}

// Surface is one full regeneration pass.
type Surface struct {
	Resolution int
	Faces      [6]Face
	Min        float32
	Max        float32
}

// Sample evaluates g at every vertex. The generator is validated and
// snapshotted once, then rows are evaluated in parallel.
func Sample(g *shape.Generator, res int) (*Surface, error) {
	if res < MinResolution || res > MaxResolution {
		return nil, fmt.Errorf("resolution %d outside [%d,%d]", res, MinResolution, MaxResolution)
	}
	plan, err := g.Plan()
	if err != nil {
		return nil, err
	}
	s := &Surface{Resolution: res}
	n := res * res
	for fi := range s.Faces {
		face := NewFace(Directions[fi])
		face.Points = make([]mgl32.Vec3, n)
		face.Elevations = make([]float32, n)
		parallel.For(res, func(y, _ int) {
			for x := 0; x < res; x++ {
				i := y*res + x
				face.Points[i], face.Elevations[i] = plan.PointAndElevation(face.UnitPoint(x, y, res))
			}
		})
		s.Faces[fi] = face
	}
	s.Min, s.Max = s.bounds()
	return s, nil
}

func (s *Surface) bounds() (float32, float32) {
	lo, hi := math32.Inf(1), math32.Inf(-1)
	for fi := range s.Faces {
		for _, e := range s.Faces[fi].Elevations {
			lo = math32.Min(lo, e)
			hi = math32.Max(hi, e)
		}
	}
	return lo, hi
}

// VertexCount is the number of sampled vertices across all faces.
func (s *Surface) VertexCount() int {
	return 6 * s.Resolution * s.Resolution
}

// Digest hashes every elevation's bit pattern in face order.
func (s *Surface) Digest() string {
	h := sha256.New()
	var b [4]byte
	for fi := range s.Faces {
		for _, e := range s.Faces[fi].Elevations {
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(e))
			_, _ = h.Write(b[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
