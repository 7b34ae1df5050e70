package contactmode

import (
	"math"

	"github.com/golang/geo/r3"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// Planar geometry on the manipulation plane. Points are r3 vectors with
// Z = 0; N maps to X and T to Y.

func planar(n, t float64) r3.Vector {
	return r3.Vector{X: n, Y: t}
}

// handFrame returns the hand contact point, the contact normal and the
// contact tangent for a hand pose. The normal points from the hand into
// the object.
func handFrame(p pbal.PoseSample) (origin, normal, tangent r3.Vector) {
	origin = planar(p.N, p.T)
	normal = planar(math.Cos(p.Heading), math.Sin(p.Heading))
	tangent = planar(-math.Sin(p.Heading), math.Cos(p.Heading))
	return origin, normal, tangent
}

// handCoords expresses a world point in the hand contact frame:
// depth along the contact normal, slip along the contact tangent.
func handCoords(p pbal.PoseSample, pt r3.Vector) (depth, slip float64) {
	origin, normal, tangent := handFrame(p)
	rel := pt.Sub(origin)
	return rel.Dot(normal), rel.Dot(tangent)
}

// vertexPoint returns vertex i of an estimate as a planar point.
func vertexPoint(e *pbal.Estimate, i int) r3.Vector {
	return planar(e.VertexN[i], e.VertexT[i])
}

// faceAngle returns the world direction of the face from vertex i to its
// cyclic successor.
func faceAngle(e *pbal.Estimate, i int) float64 {
	n := e.NumVertices()
	a := vertexPoint(e, i)
	b := vertexPoint(e, (i+1)%n)
	d := b.Sub(a)
	return math.Atan2(d.Y, d.X)
}

// groundHeight returns the lowest normal coordinate of the estimate,
// taken as the current ground plane.
func groundHeight(e *pbal.Estimate) float64 {
	h := e.VertexN[0]
	for _, v := range e.VertexN[1:] {
		if v < h {
			h = v
		}
	}
	return h
}

// rotate rotates a planar point about the origin.
func rotate(p r3.Vector, theta float64) r3.Vector {
	c, s := math.Cos(theta), math.Sin(theta)
	return planar(c*p.X-s*p.Y, s*p.X+c*p.Y)
}

// polygonEdgeLengths returns the cyclic edge lengths of a vertex list.
func polygonEdgeLengths(vertices [][2]float64) []float64 {
	n := len(vertices)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dn := vertices[j][0] - vertices[i][0]
		dt := vertices[j][1] - vertices[i][1]
		out[i] = math.Hypot(dn, dt)
	}
	return out
}

// edgeAngles returns the cyclic edge directions of a vertex list.
func edgeAngles(vertices [][2]float64) []float64 {
	n := len(vertices)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		out[i] = math.Atan2(vertices[j][1]-vertices[i][1], vertices[j][0]-vertices[i][0])
	}
	return out
}
