package pbal

import (
	"math"

	"go.viam.com/rdk/spatialmath"
)

// Mod2Pi wraps an angle to (-pi, pi].
func Mod2Pi(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

// HeadingFromQuaternion extracts the hand heading about the
// manipulation-plane normal from a world-frame quaternion (x, y, z, w).
func HeadingFromQuaternion(q [4]float64) float64 {
	orient := spatialmath.Quaternion{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]}
	return orient.EulerAngles().Yaw
}

// PoseFromList converts the wire pose [n t z qx qy qz qw] into the planar
// hand pose used throughout the loop.
func PoseFromList(p [7]float64) PoseSample {
	return PoseSample{
		N:       p[0],
		T:       p[1],
		Heading: HeadingFromQuaternion([4]float64{p[3], p[4], p[5], p[6]}),
	}
}
