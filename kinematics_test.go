package pbal

import (
	"math"
	"testing"
)

func TestMod2Pi(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-2.5 * math.Pi, -0.5 * math.Pi},
		{0.5, 0.5},
	}
	for _, c := range cases {
		if got := Mod2Pi(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Mod2Pi(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestHeadingFromQuaternion_YawOnly(t *testing.T) {
	// Rotation of 0.7 rad about Z.
	half := 0.35
	heading := HeadingFromQuaternion([4]float64{0, 0, math.Sin(half), math.Cos(half)})
	if math.Abs(heading-0.7) > 1e-9 {
		t.Errorf("heading = %v, want 0.7", heading)
	}
}

func TestPoseFromList(t *testing.T) {
	half := 0.35
	raw := [7]float64{0.12, -0.03, 0.5, 0, 0, math.Sin(half), math.Cos(half)}
	p := PoseFromList(raw)
	if p.N != 0.12 || p.T != -0.03 {
		t.Errorf("position = (%v, %v), want (0.12, -0.03)", p.N, p.T)
	}
	if math.Abs(p.Heading-0.7) > 1e-9 {
		t.Errorf("heading = %v, want 0.7", p.Heading)
	}
}
