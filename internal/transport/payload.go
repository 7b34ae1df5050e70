// Package transport delivers topic data to the estimation loop, either
// live from an MQTT broker or from a recorded bag database, and
// publishes the loop's output snapshots.
package transport

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/vmihailenco/msgpack/v5"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// Wire payloads are msgpack maps. Field names follow the original ROS
// message bridge so recorded bags stay readable across both modes.

type posePayload struct {
	// Pose is [n t z qx qy qz qw].
	Pose [7]float64 `msgpack:"pose"`
}

type wrenchPayload struct {
	Force  [3]float64 `msgpack:"force"`
	Torque [3]float64 `msgpack:"torque"`
}

type torqueBoundaryPayload struct {
	Test bool `msgpack:"test"`
	Flag int  `msgpack:"flag"`
}

type slidingPayload struct {
	ObjectLeft  bool `msgpack:"pivot_sliding_left"`
	ObjectRight bool `msgpack:"pivot_sliding_right"`
	HandLeft    bool `msgpack:"robot_sliding_left"`
	HandRight   bool `msgpack:"robot_sliding_right"`
}

type visionPayload struct {
	VertexArray [][2]float64 `msgpack:"vertex_array"`
}

type pivotFramePayload struct {
	Position [3]float64 `msgpack:"position"`
}

type contactEstimatePayload struct {
	VertexN            []float64 `msgpack:"vertex_array_n"`
	VertexT            []float64 `msgpack:"vertex_array_t"`
	VertexZ            []float64 `msgpack:"vertex_array_z"`
	MglCosTheta        []float64 `msgpack:"mgl_cos_theta"`
	MglSinTheta        []float64 `msgpack:"mgl_sin_theta"`
	ContactIndices     []int     `msgpack:"contact_indices"`
	HandContactIndices []int     `msgpack:"hand_contact_indices"`
	WallContactIndices []int     `msgpack:"wall_contact_indices"`
	WallFlag           int       `msgpack:"wall_flag"`
}

// frictionParams mirrors the loosely-typed dictionary the friction-cone
// service publishes. It is decoded in two stages (msgpack map, then
// mapstructure) because the service's row count and field set vary as
// its boundary estimate converges.
type frictionParams struct {
	AER [][3]float64 `mapstructure:"aer"`
	BER []float64    `mapstructure:"ber"`
	AEL [][3]float64 `mapstructure:"ael"`
	BEL []float64    `mapstructure:"bel"`
	ERU bool         `mapstructure:"eru"`
	ELU bool         `mapstructure:"elu"`
}

func decodePose(data []byte) (pbal.PoseSample, error) {
	var p posePayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return pbal.PoseSample{}, fmt.Errorf("pose payload: %w", err)
	}
	return pbal.PoseFromList(p.Pose), nil
}

func decodeWrench(data []byte) (pbal.WrenchSample, error) {
	var p wrenchPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return pbal.WrenchSample{}, fmt.Errorf("wrench payload: %w", err)
	}
	return pbal.WrenchSample{
		Force:  r3.Vector{X: p.Force[0], Y: p.Force[1], Z: p.Force[2]},
		Torque: r3.Vector{X: p.Torque[0], Y: p.Torque[1], Z: p.Torque[2]},
	}, nil
}

func decodeTorqueBoundary(data []byte) (bool, int, error) {
	var p torqueBoundaryPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return false, 0, fmt.Errorf("torque boundary payload: %w", err)
	}
	return p.Test, p.Flag, nil
}

func decodeSliding(data []byte) (pbal.SlidingState, error) {
	var p slidingPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return pbal.SlidingState{}, fmt.Errorf("sliding state payload: %w", err)
	}
	return pbal.SlidingState{
		ObjectSlidingLeft:  p.ObjectLeft,
		ObjectSlidingRight: p.ObjectRight,
		HandSlidingLeft:    p.HandLeft,
		HandSlidingRight:   p.HandRight,
	}, nil
}

func decodeFriction(data []byte) (pbal.FrictionPolytope, error) {
	var raw map[string]interface{}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return pbal.FrictionPolytope{}, fmt.Errorf("friction payload: %w", err)
	}

	var params frictionParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &params,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return pbal.FrictionPolytope{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return pbal.FrictionPolytope{}, fmt.Errorf("friction params: %w", err)
	}

	return pbal.FrictionPolytope{
		Right:      halfPlanes(params.AER, params.BER),
		Left:       halfPlanes(params.AEL, params.BEL),
		RightValid: params.ERU,
		LeftValid:  params.ELU,
	}, nil
}

func halfPlanes(a [][3]float64, b []float64) []pbal.HalfPlane {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	rows := make([]pbal.HalfPlane, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, pbal.HalfPlane{A: a[i], B: b[i]})
	}
	return rows
}

func decodeVision(data []byte) ([][2]float64, error) {
	var p visionPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("vision payload: %w", err)
	}
	return p.VertexArray, nil
}

func encodePivotFrame(p [3]float64) ([]byte, error) {
	return msgpack.Marshal(pivotFramePayload{Position: p})
}

func encodeContactEstimate(ce pbal.ContactEstimate) ([]byte, error) {
	return msgpack.Marshal(contactEstimatePayload{
		VertexN:            ce.VertexN,
		VertexT:            ce.VertexT,
		VertexZ:            ce.VertexZ,
		MglCosTheta:        ce.MglCosTheta,
		MglSinTheta:        ce.MglSinTheta,
		ContactIndices:     ce.ContactIndices,
		HandContactIndices: ce.HandContactIndices,
		WallContactIndices: ce.WallContactIndices,
		WallFlag:           int(ce.WallFlag),
	})
}
