package transport

import (
	"math"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

func TestDecodePose(t *testing.T) {
	half := 0.35
	data, err := msgpack.Marshal(posePayload{
		Pose: [7]float64{0.12, -0.03, 0.5, 0, 0, math.Sin(half), math.Cos(half)},
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := decodePose(data)
	if err != nil {
		t.Fatalf("decodePose failed: %v", err)
	}
	if p.N != 0.12 || p.T != -0.03 {
		t.Errorf("position = (%v, %v), want (0.12, -0.03)", p.N, p.T)
	}
	if math.Abs(p.Heading-0.7) > 1e-9 {
		t.Errorf("heading = %v, want 0.7", p.Heading)
	}
}

func TestDecodeFriction_LooselyTypedDict(t *testing.T) {
	// The friction-cone service publishes a plain dictionary whose
	// numeric types vary; decoding must tolerate that.
	data, err := msgpack.Marshal(map[string]interface{}{
		"aer": [][]float64{{0, 1, 0}, {0.5, 0.5, 0}},
		"ber": []float64{1.5, 2.0},
		"ael": [][]interface{}{{0, -1, 0}},
		"bel": []interface{}{int8(2)},
		"eru": true,
		"elu": false,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := decodeFriction(data)
	if err != nil {
		t.Fatalf("decodeFriction failed: %v", err)
	}
	if !p.RightValid || p.LeftValid {
		t.Errorf("valid flags = (%v, %v), want (true, false)", p.RightValid, p.LeftValid)
	}
	if len(p.Right) != 2 || len(p.Left) != 1 {
		t.Fatalf("row counts = (%d, %d), want (2, 1)", len(p.Right), len(p.Left))
	}
	if p.Right[0].A != [3]float64{0, 1, 0} || p.Right[0].B != 1.5 {
		t.Errorf("right row 0 = %+v, want A=(0,1,0) B=1.5", p.Right[0])
	}
	if p.Left[0].B != 2 {
		t.Errorf("left row 0 B = %v, want 2", p.Left[0].B)
	}
}

func TestDecodeFriction_MismatchedRowCounts(t *testing.T) {
	// More A rows than b entries: the extras are dropped, not an error.
	data, err := msgpack.Marshal(map[string]interface{}{
		"aer": [][]float64{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}},
		"ber": []float64{1.0},
		"eru": true,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := decodeFriction(data)
	if err != nil {
		t.Fatalf("decodeFriction failed: %v", err)
	}
	if len(p.Right) != 1 {
		t.Errorf("right rows = %d, want 1", len(p.Right))
	}
}

func TestTopicState_CorruptPayloadDoesNotStick(t *testing.T) {
	var s topicState

	if err := s.apply(topicPose, []byte{0xc1}); err == nil {
		t.Error("corrupt payload must report an error")
	}
	if s.poseValid {
		t.Error("corrupt payload must not mark the topic valid")
	}
}

func TestTopicState_VisionNewClearsOnSnapshot(t *testing.T) {
	var s topicState

	data, err := msgpack.Marshal(visionPayload{VertexArray: [][2]float64{{0, 0}, {1, 0}, {0, 1}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.apply(topicVision, data); err != nil {
		t.Fatalf("apply vision: %v", err)
	}

	var in1, in2 pbal.CycleInput
	s.snapshot(&in1)
	s.snapshot(&in2)

	if !in1.VisionNew {
		t.Error("first snapshot after a vision message must report VisionNew")
	}
	if in2.VisionNew {
		t.Error("VisionNew must clear once snapshotted")
	}
	if len(in2.Vision) != 3 {
		t.Error("the polygon itself must persist across snapshots")
	}
}
