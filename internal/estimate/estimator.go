// Package estimate implements the incremental planar pose-and-shape
// estimator behind the loop's Estimator contract. Each cycle the loop
// stages observations and exactly one kinematic constraint; ComputeEstimate
// solves the staged system by one damped Gauss-Newton step over the
// object pose and updates the per-vertex gravity weight terms.
package estimate

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// Config holds the solver weights.
type Config struct {
	// Damping is the prior weight holding the pose near the previous
	// cycle's solution.
	Damping float64
	// KinematicWeight scales hand-contact constraint rows.
	KinematicWeight float64
	// VisionWeight scales vision correspondence rows.
	VisionWeight float64
	// SlipHold is the weight pinning the slip coordinate while the hand
	// is not sliding.
	SlipHold float64
	// GroundContactTol is the height band above the lowest vertex within
	// which vertices count as in ground contact.
	GroundContactTol float64
}

// DefaultConfig returns the solver weights tuned on hardware data.
func DefaultConfig() Config {
	return Config{
		Damping:          1.0,
		KinematicWeight:  100.0,
		VisionWeight:     10.0,
		SlipHold:         50.0,
		GroundContactTol: 0.01,
	}
}

type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintCorner
	constraintFlush
	constraintNoContactVision
	constraintNoContact
)

// staged is the per-cycle constraint set, cleared after every solve.
type staged struct {
	active bool

	pose    *pbal.PoseSample
	wrench  *pbal.WrenchSample
	sliding *pbal.SlidingState
	wallOn  bool
	wallSet bool

	kind   constraintKind
	corner pbal.CornerContact

	noContactPos     [2]float64
	noContactHeading float64
	noContactFace    int

	vision      [][2]float64
	visionMap   []int
	visionFlush bool
}

// Estimator carries the object state across cycles: body-frame shape,
// current pose, gravity weight terms and the active contact sets.
// Vertex i of the state always refers to the same physical vertex.
type Estimator struct {
	cfg Config

	body []r3.Vector
	n    int

	position [2]float64
	heading  float64

	mglCos []float64
	mglSin []float64

	// Normal-equation accumulators for the per-vertex gravity terms.
	accCC, accCS, accSS, accCT, accST []float64

	hasRun          bool
	contactVertices []int
	contactFace     int
	slip            float64
	step            int

	staged staged
}

// New creates an estimator from the object shape prior: the vertex
// positions (normal, tangential) in the world manipulation frame at
// grasp time. The body frame is anchored at the shape centroid with
// zero initial heading.
func New(cfg Config, shape [][2]float64) (*Estimator, error) {
	if len(shape) < 3 {
		return nil, pbal.ErrDegenerateShapePrior
	}
	n := len(shape)

	var cn, ct float64
	for _, v := range shape {
		cn += v[0]
		ct += v[1]
	}
	cn /= float64(n)
	ct /= float64(n)

	e := &Estimator{
		cfg:         cfg,
		n:           n,
		position:    [2]float64{cn, ct},
		body:        make([]r3.Vector, n),
		mglCos:      make([]float64, n),
		mglSin:      make([]float64, n),
		accCC:       make([]float64, n),
		accCS:       make([]float64, n),
		accSS:       make([]float64, n),
		accCT:       make([]float64, n),
		accST:       make([]float64, n),
		contactFace: pbal.NoFace,
	}
	for i, v := range shape {
		e.body[i] = r3.Vector{X: v[0] - cn, Y: v[1] - ct}
	}
	return e, nil
}

// InitialEstimate returns the pre-loop estimate used to seed the
// reasoner before the first cycle.
func (e *Estimator) InitialEstimate() *pbal.Estimate {
	return e.snapshot()
}

// AdvanceTime begins a new estimation step.
func (e *Estimator) AdvanceTime() {
	e.staged = staged{active: true}
	e.step++
}

// AddPoseObservation stages the hand pose.
func (e *Estimator) AddPoseObservation(p pbal.PoseSample) {
	e.staged.pose = &p
}

// AddWrenchObservation stages the manipulation-frame wrench.
func (e *Estimator) AddWrenchObservation(w pbal.WrenchSample) {
	e.staged.wrench = &w
}

// AddSlidingState stages the sliding flags.
func (e *Estimator) AddSlidingState(s pbal.SlidingState) {
	e.staged.sliding = &s
}

// SetWallContact stages the wall engagement flag.
func (e *Estimator) SetWallContact(on bool) {
	e.staged.wallOn = on
	e.staged.wallSet = true
}

// AddCornerKinematicConstraint pins the corner vertex to the hand line.
func (e *Estimator) AddCornerKinematicConstraint(c pbal.CornerContact) {
	e.staged.kind = constraintCorner
	e.staged.corner = c
}

// AddFlushKinematicConstraint aligns the active face with the hand line.
func (e *Estimator) AddFlushKinematicConstraint() {
	e.staged.kind = constraintFlush
}

// AddNoContactKinematicConstraintVisionAssisted anchors the pose to the
// previous solution ahead of a vision fusion with no hand contact.
func (e *Estimator) AddNoContactKinematicConstraintVisionAssisted() {
	e.staged.kind = constraintNoContactVision
}

// AddNoContactKinematicConstraint pins the pose to a settled-object hypothesis.
func (e *Estimator) AddNoContactKinematicConstraint(position [2]float64, heading float64, groundFace int) {
	e.staged.kind = constraintNoContact
	e.staged.noContactPos = position
	e.staged.noContactHeading = heading
	e.staged.noContactFace = groundFace
}

// AddVisionObservation stages the vision polygon.
func (e *Estimator) AddVisionObservation(polygon [][2]float64) {
	e.staged.vision = polygon
}

// AddVisionConstraintCorner fuses vision under the no-hand/corner model:
// full two-dimensional vertex correspondences.
func (e *Estimator) AddVisionConstraintCorner(objToVision []int) {
	e.staged.visionMap = objToVision
	e.staged.visionFlush = false
}

// AddVisionConstraintFlush fuses vision under the flush-contact model:
// the hand constraint owns the normal direction and heading, so vision
// residuals act only along the hand line.
func (e *Estimator) AddVisionConstraintFlush(objToVision []int) {
	e.staged.visionMap = objToVision
	e.staged.visionFlush = true
}

// HasRunOnce reports whether an estimate has ever been produced.
func (e *Estimator) HasRunOnce() bool { return e.hasRun }

// ActiveContactVertices returns the vertices in ground contact, or nil
// before the first estimate.
func (e *Estimator) ActiveContactVertices() []int { return e.contactVertices }

// ActiveContactFace returns the hand-contact face, NoFace when none.
func (e *Estimator) ActiveContactFace() int { return e.contactFace }

// SetActiveContactFace sets or clears the hand-contact face.
func (e *Estimator) SetActiveContactFace(face int) { e.contactFace = face }

// SetSlip re-seeds the hand-frame slip coordinate.
func (e *Estimator) SetSlip(s float64) { e.slip = s }

// ComputeEstimate solves the staged system. Returns nil when the cycle
// staged no pose or no kinematic constraint; the staged set is consumed
// either way.
func (e *Estimator) ComputeEstimate() *pbal.Estimate {
	st := e.staged
	e.staged = staged{}

	if !st.active || st.pose == nil || st.kind == constraintNone {
		return nil
	}

	delta, ok := e.solvePose(&st)
	if !ok {
		return nil
	}
	e.position[0] += delta[0]
	e.position[1] += delta[1]
	e.heading = pbal.Mod2Pi(e.heading + delta[2])

	e.updateContactVertices(&st)

	if st.kind == constraintFlush {
		e.updateSlip(*st.pose)
	}
	if st.wrench != nil && len(e.contactVertices) > 0 {
		e.updateGravityTerms(*st.pose, *st.wrench)
	}

	e.hasRun = true
	return e.snapshot()
}

// solvePose performs one damped Gauss-Newton step over (dn, dt, dtheta).
func (e *Estimator) solvePose(st *staged) ([3]float64, bool) {
	var rows []row

	// Damping prior on the delta itself.
	d := math.Sqrt(e.cfg.Damping)
	rows = append(rows,
		row{a: [3]float64{d, 0, 0}},
		row{a: [3]float64{0, d, 0}},
		row{a: [3]float64{0, 0, d}},
	)

	switch st.kind {
	case constraintCorner:
		rows = append(rows, e.cornerRows(st)...)
	case constraintFlush:
		rows = append(rows, e.flushRows(st)...)
	case constraintNoContact:
		rows = append(rows, e.pinRows(st.noContactPos, st.noContactHeading, e.cfg.KinematicWeight)...)
	case constraintNoContactVision:
		// Moderate anchor to the previous pose; vision rows do the work.
		rows = append(rows, e.pinRows(e.position, e.heading, e.cfg.Damping*10)...)
	}

	if len(st.visionMap) == len(e.body) && len(st.vision) >= len(e.body) {
		rows = append(rows, e.visionRows(st)...)
	}

	a := mat.NewDense(len(rows), 3, nil)
	b := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		a.SetRow(i, r.a[:])
		b.SetVec(i, r.rhs)
	}

	var qr mat.QR
	qr.Factorize(a)
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return [3]float64{}, false
	}
	return [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}, true
}

// row is one weighted linear residual a·delta = rhs.
type row struct {
	a   [3]float64
	rhs float64
}

// vertexWorld returns vertex i at the current pose.
func (e *Estimator) vertexWorld(i int) r3.Vector {
	p := rotateVec(e.body[i], e.heading)
	return r3.Vector{X: e.position[0] + p.X, Y: e.position[1] + p.Y}
}

// vertexJacobianTheta is the derivative of vertex i's world position
// with respect to heading.
func (e *Estimator) vertexJacobianTheta(i int) r3.Vector {
	return rotateVec(e.body[i], e.heading+math.Pi/2)
}

func (e *Estimator) cornerRows(st *staged) []row {
	w := math.Sqrt(e.cfg.KinematicWeight)
	origin, _, tangent := handFrameVectors(*st.pose)
	target := origin.Add(tangent.Mul(st.corner.Slip))

	v := st.corner.Vertex
	if v < 0 || v >= e.n {
		return nil
	}
	p := e.vertexWorld(v)
	j := e.vertexJacobianTheta(v)

	return []row{
		{a: [3]float64{w, 0, w * j.X}, rhs: w * (target.X - p.X)},
		{a: [3]float64{0, w, w * j.Y}, rhs: w * (target.Y - p.Y)},
	}
}

func (e *Estimator) flushRows(st *staged) []row {
	if e.contactFace == pbal.NoFace {
		return nil
	}
	w := math.Sqrt(e.cfg.KinematicWeight)
	origin, normal, tangent := handFrameVectors(*st.pose)

	f := e.contactFace
	g := (f + 1) % e.n

	// Face direction must match the hand tangent.
	bodyDir := e.body[g].Sub(e.body[f])
	faceAngle := e.heading + math.Atan2(bodyDir.Y, bodyDir.X)
	handDir := math.Atan2(tangent.Y, tangent.X)
	angleErr := pbal.Mod2Pi(handDir - faceAngle)

	mid := e.vertexWorld(f).Add(e.vertexWorld(g)).Mul(0.5)
	jMid := e.vertexJacobianTheta(f).Add(e.vertexJacobianTheta(g)).Mul(0.5)
	rel := mid.Sub(origin)

	rows := []row{
		{a: [3]float64{0, 0, w}, rhs: w * angleErr},
		{
			a:   [3]float64{w * normal.X, w * normal.Y, w * normal.Dot(jMid)},
			rhs: w * -rel.Dot(normal),
		},
	}

	// Hold the slip coordinate unless the hand is reported sliding.
	hold := math.Sqrt(e.cfg.SlipHold)
	if st.sliding != nil && (st.sliding.HandSlidingLeft || st.sliding.HandSlidingRight) {
		hold = math.Sqrt(e.cfg.Damping)
	}
	rows = append(rows, row{
		a:   [3]float64{hold * tangent.X, hold * tangent.Y, hold * tangent.Dot(jMid)},
		rhs: hold * (e.slip - rel.Dot(tangent)),
	})
	return rows
}

func (e *Estimator) pinRows(pos [2]float64, heading float64, weight float64) []row {
	w := math.Sqrt(weight)
	return []row{
		{a: [3]float64{w, 0, 0}, rhs: w * (pos[0] - e.position[0])},
		{a: [3]float64{0, w, 0}, rhs: w * (pos[1] - e.position[1])},
		{a: [3]float64{0, 0, w}, rhs: w * pbal.Mod2Pi(heading-e.heading)},
	}
}

func (e *Estimator) visionRows(st *staged) []row {
	if st.visionFlush {
		return e.visionRowsFlush(st)
	}
	w := math.Sqrt(e.cfg.VisionWeight)
	rows := make([]row, 0, 2*e.n)
	for i := 0; i < e.n; i++ {
		vi := st.visionMap[i]
		if vi < 0 || vi >= len(st.vision) {
			continue
		}
		p := e.vertexWorld(i)
		j := e.vertexJacobianTheta(i)
		rows = append(rows,
			row{a: [3]float64{w, 0, w * j.X}, rhs: w * (st.vision[vi][0] - p.X)},
			row{a: [3]float64{0, w, w * j.Y}, rhs: w * (st.vision[vi][1] - p.Y)},
		)
	}
	return rows
}

// visionRowsFlush fuses vision while the object is flush on the hand
// line. The flush constraint pins the normal offset and heading, so the
// vertex residuals are projected onto the hand tangent: vision corrects
// the position along the line without fighting the contact constraint.
func (e *Estimator) visionRowsFlush(st *staged) []row {
	if st.pose == nil {
		return nil
	}
	_, _, tangent := handFrameVectors(*st.pose)

	w := math.Sqrt(e.cfg.VisionWeight)
	rows := make([]row, 0, e.n)
	for i := 0; i < e.n; i++ {
		vi := st.visionMap[i]
		if vi < 0 || vi >= len(st.vision) {
			continue
		}
		p := e.vertexWorld(i)
		j := e.vertexJacobianTheta(i)
		res := tangent.X*(st.vision[vi][0]-p.X) + tangent.Y*(st.vision[vi][1]-p.Y)
		rows = append(rows, row{
			a:   [3]float64{w * tangent.X, w * tangent.Y, w * tangent.Dot(j)},
			rhs: w * res,
		})
	}
	return rows
}

// updateContactVertices marks vertices within the ground tolerance of
// the lowest vertex; the no-contact constraint overrides with its
// hypothesis face.
func (e *Estimator) updateContactVertices(st *staged) {
	if st.kind == constraintNoContact {
		f := st.noContactFace
		e.contactVertices = []int{f, (f + 1) % e.n}
		return
	}

	low := math.Inf(1)
	for i := 0; i < e.n; i++ {
		if v := e.vertexWorld(i).X; v < low {
			low = v
		}
	}
	var contact []int
	for i := 0; i < e.n; i++ {
		if e.vertexWorld(i).X-low <= e.cfg.GroundContactTol {
			contact = append(contact, i)
		}
	}
	e.contactVertices = contact
}

// updateSlip recomputes the hand-frame slip coordinate of the active face.
func (e *Estimator) updateSlip(pose pbal.PoseSample) {
	if e.contactFace == pbal.NoFace {
		return
	}
	origin, _, tangent := handFrameVectors(pose)
	mid := e.vertexWorld(e.contactFace).Add(e.vertexWorld((e.contactFace + 1) % e.n)).Mul(0.5)
	e.slip = mid.Sub(origin).Dot(tangent)
}

// updateGravityTerms folds this cycle's torque measurement into the
// per-vertex mgl·cos/mgl·sin recursive least squares about the pivot.
func (e *Estimator) updateGravityTerms(pose pbal.PoseSample, w pbal.WrenchSample) {
	pivot := e.contactVertices[0]
	pv := e.vertexWorld(pivot)

	// Moment of the measured wrench about the pivot vertex.
	hand := r3.Vector{X: pose.N, Y: pose.T}
	r := hand.Sub(pv)
	tau := w.Torque.Z + r.X*w.Force.Y - r.Y*w.Force.X

	c := math.Cos(e.heading)
	s := math.Sin(e.heading)

	e.accCC[pivot] += c * c
	e.accCS[pivot] += c * s
	e.accSS[pivot] += s * s
	e.accCT[pivot] += c * tau
	e.accST[pivot] += s * tau

	// 2x2 regularized normal-equation solve.
	const reg = 1e-6
	a11 := e.accCC[pivot] + reg
	a12 := e.accCS[pivot]
	a22 := e.accSS[pivot] + reg
	det := a11*a22 - a12*a12
	if det <= 0 {
		return
	}
	e.mglCos[pivot] = (a22*e.accCT[pivot] - a12*e.accST[pivot]) / det
	e.mglSin[pivot] = (a11*e.accST[pivot] - a12*e.accCT[pivot]) / det
}

func (e *Estimator) snapshot() *pbal.Estimate {
	out := &pbal.Estimate{
		VertexN:     make([]float64, e.n),
		VertexT:     make([]float64, e.n),
		MglCosTheta: append([]float64(nil), e.mglCos...),
		MglSinTheta: append([]float64(nil), e.mglSin...),
		Position:    e.position,
		Heading:     e.heading,
	}
	for i := 0; i < e.n; i++ {
		p := e.vertexWorld(i)
		out.VertexN[i] = p.X
		out.VertexT[i] = p.Y
	}
	return out
}

// rotateVec rotates a planar vector about the origin.
func rotateVec(p r3.Vector, theta float64) r3.Vector {
	c, s := math.Cos(theta), math.Sin(theta)
	return r3.Vector{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y}
}

// handFrameVectors returns the hand contact origin, normal and tangent.
func handFrameVectors(p pbal.PoseSample) (origin, normal, tangent r3.Vector) {
	origin = r3.Vector{X: p.N, Y: p.T}
	normal = r3.Vector{X: math.Cos(p.Heading), Y: math.Sin(p.Heading)}
	tangent = r3.Vector{X: -math.Sin(p.Heading), Y: math.Cos(p.Heading)}
	return origin, normal, tangent
}
