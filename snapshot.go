package pbal

// BuildContactEstimate assembles the publishable snapshot from the
// estimator's fresh output. Vertex ordering is preserved: index i in the
// estimate maps to index i in the snapshot.
func BuildContactEstimate(
	est *Estimate,
	zHeight float64,
	activeContacts []int,
	hyp ContactHypothesis,
	wallFlag WallFlag,
) ContactEstimate {
	n := est.NumVertices()

	out := ContactEstimate{
		VertexN:            make([]float64, 0, n),
		VertexT:            make([]float64, 0, n),
		VertexZ:            make([]float64, 0, n),
		MglCosTheta:        make([]float64, 0, n),
		MglSinTheta:        make([]float64, 0, n),
		ContactIndices:     []int{},
		HandContactIndices: handContactIndices(hyp, n),
		WallContactIndices: []int{},
		WallFlag:           wallFlag,
	}

	inContact := make(map[int]bool, len(activeContacts))
	for _, v := range activeContacts {
		inContact[v] = true
	}

	for i := 0; i < n; i++ {
		out.VertexN = append(out.VertexN, est.VertexN[i])
		out.VertexT = append(out.VertexT, est.VertexT[i])
		out.VertexZ = append(out.VertexZ, zHeight)
		out.MglCosTheta = append(out.MglCosTheta, est.MglCosTheta[i])
		out.MglSinTheta = append(out.MglSinTheta, est.MglSinTheta[i])

		if inContact[i] {
			out.ContactIndices = append(out.ContactIndices, i)
		}
	}

	switch wallFlag {
	case WallRight:
		out.WallContactIndices = []int{argMin(out.VertexT)}
	case WallLeft:
		out.WallContactIndices = []int{argMax(out.VertexT)}
	}

	return out
}

// PivotPoint returns the (n, t, z) triple of the first active contact
// vertex, or ok=false when the contact set is empty.
func PivotPoint(est *Estimate, zHeight float64, activeContacts []int) ([3]float64, bool) {
	if len(activeContacts) == 0 {
		return [3]float64{}, false
	}
	v := activeContacts[0]
	if v < 0 || v >= est.NumVertices() {
		return [3]float64{}, false
	}
	return [3]float64{est.VertexN[v], est.VertexT[v], zHeight}, true
}

// handContactIndices expands the contact hypothesis into published vertex
// indices: one vertex for corner mode, the face and its cyclic successor
// for flush-line mode, empty otherwise.
func handContactIndices(hyp ContactHypothesis, numVertices int) []int {
	switch hyp.Mode {
	case ModeCorner:
		return []int{hyp.Corner.Vertex}
	case ModeFlushLine:
		if hyp.Face == NoFace || numVertices == 0 {
			return []int{}
		}
		return []int{hyp.Face, (hyp.Face + 1) % numVertices}
	default:
		return []int{}
	}
}

func argMin(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v < vals[best] {
			best = i
		}
	}
	return best
}

func argMax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}
