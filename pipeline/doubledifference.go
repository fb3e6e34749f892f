package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/errkind"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/kalman"
)

// ErrNoCommonSatellites is returned when rover and base share no usable
// satellite for a double difference.
var ErrNoCommonSatellites = errkind.New(errkind.Geometry, "DoubleDifference", "rover and base share no common satellite")

// ddCandidate is one rover/base satellite pair with its evaluated geometry,
// ready for single- then double-differencing.
type ddCandidate struct {
	sat             gnssobs.SatID
	elevation       float64
	roverLOS        coord.ECEF
	roverRange      float64
	baseLOS         coord.ECEF
	baseRange       float64
	roverCode       float64
	baseCode        float64
	roverPhase      float64
	basePhase       float64
}

// BuildDoubleDifferences forms the double-differenced code and
// phase residuals between rover and base observations at the same epoch,
// against a per-epoch reference satellite (the common satellite with the
// highest rover elevation). basePosECEF is the (surveyed, known) base
// station position; roverApproxECEF seeds the line-of-sight geometry.
//
// Matches rtkpos.go's SelSat (reference satellite by max elevation) and
// DDRes (single-difference then double-difference formation), generalized
// from the teacher's MAXSAT-sized scratch arrays onto a gonum H/v row
// builder sized to the satellites this epoch actually resolves a slot for.
// Each non-reference satellite's ambiguity is addressed by state.AssignSlot,
// which keys the slot to the satellite itself (matching ssat_t) so the
// carried float ambiguity stays valid across epochs regardless of how the
// visible set or elevation ranking shift.
func BuildDoubleDifferences(rover, base gnssobs.Epoch, nav NavStore, basePosECEF, roverApproxECEF [3]float64, freq int, wavelength float64, state *kalman.State, elevationMask float64) (*mat.Dense, *mat.VecDense, *mat.Dense, []gnssobs.SatID, error) {
	baseBySat := make(map[gnssobs.SatID]gnssobs.Observation, len(base.Obs))
	for _, o := range base.Obs {
		baseBySat[o.Sat] = o
	}

	rcvGeodetic := coord.ECEF{X: roverApproxECEF[0], Y: roverApproxECEF[1], Z: roverApproxECEF[2]}.ToGeodetic()

	var candidates []ddCandidate
	for _, ro := range rover.Obs {
		bo, ok := baseBySat[ro.Sat]
		if !ok || !ro.HasCode(freq) || !ro.HasPhase(freq) || !bo.HasCode(freq) || !bo.HasPhase(freq) {
			continue
		}
		eph, err := nav.Evaluate(ro.Time, ro.Sat)
		if err != nil {
			continue
		}
		satECEF := coord.ECEF{X: eph.PositionECEF[0], Y: eph.PositionECEF[1], Z: eph.PositionECEF[2]}

		roverLOS, roverRange, ok1 := coord.GeometricRange(satECEF, coord.ECEF{X: roverApproxECEF[0], Y: roverApproxECEF[1], Z: roverApproxECEF[2]})
		baseLOS, baseRange, ok2 := coord.GeometricRange(satECEF, coord.ECEF{X: basePosECEF[0], Y: basePosECEF[1], Z: basePosECEF[2]})
		if !ok1 || !ok2 {
			continue
		}
		_, el := coord.AzEl(rcvGeodetic, roverLOS)
		if el < elevationMask {
			continue
		}

		candidates = append(candidates, ddCandidate{
			sat:        ro.Sat,
			elevation:  el,
			roverLOS:   roverLOS,
			roverRange: roverRange,
			baseLOS:    baseLOS,
			baseRange:  baseRange,
			roverCode:  ro.Pseudorange[freq],
			baseCode:   bo.Pseudorange[freq],
			roverPhase: ro.Carrier[freq] * wavelength,
			basePhase:  bo.Carrier[freq] * wavelength,
		})
	}
	if len(candidates) < 2 {
		return nil, nil, nil, nil, ErrNoCommonSatellites
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].elevation > candidates[j].elevation })
	ref := candidates[0]
	others := candidates[1:]

	n := state.Layout.Dim()
	ddCodeVar := 2.0 * 0.3 * 0.3      // code DD noise, matching DDCovariance's 2x single-diff variance scaling
	ddPhaseVar := 2.0 * 0.003 * 0.003 // phase DD noise at this wavelength's precision

	var rows, resid, variances []float64
	sats := make([]gnssobs.SatID, 0, len(others))

	for _, o := range others {
		// ambCol is keyed by o.sat, not by this epoch's elevation-sorted
		// position, so the carried float ambiguity survives across epochs
		// even as the visible set and reference satellite change, matching
		// ssat_t's per-satellite ambiguity slots. A satellite that cannot
		// get a slot (every slot already belongs to a different satellite)
		// is dropped from this epoch's double difference, matching the
		// teacher's behavior when ssat_t runs out of MAXSAT room.
		slot, ok := state.AssignSlot(o.sat)
		if !ok {
			continue
		}
		ambCol := state.AmbiguityIndex(slot)

		// code: DD = (roverCode_i - baseCode_i) - (roverCode_ref - baseCode_ref)
		ddCodeObs := (o.roverCode - o.baseCode) - (ref.roverCode - ref.baseCode)
		ddCodeModel := (o.roverRange - o.baseRange) - (ref.roverRange - ref.baseRange)
		codeRow := make([]float64, n)
		codeRow[0], codeRow[1], codeRow[2] = -o.roverLOS.X+ref.roverLOS.X, -o.roverLOS.Y+ref.roverLOS.Y, -o.roverLOS.Z+ref.roverLOS.Z
		rows = append(rows, codeRow...)
		resid = append(resid, ddCodeObs-ddCodeModel)
		variances = append(variances, ddCodeVar)

		// phase: DD = (roverPhase_i - basePhase_i) - (roverPhase_ref - basePhase_ref) - wavelength*ambiguity_i
		ddPhaseObs := (o.roverPhase - o.basePhase) - (ref.roverPhase - ref.basePhase)
		ambiguityCycles := state.X.AtVec(ambCol)
		ddPhaseModel := ddCodeModel + wavelength*ambiguityCycles
		phaseRow := make([]float64, n)
		phaseRow[0], phaseRow[1], phaseRow[2] = -o.roverLOS.X+ref.roverLOS.X, -o.roverLOS.Y+ref.roverLOS.Y, -o.roverLOS.Z+ref.roverLOS.Z
		phaseRow[ambCol] = wavelength
		rows = append(rows, phaseRow...)
		resid = append(resid, ddPhaseObs-ddPhaseModel)
		variances = append(variances, ddPhaseVar)

		sats = append(sats, o.sat)
	}
	if len(resid) == 0 {
		return nil, nil, nil, nil, ErrNoCommonSatellites
	}

	m := len(resid)
	H := mat.NewDense(m, n, rows)
	v := mat.NewVecDense(m, resid)
	R := mat.NewDense(m, m, nil)
	for i, vr := range variances {
		R.Set(i, i, vr)
	}
	return H, v, R, sats, nil
}
