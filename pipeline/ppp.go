package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/atmos"
	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/errkind"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/kalman"
)

// ErrNoUsableObservations is returned when an epoch has no satellite with
// both code and phase on the frequencies PPP needs.
var ErrNoUsableObservations = errkind.New(errkind.Geometry, "BuildPPPMeasurement", "no satellite carries the required code/phase pair")

// BuildPPPMeasurement forms the undifferenced ionosphere-free code and phase
// measurement rows for one epoch against the filter's current position/
// clock/troposphere/ambiguity state, matching ppp.go's PPPos/PPPRes
// combination of L1/L2 code and phase into a single ionosphere-free
// observable per satellite. ambiguityOf maps each tracked satellite to its
// absolute state-vector column (state.AmbiguityIndex(slot)).
func BuildPPPMeasurement(epoch gnssobs.Epoch, nav NavStore, roverApproxECEF [3]float64, state *kalman.State, wavelength1, wavelength2 float64, elevationMask float64, ambiguityOf map[gnssobs.SatID]int) (*mat.Dense, *mat.VecDense, *mat.Dense, []gnssobs.SatID, error) {
	const f1 = 1575.42e6
	const f2 = 1227.60e6
	const gamma = (f1 / f2) * (f1 / f2)

	rcvGeodetic := coord.ECEF{X: roverApproxECEF[0], Y: roverApproxECEF[1], Z: roverApproxECEF[2]}.ToGeodetic()

	n := state.Layout.Dim()
	var rows, resid, variances []float64
	var sats []gnssobs.SatID

	for _, o := range epoch.Obs {
		if !o.HasCode(0) || !o.HasCode(1) || !o.HasPhase(0) || !o.HasPhase(1) {
			continue
		}
		ambCol, ok := ambiguityOf[o.Sat]
		if !ok {
			continue
		}

		eph, err := nav.Evaluate(o.Time, o.Sat)
		if err != nil {
			continue
		}
		satECEF := coord.ECEF{X: eph.PositionECEF[0], Y: eph.PositionECEF[1], Z: eph.PositionECEF[2]}
		los, r, ok2 := coord.GeometricRange(satECEF, coord.ECEF{X: roverApproxECEF[0], Y: roverApproxECEF[1], Z: roverApproxECEF[2]})
		if !ok2 {
			continue
		}
		_, el := coord.AzEl(rcvGeodetic, los)
		if el < elevationMask {
			continue
		}
		tropoM, tropoVar := atmos.TroposphereDelay(rcvGeodetic, el)

		// ionosphere-free code and phase combinations, matching PPPos's
		// P_IF = (gamma*P1 - P2)/(gamma-1), L_IF analogously.
		codeIF := (gamma*o.Pseudorange[0] - o.Pseudorange[1]) / (gamma - 1)
		phaseIF := (gamma*o.Carrier[0]*wavelength1 - o.Carrier[1]*wavelength2) / (gamma - 1)

		clockIdx := state.ClockIndex()
		tropoIdx := state.TropoIndex()

		buildRow := func(isPhase bool) []float64 {
			row := make([]float64, n)
			row[0], row[1], row[2] = -los.X, -los.Y, -los.Z
			row[clockIdx] = 1.0
			if tropoIdx >= 0 {
				_, wetMap := atmos.NiellMappingFunction(o.Time, rcvGeodetic, el)
				row[tropoIdx] = wetMap
			}
			if isPhase {
				row[ambCol] = 1.0
			}
			return row
		}

		clockTerm := state.X.AtVec(clockIdx)
		tropoTerm := tropoM
		if tropoIdx >= 0 {
			tropoTerm = state.X.AtVec(tropoIdx)
		}
		ambTerm := state.X.AtVec(ambCol)

		codeResidual := codeIF - (r + clockTerm - 299792458.0*eph.ClockBiasSec + tropoTerm)
		phaseResidual := phaseIF - (r + clockTerm - 299792458.0*eph.ClockBiasSec + tropoTerm + ambTerm)

		rows = append(rows, buildRow(false)...)
		resid = append(resid, codeResidual)
		variances = append(variances, 0.6*0.6+tropoVar+eph.VarianceM2)

		rows = append(rows, buildRow(true)...)
		resid = append(resid, phaseResidual)
		variances = append(variances, 0.006*0.006+tropoVar+eph.VarianceM2)

		sats = append(sats, o.Sat)
	}

	if len(resid) == 0 {
		return nil, nil, nil, nil, ErrNoUsableObservations
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
