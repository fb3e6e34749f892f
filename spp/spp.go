// Package spp implements single-point (code-only) positioning: an iterated
// weighted-least-squares solver over pseudorange residuals, with an
// elevation-dependent error model, GDOP and chi-square acceptance gates.
//
// Grounded on FengXuebin-gnssgo/src/pntpos.go's VarianceErr/Residuals/
// ValSol/EstimatePos, with the teacher's hand-rolled normal-equation solver
// and hard-coded chi-square table replaced by gonum/mat and
// gonum/stat/distuv.
package spp

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/errkind"
	"github.com/fxb-gnss/gnsscore/gnssobs"
)

const (
	clight = 299792458.0

	errCBias = 0.3              // code bias error std (m)
	minEl    = 5.0 * math.Pi / 180 // floor on elevation used for error weighting

	maxIterations = 10
	chiSquareConfidence = 0.999 // rejection gate confidence level
)

// ErrorFactors are the per-system pseudorange error scale factors,
// generalizing EFACT_GPS/EFACT_GLO/EFACT_SBS.
type ErrorFactors struct {
	GPS, GLONASS, SBAS float64
	// Base/Constant/ElevationTerm are opt.Err[0..2]: a base factor, a constant
	// term (m) and an elevation-dependent term (m), matching
	// SQR(Err0)*(SQR(Err1)+SQR(Err2)/sin(el)).
	Base, Constant, ElevationTerm float64
}

// DefaultErrorFactors matches the teacher's conventional EFACT_GPS=1,
// EFACT_GLO=1.5, EFACT_SBS=3 with opt.Err={1, 0.003, 0.003} (m).
func DefaultErrorFactors() ErrorFactors {
	return ErrorFactors{
		GPS: 1.0, GLONASS: 1.5, SBAS: 3.0,
		Base: 1.0, Constant: 0.003, ElevationTerm: 0.003,
	}
}

func (f ErrorFactors) systemFactor(sys gnssobs.System) float64 {
	switch sys {
	case gnssobs.SystemGLONASS:
		return f.GLONASS
	case gnssobs.SystemSBAS:
		return f.SBAS
	default:
		return f.GPS
	}
}

// PseudorangeVariance returns the elevation-dependent pseudorange
// measurement variance (m^2), matching VarianceErr.
func PseudorangeVariance(f ErrorFactors, el float64, sys gnssobs.System, ionoFree bool) float64 {
	if el < minEl {
		el = minEl
	}
	v := f.Base * f.Base * (f.Constant*f.Constant + f.ElevationTerm*f.ElevationTerm/math.Sin(el))
	if ionoFree {
		v *= 9.0 // SQR(3.0): iono-free combination inflates noise
	}
	fact := f.systemFactor(sys)
	return fact * fact * v
}

// Measurement is one satellite's corrected pseudorange, ready for the
// normal-equation assembly: geometric-range-consistent code range with
// group-delay/code-bias correction already applied, plus every term needed
// to build its design-matrix row and variance.
type Measurement struct {
	Sat          gnssobs.SatID
	SatPosECEF   [3]float64
	SatClockBias float64 // s
	SatPosVarM2  float64

	Pseudorange float64 // m, bias-corrected
	CodeBiasVarM2 float64

	IonoDelayM, IonoVarM2 float64
	TropoDelayM, TropoVarM2 float64
}

// Status enumerates a solve attempt's outcome, matching the teacher's
// solution-quality return codes generalized into a closed Go type.
type Status int

const (
	StatusNone Status = iota
	StatusSingle
	StatusTooFewSatellites
	StatusDiverged
	StatusChiSquareReject
	StatusGDOPReject
)

func (s Status) String() string {
	switch s {
	case StatusSingle:
		return "single"
	case StatusTooFewSatellites:
		return "too-few-satellites"
	case StatusDiverged:
		return "diverged"
	case StatusChiSquareReject:
		return "chi-square-reject"
	case StatusGDOPReject:
		return "gdop-reject"
	}
	return "none"
}

// Solution is the SPP solver's output: estimated receiver ECEF position,
// receiver clock bias per time-system group, and the per-satellite
// residuals/geometry used in validation.
type Solution struct {
	Status       Status
	PositionECEF [3]float64
	ClockBiasSec [5]float64 // GPS, GLONASS, Galileo, BeiDou, IRNSS offsets from GPS clock
	DOP          coord.DOP
	Residuals    []float64
	UsedSatellites []gnssobs.SatID
}

// numParams is 3 position + 1 GPS clock + 4 inter-system clock offsets,
// matching NXParam.
const numParams = 8

func clockIndex(sys gnssobs.System) int {
	switch sys {
	case gnssobs.SystemGLONASS:
		return 4
	case gnssobs.SystemGalileo:
		return 5
	case gnssobs.SystemBeiDou:
		return 6
	case gnssobs.SystemIRNSS:
		return 7
	default:
		return -1 // GPS: uses the common x[3] clock term, no extra column
	}
}

// Solve runs the iterated weighted-least-squares estimator over meas,
// starting from initial position guess x0 (ECEF, typically the previous
// epoch's fix or the origin), matching EstimatePos. Returns a Solution
// whose Status reports why the solve stopped.
func Solve(meas []Measurement, opt config.Options, errFactors ErrorFactors, x0 [3]float64) (Solution, error) {
	x := mat.NewVecDense(numParams, nil)
	x.SetVec(0, x0[0])
	x.SetVec(1, x0[1])
	x.SetVec(2, x0[2])

	var lastResp []float64
	var lastSats []gnssobs.SatID

	for iter := 0; iter < maxIterations; iter++ {
		pos := coord.ECEF{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}.ToGeodetic()

		var rows []float64
		var resid []float64
		var variances []float64
		var azel [][2]float64
		var sats []gnssobs.SatID
		sysSeen := map[gnssobs.System]bool{}

		for _, m := range meas {
			satECEF := coord.ECEF{X: m.SatPosECEF[0], Y: m.SatPosECEF[1], Z: m.SatPosECEF[2]}
			rcvECEF := coord.ECEF{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
			los, r, ok := coord.GeometricRange(satECEF, rcvECEF)
			if !ok {
				continue
			}
			az, el := coord.AzEl(pos, los)
			if iter > 0 && el < opt.ElevationMask {
				continue
			}

			sys := m.Sat.System()
			clkIdx := clockIndex(sys)

			v := m.Pseudorange - (r + x.AtVec(3) - clight*m.SatClockBias + m.IonoDelayM + m.TropoDelayM)

			row := make([]float64, numParams)
			row[0], row[1], row[2] = -los.X, -los.Y, -los.Z
			row[3] = 1.0
			if clkIdx >= 0 {
				v -= x.AtVec(clkIdx)
				row[clkIdx] = 1.0
			}
			sysSeen[sys] = true

			variance := PseudorangeVariance(errFactors, el, sys, opt.Ionosphere == config.IonosphereIonosphereFree) +
				m.SatPosVarM2 + m.CodeBiasVarM2 + m.IonoVarM2 + m.TropoVarM2 + errCBias*errCBias

			rows = append(rows, row...)
			resid = append(resid, v)
			variances = append(variances, variance)
			azel = append(azel, [2]float64{az, el})
			sats = append(sats, m.Sat)
		}

		// rank-deficiency guard: pin unused inter-system clock offsets to
		// zero, matching Residuals' trailing constraint rows.
		for _, sys := range []gnssobs.System{gnssobs.SystemGLONASS, gnssobs.SystemGalileo, gnssobs.SystemBeiDou, gnssobs.SystemIRNSS} {
			if sysSeen[sys] {
				continue
			}
			row := make([]float64, numParams)
			row[clockIndex(sys)] = 1.0
			rows = append(rows, row...)
			resid = append(resid, 0.0)
			variances = append(variances, 0.01)
		}

		n := len(resid)
		if n < numParams {
			return Solution{Status: StatusTooFewSatellites}, nil
		}

		H := mat.NewDense(n, numParams, rows)
		v := mat.NewVecDense(n, resid)
		Winv := make([]float64, n)
		for i, vr := range variances {
			Winv[i] = 1.0 / vr
		}
		W := mat.NewDiagDense(n, Winv)

		var HtW mat.Dense
		HtW.Mul(H.T(), W)
		var normalMatrix mat.Dense
		normalMatrix.Mul(&HtW, H)
		var rhs mat.VecDense
		rhs.MulVec(&HtW, v)

		normalSym := mat.NewSymDense(numParams, nil)
		for i := 0; i < numParams; i++ {
			for j := i; j < numParams; j++ {
				normalSym.SetSym(i, j, normalMatrix.At(i, j))
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(normalSym) {
			return Solution{Status: StatusDiverged}, errkind.New(errkind.Geometry, "Solve", "normal matrix is not positive definite")
		}
		var dx mat.VecDense
		if err := chol.SolveVecTo(&dx, &rhs); err != nil {
			return Solution{Status: StatusDiverged}, errkind.Wrap(errkind.Geometry, "Solve", err)
		}

		x.AddVec(x, &dx)

		lastResp, lastSats = resid, sats

		if mat.Norm(&dx, 2) < 1e-4 {
			dop, dopErr := coord.ComputeDOP(azel, opt.ElevationMask, 30.0)
			if dopErr != nil {
				return Solution{Status: StatusGDOPReject}, nil
			}
			if ok, _ := chiSquareAccept(resid, variances, n, numParams); !ok {
				return Solution{Status: StatusChiSquareReject, Residuals: lastResp, DOP: dop}, nil
			}
			sol := Solution{
				Status:         StatusSingle,
				PositionECEF:   [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)},
				DOP:            dop,
				Residuals:      lastResp,
				UsedSatellites: lastSats,
			}
			sol.ClockBiasSec[0] = x.AtVec(3) / clight
			sol.ClockBiasSec[1] = x.AtVec(4) / clight
			sol.ClockBiasSec[2] = x.AtVec(5) / clight
			sol.ClockBiasSec[3] = x.AtVec(6) / clight
			sol.ClockBiasSec[4] = x.AtVec(7) / clight
			return sol, nil
		}
	}
	return Solution{Status: StatusDiverged, Residuals: lastResp}, nil
}

// chiSquareAccept tests whether the whitened sum-of-squares of residuals v
// (each divided by its own standard deviation, matching pntpos.go's
// v[j] /= sig before ValSol's vv = Dot(v,v,nv)) is consistent with nv-nx
// degrees of freedom at chiSquareConfidence, matching ValSol's chisqr[]
// table lookup (replaced by a continuous distuv.ChiSquared quantile).
func chiSquareAccept(v, variance []float64, nv, nx int) (bool, float64) {
	if nv <= nx {
		return true, 0
	}
	vv := 0.0
	for i, vi := range v {
		whitened := vi / math.Sqrt(variance[i])
		vv += whitened * whitened
	}
	dist := distuv.ChiSquared{K: float64(nv - nx)}
	threshold := dist.Quantile(chiSquareConfidence)
	return vv <= threshold, vv
}
