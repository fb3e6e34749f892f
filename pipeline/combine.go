package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/gtime"
)

// RunCombined runs the forward and backward passes and merges them
// epoch-by-epoch by inverse-covariance weighting, matching postpos.go's
// CombResult (PMODE_*'s combined solution, built from execses_f's forward
// and execses_b's backward Sol arrays matched by time).
func (d *Driver) RunCombined(rover, base ObservationSource) ([]Solution, error) {
	fwd, err := d.Run(rover, base)
	if err != nil {
		return nil, err
	}
	bwd, err := d.RunBackward(rover, base)
	if err != nil {
		return nil, err
	}

	bwdByTime := make(map[gtime.Time]Solution, len(bwd))
	for _, s := range bwd {
		bwdByTime[SnapEpoch(s.Time, DTTOL)] = s
	}

	combined := make([]Solution, len(fwd))
	for i, f := range fwd {
		b, ok := bwdByTime[SnapEpoch(f.Time, DTTOL)]
		if !ok {
			combined[i] = f
			continue
		}
		combined[i] = combineSolutions(f, b)
	}
	return combined, nil
}

// combineSolutions fuses a forward and backward solution for the same
// epoch by 3x3 inverse-covariance weighting of their positions, matching
// common.go's Smoother (Qs=(Qf^-1+Qb^-1)^-1, xs=Qs*(Qf^-1*xf+Qb^-1*xb))
// applied to the position sub-state rather than the full filter state,
// since only Solution records (not raw kalman.State) survive to this
// merge boundary.
func combineSolutions(f, b Solution) Solution {
	Qf := diag3(f.PosCovar)
	Qb := diag3(b.PosCovar)

	var QfInv, QbInv mat.Dense
	if err := QfInv.Inverse(Qf); err != nil {
		return f
	}
	if err := QbInv.Inverse(Qb); err != nil {
		return f
	}

	var sumInv mat.Dense
	sumInv.Add(&QfInv, &QbInv)
	var Qs mat.Dense
	if err := Qs.Inverse(&sumInv); err != nil {
		return f
	}

	xf := mat.NewVecDense(3, f.PositionECEF[:])
	xb := mat.NewVecDense(3, b.PositionECEF[:])

	var QfXf, QbXb, sum mat.VecDense
	QfXf.MulVec(&QfInv, xf)
	QbXb.MulVec(&QbInv, xb)
	sum.AddVec(&QfXf, &QbXb)

	var xs mat.VecDense
	xs.MulVec(&Qs, &sum)

	merged := f
	merged.PositionECEF = [3]float64{xs.AtVec(0), xs.AtVec(1), xs.AtVec(2)}
	merged.PosCovar = [6]float64{Qs.At(0, 0), Qs.At(1, 1), Qs.At(2, 2), Qs.At(0, 1), Qs.At(1, 2), Qs.At(0, 2)}
	if merged.Status == StatusNone {
		merged.Status = b.Status
	}
	return merged
}

func diag3(v [6]float64) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, v[0])
	m.Set(1, 1, v[1])
	m.Set(2, 2, v[2])
	m.Set(0, 1, v[3])
	m.Set(1, 0, v[3])
	m.Set(1, 2, v[4])
	m.Set(2, 1, v[4])
	m.Set(0, 2, v[5])
	m.Set(2, 0, v[5])
	return m
}
