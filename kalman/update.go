package kalman

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/errkind"
)

// ErrNonPositiveDefinite is returned by Update when the innovation
// covariance H*P*H'+R cannot be inverted; the caller should treat this as a
// signal to reset or reinitialize the affected state rather than retry.
var ErrNonPositiveDefinite = errors.New("kalman: innovation covariance is not invertible")

// Update performs one Kalman measurement update: given design matrix H (m x
// n), innovation vector v (m x 1, observed-minus-predicted) and
// measurement covariance R (m x m), updates s.X and s.P in place. Matches
// common.go's Filter/filter_ gain and state step: K = P*H'*(H*P*H'+R)^-1,
// x += K*v; P is updated in Joseph form,
// P = (I-K*H)*P*(I-K*H)' + K*R*K'.
//
// On a non-positive-definite innovation covariance, P is first
// resymmetrized and the update retried once; if it still fails,
// ErrNonPositiveDefinite is returned and the caller is responsible for
// resetting the affected state (see Reset).
func (s *State) Update(H *mat.Dense, v *mat.VecDense, R *mat.Dense) error {
	if err := s.tryUpdate(H, v, R); err != nil {
		s.resymmetrize()
		if err := s.tryUpdate(H, v, R); err != nil {
			return errkind.Wrap(errkind.Filter, "Update", ErrNonPositiveDefinite)
		}
	}
	return nil
}

func (s *State) tryUpdate(H *mat.Dense, v *mat.VecDense, R *mat.Dense) error {
	var PHt mat.Dense
	PHt.Mul(s.P, H.T())

	var innovCov mat.Dense
	innovCov.Mul(H, &PHt)
	innovCov.Add(&innovCov, R)

	var innovInv mat.Dense
	if err := innovInv.Inverse(&innovCov); err != nil {
		return ErrNonPositiveDefinite
	}

	var K mat.Dense
	K.Mul(&PHt, &innovInv)

	var correction mat.VecDense
	correction.MulVec(&K, v)

	var xNew mat.VecDense
	xNew.AddVec(s.X, &correction)
	s.X = &xNew

	n, _ := s.P.Dims()
	var KH mat.Dense
	KH.Mul(&K, H)
	I := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		I.Set(i, i, 1)
	}
	I.Sub(I, &KH)

	var Pnew mat.Dense
	Pnew.Mul(I, s.P)
	Pnew.Mul(&Pnew, I.T())
	var KRKt mat.Dense
	KRKt.Mul(&K, R)
	KRKt.Mul(&KRKt, K.T())
	Pnew.Add(&Pnew, &KRKt)
	s.P = &Pnew
	// The updated P is not exactly symmetric once floating-point error
	// accumulates across epochs; resymmetrize after every update rather
	// than only on a failed inversion, matching the max|P-P'| < 1e-12
	// bound required of every update, not just a recovery path.
	s.resymmetrize()
	return nil
}

// Reset zeroes the state and covariance for the ambiguity slot idx and
// marks it PhaseReset, matching the outage-triggered bias reinitialization
// in UpdateBias.
func (s *State) Reset(idx int) {
	col := s.AmbiguityIndex(idx)
	n, _ := s.P.Dims()
	s.X.SetVec(col, 0)
	for i := 0; i < n; i++ {
		s.P.Set(col, i, 0)
		s.P.Set(i, col, 0)
	}
	s.AmbiguityPhase[idx] = PhaseReset
	s.LockCount[idx] = 0
	s.OutageCount[idx] = 0
	s.AmbiguitySat[idx] = 0
}

// Reinitialize seeds ambiguity slot idx with a fresh float value and
// variance after a cycle slip or new lock, matching UpdateBias's
// re-acquisition branch.
func (s *State) Reinitialize(idx int, value, variance float64) {
	col := s.AmbiguityIndex(idx)
	s.X.SetVec(col, value)
	s.P.Set(col, col, variance)
	s.AmbiguityPhase[idx] = PhaseWarm
	s.LockCount[idx] = 0
	s.OutageCount[idx] = 0
}
