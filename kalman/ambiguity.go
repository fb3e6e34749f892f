package kalman

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/lambda"
)

// AmbiguityValidation holds the ratio-test threshold and minimum lock/fix
// counts, matching ThresAr/MinLock/MinFix. ResolveAmbiguities gates on
// RatioThreshold and MinLockEpochs; MinFixEpochs is carried but not read by
// ResolveAmbiguities or HoldAmbiguities.
type AmbiguityValidation struct {
	RatioThreshold float64
	MinLockEpochs  int
	MinFixEpochs   int
}

// ResolveResult reports the outcome of one LAMBDA fix attempt.
type ResolveResult struct {
	Fixed      bool
	Ratio      float64
	FixedValues []float64
}

// ResolveAmbiguities extracts the float ambiguity sub-vector and covariance
// from s, runs LAMBDA, and accepts the fix only if the ratio test passes
// and every included slot has been locked at least MinLockEpochs, matching
// ResolveAmb_LAMBDA/ValidPos's ratio-test gate.
func (s *State) ResolveAmbiguities(indices []int, v AmbiguityValidation) (ResolveResult, error) {
	n := len(indices)
	if n == 0 {
		return ResolveResult{}, nil
	}
	for _, idx := range indices {
		if s.LockCount[idx] < v.MinLockEpochs {
			return ResolveResult{}, nil
		}
	}

	a := make([]float64, n)
	Q := mat.NewDense(n, n, nil)
	for i, idx := range indices {
		col := s.AmbiguityIndex(idx)
		a[i] = s.X.AtVec(col)
		for j, jdx := range indices {
			Q.Set(i, j, s.P.At(col, s.AmbiguityIndex(jdx)))
		}
	}

	F, sq, err := lambda.Resolve(a, Q, 2)
	if err != nil {
		return ResolveResult{}, err
	}
	if sq[0] <= 0 {
		return ResolveResult{Fixed: false, Ratio: 0}, nil
	}
	ratio := sq[1] / sq[0]
	if ratio < v.RatioThreshold {
		return ResolveResult{Fixed: false, Ratio: ratio}, nil
	}

	fixed := make([]float64, n)
	for i := range fixed {
		fixed[i] = F.At(i, 0)
	}
	return ResolveResult{Fixed: true, Ratio: ratio, FixedValues: fixed}, nil
}

// FixedPosition returns the conditional-mean position implied by holding
// indices at fixed (integer) values instead of their current float
// estimate, matching resamb_LAMBDA's back-substitution
// x̂_fixed = x̂_float - Q_xâ*Qâ^-1*(â-ǎ), restricted to the 3 position
// rows of x̂ and Q_xâ. It reads s but does not mutate it: the float state
// carried forward to the next epoch is still governed by HoldAmbiguities'
// soft constraint, while this is the position the caller should report for
// the epoch that just got a fix.
func (s *State) FixedPosition(indices []int, fixed []float64) [3]float64 {
	n := len(indices)
	if n == 0 {
		return s.Position()
	}

	Qa := mat.NewDense(n, n, nil)
	diff := mat.NewVecDense(n, nil)
	for i, idx := range indices {
		col := s.AmbiguityIndex(idx)
		diff.SetVec(i, s.X.AtVec(col)-fixed[i])
		for j, jdx := range indices {
			Qa.Set(i, j, s.P.At(col, s.AmbiguityIndex(jdx)))
		}
	}

	var QaInv mat.Dense
	if err := QaInv.Inverse(Qa); err != nil {
		return s.Position()
	}
	var QaInvDiff mat.VecDense
	QaInvDiff.MulVec(&QaInv, diff)

	pos := s.Position()
	for p := 0; p < 3; p++ {
		Qxa := mat.NewVecDense(n, nil)
		for i, idx := range indices {
			Qxa.SetVec(i, s.P.At(p, s.AmbiguityIndex(idx)))
		}
		pos[p] -= mat.Dot(Qxa, &QaInvDiff)
	}
	return pos
}

// HoldAmbiguities locks indices to their fixed integer values with a small
// variance, so the filter treats them as near-constants going forward,
// matching HoldAmb under ModeAr==FixAndHold.
func (s *State) HoldAmbiguities(indices []int, fixed []float64, holdVariance float64) {
	for i, idx := range indices {
		col := s.AmbiguityIndex(idx)
		s.X.SetVec(col, fixed[i])
		s.P.Set(col, col, holdVariance)
		s.AmbiguityPhase[idx] = PhaseHold
		s.LockCount[idx]++
	}
}

// AdvanceLockCounters increments the lock counter of every ambiguity slot
// not flagged in slipped (slots are indexed as in LockCount, whatever their
// phase) and resets the slipped ones,
// matching the per-epoch bookkeeping in UpdateBias.
func (s *State) AdvanceLockCounters(slipped []bool) {
	for i := range s.LockCount {
		if i < len(slipped) && slipped[i] {
			s.Reset(i)
			continue
		}
		s.LockCount[i]++
		s.OutageCount[i] = 0
	}
}

// NoteOutage increments the outage counter for ambiguity slot idx; once it
// exceeds maxOutageEpochs the caller should Reset the slot, matching
// MaxOut.
func (s *State) NoteOutage(idx, maxOutageEpochs int) (shouldReset bool) {
	s.OutageCount[idx]++
	return s.OutageCount[idx] > maxOutageEpochs
}

// ShouldAttemptFix reports whether the configured ambiguity mode permits a
// LAMBDA attempt this epoch, matching the modear-gated branch at the top of
// UpdateBias.
func ShouldAttemptFix(mode config.AmbiguityMode) bool {
	return mode == config.AmbiguityContinuous || mode == config.AmbiguityInstantaneous ||
		mode == config.AmbiguityFixAndHold || mode == config.AmbiguityPPPAR
}
