package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/config"
)

func newTestState() *State {
	layout := Layout{
		Dynamics:       config.DynamicsVelocity,
		EstimateTropo:  true,
		EstimateIono:   false,
		NumAmbiguities: 2,
	}
	s := NewState(layout)
	for i := 0; i < 3; i++ {
		s.P.Set(i, i, 100*100)
		s.P.Set(3+i, 3+i, 10*10)
	}
	s.P.Set(s.ClockIndex(), s.ClockIndex(), 1e8)
	s.P.Set(s.TropoIndex(), s.TropoIndex(), 0.3*0.3)
	for i := 0; i < layout.NumAmbiguities; i++ {
		s.P.Set(s.AmbiguityIndex(i), s.AmbiguityIndex(i), 900)
	}
	return s
}

func TestLayoutDimAndIndices(t *testing.T) {
	l := Layout{Dynamics: config.DynamicsAcceleration, EstimateTropo: true, EstimateIono: true, NumIonoSats: 2, NumAmbiguities: 4}
	assert.Equal(t, 9+1+1+2+4, l.Dim())
	assert.Equal(t, 9, l.clockIndex())
	assert.Equal(t, 10, l.tropoIndex())
	assert.Equal(t, 11, l.ionoBase())
	assert.Equal(t, 13, l.ambiguityBase())
}

func TestPredictPropagatesPositionFromVelocity(t *testing.T) {
	s := newTestState()
	s.X.SetVec(0, 0)
	s.X.SetVec(3, 10) // 10 m/s along X

	q := ProcessNoise{VelocityRandomWalk: 0.01, ClockRandomWalk: 1.0, TropoRandomWalk: 0.001}
	s.Predict(10, q)

	assert.InDelta(t, 100, s.X.AtVec(0), 1e-9)
	// variance must have grown.
	assert.Greater(t, s.P.At(0, 0), 100*100.0)
}

func TestUpdateReducesUncertainty(t *testing.T) {
	s := newTestState()
	priorVar := s.P.At(0, 0)

	H := mat.NewDense(1, s.Layout.Dim(), nil)
	H.Set(0, 0, 1)
	v := mat.NewVecDense(1, []float64{5})
	R := mat.NewDense(1, 1, []float64{1})

	err := s.Update(H, v, R)
	require.NoError(t, err)
	assert.Less(t, s.P.At(0, 0), priorVar)
	assert.Greater(t, s.X.AtVec(0), 0.0)
}

func TestUpdateRecoversFromAsymmetricCovariance(t *testing.T) {
	s := newTestState()
	// introduce a tiny asymmetry, as floating point drift would.
	s.P.Set(0, 1, s.P.At(0, 1)+1e-6)

	H := mat.NewDense(1, s.Layout.Dim(), nil)
	H.Set(0, 0, 1)
	v := mat.NewVecDense(1, []float64{1})
	R := mat.NewDense(1, 1, []float64{1})

	err := s.Update(H, v, R)
	assert.NoError(t, err)
}

func TestResetClearsAmbiguitySlot(t *testing.T) {
	s := newTestState()
	idx := 0
	col := s.AmbiguityIndex(idx)
	s.X.SetVec(col, 12.5)
	s.LockCount[idx] = 20

	s.Reset(idx)

	assert.Equal(t, 0.0, s.X.AtVec(col))
	assert.Equal(t, 0, s.LockCount[idx])
	assert.Equal(t, PhaseReset, s.AmbiguityPhase[idx])
}

func TestReinitializeSeedsFreshAmbiguity(t *testing.T) {
	s := newTestState()
	idx := 1
	s.Reinitialize(idx, 7.3, 25.0)

	col := s.AmbiguityIndex(idx)
	assert.Equal(t, 7.3, s.X.AtVec(col))
	assert.Equal(t, 25.0, s.P.At(col, col))
	assert.Equal(t, PhaseWarm, s.AmbiguityPhase[idx])
}

func TestResolveAmbiguitiesRequiresMinLock(t *testing.T) {
	s := newTestState()
	s.X.SetVec(s.AmbiguityIndex(0), 3.01)
	s.X.SetVec(s.AmbiguityIndex(1), -1.98)
	s.LockCount[0] = 1
	s.LockCount[1] = 1

	result, err := s.ResolveAmbiguities([]int{0, 1}, AmbiguityValidation{RatioThreshold: 3.0, MinLockEpochs: 5})
	require.NoError(t, err)
	assert.False(t, result.Fixed)
}

func TestResolveAmbiguitiesFixesWellSeparatedIntegers(t *testing.T) {
	s := newTestState()
	s.X.SetVec(s.AmbiguityIndex(0), 3.01)
	s.X.SetVec(s.AmbiguityIndex(1), -1.98)
	s.P.Set(s.AmbiguityIndex(0), s.AmbiguityIndex(0), 0.01)
	s.P.Set(s.AmbiguityIndex(1), s.AmbiguityIndex(1), 0.01)
	s.LockCount[0] = 10
	s.LockCount[1] = 10

	result, err := s.ResolveAmbiguities([]int{0, 1}, AmbiguityValidation{RatioThreshold: 3.0, MinLockEpochs: 5})
	require.NoError(t, err)
	require.True(t, result.Fixed)
	assert.InDelta(t, 3, result.FixedValues[0], 1e-9)
	assert.InDelta(t, -2, result.FixedValues[1], 1e-9)
}

func TestHoldAmbiguitiesLocksState(t *testing.T) {
	s := newTestState()
	s.HoldAmbiguities([]int{0}, []float64{4}, 1e-6)

	col := s.AmbiguityIndex(0)
	assert.Equal(t, 4.0, s.X.AtVec(col))
	assert.Equal(t, 1e-6, s.P.At(col, col))
	assert.Equal(t, PhaseHold, s.AmbiguityPhase[0])
}

func TestAdvanceLockCountersResetsOnSlip(t *testing.T) {
	s := newTestState()
	s.LockCount[0] = 5
	s.LockCount[1] = 5

	s.AdvanceLockCounters([]bool{true, false})

	assert.Equal(t, 0, s.LockCount[0])
	assert.Equal(t, 6, s.LockCount[1])
}

func TestNoteOutageSignalsResetPastThreshold(t *testing.T) {
	s := newTestState()
	var reset bool
	for i := 0; i < 4; i++ {
		reset = s.NoteOutage(0, 3)
	}
	assert.True(t, reset)
}

func TestSlipDetectorFromLLI(t *testing.T) {
	d := NewSlipDetector()
	assert.True(t, d.FromLLI(1, 0, 1))
	assert.False(t, d.FromLLI(1, 0, 0))
	assert.True(t, d.FromLLI(1, 0, 2)) // half-cycle bit toggled from 0 -> 1 implied by bit2
}

func TestSlipDetectorFromGeometryFree(t *testing.T) {
	d := NewSlipDetector()
	assert.False(t, d.FromGeometryFree(1, 0, 0.123, 0.05)) // first observation, no prior
	assert.False(t, d.FromGeometryFree(1, 0, 0.130, 0.05))
	assert.True(t, d.FromGeometryFree(1, 0, 0.300, 0.05))
}

func TestSlipDetectorFromDoppler(t *testing.T) {
	d := NewSlipDetector()
	wavelength := 0.19
	d.FromDoppler(1, 0, 100.0, -50.0, 1.0, wavelength, 0.01)
	// next epoch matches predicted change closely: no slip.
	predicted := 100.0 + 50.0*1.0
	slip := d.FromDoppler(1, 0, predicted, -50.0, 1.0, wavelength, 0.01)
	assert.False(t, slip)

	d2 := NewSlipDetector()
	d2.FromDoppler(2, 0, 100.0, -50.0, 1.0, wavelength, 0.01)
	slip2 := d2.FromDoppler(2, 0, 100.0+1000, -50.0, 1.0, wavelength, 0.01)
	assert.True(t, slip2)
}

func TestMelbourneWubbena(t *testing.T) {
	mw := MelbourneWubbena(1000.0, 999.5, 20000000.0, 20000000.5, 1575.42e6, 1227.60e6, 299792458.0)
	assert.NotEqual(t, 0.0, mw)
}

func TestCombineForwardBackward(t *testing.T) {
	fwd := newTestState()
	bwd := newTestState()
	fwd.X.SetVec(0, 10)
	bwd.X.SetVec(0, 12)

	smoothed, err := CombineForwardBackward(fwd, bwd)
	require.NoError(t, err)
	// equal-variance fusion should land at the midpoint.
	assert.InDelta(t, 11, smoothed.X.AtVec(0), 1e-6)
	// fused variance should be tighter than either input.
	assert.Less(t, smoothed.P.At(0, 0), fwd.P.At(0, 0))
}

func TestCombineForwardBackwardRejectsMismatchedLayout(t *testing.T) {
	fwd := newTestState()
	bwd := NewState(Layout{Dynamics: config.DynamicsNone, NumAmbiguities: 1})

	_, err := CombineForwardBackward(fwd, bwd)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	s := newTestState()
	s.X.SetVec(0, 42)
	h := s.Snapshot(123.0)

	s.X.SetVec(0, 0)
	s.Restore(h)

	assert.Equal(t, 42.0, s.X.AtVec(0))
	assert.Equal(t, 123.0, h.Time)
}
