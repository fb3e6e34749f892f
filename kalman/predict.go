package kalman

import (
	"github.com/fxb-gnss/gnsscore/config"
	"gonum.org/v1/gonum/mat"
)

// ProcessNoise holds the per-second (or per-sqrt-second, for random-walk
// terms) process noise spectral densities driving the time update.
// Matches the teacher's opt.Prn[] array of per-state process noise
// scalars, generalized into named fields.
type ProcessNoise struct {
	PositionRandomWalk     float64 // m/sqrt(s), used when Dynamics==None
	VelocityRandomWalk     float64 // (m/s)/sqrt(s), used when Dynamics>=Velocity
	AccelerationRandomWalk float64 // (m/s^2)/sqrt(s), used when Dynamics==Acceleration
	ClockRandomWalk        float64 // m/sqrt(s)
	TropoRandomWalk        float64 // m/sqrt(s)
	IonoRandomWalk         float64 // m/sqrt(s)
}

// Predict advances the state by dt seconds: position integrates velocity
// (and velocity integrates acceleration, under the Acceleration dynamics
// model), the clock and troposphere/ionosphere terms random-walk, and
// ambiguities are left unchanged (they are constants between cycle slips).
// Matches UpdatePos/UpdateTrop/UpdateIon's transition-matrix construction
// generalized into one time update.
func (s *State) Predict(dt float64, q ProcessNoise) {
	n := s.Layout.Dim()
	F := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		F.Set(i, i, 1)
	}

	switch s.Layout.Dynamics {
	case config.DynamicsVelocity:
		for i := 0; i < 3; i++ {
			F.Set(i, 3+i, dt)
		}
	case config.DynamicsAcceleration:
		for i := 0; i < 3; i++ {
			F.Set(i, 3+i, dt)
			F.Set(i, 6+i, 0.5*dt*dt)
			F.Set(3+i, 6+i, dt)
		}
	}

	var xp mat.VecDense
	xp.MulVec(F, s.X)
	s.X = &xp

	var Pp mat.Dense
	Pp.Mul(F, s.P)
	Pp.Mul(&Pp, F.T())

	Q := processNoiseMatrix(s.Layout, dt, q)
	Pp.Add(&Pp, Q)
	s.P = &Pp
}

func processNoiseMatrix(layout Layout, dt float64, q ProcessNoise) *mat.Dense {
	n := layout.Dim()
	Q := mat.NewDense(n, n, nil)

	switch layout.Dynamics {
	case config.DynamicsNone:
		for i := 0; i < 3; i++ {
			Q.Set(i, i, q.PositionRandomWalk*q.PositionRandomWalk*dt)
		}
	case config.DynamicsVelocity:
		for i := 0; i < 3; i++ {
			Q.Set(3+i, 3+i, q.VelocityRandomWalk*q.VelocityRandomWalk*dt)
		}
	case config.DynamicsAcceleration:
		for i := 0; i < 3; i++ {
			Q.Set(6+i, 6+i, q.AccelerationRandomWalk*q.AccelerationRandomWalk*dt)
		}
	}

	Q.Set(layout.clockIndex(), layout.clockIndex(), q.ClockRandomWalk*q.ClockRandomWalk*dt)

	if idx := layout.tropoIndex(); idx >= 0 {
		Q.Set(idx, idx, q.TropoRandomWalk*q.TropoRandomWalk*dt)
	}
	if base := layout.ionoBase(); base >= 0 {
		for i := 0; i < layout.NumIonoSats; i++ {
			Q.Set(base+i, base+i, q.IonoRandomWalk*q.IonoRandomWalk*dt)
		}
	}
	return Q
}
