package ephemeris

import (
	"math"

	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

const (
	reGLO   = 6378136.0       // GLONASS earth radius (m), ICD ref [2]
	muGLO   = 3.9860044e14    // GLONASS gravitational constant
	j2GLO   = 1.0826257e-3    // 2nd zonal harmonic of the geopotential
	omegeGLO = 7.292115e-5    // GLONASS earth rotation rate (rad/s)
	errephGLO = 5.0           // nominal GLONASS ephemeris error (m)
	integrationStep = 60.0    // RK4 step (s)
)

// GlonassElements is the broadcast GLONASS state vector (position,
// velocity, lunisolar acceleration) plus clock terms, matching GEph.
type GlonassElements struct {
	Sat gnssobs.SatID
	Toe gtime.Time

	Pos [3]float64
	Vel [3]float64
	Acc [3]float64 // lunisolar acceleration (m/s^2)

	TauN, GammaN float64 // clock bias (s), relative frequency offset
}

// glonassDerivative evaluates the GLONASS orbital differential equations
// (position/velocity state and its time derivative), matching Deq. Includes
// the J2 oblateness term and Coriolis terms from earth rotation; acc is the
// externally supplied lunisolar perturbation.
func glonassDerivative(x [6]float64, acc [3]float64) [6]float64 {
	r2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	if r2 <= 0 {
		return [6]float64{}
	}
	r3 := r2 * math.Sqrt(r2)
	omg2 := omegeGLO * omegeGLO

	a := 1.5 * j2GLO * muGLO * reGLO * reGLO / r2 / r3
	b := 5.0 * x[2] * x[2] / r2
	c := -muGLO/r3 - a*(1.0-b)

	var xdot [6]float64
	xdot[0] = x[3]
	xdot[1] = x[4]
	xdot[2] = x[5]
	xdot[3] = (c+omg2)*x[0] + 2.0*omegeGLO*x[4] + acc[0]
	xdot[4] = (c+omg2)*x[1] - 2.0*omegeGLO*x[3] + acc[1]
	xdot[5] = (c-2.0*a)*x[2] + acc[2]
	return xdot
}

// integrateGlonassOrbit advances state x by dt seconds using classical
// 4th-order Runge-Kutta, matching Glorbit.
func integrateGlonassOrbit(x [6]float64, dt float64, acc [3]float64) [6]float64 {
	add := func(a, b [6]float64, scale float64) [6]float64 {
		var out [6]float64
		for i := range out {
			out[i] = a[i] + b[i]*scale
		}
		return out
	}

	k1 := glonassDerivative(x, acc)
	k2 := glonassDerivative(add(x, k1, dt/2), acc)
	k3 := glonassDerivative(add(x, k2, dt/2), acc)
	k4 := glonassDerivative(add(x, k3, dt), acc)

	var out [6]float64
	for i := range out {
		out[i] = x[i] + (k1[i]+2*k2[i]+2*k3[i]+k4[i])*dt/6.0
	}
	return out
}

// PositionGLONASS evaluates geph at time t (GPST) by numerically
// integrating its broadcast state vector from Toe to t in fixed steps,
// matching GEph2Pos plus GEph2Clk's linear clock model.
func PositionGLONASS(t gtime.Time, geph GlonassElements) Result {
	tRemain := t.Sub(geph.Toe)
	clk := -geph.TauN + geph.GammaN*tRemain

	var x [6]float64
	copy(x[0:3], geph.Pos[:])
	copy(x[3:6], geph.Vel[:])

	step := integrationStep
	if tRemain < 0 {
		step = -integrationStep
	}
	for remaining := tRemain; math.Abs(remaining) > 1e-9; remaining -= step {
		if math.Abs(remaining) < integrationStep {
			step = remaining
		}
		x = integrateGlonassOrbit(x, step, geph.Acc)
	}

	return Result{
		PositionECEF: [3]float64{x[0], x[1], x[2]},
		ClockBiasSec: clk,
		VarianceM2:   errephGLO * errephGLO,
	}
}
