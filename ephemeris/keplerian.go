// Package ephemeris evaluates broadcast navigation messages (Keplerian for
// GPS/Galileo/QZSS/BeiDou/IRNSS, numerically-integrated for GLONASS) into
// satellite position, clock bias and a position/clock variance.
//
// Grounded on FengXuebin-gnssgo/src/ephemeris.go's Eph2Pos/Eph2Clk (Kepler
// solve, harmonic corrections, BeiDou GEO frame rotation) and
// Deq/Glorbit/GEph2Pos/GEph2Clk (GLONASS RK4 propagation).
package ephemeris

import (
	"math"

	"github.com/fxb-gnss/gnsscore/errkind"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

const (
	muGPS = 3.9860050e14   // GPS gravitational constant, IS-GPS-200K
	muGAL = 3.986004418e14 // Galileo gravitational constant
	muCMP = 3.986004418e14 // BeiDou gravitational constant

	omegeGAL = 7.2921151467e-5 // Galileo earth rotation rate (rad/s)
	omegeCMP = 7.292115e-5     // BeiDou earth rotation rate (rad/s)
	omegeIGS = 7.2921151467e-5 // IS-GPS earth rotation rate (rad/s)

	sin5Deg = -0.0871557427476582 // sin(-5 deg), BeiDou GEO frame rotation
	cos5Deg = 0.9961946980917456  // cos(-5 deg), BeiDou GEO frame rotation

	rtolKepler    = 1e-13
	maxIterKepler = 30

	clight = 299792458.0
)

// KeplerianElements is the broadcast orbital element set common to GPS,
// Galileo, QZSS, BeiDou (MEO/IGSO/GEO) and IRNSS, matching the Eph struct's
// Kepler-relevant fields.
type KeplerianElements struct {
	Sat gnssobs.SatID

	Toe, Toc gtime.Time
	Toes     float64 // Toe, GNSS time-of-week seconds (s), for Sagnac-style rotation

	A, E, I0, Omg, OMG0, OMGd, M0, Deln, Idot float64
	Cuc, Cus, Crc, Crs, Cic, Cis              float64

	F0, F1, F2 float64 // clock polynomial coefficients (s, s/s, s/s^2)

	URA int // user range accuracy index/sigma class
}

// isBeiDouGEO reports whether sat requires the extra frame rotation in
// ref [9] table 4-1. Restricted to PRN<=5 (BDS-2 GEO); BDS-3 IGSO/GEO uses
// a different orbital-element convention (Aref_MEO/Aref_IGSO_GEO in the
// reference implementation) not modeled here.
func isBeiDouGEO(sat gnssobs.SatID) bool {
	return sat.System() == gnssobs.SystemBeiDou && sat.PRN() <= 5
}

// Result is a satellite's evaluated position, clock bias, and the combined
// position/clock variance (m^2) to feed into the observation's weight.
type Result struct {
	PositionECEF [3]float64
	ClockBiasSec float64
	VarianceM2   float64
}

// ErrKeplerDiverged is returned when Newton's method fails to converge on
// the eccentric anomaly within maxIterKepler iterations.
var ErrKeplerDiverged = errkind.New(errkind.Ephemeris, "Position", "kepler iteration did not converge")

func gravitationalConstant(sys gnssobs.System) (mu, omge float64) {
	switch sys {
	case gnssobs.SystemGalileo:
		return muGAL, omegeGAL
	case gnssobs.SystemBeiDou:
		return muCMP, omegeCMP
	default:
		return muGPS, omegeIGS
	}
}

// Position evaluates the Keplerian ephemeris eph at time t (GPST),
// returning ECEF satellite position, clock bias and variance. Matches
// Eph2Pos plus Eph2Clk's relativistic correction term.
func Position(t gtime.Time, eph KeplerianElements) (Result, error) {
	sys := eph.Sat.System()
	mu, omge := gravitationalConstant(sys)

	tk := t.Sub(eph.Toe)
	meanMotion := math.Sqrt(mu/(eph.A*eph.A*eph.A)) + eph.Deln
	M := eph.M0 + meanMotion*tk

	E, ok := solveKepler(M, eph.E)
	if !ok {
		return Result{}, ErrKeplerDiverged
	}
	sinE, cosE := math.Sin(E), math.Cos(E)

	u := math.Atan2(math.Sqrt(1.0-eph.E*eph.E)*sinE, cosE-eph.E) + eph.Omg
	r := eph.A * (1.0 - eph.E*cosE)
	incl := eph.I0 + eph.Idot*tk

	sin2u, cos2u := math.Sin(2.0*u), math.Cos(2.0*u)
	u += eph.Cus*sin2u + eph.Cuc*cos2u
	r += eph.Crs*sin2u + eph.Crc*cos2u
	incl += eph.Cis*sin2u + eph.Cic*cos2u

	x := r * math.Cos(u)
	y := r * math.Sin(u)
	cosi := math.Cos(incl)

	var pos [3]float64
	if isBeiDouGEO(eph.Sat) {
		O := eph.OMG0 + eph.OMGd*tk - omge*eph.Toes
		sinO, cosO := math.Sin(O), math.Cos(O)
		xg := x*cosO - y*cosi*sinO
		yg := x*sinO + y*cosi*cosO
		zg := y * math.Sin(incl)
		sino, coso := math.Sin(omge*tk), math.Cos(omge*tk)
		pos[0] = xg*coso + yg*sino*cos5Deg + zg*sino*sin5Deg
		pos[1] = -xg*sino + yg*coso*cos5Deg + zg*coso*sin5Deg
		pos[2] = -yg*sin5Deg + zg*cos5Deg
	} else {
		O := eph.OMG0 + (eph.OMGd-omge)*tk - omge*eph.Toes
		sinO, cosO := math.Sin(O), math.Cos(O)
		pos[0] = x*cosO - y*cosi*sinO
		pos[1] = x*sinO + y*cosi*cosO
		pos[2] = y * math.Sin(incl)
	}

	tc := t.Sub(eph.Toc)
	clk := eph.F0 + eph.F1*tc + eph.F2*tc*tc
	clk -= 2.0 * math.Sqrt(mu*eph.A) * eph.E * sinE / (clight * clight) // relativity correction

	return Result{
		PositionECEF: pos,
		ClockBiasSec: clk,
		VarianceM2:   uraVariance(sys, eph.URA),
	}, nil
}

// solveKepler solves E - e*sin(E) = M for the eccentric anomaly E by
// Newton's method, matching the iteration in Eph2Pos.
func solveKepler(M, e float64) (E float64, ok bool) {
	E, Ek := M, 0.0
	n := 0
	for math.Abs(E-Ek) > rtolKepler && n < maxIterKepler {
		Ek = E
		E -= (E - e*math.Sin(E) - M) / (1.0 - e*math.Cos(E))
		n++
	}
	return E, n < maxIterKepler
}

// uraVariance maps a user-range-accuracy class to a variance (m^2),
// matching var_uraeph. Galileo SISA uses a continuous scale (ref [7]
// 5.1.11); other Keplerian systems use the discrete GPS URA table (ref [1]
// 20.3.3.3.1.1).
func uraVariance(sys gnssobs.System, ura int) float64 {
	if sys == gnssobs.SystemGalileo {
		switch {
		case ura <= 49:
			return sqr(float64(ura) * 0.01)
		case ura <= 74:
			return sqr(0.5 + float64(ura-50)*0.02)
		case ura <= 99:
			return sqr(1.0 + float64(ura-75)*0.04)
		case ura <= 125:
			return sqr(2.0 + float64(ura-100)*0.16)
		default:
			return sqr(500.0)
		}
	}
	uraValues := [...]float64{
		2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0, 96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0,
	}
	if ura < 0 || ura >= len(uraValues) {
		return sqr(6144.0)
	}
	return sqr(uraValues[ura])
}

func sqr(x float64) float64 { return x * x }
