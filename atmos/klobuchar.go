// Package atmos implements the broadcast Klobuchar ionospheric model and the
// Saastamoinen tropospheric model with Niell mapping, as specified for the
// SPP and RTK/PPP solvers.
//
// Grounded on FengXuebin-gnssgo/src/common.go's IonModel/IonMapf/TropModel/
// nmf/TropMapFunc.
package atmos

import (
	"math"

	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/gtime"
)

const clight = 299792458.0

// KlobucharCoefficients are the broadcast alpha/beta coefficients, {a0..a3,
// b0..b3}.
type KlobucharCoefficients struct {
	Alpha, Beta [4]float64
}

// defaultCoefficients are used when the broadcast set is all-zero, matching
// ion_default in IonModel (the 2004/1/1 reference set).
var defaultCoefficients = KlobucharCoefficients{
	Alpha: [4]float64{0.1118e-07, -0.7451e-08, -0.5961e-07, 0.1192e-06},
	Beta:  [4]float64{0.1167e+06, -0.2294e+06, -0.1311e+06, 0.1049e+07},
}

// Delay computes the L1 ionospheric delay (m) and its variance for a
// receiver at geodetic position pos observing a satellite at azimuth/
// elevation azel (rad), at time t (GPST). Matches IonModel plus the spec's
// elevation-dependent variance inflation below 5 degrees.
func Delay(t gtime.Time, coef KlobucharCoefficients, pos coord.Geodetic, az, el float64) (delayM, varianceM2 float64) {
	if pos.Height < -1e3 || el <= 0 {
		return 0, 0
	}
	if coef.Alpha == ([4]float64{}) && coef.Beta == ([4]float64{}) {
		coef = defaultCoefficients
	}

	// earth-centered angle (semi-circle)
	psi := 0.0137/(el/math.Pi+0.11) - 0.022

	// subionospheric latitude/longitude (semi-circle)
	phi := pos.Lat/math.Pi + psi*math.Cos(az)
	if phi > 0.416 {
		phi = 0.416
	} else if phi < -0.416 {
		phi = -0.416
	}
	lam := pos.Lon/math.Pi + psi*math.Sin(az)/math.Cos(phi*math.Pi)

	// geomagnetic latitude (semi-circle)
	phi += 0.064 * math.Cos((lam-1.617)*math.Pi)

	// local time (s)
	_, sec := t.GPSWeekSec()
	tt := 43200.0*lam + sec
	tt -= math.Floor(tt/86400.0) * 86400.0

	// slant factor
	f := 1.0 + 16.0*math.Pow(0.53-el/math.Pi, 3.0)

	amp := coef.Alpha[0] + phi*(coef.Alpha[1]+phi*(coef.Alpha[2]+phi*coef.Alpha[3]))
	per := coef.Beta[0] + phi*(coef.Beta[1]+phi*(coef.Beta[2]+phi*coef.Beta[3]))
	if amp < 0 {
		amp = 0
	}
	if per < 72000.0 {
		per = 72000.0
	}
	x := 2.0 * math.Pi * (tt - 50400.0) / per

	if math.Abs(x) < 1.57 {
		delayM = clight * f * (5e-9 + amp*(1.0+x*x*(-0.5+x*x/24.0)))
	} else {
		delayM = clight * f * 5e-9
	}

	// broadcast ionosphere model error factor (ERR_BRDCI in the reference
	// implementation): variance scales with the delay estimate itself.
	const errBrdcI = 0.5
	varianceM2 = (delayM * errBrdcI) * (delayM * errBrdcI)
	if el < 5*math.Pi/180 {
		varianceM2 = 0.3 * 0.3
	}
	return delayM, varianceM2
}

// MappingFunction returns the single-layer-model ionospheric slant factor
// for a pierce-point height of 350km, matching IonMapf.
func MappingFunction(pos coord.Geodetic, el float64) float64 {
	const hIon = 350000.0
	const reWGS84 = 6378137.0
	if pos.Height >= hIon {
		return 1.0
	}
	return 1.0 / math.Cos(math.Asin((reWGS84+pos.Height)/(reWGS84+hIon)*math.Sin(math.Pi/2.0-el)))
}
