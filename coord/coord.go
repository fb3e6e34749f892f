// Package coord implements ECEF/geodetic/ENU transforms and the satellite
// geometry (line-of-sight, azimuth/elevation, geometric range with Sagnac
// correction, DOP) shared by the SPP and RTK/PPP solvers.
//
// Grounded on FengXuebin-gnssgo/src/common.go's Ecef2Pos/Pos2Ecef/Ecef2Enu/
// Enu2Ecef/GeoDist/SatAzel/DOPs.
package coord

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	wgs84A = 6378137.0             // earth semimajor axis (WGS84) (m)
	wgs84F = 1.0 / 298.257223563   // earth flattening (WGS84)
	omegaE = 7.2921151467e-5       // earth angular velocity (IS-GPS) (rad/s)
	clight = 299792458.0           // speed of light (m/s)
)

// ECEF is an earth-centered, earth-fixed cartesian position or vector (m).
type ECEF struct{ X, Y, Z float64 }

// Geodetic is a WGS84 geodetic position: latitude/longitude (rad), height
// above the ellipsoid (m).
type Geodetic struct{ Lat, Lon, Height float64 }

// ENU is a local east/north/up vector at some reference geodetic position.
type ENU struct{ E, N, U float64 }

// ToGeodetic converts r to WGS84 geodetic coordinates by Bowring's iteration,
// matching Ecef2Pos.
func (r ECEF) ToGeodetic() Geodetic {
	e2 := wgs84F * (2.0 - wgs84F)
	r2 := r.X*r.X + r.Y*r.Y
	v := wgs84A
	var z, zk float64
	z = r.Z
	for math.Abs(z-zk) >= 1e-4 {
		zk = z
		sinp := z / math.Sqrt(r2+z*z)
		v = wgs84A / math.Sqrt(1.0-e2*sinp*sinp)
		z = r.Z + v*e2*sinp
	}
	var lat, lon float64
	if r2 > 1e-12 {
		lat = math.Atan(z / math.Sqrt(r2))
		lon = math.Atan2(r.Y, r.X)
	} else if r.Z > 0.0 {
		lat = math.Pi / 2.0
	} else {
		lat = -math.Pi / 2.0
	}
	height := math.Sqrt(r2+z*z) - v
	return Geodetic{Lat: lat, Lon: lon, Height: height}
}

// ToECEF converts a WGS84 geodetic position to ECEF, matching Pos2Ecef.
func (pos Geodetic) ToECEF() ECEF {
	sinp, cosp := math.Sincos(pos.Lat)
	sinl, cosl := math.Sincos(pos.Lon)
	e2 := wgs84F * (2.0 - wgs84F)
	v := wgs84A / math.Sqrt(1.0-e2*sinp*sinp)
	return ECEF{
		X: (v + pos.Height) * cosp * cosl,
		Y: (v + pos.Height) * cosp * sinl,
		Z: (v*(1.0-e2) + pos.Height) * sinp,
	}
}

// enuRotation builds the 3x3 ECEF->ENU rotation matrix at geodetic pos,
// matching XYZ2Enu.
func enuRotation(pos Geodetic) *mat.Dense {
	sinp, cosp := math.Sincos(pos.Lat)
	sinl, cosl := math.Sincos(pos.Lon)
	return mat.NewDense(3, 3, []float64{
		-sinl, cosl, 0,
		-sinp * cosl, -sinp * sinl, cosp,
		cosp * cosl, cosp * sinl, sinp,
	})
}

// ToENU rotates an ECEF vector v into the local east/north/up frame anchored
// at pos, matching Ecef2Enu.
func ToENU(pos Geodetic, v ECEF) ENU {
	e := enuRotation(pos)
	out := mat.NewVecDense(3, nil)
	out.MulVec(e, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return ENU{E: out.AtVec(0), N: out.AtVec(1), U: out.AtVec(2)}
}

// FromENU rotates a local east/north/up vector back to ECEF, matching
// Enu2Ecef.
func FromENU(pos Geodetic, v ENU) ECEF {
	e := enuRotation(pos)
	out := mat.NewVecDense(3, nil)
	out.MulVec(e.T(), mat.NewVecDense(3, []float64{v.E, v.N, v.U}))
	return ECEF{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// GeometricRange returns the line-of-sight unit vector (receiver->satellite,
// ECEF) and the geometric range including the Sagnac (earth-rotation)
// correction, matching GeoDist. Returns ok=false if the satellite position
// looks degenerate (inside the earth).
func GeometricRange(satPos, rcvPos ECEF) (los ECEF, rangeM float64, ok bool) {
	if norm3(satPos) < wgs84A {
		return ECEF{}, -1.0, false
	}
	dx := ECEF{X: satPos.X - rcvPos.X, Y: satPos.Y - rcvPos.Y, Z: satPos.Z - rcvPos.Z}
	r := norm3(dx)
	los = ECEF{X: dx.X / r, Y: dx.Y / r, Z: dx.Z / r}
	sagnac := omegaE * (satPos.X*rcvPos.Y - satPos.Y*rcvPos.X) / clight
	return los, r + sagnac, true
}

func norm3(v ECEF) float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// AzEl computes azimuth and elevation (rad) of the line-of-sight unit vector
// los as seen from a receiver at geodetic position pos, matching SatAzel.
// Azimuth is measured clockwise from north, in [0, 2pi); elevation in
// [-pi/2, pi/2].
func AzEl(pos Geodetic, los ECEF) (az, el float64) {
	el = math.Pi / 2.0
	if pos.Height <= -wgs84A {
		return 0, el
	}
	enu := ToENU(pos, los)
	if enu.E*enu.E+enu.N*enu.N < 1e-12 {
		az = 0
	} else {
		az = math.Atan2(enu.E, enu.N)
	}
	if az < 0 {
		az += 2 * math.Pi
	}
	el = math.Asin(clamp(enu.U, -1, 1))
	return az, el
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// DOP holds the standard dilution-of-precision figures of merit.
type DOP struct {
	GDOP, PDOP, HDOP, VDOP float64
}

// ErrIllConditioned is returned by ComputeDOP when fewer than 4 usable
// satellites are present or the normal matrix cannot be inverted.
var ErrIllConditioned = dopError("insufficient or ill-conditioned geometry for DOP")

type dopError string

func (e dopError) Error() string { return string(e) }

// ComputeDOP builds the 4-column design matrix H with rows
// (sin(az)cos(el), cos(az)cos(el), sin(el), 1) for every satellite with
// elevation >= elevMask, computes (HᵀH)⁻¹, and extracts GDOP/PDOP/HDOP/VDOP
// as square roots of trace subsets. Matches DOPs; rejects (returns
// ErrIllConditioned) when GDOP would exceed maxGDOP or n<4.
func ComputeDOP(azel [][2]float64, elevMask, maxGDOP float64) (DOP, error) {
	rows := make([]float64, 0, len(azel)*4)
	n := 0
	for _, v := range azel {
		az, el := v[0], v[1]
		if el < elevMask || el <= 0 {
			continue
		}
		cosel, sinel := math.Cos(el), math.Sin(el)
		rows = append(rows, cosel*math.Sin(az), cosel*math.Cos(az), sinel, 1.0)
		n++
	}
	if n < 4 {
		return DOP{}, ErrIllConditioned
	}
	H := mat.NewDense(n, 4, rows)
	var Q mat.Dense
	Q.Mul(H.T(), H)
	var inv mat.Dense
	if err := inv.Inverse(&Q); err != nil {
		return DOP{}, ErrIllConditioned
	}
	gdop := math.Sqrt(inv.At(0, 0) + inv.At(1, 1) + inv.At(2, 2) + inv.At(3, 3))
	if gdop > maxGDOP {
		return DOP{}, ErrIllConditioned
	}
	return DOP{
		GDOP: gdop,
		PDOP: math.Sqrt(inv.At(0, 0) + inv.At(1, 1) + inv.At(2, 2)),
		HDOP: math.Sqrt(inv.At(0, 0) + inv.At(1, 1)),
		VDOP: math.Sqrt(inv.At(2, 2)),
	}, nil
}
