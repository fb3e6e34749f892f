package atmos

import (
	"math"

	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/gtime"
)

const (
	errSaas = 0.3 // Saastamoinen model error std (m)
	relHumi = 0.7 // standard relative humidity
)

// TroposphereDelay computes the Saastamoinen tropospheric delay (m) at
// elevation el (rad) for a receiver at geodetic position pos, mapped from
// zenith with 1/cos(z) at every elevation (the Niell mapping of
// MapTroposphere is not applied here), and its variance
// (ERR_SAAS/(sin(el)+0.1))^2, replaced by (0.3 m)^2 below 5 degrees.
// Matches TropModel plus TropCorr's variance term.
func TroposphereDelay(pos coord.Geodetic, el float64) (delayM, varianceM2 float64) {
	if pos.Height < -100 || pos.Height > 1e4 || el <= 0 {
		return 0, 0
	}
	hgt := pos.Height
	if hgt < 0 {
		hgt = 0
	}
	const tempSeaLevel = 15.0
	pres := 1013.25 * math.Pow(1.0-2.2557e-5*hgt, 5.2568)
	temp := tempSeaLevel - 6.5e-3*hgt + 273.16
	e := 6.108 * relHumi * math.Exp((17.15*temp-4684.0)/(temp-38.45))

	z := math.Pi/2.0 - el
	trph := 0.0022768 * pres / (1.0 - 0.00266*math.Cos(2.0*pos.Lat) - 0.00028*hgt/1e3) / math.Cos(z)
	trpw := 0.002277 * (1255.0/temp + 0.05) * e / math.Cos(z)

	delayM = trph + trpw
	varianceM2 = (errSaas / (math.Sin(el) + 0.1)) * (errSaas / (math.Sin(el) + 0.1))
	if el < 5*math.Pi/180 {
		varianceM2 = 0.3 * 0.3
	}
	return delayM, varianceM2
}

// niellCoef holds the Niell mapping function hydrostatic average/amplitude
// and wet coefficients at reference latitudes 15/30/45/60/75 degrees.
// Matches the `coef` table in nmf.
var niellCoef = [9][5]float64{
	{1.2769934e-3, 1.2683230e-3, 1.2465397e-3, 1.2196049e-3, 1.2045996e-3},
	{2.9153695e-3, 2.9152299e-3, 2.9288445e-3, 2.9022565e-3, 2.9024912e-3},
	{62.610505e-3, 62.837393e-3, 63.721774e-3, 63.824265e-3, 64.258455e-3},

	{0, 1.2709626e-5, 2.6523662e-5, 3.4000452e-5, 4.1202191e-5},
	{0, 2.1414979e-5, 3.0160779e-5, 7.2562722e-5, 11.723375e-5},
	{0, 9.0128400e-5, 4.3497037e-5, 84.795348e-5, 170.37206e-5},

	{5.8021897e-4, 5.6794847e-4, 5.8118019e-4, 5.9727542e-4, 6.1641693e-4},
	{1.4275268e-3, 1.5138625e-3, 1.4572752e-3, 1.5007428e-3, 1.7599082e-3},
	{4.3472961e-2, 4.6729510e-2, 4.3908931e-2, 4.4626982e-2, 5.4736038e-2},
}

var niellHeightCorr = [3]float64{2.53e-5, 5.49e-3, 1.14e-3}

func interpLat(coef [5]float64, lat float64) float64 {
	i := int(lat / 15.0)
	switch {
	case i < 1:
		return coef[0]
	case i > 4:
		return coef[4]
	}
	return coef[i-1]*(1.0-lat/15.0+float64(i)) + coef[i]*(lat/15.0-float64(i))
}

func mapf(el, a, b, c float64) float64 {
	sinel := math.Sin(el)
	return (1.0 + a/(1.0+b/(1.0+c))) / (sinel + (a / (sinel + b/(sinel+c))))
}

// NiellMappingFunction returns the hydrostatic mapping function value (dry
// mapping) and sets wetMap to the wet mapping function value for elevation
// el (rad) at time t and geodetic position pos. Matches nmf/TropMapFunc;
// used above 15 degrees elevation per the spec, with 1/cos(z) used below
// that by the caller.
func NiellMappingFunction(t gtime.Time, pos coord.Geodetic, el float64) (dryMap, wetMap float64) {
	if el <= 0 {
		return 0, 0
	}
	lat := pos.Lat * 180 / math.Pi
	hgt := pos.Height

	lat2 := 0.0
	if lat < 0 {
		lat2 = 0.5
	}
	y := (t.DayOfYear()-28.0)/365.25 + lat2
	cosy := math.Cos(2.0 * math.Pi * y)
	alat := math.Abs(lat)

	var ah, aw [3]float64
	for i := 0; i < 3; i++ {
		ah[i] = interpLat(niellCoef[i], alat) - interpLat(niellCoef[i+3], alat)*cosy
		aw[i] = interpLat(niellCoef[i+6], alat)
	}
	dm := (1.0/math.Sin(el) - mapf(el, niellHeightCorr[0], niellHeightCorr[1], niellHeightCorr[2])) * hgt / 1e3

	wetMap = mapf(el, aw[0], aw[1], aw[2])
	dryMap = mapf(el, ah[0], ah[1], ah[2]) + dm
	return dryMap, wetMap
}

// MapTroposphere applies the spec's mapping rule: 1/cos(zenith) below 15
// degrees elevation, the Niell mapping function at or above it.
func MapTroposphere(t gtime.Time, pos coord.Geodetic, el float64) (dryMap, wetMap float64) {
	const fifteenDeg = 15 * math.Pi / 180
	if el < fifteenDeg {
		z := math.Pi/2.0 - el
		m := 1.0 / math.Cos(z)
		return m, m
	}
	return NiellMappingFunction(t, pos, el)
}
