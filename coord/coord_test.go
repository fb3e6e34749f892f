package coord_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/coord"
)

func TestGeodeticRoundTrip(t *testing.T) {
	assert := assert.New(t)
	cases := []coord.ECEF{
		{X: 4075580.0, Y: 931853.0, Z: 4801568.0}, // roughly mid-latitude Europe
		{X: -2694685.0, Y: -4293642.0, Z: 3857878.0},
		{X: 6378137.0, Y: 0, Z: 0}, // on the equator
	}
	for _, r := range cases {
		pos := r.ToGeodetic()
		back := pos.ToECEF()
		assert.InDelta(r.X, back.X, 1e-4)
		assert.InDelta(r.Y, back.Y, 1e-4)
		assert.InDelta(r.Z, back.Z, 1e-4)
	}
}

func TestENURoundTrip(t *testing.T) {
	assert := assert.New(t)
	pos := coord.Geodetic{Lat: 0.7, Lon: 1.2, Height: 100}
	v := coord.ECEF{X: 123.4, Y: -56.7, Z: 890.1}
	enu := coord.ToENU(pos, v)
	back := coord.FromENU(pos, enu)
	assert.InDelta(v.X, back.X, 1e-9)
	assert.InDelta(v.Y, back.Y, 1e-9)
	assert.InDelta(v.Z, back.Z, 1e-9)
}

func TestAzElOverhead(t *testing.T) {
	assert := assert.New(t)
	pos := coord.Geodetic{Lat: 0.5, Lon: 0.3, Height: 0}
	// a satellite along the local up direction should read ~90 deg elevation
	los := coord.FromENU(pos, coord.ENU{E: 0, N: 0, U: 1})
	_, el := coord.AzEl(pos, los)
	assert.InDelta(math.Pi/2, el, 1e-6)
}

func TestGeometricRangeSagnac(t *testing.T) {
	assert := assert.New(t)
	sat := coord.ECEF{X: 20000000, Y: 0, Z: 15000000}
	rcv := coord.ECEF{X: 6378137, Y: 0, Z: 0}
	los, r, ok := coord.GeometricRange(sat, rcv)
	assert.True(ok)
	assert.Greater(r, 0.0)
	mag := math.Sqrt(los.X*los.X + los.Y*los.Y + los.Z*los.Z)
	assert.InDelta(1.0, mag, 1e-9)
}

func TestGeometricRangeDegenerate(t *testing.T) {
	assert := assert.New(t)
	_, _, ok := coord.GeometricRange(coord.ECEF{X: 1, Y: 1, Z: 1}, coord.ECEF{})
	assert.False(ok)
}

func TestComputeDOPGoodGeometry(t *testing.T) {
	assert := assert.New(t)
	azel := [][2]float64{
		{0, 1.2}, {math.Pi / 2, 1.0}, {math.Pi, 0.9}, {3 * math.Pi / 2, 1.1}, {0.5, 0.3},
	}
	dop, err := coord.ComputeDOP(azel, 5*math.Pi/180, 30)
	assert.NoError(err)
	assert.Greater(dop.GDOP, 0.0)
	assert.Greater(dop.PDOP, 0.0)
}

func TestComputeDOPTooFewSats(t *testing.T) {
	assert := assert.New(t)
	azel := [][2]float64{{0, 1.2}, {1, 1.0}, {2, 0.9}}
	_, err := coord.ComputeDOP(azel, 5*math.Pi/180, 30)
	assert.ErrorIs(err, coord.ErrIllConditioned)
}

func TestComputeDOPClusteredSky(t *testing.T) {
	assert := assert.New(t)
	// four satellites bunched in a 20-degree sector: bad geometry, should
	// reject via a GDOP bound regardless of satisfying the n>=4 floor.
	azel := [][2]float64{
		{0.10, 0.5}, {0.12, 0.55}, {0.14, 0.52}, {0.16, 0.48},
	}
	_, err := coord.ComputeDOP(azel, 5*math.Pi/180, 5.0)
	assert.Error(err)
}
