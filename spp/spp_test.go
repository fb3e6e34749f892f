package spp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/spp"
)

const clight = 299792458.0

// syntheticMeasurements places satellites on a sphere around a known
// receiver position and builds exact pseudoranges (no noise, no atmosphere)
// so the WLS solver should recover the receiver position very closely.
func syntheticMeasurements(rcv coord.ECEF, clockBiasSec float64) []spp.Measurement {
	sats := [][3]float64{
		{2.0e7, 1.0e7, 1.5e7},
		{-1.5e7, 2.0e7, 1.2e7},
		{1.0e7, -2.0e7, 1.8e7},
		{-2.0e7, -1.0e7, 1.0e7},
		{0.5e7, 0.5e7, 2.4e7},
		{2.53e7, -0.5e7, 0.0},
	}
	var meas []spp.Measurement
	for i, s := range sats {
		satECEF := coord.ECEF{X: s[0], Y: s[1], Z: s[2]}
		_, r, ok := coord.GeometricRange(satECEF, rcv)
		if !ok {
			continue
		}
		meas = append(meas, spp.Measurement{
			Sat:          gnssobs.NewSatID(gnssobs.SystemGPS, i+1),
			SatPosECEF:   s,
			SatClockBias: 0,
			Pseudorange:  r + clight*clockBiasSec,
		})
	}
	return meas
}

func TestSolveRecoversKnownPosition(t *testing.T) {
	assert := assert.New(t)
	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	meas := syntheticMeasurements(truth, 1e-6)

	opt := config.Default()
	sol, err := spp.Solve(meas, opt, spp.DefaultErrorFactors(), [3]float64{truth.X + 1000, truth.Y - 1000, truth.Z + 500})
	assert.NoError(err)
	assert.Equal(spp.StatusSingle, sol.Status)
	assert.InDelta(truth.X, sol.PositionECEF[0], 1.0)
	assert.InDelta(truth.Y, sol.PositionECEF[1], 1.0)
	assert.InDelta(truth.Z, sol.PositionECEF[2], 1.0)
}

func TestSolveTooFewSatellites(t *testing.T) {
	assert := assert.New(t)
	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	meas := syntheticMeasurements(truth, 0)[:2]

	opt := config.Default()
	sol, err := spp.Solve(meas, opt, spp.DefaultErrorFactors(), [3]float64{truth.X, truth.Y, truth.Z})
	assert.NoError(err)
	assert.Equal(spp.StatusTooFewSatellites, sol.Status)
}

func TestPseudorangeVarianceGrowsNearHorizon(t *testing.T) {
	assert := assert.New(t)
	f := spp.DefaultErrorFactors()
	vHigh := spp.PseudorangeVariance(f, math.Pi/2, gnssobs.SystemGPS, false)
	vLow := spp.PseudorangeVariance(f, 6*math.Pi/180, gnssobs.SystemGPS, false)
	assert.Greater(vLow, vHigh)
}

func TestPseudorangeVarianceIonoFreeInflatesNoise(t *testing.T) {
	assert := assert.New(t)
	f := spp.DefaultErrorFactors()
	vNormal := spp.PseudorangeVariance(f, math.Pi/2, gnssobs.SystemGPS, false)
	vIF := spp.PseudorangeVariance(f, math.Pi/2, gnssobs.SystemGPS, true)
	assert.Greater(vIF, vNormal)
}

func TestStatusString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("chi-square-reject", spp.StatusChiSquareReject.String())
}
