package ephemeris_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/ephemeris"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

func sampleGPSEph() ephemeris.KeplerianElements {
	toe := gtime.FromCalendar([6]float64{2022, 6, 15, 0, 0, 0})
	return ephemeris.KeplerianElements{
		Sat:  gnssobs.NewSatID(gnssobs.SystemGPS, 12),
		Toe:  toe,
		Toc:  toe,
		Toes: 0,
		A:    26560000.0,
		E:    0.01,
		I0:   0.95,
		Omg:  0.4,
		OMG0: 1.2,
		OMGd: -8e-9,
		M0:   0.3,
		Deln: 4e-9,
		Idot: 1e-10,
		F0:   1e-5,
		F1:   1e-11,
		F2:   0,
		URA:  2,
	}
}

func TestKeplerianPositionIsOnOrbitalShell(t *testing.T) {
	assert := assert.New(t)
	eph := sampleGPSEph()
	res, err := ephemeris.Position(eph.Toe, eph)
	assert.NoError(err)
	r := math.Sqrt(res.PositionECEF[0]*res.PositionECEF[0] + res.PositionECEF[1]*res.PositionECEF[1] + res.PositionECEF[2]*res.PositionECEF[2])
	// roughly a GPS MEO altitude; generous bound, this is a sanity check
	// not an exact ephemeris assertion
	assert.Greater(r, 2e7)
	assert.Less(r, 3e7)
}

func TestKeplerianPositionVariesWithTime(t *testing.T) {
	assert := assert.New(t)
	eph := sampleGPSEph()
	a, err := ephemeris.Position(eph.Toe, eph)
	assert.NoError(err)
	b, err := ephemeris.Position(eph.Toe.Add(900), eph)
	assert.NoError(err)
	assert.NotEqual(a.PositionECEF, b.PositionECEF)
}

func TestBeiDouGEORotationOnlyForLowPRN(t *testing.T) {
	assert := assert.New(t)
	lowPRN := sampleGPSEph()
	lowPRN.Sat = gnssobs.NewSatID(gnssobs.SystemBeiDou, 3)
	highPRN := sampleGPSEph()
	highPRN.Sat = gnssobs.NewSatID(gnssobs.SystemBeiDou, 30)

	rLow, err := ephemeris.Position(lowPRN.Toe, lowPRN)
	assert.NoError(err)
	rHigh, err := ephemeris.Position(highPRN.Toe, highPRN)
	assert.NoError(err)
	// same orbital elements but different frame handling should generally
	// produce different ECEF coordinates for the GEO-rotated satellite.
	assert.NotEqual(rLow.PositionECEF, rHigh.PositionECEF)
}

func TestGlonassPropagationMovesPosition(t *testing.T) {
	assert := assert.New(t)
	toe := gtime.FromCalendar([6]float64{2022, 6, 15, 0, 0, 0})
	geph := ephemeris.GlonassElements{
		Sat: gnssobs.NewSatID(gnssobs.SystemGLONASS, 5),
		Toe: toe,
		Pos: [3]float64{1.2e7, 1.3e7, 1.9e7},
		Vel: [3]float64{-2000, 1500, -800},
		Acc: [3]float64{1e-6, -1e-6, 2e-6},
	}
	r0 := ephemeris.PositionGLONASS(toe, geph)
	r1 := ephemeris.PositionGLONASS(toe.Add(300), geph)
	assert.NotEqual(r0.PositionECEF, r1.PositionECEF)
}

func TestStoreEvaluateSelectsClosestToe(t *testing.T) {
	assert := assert.New(t)
	store := ephemeris.NewStore()
	base := sampleGPSEph()
	near := base
	near.Toe = base.Toe.Add(3600)
	near.Toc = near.Toe
	far := base
	far.Toe = base.Toe.Add(-5000)
	far.Toc = far.Toe

	store.AddKeplerian(base)
	store.AddKeplerian(near)
	store.AddKeplerian(far)

	queryTime := base.Toe.Add(3500)
	res, err := store.Evaluate(queryTime, base.Sat)
	assert.NoError(err)
	assert.NotZero(res.PositionECEF)
}

func TestStoreEvaluateNoEphemeris(t *testing.T) {
	assert := assert.New(t)
	store := ephemeris.NewStore()
	_, err := store.Evaluate(gtime.FromCalendar([6]float64{2022, 1, 1, 0, 0, 0}), gnssobs.NewSatID(gnssobs.SystemGPS, 1))
	assert.ErrorIs(err, ephemeris.ErrNoEphemeris)
}
