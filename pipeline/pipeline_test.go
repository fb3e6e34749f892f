package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxb-gnss/gnsscore/atmos"
	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/ephemeris"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
	"github.com/fxb-gnss/gnsscore/pipeline"
)

func TestSnapEpochWithinTolerance(t *testing.T) {
	assert := assert.New(t)
	ts := gtime.Time{Sec: 1000, Frac: 0.01}
	snapped := pipeline.SnapEpoch(ts, 1.0)
	assert.Equal(int64(1000), snapped.Sec)
	assert.InDelta(0.0, snapped.Frac, 1e-9)
}

func TestSnapEpochOutsideTolerance(t *testing.T) {
	assert := assert.New(t)
	ts := gtime.Time{Sec: 1000, Frac: 0.5}
	snapped := pipeline.SnapEpoch(ts, 1.0)
	assert.Equal(ts, snapped)
}

func TestOnTickMatchesGrid(t *testing.T) {
	assert := assert.New(t)
	ts := gtime.Time{Sec: 1000}
	assert.True(pipeline.OnTick(gtime.Time{Sec: 1030}, ts, 30))
	assert.False(pipeline.OnTick(gtime.Time{Sec: 1015}, ts, 30))
}

// fakeNavStore places every satellite on a sphere around the origin so
// geometry is trivial to reason about, matching spp_test.go's synthetic
// measurement style.
type fakeNavStore struct {
	positions map[gnssobs.SatID][3]float64
}

func (f fakeNavStore) Evaluate(t gtime.Time, sat gnssobs.SatID) (ephemeris.Result, error) {
	pos, ok := f.positions[sat]
	if !ok {
		return ephemeris.Result{}, ephemeris.ErrKeplerDiverged
	}
	return ephemeris.Result{PositionECEF: pos, ClockBiasSec: 0, VarianceM2: 1.0}, nil
}

func testSatellites() map[gnssobs.SatID][3]float64 {
	return map[gnssobs.SatID][3]float64{
		gnssobs.NewSatID(gnssobs.SystemGPS, 1): {2.0e7, 1.0e7, 1.5e7},
		gnssobs.NewSatID(gnssobs.SystemGPS, 2): {-1.5e7, 2.0e7, 1.2e7},
		gnssobs.NewSatID(gnssobs.SystemGPS, 3): {1.0e7, -2.0e7, 1.8e7},
		gnssobs.NewSatID(gnssobs.SystemGPS, 4): {-2.0e7, -1.0e7, 1.0e7},
		gnssobs.NewSatID(gnssobs.SystemGPS, 5): {0.5e7, 0.5e7, 2.4e7},
		gnssobs.NewSatID(gnssobs.SystemGPS, 6): {2.53e7, -0.5e7, 0.0},
	}
}

func syntheticEpoch(truth coord.ECEF, sats map[gnssobs.SatID][3]float64, t gtime.Time) gnssobs.Epoch {
	var obs []gnssobs.Observation
	for sat, pos := range sats {
		satECEF := coord.ECEF{X: pos[0], Y: pos[1], Z: pos[2]}
		_, r, ok := coord.GeometricRange(satECEF, truth)
		if !ok {
			continue
		}
		obs = append(obs, gnssobs.Observation{
			Time:        t,
			Sat:         sat,
			Pseudorange: [gnssobs.NumFreq]float64{r, 0, 0},
		})
	}
	return gnssobs.Epoch{Time: t, Obs: obs}
}

func TestBuildSPPMeasurementsProducesOneRowPerVisibleSatellite(t *testing.T) {
	assert := assert.New(t)
	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	sats := testSatellites()
	epoch := syntheticEpoch(truth, sats, gtime.Time{Sec: 1000})

	nav := fakeNavStore{positions: sats}
	opt := config.Default()
	opt.ElevationMask = 0

	meas := pipeline.BuildSPPMeasurements(epoch, nav, atmos.KlobucharCoefficients{}, opt, [3]float64{truth.X, truth.Y, truth.Z})
	assert.NotEmpty(meas)
	// G02 and G04 are below the horizon at this receiver position.
	assert.Len(meas, len(sats)-2)
	for _, m := range meas {
		assert.NotZero(m.Pseudorange)
	}
}

func TestBuildSPPMeasurementsSkipsSatelliteWithoutEphemeris(t *testing.T) {
	assert := assert.New(t)
	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	sats := testSatellites()
	epoch := syntheticEpoch(truth, sats, gtime.Time{Sec: 1000})

	partial := fakeNavStore{positions: map[gnssobs.SatID][3]float64{
		gnssobs.NewSatID(gnssobs.SystemGPS, 1): sats[gnssobs.NewSatID(gnssobs.SystemGPS, 1)],
	}}
	opt := config.Default()
	opt.ElevationMask = 0

	meas := pipeline.BuildSPPMeasurements(epoch, partial, atmos.KlobucharCoefficients{}, opt, [3]float64{truth.X, truth.Y, truth.Z})
	assert.Len(meas, 1)
}

type fixedObservationSource struct {
	epochs []gnssobs.Epoch
}

func (f fixedObservationSource) Len() int                    { return len(f.epochs) }
func (f fixedObservationSource) At(i int) gnssobs.Epoch       { return f.epochs[i] }

func TestDriverRunSingleModePassesThroughSPP(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	sats := testSatellites()
	nav := fakeNavStore{positions: sats}

	epochs := []gnssobs.Epoch{
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1000}),
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1001}),
	}
	rover := fixedObservationSource{epochs: epochs}

	opt := config.Default()
	opt.ElevationMask = 0
	driver, err := pipeline.NewDriver(opt, nav)
	require.NoError(err)

	sols, err := driver.Run(rover, nil)
	require.NoError(err)
	require.Len(sols, 2)
	for _, s := range sols {
		assert.Equal(pipeline.StatusSingle, s.Status)
		assert.InDelta(truth.X, s.PositionECEF[0], 50.0)
		assert.InDelta(truth.Y, s.PositionECEF[1], 50.0)
		assert.InDelta(truth.Z, s.PositionECEF[2], 50.0)
	}
}

func TestDriverRunBackwardReversesOrder(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	sats := testSatellites()
	nav := fakeNavStore{positions: sats}

	epochs := []gnssobs.Epoch{
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1000}),
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1001}),
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1002}),
	}
	rover := fixedObservationSource{epochs: epochs}

	opt := config.Default()
	opt.ElevationMask = 0
	driver, err := pipeline.NewDriver(opt, nav)
	require.NoError(err)

	sols, err := driver.RunBackward(rover, nil)
	require.NoError(err)
	require.Len(sols, 3)
	assert.Equal(int64(1002), sols[0].Time.Sec)
	assert.Equal(int64(1000), sols[2].Time.Sec)
}

func TestDriverRunCombinedMatchesForwardOrderAndTightensCovariance(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	truth := coord.Geodetic{Lat: 0.7, Lon: 0.3, Height: 100}.ToECEF()
	sats := testSatellites()
	nav := fakeNavStore{positions: sats}

	epochs := []gnssobs.Epoch{
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1000}),
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1001}),
		syntheticEpoch(truth, sats, gtime.Time{Sec: 1002}),
	}
	rover := fixedObservationSource{epochs: epochs}

	opt := config.Default()
	opt.ElevationMask = 0
	driver, err := pipeline.NewDriver(opt, nav)
	require.NoError(err)

	fwd, err := driver.Run(rover, nil)
	require.NoError(err)
	combined, err := driver.RunCombined(rover, nil)
	require.NoError(err)

	require.Len(combined, len(fwd))
	for i := range combined {
		assert.Equal(fwd[i].Time.Sec, combined[i].Time.Sec)
		assert.LessOrEqual(combined[i].PosCovar[0], fwd[i].PosCovar[0]+1e-6)
	}
}
