package pipeline

import (
	"github.com/fxb-gnss/gnsscore/atmos"
	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/coord"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/spp"
)

// BuildSPPMeasurements evaluates ephemeris and the atmosphere models for
// every code observation in epoch, producing the bias-corrected
// spp.Measurement list EstimatePos needs. approxPos seeds the
// elevation/azimuth and tropo/iono evaluation (the previous epoch's fix, or
// the coordinate origin on a cold start). Matches pntpos.go's PntPos setup
// loop that calls SatPoss/IonModel/TropModel before EstimatePos.
func BuildSPPMeasurements(epoch gnssobs.Epoch, nav NavStore, coef atmos.KlobucharCoefficients, opt config.Options, approxPos [3]float64) []spp.Measurement {
	rcvGeodetic := coord.ECEF{X: approxPos[0], Y: approxPos[1], Z: approxPos[2]}.ToGeodetic()

	var meas []spp.Measurement
	for _, obs := range epoch.Obs {
		if !obs.HasCode(0) {
			continue
		}
		eph, err := nav.Evaluate(obs.Time, obs.Sat)
		if err != nil {
			continue
		}

		satECEF := coord.ECEF{X: eph.PositionECEF[0], Y: eph.PositionECEF[1], Z: eph.PositionECEF[2]}
		rcvECEF := coord.ECEF{X: approxPos[0], Y: approxPos[1], Z: approxPos[2]}
		los, _, ok := coord.GeometricRange(satECEF, rcvECEF)
		if !ok {
			continue
		}
		az, el := coord.AzEl(rcvGeodetic, los)
		if el < opt.ElevationMask {
			continue
		}

		pseudorange := obs.Pseudorange[0]
		var ionoM, ionoVar float64
		switch opt.Ionosphere {
		case config.IonosphereBroadcast:
			ionoM, ionoVar = atmos.Delay(obs.Time, coef, rcvGeodetic, az, el)
		case config.IonosphereIonosphereFree:
			// dual-frequency combination removes first-order delay; the
			// residual higher-order term is folded into the error model
			// instead of estimated here. Satellites without L2 code are
			// skipped.
			if !obs.HasCode(1) {
				continue
			}
			gamma := (freqL1 / freqL2) * (freqL1 / freqL2)
			pseudorange = (gamma*obs.Pseudorange[0] - obs.Pseudorange[1]) / (gamma - 1)
		}

		var tropoM, tropoVar float64
		if opt.Troposphere == config.TroposphereSaastamoinen {
			tropoM, tropoVar = atmos.TroposphereDelay(rcvGeodetic, el)
		}

		meas = append(meas, spp.Measurement{
			Sat:           obs.Sat,
			SatPosECEF:    eph.PositionECEF,
			SatClockBias:  eph.ClockBiasSec,
			SatPosVarM2:   eph.VarianceM2,
			Pseudorange:   pseudorange,
			CodeBiasVarM2: 0,
			IonoDelayM:    ionoM,
			IonoVarM2:     ionoVar,
			TropoDelayM:   tropoM,
			TropoVarM2:    tropoVar,
		})
	}
	return meas
}
