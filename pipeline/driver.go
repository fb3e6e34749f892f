package pipeline

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fxb-gnss/gnsscore/atmos"
	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/gnsslog"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
	"github.com/fxb-gnss/gnsscore/kalman"
	"github.com/fxb-gnss/gnsscore/spp"
	"github.com/fxb-gnss/gnsscore/telemetry"
)

const (
	clight = 299792458.0
	freqL1 = 1575.42e6
	freqL2 = 1227.60e6
)

// Driver sequences a batch run over one rover (and optionally one base)
// observation stream, routing each epoch to SPP or the RTK/PPP filter and
// emitting a Solution per epoch. Matches postpos.go's ProcPos/execses
// top-level control loop.
type Driver struct {
	Options      config.Options
	Nav          NavStore
	ErrFactors   spp.ErrorFactors
	Klobuchar    atmos.KlobucharCoefficients
	AmbiguityVal kalman.AmbiguityValidation

	RunID uuid.UUID
}

// NewDriver validates opt and returns a Driver tagged with a fresh run id,
// matching postpos.go's OpenSession validating PrcOpt before a run starts.
func NewDriver(opt config.Options, nav NavStore) (*Driver, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		Options:    opt,
		Nav:        nav,
		ErrFactors: spp.DefaultErrorFactors(),
		AmbiguityVal: kalman.AmbiguityValidation{
			RatioThreshold: 3.0,
			MinLockEpochs:  opt.MinLockEpochs,
			MinFixEpochs:   opt.MinFixEpochs,
		},
		RunID: uuid.New(),
	}, nil
}

func isKinematicRTK(mode config.Mode) bool {
	switch mode {
	case config.ModeKinematic, config.ModeStatic, config.ModeMovingBase, config.ModeFixed:
		return true
	}
	return false
}

func isPPP(mode config.Mode) bool {
	return mode == config.ModePPPKinematic || mode == config.ModePPPStatic
}

// Run processes rover (and, for RTK modes, base) epoch-by-epoch in forward
// time order and returns one Solution per processed epoch. Matches
// execses_r's forward pass.
func (d *Driver) Run(rover, base ObservationSource) ([]Solution, error) {
	return d.run(rover, base, false)
}

// RunBackward processes the same epochs in reverse time order, matching
// execses_b's backward pass used for combined-solution smoothing.
func (d *Driver) RunBackward(rover, base ObservationSource) ([]Solution, error) {
	return d.run(rover, base, true)
}

// filterRun carries the state that threads across epochs within one forward
// or backward pass.
type filterRun struct {
	state            *kalman.State
	slip             *kalman.SlipDetector
	satOrder         []gnssobs.SatID
	consecutiveNonPD int
}

func (d *Driver) run(rover, base ObservationSource, backward bool) ([]Solution, error) {
	log := gnsslog.For("pipeline").WithField("run", d.RunID.String())

	n := rover.Len()
	sols := make([]Solution, 0, n)

	var approx [3]float64
	var fr filterRun

	for _, i := range epochOrder(n, backward) {
		epoch := rover.At(i)
		telemetry.EpochsProcessed.Inc()

		sppMeas := BuildSPPMeasurements(epoch, d.Nav, d.Klobuchar, d.Options, approx)
		sppSol, err := spp.Solve(sppMeas, d.Options, d.ErrFactors, approx)
		if err != nil {
			log.WithError(err).Warn("spp solve failed")
			sols = append(sols, Solution{Time: epoch.Time, Status: StatusNone})
			telemetry.SolutionsByStatus.WithLabelValues(StatusNone.String()).Inc()
			continue
		}
		if sppSol.Status == spp.StatusSingle {
			approx = sppSol.PositionECEF
		}

		sol := d.solutionFromSPP(epoch.Time, sppSol)

		if sppSol.Status != spp.StatusSingle || d.Options.Mode == config.ModeSingle || d.Options.Mode == config.ModeDGPS {
			sols = append(sols, sol)
			telemetry.SolutionsByStatus.WithLabelValues(sol.Status.String()).Inc()
			continue
		}

		d.stepFilter(&fr, epoch, base, approx, &sol, log)

		sols = append(sols, sol)
		telemetry.SolutionsByStatus.WithLabelValues(sol.Status.String()).Inc()
	}

	return sols, nil
}

func epochOrder(n int, backward bool) []int {
	order := make([]int, n)
	for i := range order {
		if backward {
			order[i] = n - 1 - i
		} else {
			order[i] = i
		}
	}
	return order
}

func (d *Driver) solutionFromSPP(t gtime.Time, sppSol spp.Solution) Solution {
	sol := Solution{
		Time:           t,
		PositionECEF:   sppSol.PositionECEF,
		Status:         sppStatusOf(sppSol.Status, d.Options.Mode),
		NumSatellites:  len(sppSol.UsedSatellites),
		UsedSatellites: sppSol.UsedSatellites,
	}
	sol.ClockBiasSec[0] = sppSol.ClockBiasSec[0]
	// A nominal UERE of 3m (9m for the z term) converts PDOP into an approximate position
	// variance summary when no filter covariance is available yet,
	// matching ValSol's use of PDOP as a solution-quality proxy.
	pdop := sppSol.DOP.PDOP
	sol.PosCovar[0] = pdop * pdop * 3.0 * 3.0
	sol.PosCovar[1] = pdop * pdop * 3.0 * 3.0
	sol.PosCovar[2] = pdop * pdop * 9.0 * 9.0
	return sol
}

func sppStatusOf(status spp.Status, mode config.Mode) Status {
	if status != spp.StatusSingle {
		return StatusNone
	}
	if mode == config.ModeDGPS {
		return StatusDGPS
	}
	return StatusSingle
}

// stepFilter advances the RTK/PPP filter by one epoch, building the
// appropriate measurement model for the configured mode, detecting cycle
// slips, applying the measurement update, and attempting ambiguity
// resolution. sol is updated in place with the filter's output.
func (d *Driver) stepFilter(fr *filterRun, epoch gnssobs.Epoch, base ObservationSource, approx [3]float64, sol *Solution, log *logrus.Entry) {
	if fr.state == nil {
		fr.satOrder = satelliteOrder(epoch)
		fr.state = newFilterState(d.Options, len(fr.satOrder))
		fr.slip = kalman.NewSlipDetector()
		fr.state.X.SetVec(0, sol.PositionECEF[0])
		fr.state.X.SetVec(1, sol.PositionECEF[1])
		fr.state.X.SetVec(2, sol.PositionECEF[2])
		for k := 0; k < 3; k++ {
			fr.state.P.Set(k, k, 100*100)
		}
		fr.state.P.Set(fr.state.ClockIndex(), fr.state.ClockIndex(), 1e8)
	} else {
		fr.state.Predict(1.0, defaultProcessNoise(d.Options))
	}

	var updateErr error
	matched := false

	if isKinematicRTK(d.Options.Mode) && base != nil {
		if baseEpoch, ok := findEpoch(base, epoch.Time); ok {
			H, v, R, sats, ddErr := BuildDoubleDifferences(epoch, baseEpoch, d.Nav, d.Options.ReferencePositionECEF, approx, 0, clight/freqL1, fr.state, d.Options.ElevationMask)
			if ddErr == nil {
				for _, sat := range sats {
					slot, ok := fr.state.SlotFor(sat)
					if !ok {
						continue
					}
					if gf, ok := geometryFreeOf(epoch, sat); ok && fr.slip.FromGeometryFree(int(sat), 0, gf, 0.05) {
						fr.state.Reset(slot)
					}
				}
				updateErr = fr.state.Update(H, v, R)
				matched = true
				sol.Status = StatusFloat
			}
		}
	} else if isPPP(d.Options.Mode) {
		ambiguityOf := make(map[gnssobs.SatID]int, len(fr.satOrder))
		for _, o := range epoch.Obs {
			if slot, ok := fr.state.AssignSlot(o.Sat); ok {
				ambiguityOf[o.Sat] = fr.state.AmbiguityIndex(slot)
			}
		}
		H, v, R, _, ppErr := BuildPPPMeasurement(epoch, d.Nav, approx, fr.state, clight/freqL1, clight/freqL2, d.Options.ElevationMask, ambiguityOf)
		if ppErr == nil {
			updateErr = fr.state.Update(H, v, R)
			matched = true
			sol.Status = StatusPPP
		}
	}

	if !matched {
		return
	}

	if updateErr != nil {
		fr.consecutiveNonPD++
		log.WithField("consecutive", fr.consecutiveNonPD).Warn("filter update failed")
		if fr.consecutiveNonPD >= 3 {
			fr.state = nil
			fr.consecutiveNonPD = 0
		}
		return
	}
	fr.consecutiveNonPD = 0

	pos := fr.state.Position()
	sol.PositionECEF = pos
	sol.PosCovar[0] = fr.state.P.At(0, 0)
	sol.PosCovar[1] = fr.state.P.At(1, 1)
	sol.PosCovar[2] = fr.state.P.At(2, 2)

	if d.Options.Ambiguity == config.AmbiguityOff || !kalman.ShouldAttemptFix(d.Options.Ambiguity) {
		return
	}
	// indices names the ambiguity slots currently occupied by a satellite
	// (keyed by SatID via AssignSlot, not by position in fr.satOrder, which
	// is only the snapshot taken when the filter was first initialized).
	indices := fr.state.TrackedSlots()
	fr.state.AdvanceLockCounters(make([]bool, len(indices)))
	result, arErr := fr.state.ResolveAmbiguities(indices, d.AmbiguityVal)
	if arErr != nil {
		telemetry.AmbiguityResolutionAttempts.WithLabelValues("rejected").Inc()
		return
	}
	if !result.Fixed {
		telemetry.AmbiguityResolutionAttempts.WithLabelValues("rejected").Inc()
		return
	}
	// Report this epoch's position at the fixed-ambiguity conditional mean
	// (resamb_LAMBDA's back-substitution), while HoldAmbiguities only
	// constrains the float state carried into future epochs.
	sol.PositionECEF = fr.state.FixedPosition(indices, result.FixedValues)
	fr.state.HoldAmbiguities(indices, result.FixedValues, d.Options.VarHoldAmbiguity)
	sol.Status = StatusFix
	sol.Ratio = result.Ratio
	telemetry.AmbiguityResolutionAttempts.WithLabelValues("fixed").Inc()
}

// geometryFreeOf returns the L1-L2 geometry-free carrier-phase combination
// (m) for sat in epoch, matching GeometryFreeObs, or false if either
// frequency is missing.
func geometryFreeOf(epoch gnssobs.Epoch, sat gnssobs.SatID) (float64, bool) {
	for _, o := range epoch.Obs {
		if o.Sat != sat {
			continue
		}
		if !o.HasPhase(0) || !o.HasPhase(1) {
			return 0, false
		}
		return o.Carrier[0]*(clight/freqL1) - o.Carrier[1]*(clight/freqL2), true
	}
	return 0, false
}

func satelliteOrder(epoch gnssobs.Epoch) []gnssobs.SatID {
	sats := make([]gnssobs.SatID, len(epoch.Obs))
	for i, o := range epoch.Obs {
		sats[i] = o.Sat
	}
	return sats
}

func newFilterState(opt config.Options, numSats int) *kalman.State {
	layout := kalman.Layout{
		Dynamics:       opt.Dynamics,
		EstimateTropo:  opt.Troposphere == config.TroposphereEstimate,
		EstimateIono:   opt.Ionosphere == config.IonosphereEstimate,
		NumIonoSats:    numSats,
		NumAmbiguities: numSats,
	}
	state := kalman.NewState(layout)
	if layout.EstimateTropo {
		state.P.Set(state.TropoIndex(), state.TropoIndex(), 0.3*0.3)
	}
	for i := 0; i < numSats; i++ {
		col := state.AmbiguityIndex(i)
		state.P.Set(col, col, 900)
	}
	return state
}

func defaultProcessNoise(opt config.Options) kalman.ProcessNoise {
	return kalman.ProcessNoise{
		PositionRandomWalk:     1.0,
		VelocityRandomWalk:     1.0,
		AccelerationRandomWalk: 1.0,
		ClockRandomWalk:        10.0,
		TropoRandomWalk:        0.01,
		IonoRandomWalk:         0.1,
	}
}

// findEpoch returns the base epoch whose time falls within DTTOL of t, if
// any, matching postpos.go's InputObs rover/base time matching.
func findEpoch(base ObservationSource, t gtime.Time) (gnssobs.Epoch, bool) {
	for i := 0; i < base.Len(); i++ {
		e := base.At(i)
		if abs(e.Time.Sub(t)) <= DTTOL {
			return e, true
		}
	}
	return gnssobs.Epoch{}, false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
