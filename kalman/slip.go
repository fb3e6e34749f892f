package kalman

import "math"

// maxAccelForDopplerSlip bounds the Doppler-predicted phase change,
// matching MAXACC (m/s^2).
const maxAccelForDopplerSlip = 30.0

// SlipDetector accumulates the per-satellite/frequency state (previous
// geometry-free combination, previous carrier phase, previous LLI) needed
// to flag cycle slips across epochs. Matches Ssat.Gf/Ssat.Slip's persistent
// bookkeeping in Rtk, generalized into one object instead of fields
// threaded through a global receiver struct.
type SlipDetector struct {
	prevGF  map[slipKey]float64
	prevLLI map[slipKey]uint8
	prevPhase map[slipKey]float64
}

type slipKey struct {
	sat, freq int
}

// NewSlipDetector returns an empty detector.
func NewSlipDetector() *SlipDetector {
	return &SlipDetector{
		prevGF:    make(map[slipKey]float64),
		prevLLI:   make(map[slipKey]uint8),
		prevPhase: make(map[slipKey]float64),
	}
}

// FromLLI reports a slip when the receiver's own loss-of-lock indicator
// flags one, or when the half-cycle-ambiguity bit (bit 2) toggles between
// epochs, matching DetectSlp_ll.
func (d *SlipDetector) FromLLI(sat, freq int, lli uint8) bool {
	key := slipKey{sat, freq}
	prev, seen := d.prevLLI[key]
	slip := lli&1 == 1
	if seen && ((prev&2 > 0) != (lli&2 > 0)) {
		slip = true
	}
	d.prevLLI[key] = lli
	return slip
}

// FromGeometryFree reports a slip when the L1-Lk geometry-free carrier
// phase combination jumps by more than threshold (m) between epochs,
// matching DetectSlp_gf.
func (d *SlipDetector) FromGeometryFree(sat, freq int, gf, threshold float64) bool {
	key := slipKey{sat, freq}
	prev, seen := d.prevGF[key]
	d.prevGF[key] = gf
	return seen && prev != 0 && math.Abs(gf-prev) > threshold
}

// FromDoppler reports a slip when the observed carrier-phase change
// disagrees with the Doppler-predicted change by more than a
// acceleration-bounded threshold, matching the (reference-implementation
// disabled, reinstated here) doppler/phase-difference check in
// DetectSlp_dop.
func (d *SlipDetector) FromDoppler(sat, freq int, phase, doppler, dt, wavelength, phaseNoise float64) bool {
	key := slipKey{sat, freq}
	prev, seen := d.prevPhase[key]
	d.prevPhase[key] = phase
	if !seen || wavelength <= 0 {
		return false
	}
	threshold := maxAccelForDopplerSlip*dt*dt/2.0/wavelength + phaseNoise*math.Abs(dt)*4.0
	predicted := -doppler * dt
	observed := phase - prev
	return math.Abs(observed-predicted) > threshold
}

// MelbourneWubbena computes the wide-lane Melbourne-Wubbena combination
// (cycles) from dual-frequency code and phase, used as a slip/outlier
// indicator independent of geometry and ionosphere. freq1/freq2 in Hz,
// code1/code2 and phase1/phase2 in meters/cycles respectively.
func MelbourneWubbena(phase1, phase2, code1, code2, freq1, freq2, clight float64) float64 {
	wideLaneWavelength := clight / (freq1 - freq2)
	narrowLaneCode := (freq1*code1 + freq2*code2) / (freq1 + freq2)
	return (phase1 - phase2) - narrowLaneCode/wideLaneWavelength
}
