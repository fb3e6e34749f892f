package pipeline

import (
	"github.com/fxb-gnss/gnsscore/ephemeris"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

// ObservationSource supplies time-ordered epochs for one receiver, matching
// the teacher's InputObs/NextObsf merge-sorted reader generalized into an
// interface so the pipeline does not depend on any one file format (RINEX
// parsing is an external collaborator per spec.md's Non-goals).
type ObservationSource interface {
	Len() int
	At(i int) gnssobs.Epoch
}

// NavStore looks up a satellite's broadcast ephemeris at a requested time.
// ephemeris.Store implements this; the interface exists so the pipeline can
// depend on the capability without importing a concrete navigation-data
// format loader.
type NavStore interface {
	Evaluate(t gtime.Time, sat gnssobs.SatID) (ephemeris.Result, error)
}

// PCVProvider supplies antenna phase-center variation corrections. No
// implementation ships in this module — antenna corrections are an explicit
// spec.md Non-goal — and nothing in the pipeline consumes one; the
// interface is exported as an extension point only.
type PCVProvider interface {
	PCV(sat gnssobs.SatID, freq int, az, el float64) float64
}

// SBASProvider supplies SBAS (WAAS/EGNOS/MSAS) differential corrections.
// No implementation ships in this module; live SBAS message decoding is an
// external collaborator per spec.md's Non-goals.
type SBASProvider interface {
	Correction(t gtime.Time, sat gnssobs.SatID) (pseudorangeCorrM float64, ok bool)
}

// DCBProvider supplies differential code bias corrections per satellite and
// frequency pair. No implementation ships in this module.
type DCBProvider interface {
	DCB(sat gnssobs.SatID, freq1, freq2 int) (biasM float64, ok bool)
}

// EOPProvider supplies Earth-orientation parameters (pole coordinates, UT1-
// UTC) for sub-decimeter ECEF frame corrections. No implementation ships in
// this module; the filter and SPP solvers operate in the conventional
// terrestrial frame without EOP correction, consistent with spec.md's scope.
type EOPProvider interface {
	EOP(t gtime.Time) (xp, yp, ut1Utc float64)
}
