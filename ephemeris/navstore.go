package ephemeris

import (
	"math"

	"github.com/fxb-gnss/gnsscore/errkind"
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

// maxToeAge is the largest acceptable |time-Toe| (s) for each system before
// a broadcast set is considered stale, matching MAXDTOE/MAXDTOE_GAL/
// MAXDTOE_QZS/MAXDTOE_CMP/MAXDTOE_IRN.
var maxToeAge = map[gnssobs.System]float64{
	gnssobs.SystemGPS:     7201.0,
	gnssobs.SystemGLONASS: 1801.0,
	gnssobs.SystemGalileo: 14400.0,
	gnssobs.SystemQZSS:    7201.0,
	gnssobs.SystemBeiDou:  21601.0,
	gnssobs.SystemIRNSS:   7201.0,
}

// ErrNoEphemeris is returned when no broadcast set is available for a
// satellite within its system's Toe tolerance.
var ErrNoEphemeris = errkind.New(errkind.Ephemeris, "Select", "no usable broadcast ephemeris")

// Store holds every broadcast set received for a run, indexed by satellite,
// and evaluates whichever one best covers a requested time. Matches Nav's
// Ephs/Geph slices plus SelEph/SelGEph.
type Store struct {
	keplerian map[gnssobs.SatID][]KeplerianElements
	glonass   map[gnssobs.SatID][]GlonassElements
}

// NewStore returns an empty ephemeris store.
func NewStore() *Store {
	return &Store{
		keplerian: make(map[gnssobs.SatID][]KeplerianElements),
		glonass:   make(map[gnssobs.SatID][]GlonassElements),
	}
}

// AddKeplerian records a broadcast set for a Keplerian (non-GLONASS)
// system.
func (s *Store) AddKeplerian(eph KeplerianElements) {
	s.keplerian[eph.Sat] = append(s.keplerian[eph.Sat], eph)
}

// AddGlonass records a broadcast set for GLONASS.
func (s *Store) AddGlonass(geph GlonassElements) {
	s.glonass[geph.Sat] = append(s.glonass[geph.Sat], geph)
}

// Evaluate selects the broadcast set closest in Toe to t (within the
// system's tolerance) for sat and evaluates it, dispatching to the
// Keplerian or GLONASS propagator. Matches SelEph/SelGEph plus Eph2Pos/
// GEph2Pos.
func (s *Store) Evaluate(t gtime.Time, sat gnssobs.SatID) (Result, error) {
	sys := sat.System()
	tolerance, ok := maxToeAge[sys]
	if !ok {
		return Result{}, errkind.New(errkind.Ephemeris, "Evaluate", "unsupported system %s", sys)
	}

	if sys == gnssobs.SystemGLONASS {
		set, ok := selectClosest(s.glonass[sat], tolerance, func(g GlonassElements) gtime.Time { return g.Toe }, t)
		if !ok {
			return Result{}, ErrNoEphemeris
		}
		return PositionGLONASS(t, set), nil
	}

	set, ok := selectClosest(s.keplerian[sat], tolerance, func(e KeplerianElements) gtime.Time { return e.Toe }, t)
	if !ok {
		return Result{}, ErrNoEphemeris
	}
	return Position(t, set)
}

func selectClosest[T any](candidates []T, tolerance float64, toeOf func(T) gtime.Time, t gtime.Time) (T, bool) {
	var best T
	bestDt := tolerance + 1
	found := false
	for _, c := range candidates {
		dt := math.Abs(toeOf(c).Sub(t))
		if dt > tolerance {
			continue
		}
		if dt < bestDt {
			best, bestDt, found = c, dt, true
		}
	}
	return best, found
}
