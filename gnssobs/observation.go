package gnssobs

import (
	"errors"
	"sort"

	"github.com/fxb-gnss/gnsscore/gtime"
)

// NumFreq is the number of carrier frequencies carried per observation,
// matching NFREQ.
const NumFreq = 3

// Observation is a single satellite's measurement at one epoch: pseudorange
// (m), carrier phase (cycles), Doppler (Hz), carrier/noise ratio (dBHz) and
// loss-of-lock indicator per frequency band. Matches ObsD.
type Observation struct {
	Time gtime.Time
	Sat  SatID

	Pseudorange [NumFreq]float64
	Carrier     [NumFreq]float64
	Doppler     [NumFreq]float64
	CN0         [NumFreq]float64
	LLI         [NumFreq]uint8
}

// HasCode reports whether band f carries a usable pseudorange.
func (o Observation) HasCode(f int) bool { return o.Pseudorange[f] != 0 }

// HasPhase reports whether band f carries a usable carrier phase.
func (o Observation) HasPhase(f int) bool { return o.Carrier[f] != 0 }

// Epoch is the set of observations from every tracked satellite sharing one
// receiver sampling instant.
type Epoch struct {
	Time gtime.Time
	Obs  []Observation
}

// ErrNonMonotonic is returned by NewStream when epochs are not strictly
// increasing in time.
var ErrNonMonotonic = errors.New("gnssobs: epoch times are not strictly increasing")

// Stream is a time-ordered sequence of epochs from a single station,
// matching Obs. The invariant is enforced at construction: time strictly
// non-decreasing, satellite id used to break exact ties.
type Stream struct {
	epochs []Epoch
}

// NewStream groups raw per-satellite observations into time-ordered epochs.
// Observations sharing the same gtime.Time (within zero tolerance; callers
// must pre-snap ticks, see pipeline.SnapEpoch) are placed in one Epoch, with
// satellites sorted by id within it. Input observations may arrive in any
// per-epoch order but epochs themselves must be non-decreasing in time;
// ErrNonMonotonic is returned otherwise so callers learn of out-of-order
// input rather than have it silently reordered.
func NewStream(obs []Observation) (*Stream, error) {
	byTime := make(map[gtime.Time]*Epoch)
	var order []gtime.Time
	for _, o := range obs {
		key := o.Time
		e, ok := byTime[key]
		if !ok {
			e = &Epoch{Time: o.Time}
			byTime[key] = e
			order = append(order, key)
		}
		e.Obs = append(e.Obs, o)
	}

	s := &Stream{}
	for i, key := range order {
		if i > 0 && key.Sub(order[i-1]) < 0 {
			return nil, ErrNonMonotonic
		}
		e := *byTime[key]
		sort.SliceStable(e.Obs, func(i, j int) bool { return e.Obs[i].Sat < e.Obs[j].Sat })
		s.epochs = append(s.epochs, e)
	}
	return s, nil
}

// Len returns the number of epochs.
func (s *Stream) Len() int { return len(s.epochs) }

// At returns the i'th epoch in time order.
func (s *Stream) At(i int) Epoch { return s.epochs[i] }

// All returns every epoch in time order. The returned slice must not be
// mutated.
func (s *Stream) All() []Epoch { return s.epochs }
