package pipeline

import (
	"math"

	"github.com/fxb-gnss/gnsscore/gtime"
)

// DTTOL is the tolerance (s) used to decide whether an observation time
// coincides with an epoch tick, matching the teacher's DTTOL constant in
// types.go.
const DTTOL = 0.025

// SnapEpoch rounds t to the nearest multiple of interval seconds if it
// falls within DTTOL of that multiple, and returns t unchanged otherwise.
// Matches common.go's ScreenTime's tolerance test, applied here to
// normalize observation timestamps onto the tick grid instead of merely
// screening them.
func SnapEpoch(t gtime.Time, interval float64) gtime.Time {
	if interval <= 0 {
		return t
	}
	sec, frac := t.Sec, t.Frac
	total := float64(sec) + frac
	nearest := math.Round(total/interval) * interval
	if math.Abs(total-nearest) <= DTTOL {
		wholeSec := int64(math.Floor(nearest))
		return gtime.Time{Sec: wholeSec, Frac: nearest - float64(wholeSec)}
	}
	return t
}

// OnTick reports whether t falls within DTTOL of a multiple of interval
// seconds since the start time ts, matching ScreenTime's modulo test.
func OnTick(t, ts gtime.Time, interval float64) bool {
	if interval <= 0 {
		return true
	}
	dt := t.Sub(ts)
	m := math.Mod(dt+DTTOL, interval)
	return m >= 0 && m <= 2*DTTOL
}
