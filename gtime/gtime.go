// Package gtime implements GPS-time arithmetic at sub-nanosecond precision.
//
// Time is kept as a pair (integer seconds, sub-second fraction) rather than
// a single float64 or time.Time, so that repeated epoch-to-epoch differencing
// over multi-week processing runs does not lose precision to the 52-bit
// mantissa of a double. Grounded on FengXuebin-gnssgo/src/common.go's Gtime
// type and its Epoch2Time/TimeAdd/TimeDiff/GpsT2Utc/Utc2GpsT family.
package gtime

import (
	"fmt"
	"math"
)

// Time is a GPS-time instant split into whole seconds since the Unix epoch
// and a sub-second fraction in [0,1). Arithmetic always renormalizes so Frac
// stays in that range, which is what keeps differencing precise.
type Time struct {
	Sec  int64   // whole seconds since 1970-01-01 00:00:00 UTC, GPS time scale
	Frac float64 // fractional second, 0 <= Frac < 1
}

// System identifies which time scale a Time value is expressed in.
type System int

const (
	GPS System = iota
	UTC
	GLONASS
	Galileo
	BeiDou
)

// LeapEntry is one row of the UTC-GPST leap second table, descending by date.
type LeapEntry struct {
	Epoch  [6]float64 // y,m,d,h,mi,s (UTC)
	Offset float64    // UTC - GPST (s), always negative since 1981
}

// leapSeconds is the installed leap-second table, newest entry first.
// Matches FengXuebin-gnssgo/src/common.go's `leaps` table.
var leapSeconds = []LeapEntry{
	{[6]float64{2017, 1, 1, 0, 0, 0}, -18},
	{[6]float64{2015, 7, 1, 0, 0, 0}, -17},
	{[6]float64{2012, 7, 1, 0, 0, 0}, -16},
	{[6]float64{2009, 1, 1, 0, 0, 0}, -15},
	{[6]float64{2006, 1, 1, 0, 0, 0}, -14},
	{[6]float64{1999, 1, 1, 0, 0, 0}, -13},
	{[6]float64{1997, 7, 1, 0, 0, 0}, -12},
	{[6]float64{1996, 1, 1, 0, 0, 0}, -11},
	{[6]float64{1994, 7, 1, 0, 0, 0}, -10},
	{[6]float64{1993, 7, 1, 0, 0, 0}, -9},
	{[6]float64{1992, 7, 1, 0, 0, 0}, -8},
	{[6]float64{1991, 1, 1, 0, 0, 0}, -7},
	{[6]float64{1990, 1, 1, 0, 0, 0}, -6},
	{[6]float64{1988, 1, 1, 0, 0, 0}, -5},
	{[6]float64{1985, 7, 1, 0, 0, 0}, -4},
	{[6]float64{1983, 7, 1, 0, 0, 0}, -3},
	{[6]float64{1982, 7, 1, 0, 0, 0}, -2},
	{[6]float64{1981, 7, 1, 0, 0, 0}, -1},
}

// SetLeapSeconds installs a caller-provided leap second table, replacing the
// built-in one. Entries must be in descending date order. This is the one
// piece of process-wide mutable state the core carries (spec §9): install it
// once at startup, then treat it as read-only.
func SetLeapSeconds(table []LeapEntry) { leapSeconds = table }

const daySec = 86400.0

// FromCalendar builds a Time from a UTC or GPS calendar epoch
// {year, month, day, hour, min, sec}, matching Epoch2Time.
func FromCalendar(ep [6]float64) Time {
	days := daysFromCivil(int(ep[0]), int(ep[1]), int(ep[2]))
	sec := ep[3]*3600 + ep[4]*60 + ep[5]
	whole := int64(days)*86400 + int64(sec)
	frac := sec - math.Floor(sec)
	return Time{Sec: whole, Frac: frac}
}

// daysFromCivil converts a y/m/d calendar date into days since 1970-01-01,
// using Howard Hinnant's days_from_civil algorithm (proleptic Gregorian).
func daysFromCivil(y, m, d int) int {
	if m <= 2 {
		y--
	}
	era := y
	if y < 0 {
		era -= 399
	}
	era /= 400
	yoe := y - era*400
	var mp int
	if m > 2 {
		mp = m - 3
	} else {
		mp = m + 9
	}
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// ToCalendar returns the {year, month, day, hour, min, sec} UTC/GPS calendar
// fields for t, matching Time2Epoch.
func (t Time) ToCalendar() [6]float64 {
	days := t.Sec / 86400
	rem := t.Sec % 86400
	if rem < 0 {
		rem += 86400
		days--
	}
	y, m, d := civilFromDays(int(days))
	sec := float64(rem) + t.Frac
	h := int(sec / 3600)
	sec -= float64(h) * 3600
	mi := int(sec / 60)
	sec -= float64(mi) * 60
	return [6]float64{float64(y), float64(m), float64(d), float64(h), float64(mi), sec}
}

func civilFromDays(z int) (y, m, d int) {
	z += 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d = doy - (153*mp+2)/5 + 1
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return
}

// Add returns t advanced by sec seconds (may be negative), renormalizing the
// fractional part exactly as TimeAdd does.
func (t Time) Add(sec float64) Time {
	tt := t.Frac + sec
	whole := math.Floor(tt)
	return Time{Sec: t.Sec + int64(whole), Frac: tt - whole}
}

// Sub returns t1-t2 in seconds, matching TimeDiff.
func (t1 Time) Sub(t2 Time) float64 {
	return float64(t1.Sec-t2.Sec) + (t1.Frac - t2.Frac)
}

// GPSWeekSec splits t into a GPS week number and seconds-of-week, matching
// Time2GpsT. gpsEpoch is 1980-01-06 00:00:00.
var gpsEpoch = FromCalendar([6]float64{1980, 1, 6, 0, 0, 0})

func (t Time) GPSWeekSec() (week int, sec float64) {
	tt := t.Sub(gpsEpoch)
	w := math.Floor(tt / (7 * daySec))
	return int(w), tt - w*7*daySec
}

// FromGPSWeekSec builds a Time from a GPS week number and seconds-of-week,
// matching GpsT2Time.
func FromGPSWeekSec(week int, sec float64) Time {
	if sec < -1e9 || sec > 1e9 {
		sec = math.Mod(sec, daySec*7)
	}
	return gpsEpoch.Add(float64(week)*7*daySec + sec)
}

// ToUTC converts a GPS-time instant to UTC, applying the leap second table
// active at that instant. Matches GpsT2Utc.
func (t Time) ToUTC() Time {
	for _, l := range leapSeconds {
		tu := t.Add(l.Offset)
		if tu.Sub(FromCalendar(l.Epoch)) >= 0.0 {
			return tu
		}
	}
	return t
}

// FromUTC converts a UTC instant to GPS time, applying the leap second table
// active at that instant. Matches Utc2GpsT.
func FromUTC(t Time) Time {
	for _, l := range leapSeconds {
		if t.Sub(FromCalendar(l.Epoch)) >= 0.0 {
			return t.Add(-l.Offset)
		}
	}
	return t
}

// ToBeiDou converts GPS time to BeiDou time (constant 14s offset, no leap
// seconds of its own). Matches GpsT2BDT.
func (t Time) ToBeiDou() Time { return t.Add(-14.0) }

// FromBeiDou converts BeiDou time to GPS time. Matches BDT2GpsT.
func FromBeiDou(t Time) Time { return t.Add(14.0) }

// DayOfYear returns the fractional day-of-year (UTC), used by the Niell
// troposphere mapping function's seasonal term. Matches Time2DayOfYeay.
func (t Time) DayOfYear() float64 {
	ep := t.ToCalendar()
	jan1 := FromCalendar([6]float64{ep[0], 1, 1, 0, 0, 0})
	return t.Sub(jan1)/daySec + 1.0
}

// String formats t as "2006/01/02 15:04:05.000" with three digits after the
// decimal point, matching TimeStr's default rendering.
func (t Time) String() string {
	ep := t.ToCalendar()
	sec := ep[5]
	return fmt.Sprintf("%04.0f/%02.0f/%02.0f %02.0f:%02.0f:%06.3f",
		ep[0], ep[1], ep[2], ep[3], ep[4], sec)
}
