package gtime_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/gtime"
)

func TestCalendarRoundTrip(t *testing.T) {
	assert := assert.New(t)
	cases := [][6]float64{
		{2022, 9, 1, 0, 0, 0},
		{2022, 9, 1, 12, 30, 45.5},
		{2000, 1, 1, 0, 0, 0},
		{2029, 12, 31, 23, 59, 59.999},
	}
	for _, ep := range cases {
		tm := gtime.FromCalendar(ep)
		back := tm.ToCalendar()
		for i := range ep {
			assert.InDelta(ep[i], back[i], 1e-6)
		}
	}
}

func TestGPSWeekSecRoundTrip(t *testing.T) {
	assert := assert.New(t)
	tm := gtime.FromCalendar([6]float64{2022, 9, 1, 0, 0, 0})
	week, sec := tm.GPSWeekSec()
	back := gtime.FromGPSWeekSec(week, sec)
	assert.InDelta(0.0, tm.Sub(back), 1e-9)
}

func TestGpstUtcRoundTrip(t *testing.T) {
	assert := assert.New(t)
	for year := 2000.0; year <= 2030.0; year++ {
		gps := gtime.FromCalendar([6]float64{year, 6, 15, 12, 0, 0})
		utc := gps.ToUTC()
		back := gtime.FromUTC(utc)
		assert.InDelta(0.0, gps.Sub(back), 1e-6)
	}
}

func TestLeapSecondOffsetAfterLeap(t *testing.T) {
	assert := assert.New(t)
	// 2017-01-01 00:00:18 GPS is the instant right after the 2017 leap
	// second inserts the 18th leap second; UTC-GPST should be -18.
	gps := gtime.FromCalendar([6]float64{2017, 1, 1, 0, 0, 18})
	utc := gps.ToUTC()
	diff := utc.Sub(gps)
	assert.InDelta(-18.0, diff, 1e-9)
}

func TestAddIsAssociative(t *testing.T) {
	assert := assert.New(t)
	base := gtime.FromCalendar([6]float64{2022, 1, 1, 0, 0, 0})
	a := base.Add(3661.25)
	b := base.Add(3600).Add(61.25)
	assert.InDelta(0.0, a.Sub(b), 1e-9)
}

func TestDayOfYear(t *testing.T) {
	assert := assert.New(t)
	jan1 := gtime.FromCalendar([6]float64{2022, 1, 1, 0, 0, 0})
	assert.InDelta(1.0, jan1.DayOfYear(), 1e-6)
	dec31 := gtime.FromCalendar([6]float64{2022, 12, 31, 0, 0, 0})
	assert.InDelta(365.0, dec31.DayOfYear(), 1e-6)
}

func TestBeiDouRoundTrip(t *testing.T) {
	assert := assert.New(t)
	gps := gtime.FromCalendar([6]float64{2022, 3, 1, 0, 0, 0})
	bdt := gps.ToBeiDou()
	back := gtime.FromBeiDou(bdt)
	assert.InDelta(0.0, gps.Sub(back), 1e-9)
	assert.InDelta(-14.0, bdt.Sub(gps), 1e-9)
}

func TestStringFormat(t *testing.T) {
	assert := assert.New(t)
	tm := gtime.FromCalendar([6]float64{2022, 9, 1, 1, 2, 3.456})
	s := tm.String()
	assert.True(strings.Contains(s, "2022/09/01"))
	assert.True(strings.Contains(s, "01:02:03"))
}

func TestLeapSecondOffsetNegative(t *testing.T) {
	assert := assert.New(t)
	prev := math.Inf(1)
	gps := gtime.FromCalendar([6]float64{2020, 1, 1, 0, 0, 0})
	off := gps.ToUTC().Sub(gps)
	assert.Less(off, 0.0)
	_ = prev
}
