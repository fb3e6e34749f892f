// Package pipeline drives the end-to-end positioning run: it assembles
// per-epoch observation sets, routes them to SPP or the RTK/PPP filter, and
// sequences forward, backward, and combined solution passes.
//
// Grounded on FengXuebin-gnssgo/src/postpos.go's ProcPos/execses/
// execses_b/CombResult (the epoch loop and forward-backward-combined
// control flow) and rtkpos.go's RelativePos (SPP-then-filter routing per
// epoch), generalized onto the gnssobs/spp/kalman/lambda packages.
package pipeline

import (
	"github.com/fxb-gnss/gnsscore/gnssobs"
	"github.com/fxb-gnss/gnsscore/gtime"
)

// Status is a solved epoch's fix quality, matching the teacher's SOLQ_*
// codes and spec.md's "conventional 0-7 enumeration used by downstream
// formatters".
type Status int

const (
	StatusNone Status = iota
	StatusFix
	StatusFloat
	StatusSBAS
	StatusDGPS
	StatusSingle
	StatusPPP
	StatusDR
)

func (s Status) String() string {
	switch s {
	case StatusFix:
		return "fix"
	case StatusFloat:
		return "float"
	case StatusSBAS:
		return "sbas"
	case StatusDGPS:
		return "dgps"
	case StatusSingle:
		return "single"
	case StatusPPP:
		return "ppp"
	case StatusDR:
		return "dr"
	}
	return "none"
}

// Solution is one epoch's output record, matching the teacher's Sol
// (rr/qr/qv/dtr/stat/ns/age/ratio) generalized into named fields.
type Solution struct {
	Time gtime.Time

	PositionECEF [3]float64
	VelocityECEF [3]float64

	// PosCovar/VelCovar hold the upper triangle of the 3x3 covariance in
	// the order xx,yy,zz,xy,yz,zx, matching Sol.Qr/Sol.Qv.
	PosCovar [6]float64
	VelCovar [6]float64

	ClockBiasSec [6]float64

	Status         Status
	NumSatellites  int
	AgeOfDifferential float64
	Ratio          float64

	UsedSatellites []gnssobs.SatID
}
