// Package gnssobs defines the satellite identity scheme and per-epoch
// observation records shared by the ephemeris, SPP and RTK/PPP packages.
//
// Grounded on FengXuebin-gnssgo/src/types.go's SYS_*/MINPRN*/MAXPRN*/NSAT*
// constants and common.go's SatNo/SatSys/SatId2No/SatNo2Id.
package gnssobs

import (
	"fmt"
)

// System identifies a GNSS constellation.
type System int

const (
	SystemNone System = iota
	SystemGPS
	SystemSBAS
	SystemGLONASS
	SystemGalileo
	SystemQZSS
	SystemBeiDou
	SystemIRNSS
)

func (s System) String() string {
	switch s {
	case SystemGPS:
		return "GPS"
	case SystemSBAS:
		return "SBAS"
	case SystemGLONASS:
		return "GLONASS"
	case SystemGalileo:
		return "Galileo"
	case SystemQZSS:
		return "QZSS"
	case SystemBeiDou:
		return "BeiDou"
	case SystemIRNSS:
		return "IRNSS"
	}
	return "none"
}

// prnRange is the inclusive min/max PRN (or slot) number for a system, and
// the running offset contributed by prior systems in the packed satellite
// numbering, matching MINPRNxxx/MAXPRNxxx/NSATxxx.
type prnRange struct {
	min, max, offset int
}

var ranges = map[System]prnRange{
	SystemGPS:     {min: 1, max: 32, offset: 0},
	SystemGLONASS: {min: 1, max: 27, offset: 32},
	SystemGalileo: {min: 1, max: 36, offset: 32 + 27},
	SystemQZSS:    {min: 193, max: 202, offset: 32 + 27 + 36},
	SystemBeiDou:  {min: 1, max: 63, offset: 32 + 27 + 36 + 10},
	SystemIRNSS:   {min: 1, max: 14, offset: 32 + 27 + 36 + 10 + 63},
	SystemSBAS:    {min: 120, max: 158, offset: 32 + 27 + 36 + 10 + 63 + 14},
}

// MaxSat is the size of the packed satellite numbering space, matching
// MAXSAT.
const MaxSat = 32 + 27 + 36 + 10 + 63 + 14 + 39

// SatID is a dense, bijective satellite identifier packing (System, PRN)
// into a single integer in [1, MaxSat], matching SatNo/SatSys.
type SatID int

// NewSatID packs a (system, prn) pair into a SatID. Returns 0 (invalid) if
// prn is outside the system's range.
func NewSatID(sys System, prn int) SatID {
	r, ok := ranges[sys]
	if !ok || prn < r.min || prn > r.max {
		return 0
	}
	return SatID(r.offset + prn - r.min + 1)
}

// System returns the constellation component of id.
func (id SatID) System() System {
	sys, _ := id.split()
	return sys
}

// PRN returns the per-constellation PRN (or slot) number of id.
func (id SatID) PRN() int {
	_, prn := id.split()
	return prn
}

func (id SatID) split() (System, int) {
	n := int(id)
	if n <= 0 || n > MaxSat {
		return SystemNone, 0
	}
	// order must match the offsets table above: GPS, GLONASS, Galileo,
	// QZSS, BeiDou, IRNSS, SBAS.
	order := []System{SystemGPS, SystemGLONASS, SystemGalileo, SystemQZSS, SystemBeiDou, SystemIRNSS, SystemSBAS}
	for _, sys := range order {
		r := ranges[sys]
		width := r.max - r.min + 1
		if n <= width {
			return sys, n + r.min - 1
		}
		n -= width
	}
	return SystemNone, 0
}

// String renders id as RINEX-style Gnn/Rnn/Enn/Jnn/Cnn/Inn/Snn, matching
// SatNo2Id.
func (id SatID) String() string {
	sys, prn := id.split()
	var code byte
	switch sys {
	case SystemGPS:
		code = 'G'
	case SystemGLONASS:
		code = 'R'
	case SystemGalileo:
		code = 'E'
	case SystemQZSS:
		code = 'J'
	case SystemBeiDou:
		code = 'C'
	case SystemIRNSS:
		code = 'I'
	case SystemSBAS:
		code = 'S'
		prn -= 100
	default:
		return "UNK"
	}
	return fmt.Sprintf("%c%02d", code, prn)
}

// ParseSatID parses a RINEX-style satellite id (e.g. "G12", "R03"),
// matching SatId2No.
func ParseSatID(s string) (SatID, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("gnssobs: satellite id %q too short", s)
	}
	var code byte
	var prn int
	if _, err := fmt.Sscanf(s, "%c%d", &code, &prn); err != nil {
		return 0, fmt.Errorf("gnssobs: malformed satellite id %q: %w", s, err)
	}
	var sys System
	switch code {
	case 'G':
		sys = SystemGPS
	case 'R':
		sys = SystemGLONASS
	case 'E':
		sys = SystemGalileo
	case 'J':
		sys = SystemQZSS
	case 'C':
		sys = SystemBeiDou
	case 'I':
		sys = SystemIRNSS
	case 'S':
		sys = SystemSBAS
		prn += 100
	default:
		return 0, fmt.Errorf("gnssobs: unknown system code %q in %q", code, s)
	}
	id := NewSatID(sys, prn)
	if id == 0 {
		return 0, fmt.Errorf("gnssobs: prn %d out of range for %s", prn, sys)
	}
	return id, nil
}
