// Package config defines the processing options controlling the SPP and
// RTK/PPP solvers, validated at load time with go-playground/validator
// struct tags rather than the teacher's ad hoc option-parsing.
//
// Grounded on FengXuebin-gnssgo/src/types.go's PrcOpt struct.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/fxb-gnss/gnsscore/errkind"
)

// Mode selects the positioning algorithm, matching PMODE_*.
type Mode int

const (
	ModeSingle Mode = iota
	ModeDGPS
	ModeKinematic
	ModeStatic
	ModeMovingBase
	ModeFixed
	ModePPPKinematic
	ModePPPStatic
)

// AmbiguityMode selects the integer-ambiguity resolution strategy,
// matching ModeAr.
type AmbiguityMode int

const (
	AmbiguityOff AmbiguityMode = iota
	AmbiguityContinuous
	AmbiguityInstantaneous
	AmbiguityFixAndHold
	AmbiguityPPPAR
)

// DynamicsModel selects the kinematic state's process model, matching
// Dynamics.
type DynamicsModel int

const (
	DynamicsNone DynamicsModel = iota
	DynamicsVelocity
	DynamicsAcceleration
)

// IonosphereOption selects how ionospheric delay is handled, generalizing
// IONOOPT_*.
type IonosphereOption int

const (
	IonosphereOff IonosphereOption = iota
	IonosphereBroadcast
	IonosphereIonosphereFree
	IonosphereEstimate
)

// TroposphereOption selects how tropospheric delay is handled, generalizing
// TROPOPT_*.
type TroposphereOption int

const (
	TroposphereOff TroposphereOption = iota
	TroposphereSaastamoinen
	TroposphereEstimate
)

// Options holds one solver run's full configuration. Struct tags are
// validated by Validate using go-playground/validator.
type Options struct {
	Mode   Mode `validate:"gte=0,lte=7"`
	NumFreq int `validate:"gte=1,lte=3"`
	NavSystems uint8 `validate:"required"`

	ElevationMask float64 `validate:"gte=0,lt=1.5708"`

	Ambiguity         AmbiguityMode `validate:"gte=0,lte=4"`
	MaxOutageEpochs   int           `validate:"gte=0"`
	MinLockEpochs     int           `validate:"gte=0"`
	MinFixEpochs      int           `validate:"gte=0"`
	ArMaxIterations   int           `validate:"gte=1"`
	ArElevationMask   float64       `validate:"gte=0"`
	VarHoldAmbiguity  float64       `validate:"gt=0"`

	Ionosphere  IonosphereOption  `validate:"gte=0,lte=3"`
	Troposphere TroposphereOption `validate:"gte=0,lte=2"`
	Dynamics    DynamicsModel     `validate:"gte=0,lte=2"`

	MaxAgeOfDifferential float64 `validate:"gt=0"`
	ReferencePositionECEF [3]float64
}

// Default returns an Options populated with the teacher's conventional
// defaults: single-frequency GPS-only SPP, Saastamoinen troposphere,
// broadcast ionosphere, no ambiguity resolution.
func Default() Options {
	return Options{
		Mode:                 ModeSingle,
		NumFreq:              1,
		NavSystems:           1, // GPS only
		ElevationMask:        15 * (3.141592653589793 / 180),
		Ambiguity:            AmbiguityOff,
		MaxOutageEpochs:      5,
		MinLockEpochs:        5,
		MinFixEpochs:         10,
		ArMaxIterations:      1,
		ArElevationMask:      0,
		VarHoldAmbiguity:     0.1 * 0.1,
		Ionosphere:           IonosphereBroadcast,
		Troposphere:          TroposphereSaastamoinen,
		Dynamics:             DynamicsNone,
		MaxAgeOfDifferential: 30,
	}
}

var validate = validator.New()

// Validate checks o against its struct tags, wrapping any failure as an
// errkind.Config error.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errkind.Wrap(errkind.Config, "Options.Validate", err)
	}
	if o.Ambiguity != AmbiguityOff && o.NumFreq < 1 {
		return errkind.New(errkind.Config, "Options.Validate", "ambiguity resolution requires at least one frequency")
	}
	return nil
}

func (m Mode) String() string {
	names := [...]string{"single", "dgps", "kinematic", "static", "moving-base", "fixed", "ppp-kinematic", "ppp-static"}
	if int(m) < len(names) {
		return names[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}
