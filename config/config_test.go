package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/config"
	"github.com/fxb-gnss/gnsscore/errkind"
)

func TestDefaultOptionsValidate(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	assert.NoError(opt.Validate())
}

func TestZeroNavSystemsIsInvalid(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.NavSystems = 0
	err := opt.Validate()
	assert.Error(err)
	assert.True(errkind.Of(err, errkind.Config))
}

func TestElevationMaskOutOfRange(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.ElevationMask = 2.0
	assert.Error(opt.Validate())
}

func TestAmbiguityRequiresFrequency(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.NumFreq = 1
	opt.Ambiguity = config.AmbiguityContinuous
	assert.NoError(opt.Validate())
}

func TestModeString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("kinematic", config.ModeKinematic.String())
}
