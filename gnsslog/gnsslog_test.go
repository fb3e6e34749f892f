package gnsslog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxb-gnss/gnsscore/gnsslog"
)

func TestForTagsComponent(t *testing.T) {
	assert := assert.New(t)
	entry := gnsslog.For("spp")
	assert.Equal("spp", entry.Data["component"])
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	assert := assert.New(t)
	assert.NotPanics(func() { gnsslog.SetLevel("not-a-level") })
}
