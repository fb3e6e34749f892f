package lambda_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/fxb-gnss/gnsscore/lambda"
)

func TestResolveRecoversNearIntegerVector(t *testing.T) {
	assert := assert.New(t)
	a := []float64{1.02, -2.97, 3.95}
	Q := mat.NewDense(3, 3, []float64{
		0.02, 0.005, 0.001,
		0.005, 0.03, 0.004,
		0.001, 0.004, 0.015,
	})

	F, s, err := lambda.Resolve(a, Q, 2)
	assert.NoError(err)
	assert.Len(s, 2)
	assert.LessOrEqual(s[0], s[1])

	best := []float64{F.At(0, 0), F.At(1, 0), F.At(2, 0)}
	assert.InDelta(1.0, best[0], 1e-6)
	assert.InDelta(-3.0, best[1], 1e-6)
	assert.InDelta(4.0, best[2], 1e-6)
}

func TestResolveRejectsNonPositiveDefinite(t *testing.T) {
	assert := assert.New(t)
	a := []float64{1.0, 2.0}
	Q := mat.NewDense(2, 2, []float64{0, 0, 0, 0})
	_, _, err := lambda.Resolve(a, Q, 1)
	assert.ErrorIs(err, lambda.ErrNotPositiveDefinite)
}

func TestReductionProducesUnimodularZ(t *testing.T) {
	assert := assert.New(t)
	Q := mat.NewDense(2, 2, []float64{0.05, 0.03, 0.03, 0.04})
	Z, err := lambda.Reduction(Q)
	assert.NoError(err)
	det := Z.At(0, 0)*Z.At(1, 1) - Z.At(0, 1)*Z.At(1, 0)
	assert.InDelta(1.0, det*det, 1e-6) // unimodular: det = +-1
}
