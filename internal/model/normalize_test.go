package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormLinearEndpoints(t *testing.T) {
	assert.Equal(t, 0.0, NormLinear(40, 40, 60))
	assert.Equal(t, 1.0, NormLinear(60, 40, 60))
	assert.Equal(t, 0.5, NormLinear(50, 40, 60))
}

func TestNormLinearClampsOutsideRange(t *testing.T) {
	assert.Equal(t, 0.0, NormLinear(-1e12, 80e9, 250e9))
	assert.Equal(t, 1.0, NormLinear(1e15, 80e9, 250e9))
}

func TestNormLinearDegenerateRange(t *testing.T) {
	for _, x := range []float64{-5, 0, 7, 1e9} {
		assert.Equal(t, 0.5, NormLinear(x, 7, 7))
	}
}

func TestNormLinearMonotonicAndBounded(t *testing.T) {
	lo, hi := 0.02, 0.20
	prev := -1.0
	for i := 0; i <= 200; i++ {
		x := lo + (hi-lo)*float64(i)/200
		got := NormLinear(x, lo, hi)
		assert.GreaterOrEqual(t, got, prev, "x=%v", x)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		assert.Equal(t, got, Clamp(got, 0, 1), "re-clamping must be a no-op")
		prev = got
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.0, Clamp(-3, 0, 1))
	assert.Equal(t, 0.25, Clamp(0.25, 0, 1))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.318, round(0.3176215, 3))
	assert.Equal(t, 0.0217, round(0.0217391, 4))
	assert.Equal(t, -0.489, round(-0.48912, 3))
}
