package reembed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"already unit", []float32{0, 1, 0}, []float32{0, 1, 0}},
		{"three four five", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative components", []float32{-2, 0, 2}, []float32{-1 / math.Sqrt2, 0, 1 / math.Sqrt2}},
		// Squares underflow to zero in float32
		{"tiny components", []float32{3e-23, 4e-23}, []float32{0.6, 0.8}},
		// Squares overflow to +Inf in float32
		{"huge components", []float32{3e30, 4e30}, []float32{0.6, 0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-6, "component %d", i)
			}
			assert.InDelta(t, 1.0, magnitude(got), 1e-6)
		})
	}
}

func TestNormalizeVector_LongVector(t *testing.T) {
	v := make([]float32, 4096)
	for i := range v {
		v[i] = float32(i%7) * 0.01
	}
	got := NormalizeVector(v)
	assert.InDelta(t, 1.0, magnitude(got), 1e-6)

	// Direction is kept, so cosine against the input is 1
	var dot float64
	for i := range v {
		dot += float64(v[i]) * float64(got[i])
	}
	assert.InDelta(t, 1.0, dot/magnitude(v), 1e-6)
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{1, 2, 2}
	got := NormalizeVector(input)
	assert.Equal(t, []float32{1, 2, 2}, input)
	assert.InDelta(t, 1.0/3, got[0], 1e-6)
}

func TestNormalizeVector_Degenerate(t *testing.T) {
	zero := []float32{0, 0, 0}
	got := NormalizeVector(zero)
	assert.Equal(t, []float32{0, 0, 0}, got)
	got[0] = 1
	assert.Zero(t, zero[0], "zero input gets a fresh slice")

	assert.Empty(t, NormalizeVector([]float32{}))
	assert.Nil(t, NormalizeVector(nil))
}
