package vector

import (
	"math"

	"github.com/hyperjump/soundsift/pkg/utils"
)

// Dot returns the float32 inner product of two vectors (cosine similarity when both are
// unit length). Mismatched or empty vectors score 0.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of x. A zero vector is returned as zeros.
func Normalized(x []float32) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	utils.NormalizeL2(out)
	return out
}
