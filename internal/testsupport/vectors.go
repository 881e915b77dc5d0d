package testsupport

import "math"

// RampSequence returns n embedding vectors of the given dimension whose
// values ramp deterministically with the window index. Two sequences built
// from overlapping index ranges share identical vectors on the overlap,
// which makes alignment outcomes easy to assert.
func RampSequence(start, n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for d := 0; d < dim; d++ {
			phase := float64(start+i)*0.1 + float64(d)*0.7
			vec[d] = float32(math.Sin(phase))
		}
		vectors[i] = vec
	}
	return vectors
}

// NoisySequence returns a copy of base with a small deterministic offset
// added to every component. The offset is well below typical match
// thresholds, so the result still aligns with the original.
func NoisySequence(base [][]float32, amplitude float32) [][]float32 {
	out := make([][]float32, len(base))
	for i, vec := range base {
		copied := make([]float32, len(vec))
		for d, v := range vec {
			sign := float32(1)
			if (i+d)%2 == 1 {
				sign = -1
			}
			copied[d] = v + sign*amplitude
		}
		out[i] = copied
	}
	return out
}

// ConstantSequence returns n identical vectors filled with the given value.
func ConstantSequence(n, dim int, value float32) [][]float32 {
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = value
		}
		vectors[i] = vec
	}
	return vectors
}
