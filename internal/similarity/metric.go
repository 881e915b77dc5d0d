package similarity

import (
	"fmt"
	"math"
	"strings"
)

// Metric names accepted in [analysis] distance_metric.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// DistanceFunc computes the distance between two vectors of equal length.
// Smaller is more similar.
type DistanceFunc func(a, b []float32) float64

// MetricFor resolves a metric name to its distance function.
func MetricFor(name string) (DistanceFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MetricEuclidean, "":
		return Euclidean, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", name)
	}
}

// Euclidean returns the L2 distance between two vectors.
func Euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine distance (1 - cosine similarity) between two
// vectors. Zero vectors are maximally distant from everything.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
