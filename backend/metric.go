package backend

import (
	"fmt"
	"math"
)

// Metric is the distance metric a collection ranks by. It is configured
// through the "space" key of the collection metadata and fixed for the
// collection's lifetime.
type Metric string

const (
	// MetricCosine ranks by cosine distance (1 - cosine similarity).
	MetricCosine Metric = "cosine"
	// MetricL2 ranks by squared Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricIP ranks by inner-product distance (1 - dot product).
	MetricIP Metric = "ip"
)

// MetadataSpaceKey is the collection metadata key holding the metric.
const MetadataSpaceKey = "space"

// DistanceFunc computes an ascending-better distance between two vectors
// of equal length.
type DistanceFunc func(a, b []float32) float64

// MetricFromMetadata reads the metric from collection metadata,
// defaulting to cosine when the key is absent.
func MetricFromMetadata(metadata map[string]any) (Metric, error) {
	if metadata == nil {
		return MetricCosine, nil
	}
	raw, ok := metadata[MetadataSpaceKey]
	if !ok {
		return MetricCosine, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("metadata key %q must be a string, got %T", MetadataSpaceKey, raw)
	}
	switch m := Metric(s); m {
	case MetricCosine, MetricL2, MetricIP:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported metric %q (supported: cosine, l2, ip)", s)
	}
}

// Distance returns the distance function for the metric.
func (m Metric) Distance() (DistanceFunc, error) {
	switch m {
	case MetricCosine:
		return CosineDistance, nil
	case MetricL2:
		return SquaredL2Distance, nil
	case MetricIP:
		return InnerProductDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric %q", string(m))
	}
}

// CosineDistance returns 1 - cos(a, b). Zero-norm vectors are treated as
// maximally distant.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// SquaredL2Distance returns the squared Euclidean distance.
func SquaredL2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// InnerProductDistance returns 1 - dot(a, b).
func InnerProductDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}
