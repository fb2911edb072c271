package vectorstore

import (
	"fmt"
	"math"
)

// Metric selects how similarity between two vectors is computed.
type Metric string

const (
	// MetricCosine is dot(a,b) / (|a|*|b|), defined as 0 when either norm is zero.
	MetricCosine Metric = "cosine"
	// MetricDot is the raw inner product, unnormalized.
	MetricDot Metric = "dot"
	// MetricEuclidean is 1/(1+distance) so that higher is better, like the
	// other metrics. Callers must not assume a shared numeric range across
	// metrics, only that larger means more similar.
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric returns the Metric for name. Empty defaults to cosine.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q (supported: cosine, dot, euclidean)", ErrInvalidConfig, name)
	}
}

// Score returns the similarity between two equal-length vectors under m.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricDot:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	default: // cosine
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
