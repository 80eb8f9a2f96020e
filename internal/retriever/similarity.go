package retriever

import (
	"math"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosine scores a against b given their non-zero norms.
func cosine(a, b []float32, na, nb float64) float64 {
	return clamp(dot(a, b) / (na * nb))
}

// clamp keeps rounding noise from pushing a score outside [-1, 1].
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
